/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"fmt"

	"github.com/tomoncle/mongorepo/predicate"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BulkResult reports what an ordered bulk replace applied.
type BulkResult struct {
	Requested int
	Matched   int64
	Modified  int64
}

// ReplaceMany sends one replace-by-id per document in a single ordered bulk
// write. It is not atomic across documents: on failure the replacements
// before the failing one are durable and the rest are not applied.
// Missing targets are skipped, never inserted. Empty input sends nothing.
func (r *baseRepositoryImpl[T]) ReplaceMany(ctx context.Context, docs []*T) (result *BulkResult, err error) {
	ctx, span := r.startSpan(ctx, "ReplaceMany")
	defer func() { endSpan(span, err) }()

	result = &BulkResult{Requested: len(docs)}
	if len(docs) == 0 {
		return result, nil
	}

	models := make([]mongo.WriteModel, len(docs))
	for i, doc := range docs {
		if doc == nil {
			return nil, fmt.Errorf("%w at index %d", ErrNilDocument, i)
		}
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: predicate.IDField, Value: (*doc).GetID()}}).
			SetReplacement(doc).
			SetUpsert(false)
	}

	res, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if res != nil {
		result.Matched = res.MatchedCount
		result.Modified = res.ModifiedCount
	}
	return result, err
}
