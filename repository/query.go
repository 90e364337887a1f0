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
	"errors"
	"fmt"

	"github.com/tomoncle/mongorepo/predicate"
	"github.com/tomoncle/mongorepo/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrInvalidQuery = errors.New("invalid query")

// Query is an immutable query over the repository's collection. Every
// builder method returns a new Query; nothing is sent to the server until a
// terminal method (Cursor, All, First, Count) runs.
type Query[T Document] struct {
	repo   *baseRepositoryImpl[T]
	filter predicate.Predicate
	orders []types.Order
	fields []string
	skip   int64
	limit  int64
	err    error
}

func (q *Query[T]) clone() *Query[T] {
	n := *q
	n.orders = append([]types.Order(nil), q.orders...)
	n.fields = append([]string(nil), q.fields...)
	return &n
}

// Where narrows the query; successive calls are combined with AND.
func (q *Query[T]) Where(p predicate.Predicate) *Query[T] {
	n := q.clone()
	if n.filter.Op() == predicate.OpAll {
		n.filter = p
	} else {
		n.filter = n.filter.And(p)
	}
	return n
}

// OrderBy appends sort keys written as "field", "field ASC" or "field DESC".
func (q *Query[T]) OrderBy(exprs ...string) *Query[T] {
	n := q.clone()
	orders, err := types.ParseOrders(exprs...)
	if err != nil {
		n.err = errors.Join(n.err, fmt.Errorf("%w: %w", ErrInvalidQuery, err))
		return n
	}
	n.orders = append(n.orders, orders...)
	return n
}

func (q *Query[T]) Skip(skip int64) *Query[T] {
	n := q.clone()
	if skip < 0 {
		n.err = errors.Join(n.err, fmt.Errorf("%w: negative skip %d", ErrInvalidQuery, skip))
		return n
	}
	n.skip = skip
	return n
}

// Limit caps the number of results; zero means no limit.
func (q *Query[T]) Limit(limit int64) *Query[T] {
	n := q.clone()
	if limit < 0 {
		n.err = errors.Join(n.err, fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, limit))
		return n
	}
	n.limit = limit
	return n
}

// Select restricts the returned fields. Unselected fields decode to their
// zero values; "_id" is always returned.
func (q *Query[T]) Select(fields ...string) *Query[T] {
	n := q.clone()
	n.fields = append(n.fields, fields...)
	return n
}

// Filter returns the translated filter document.
func (q *Query[T]) Filter() (bson.D, error) {
	if q.err != nil {
		return nil, q.err
	}
	return Filter(q.filter)
}

func (q *Query[T]) findOptions() *options.FindOptions {
	opts := options.Find()
	if len(q.orders) > 0 {
		sort := make(bson.D, 0, len(q.orders))
		for _, o := range q.orders {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Field, Value: dir})
		}
		opts.SetSort(sort)
	}
	if len(q.fields) > 0 {
		projection := make(bson.D, 0, len(q.fields))
		for _, f := range q.fields {
			projection = append(projection, bson.E{Key: f, Value: 1})
		}
		opts.SetProjection(projection)
	}
	if q.skip > 0 {
		opts.SetSkip(q.skip)
	}
	if q.limit > 0 {
		opts.SetLimit(q.limit)
	}
	return opts
}

// Cursor runs the query and returns a lazy cursor over the results.
func (q *Query[T]) Cursor(ctx context.Context) (cur *Cursor[T], err error) {
	ctx, span := q.repo.startSpan(ctx, "Query")
	defer func() { endSpan(span, err) }()

	filter, err := q.Filter()
	if err != nil {
		return nil, err
	}
	c, err := q.repo.coll.Find(ctx, filter, q.findOptions())
	if err != nil {
		return nil, err
	}
	return newCursor[T](c), nil
}

// All runs the query and decodes every result.
func (q *Query[T]) All(ctx context.Context) ([]*T, error) {
	cur, err := q.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	return cur.All(ctx)
}

// First returns the first result, or nil when there is none.
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	docs, err := q.Limit(1).All(ctx)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Count counts the matching documents, honoring Skip and Limit.
func (q *Query[T]) Count(ctx context.Context) (n int64, err error) {
	ctx, span := q.repo.startSpan(ctx, "QueryCount")
	defer func() { endSpan(span, err) }()

	filter, err := q.Filter()
	if err != nil {
		return 0, err
	}
	opts := options.Count()
	if q.skip > 0 {
		opts.SetSkip(q.skip)
	}
	if q.limit > 0 {
		opts.SetLimit(q.limit)
	}
	return q.repo.coll.CountDocuments(ctx, filter, opts)
}

