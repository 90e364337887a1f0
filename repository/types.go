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

	"github.com/tomoncle/mongorepo/predicate"
	"github.com/tomoncle/mongorepo/types"
	"go.mongodb.org/mongo-driver/mongo"
)

// Document is implemented, with value receivers, by every stored type.
// GetID is stored as "_id" and must not change after insertion.
type Document interface {
	GetID() string
	CollectionName() string
}

// IdentityAssigner is implemented by *T when the repository may assign an
// identity to documents inserted with an empty one.
type IdentityAssigner interface {
	SetID(id string)
}

// QueryRepository defines read operations. Not-found is never an error:
// FindOne and FindByID return nil, nil.
type QueryRepository[T Document] interface {
	AsQueryable() *Query[T]

	Find(ctx context.Context, p predicate.Predicate) (*Cursor[T], error)

	FindOne(ctx context.Context, p predicate.Predicate) (*T, error)

	// FindByID fails with ErrNotUnique when more than one document has id.
	FindByID(ctx context.Context, id string) (*T, error)

	Count(ctx context.Context, p predicate.Predicate) (int64, error)
}

// WriteRepository defines insert and replace operations. Batches are
// ordered and fail fast; the prefix before a failure stays applied.
type WriteRepository[T Document] interface {
	InsertOne(ctx context.Context, doc *T) error

	InsertMany(ctx context.Context, docs []*T) error

	// ReplaceOne overwrites the document with the same id. A missing target
	// is a no-op, never an insert.
	ReplaceOne(ctx context.Context, doc *T) error

	ReplaceMany(ctx context.Context, docs []*T) (*BulkResult, error)
}

// DeleteRepository defines delete operations. Deleting nothing is not an error.
type DeleteRepository[T Document] interface {
	DeleteOne(ctx context.Context, p predicate.Predicate) error

	DeleteByID(ctx context.Context, id string) error

	DeleteMany(ctx context.Context, p predicate.Predicate) error
}

// AsyncRepository runs each operation on its own goroutine.
type AsyncRepository[T Document] interface {
	FindAsync(ctx context.Context, p predicate.Predicate) *Future[[]*T]
	FindOneAsync(ctx context.Context, p predicate.Predicate) *Future[*T]
	FindByIDAsync(ctx context.Context, id string) *Future[*T]
	InsertOneAsync(ctx context.Context, doc *T) *Future[struct{}]
	InsertManyAsync(ctx context.Context, docs []*T) *Future[struct{}]
	ReplaceOneAsync(ctx context.Context, doc *T) *Future[struct{}]
	ReplaceManyAsync(ctx context.Context, docs []*T) *Future[*BulkResult]
	DeleteOneAsync(ctx context.Context, p predicate.Predicate) *Future[struct{}]
	DeleteByIDAsync(ctx context.Context, id string) *Future[struct{}]
	DeleteManyAsync(ctx context.Context, p predicate.Predicate) *Future[struct{}]
}

// PageQueryRepository defines pagination functionality for listing documents.
type PageQueryRepository[T Document] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// Repository combines every operation and exposes the raw collection for
// advanced use cases.
type Repository[T Document] interface {
	QueryRepository[T]
	WriteRepository[T]
	DeleteRepository[T]
	AsyncRepository[T]
	PageQueryRepository[T]
	Collection() *mongo.Collection
	CollectionName() string
	Close(ctx context.Context) error
}
