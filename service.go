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

// Package mongorepo binds generic MongoDB repositories to the global
// database connection managed by package database.
package mongorepo

import (
	"context"
	"sync"

	"github.com/tomoncle/mongorepo/database"
	"github.com/tomoncle/mongorepo/predicate"
	"github.com/tomoncle/mongorepo/repository"
	"github.com/tomoncle/mongorepo/types"
	"go.mongodb.org/mongo-driver/mongo"
)

type Service[T repository.Document] interface {
	// Get returns the document with id, or nil if there is none.
	Get(ctx context.Context, id string) (*T, error)

	// Find returns every document matching p.
	Find(ctx context.Context, p predicate.Predicate) ([]*T, error)

	// FindOne returns the first document matching p, or nil.
	FindOne(ctx context.Context, p predicate.Predicate) (*T, error)

	// All returns every document of the collection.
	All(ctx context.Context) ([]*T, error)

	// Count returns the number of documents matching p.
	Count(ctx context.Context, p predicate.Predicate) (int64, error)

	// Page returns a paginated list of documents.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Save inserts a new document.
	Save(ctx context.Context, doc *T) error

	// SaveAll inserts documents in one ordered batch.
	SaveAll(ctx context.Context, docs []*T) error

	// Replace overwrites an existing document.
	Replace(ctx context.Context, doc *T) error

	// ReplaceAll overwrites existing documents in one ordered bulk write.
	ReplaceAll(ctx context.Context, docs []*T) (*repository.BulkResult, error)

	// Delete removes the document with id.
	Delete(ctx context.Context, id string) error

	// DeleteWhere removes every document matching p.
	DeleteWhere(ctx context.Context, p predicate.Predicate) error

	// DeleteAll empties the collection.
	DeleteAll(ctx context.Context) error

	// Query returns a composable query over the collection.
	Query(ctx context.Context) (*repository.Query[T], error)
}

type baseServiceImpl[T repository.Document] struct {
	// source is nil when the repository was supplied by the caller.
	source func() *mongo.Database
	db     *mongo.Database
	repo   repository.Repository[T]
	mu     sync.Mutex
}

// NewService returns a Service backed by the global database. The
// repository is bound on first use and rebound whenever database.InitDB
// installs a new database, so the service may be created before InitDB runs
// and survives CloseDB followed by InitDB.
func NewService[T repository.Document]() Service[T] {
	return &baseServiceImpl[T]{source: database.GetDatabase}
}

// NewServiceWithRepository returns a Service over an existing repository.
func NewServiceWithRepository[T repository.Document](repo repository.Repository[T]) Service[T] {
	return &baseServiceImpl[T]{repo: repo}
}

func (s *baseServiceImpl[T]) baseRepo() (repository.Repository[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return s.repo, nil
	}
	db := s.source()
	if s.repo != nil && db == s.db {
		return s.repo, nil
	}
	repo, err := repository.NewRepositoryWithDatabase[T](db)
	if err != nil {
		s.repo, s.db = nil, nil
		return nil, err
	}
	s.repo, s.db = repo, db
	return repo, nil
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id string) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.FindByID(ctx, id)
}

func (s *baseServiceImpl[T]) Find(ctx context.Context, p predicate.Predicate) ([]*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	cur, err := repo.Find(ctx, p)
	if err != nil {
		return nil, err
	}
	return cur.All(ctx)
}

func (s *baseServiceImpl[T]) FindOne(ctx context.Context, p predicate.Predicate) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.FindOne(ctx, p)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	return s.Find(ctx, predicate.All())
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, p predicate.Predicate) (int64, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return 0, err
	}
	return repo.Count(ctx, p)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.Page(ctx, page)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, doc *T) error {
	repo, err := s.baseRepo()
	if err != nil {
		return err
	}
	return repo.InsertOne(ctx, doc)
}

func (s *baseServiceImpl[T]) SaveAll(ctx context.Context, docs []*T) error {
	repo, err := s.baseRepo()
	if err != nil {
		return err
	}
	return repo.InsertMany(ctx, docs)
}

func (s *baseServiceImpl[T]) Replace(ctx context.Context, doc *T) error {
	repo, err := s.baseRepo()
	if err != nil {
		return err
	}
	return repo.ReplaceOne(ctx, doc)
}

func (s *baseServiceImpl[T]) ReplaceAll(ctx context.Context, docs []*T) (*repository.BulkResult, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.ReplaceMany(ctx, docs)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id string) error {
	repo, err := s.baseRepo()
	if err != nil {
		return err
	}
	return repo.DeleteByID(ctx, id)
}

func (s *baseServiceImpl[T]) DeleteWhere(ctx context.Context, p predicate.Predicate) error {
	repo, err := s.baseRepo()
	if err != nil {
		return err
	}
	return repo.DeleteMany(ctx, p)
}

func (s *baseServiceImpl[T]) DeleteAll(ctx context.Context) error {
	return s.DeleteWhere(ctx, predicate.All())
}

func (s *baseServiceImpl[T]) Query(_ context.Context) (*repository.Query[T], error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.AsQueryable(), nil
}
