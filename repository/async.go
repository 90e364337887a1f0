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
)

// Future is the pending result of an operation running on its own goroutine.
type Future[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Go runs fn with ctx on a new goroutine. A panic in fn becomes the
// future's error.
func Go[V any](ctx context.Context, fn func(ctx context.Context) (V, error)) *Future[V] {
	f := &Future[V]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("async operation panicked: %v", r)
			}
		}()
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Await blocks until the operation finishes or ctx is done. Giving up on a
// future does not cancel the operation; cancel the context passed to it.
func (f *Future[V]) Await(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Done is closed when the operation has finished.
func (f *Future[V]) Done() <-chan struct{} {
	return f.done
}

func unit(err error) (struct{}, error) {
	return struct{}{}, err
}

func (r *baseRepositoryImpl[T]) FindAsync(ctx context.Context, p predicate.Predicate) *Future[[]*T] {
	return Go(ctx, func(ctx context.Context) ([]*T, error) {
		cur, err := r.Find(ctx, p)
		if err != nil {
			return nil, err
		}
		return cur.All(ctx)
	})
}

func (r *baseRepositoryImpl[T]) FindOneAsync(ctx context.Context, p predicate.Predicate) *Future[*T] {
	return Go(ctx, func(ctx context.Context) (*T, error) { return r.FindOne(ctx, p) })
}

func (r *baseRepositoryImpl[T]) FindByIDAsync(ctx context.Context, id string) *Future[*T] {
	return Go(ctx, func(ctx context.Context) (*T, error) { return r.FindByID(ctx, id) })
}

func (r *baseRepositoryImpl[T]) InsertOneAsync(ctx context.Context, doc *T) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) { return unit(r.InsertOne(ctx, doc)) })
}

func (r *baseRepositoryImpl[T]) InsertManyAsync(ctx context.Context, docs []*T) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) { return unit(r.InsertMany(ctx, docs)) })
}

func (r *baseRepositoryImpl[T]) ReplaceOneAsync(ctx context.Context, doc *T) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) { return unit(r.ReplaceOne(ctx, doc)) })
}

func (r *baseRepositoryImpl[T]) ReplaceManyAsync(ctx context.Context, docs []*T) *Future[*BulkResult] {
	return Go(ctx, func(ctx context.Context) (*BulkResult, error) { return r.ReplaceMany(ctx, docs) })
}

func (r *baseRepositoryImpl[T]) DeleteOneAsync(ctx context.Context, p predicate.Predicate) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) { return unit(r.DeleteOne(ctx, p)) })
}

func (r *baseRepositoryImpl[T]) DeleteByIDAsync(ctx context.Context, id string) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) { return unit(r.DeleteByID(ctx, id)) })
}

func (r *baseRepositoryImpl[T]) DeleteManyAsync(ctx context.Context, p predicate.Predicate) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) { return unit(r.DeleteMany(ctx, p)) })
}
