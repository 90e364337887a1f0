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
	"iter"

	"go.mongodb.org/mongo-driver/mongo"
)

// Cursor is a lazy, forward-only sequence of decoded documents. Batches are
// fetched from the server as the cursor advances. Callers must Close it
// unless All or Seq drained it.
type Cursor[T Document] struct {
	cur     *mongo.Cursor
	current *T
	err     error
	closed  bool
}

func newCursor[T Document](cur *mongo.Cursor) *Cursor[T] {
	return &Cursor[T]{cur: cur}
}

// Next advances to the next document and reports whether there is one.
func (c *Cursor[T]) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if !c.cur.Next(ctx) {
		c.err = c.cur.Err()
		c.current = nil
		return false
	}
	var doc T
	if err := c.cur.Decode(&doc); err != nil {
		c.err = err
		c.current = nil
		return false
	}
	c.current = &doc
	return true
}

// Current returns the document of the last successful Next.
func (c *Cursor[T]) Current() *T {
	return c.current
}

func (c *Cursor[T]) Err() error {
	return c.err
}

// All drains and closes the cursor. An empty result is a non-nil empty slice.
func (c *Cursor[T]) All(ctx context.Context) ([]*T, error) {
	defer c.Close(ctx)
	docs := make([]*T, 0)
	for c.Next(ctx) {
		docs = append(docs, c.current)
	}
	if c.err != nil {
		return nil, c.err
	}
	return docs, nil
}

// Seq ranges over the remaining documents and closes the cursor when the
// loop ends. A failure is yielded once, as the last pair.
func (c *Cursor[T]) Seq(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		defer c.Close(ctx)
		for c.Next(ctx) {
			if !yield(c.current, nil) {
				return
			}
		}
		if c.err != nil {
			yield(nil, c.err)
		}
	}
}

func (c *Cursor[T]) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.cur.Close(ctx)
}
