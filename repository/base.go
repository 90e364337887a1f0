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
	"strings"

	"github.com/google/uuid"
	"github.com/tomoncle/mongorepo/database"
	"github.com/tomoncle/mongorepo/predicate"
	"github.com/tomoncle/mongorepo/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel/trace"
)

type baseRepositoryImpl[T Document] struct {
	client *mongo.Client // owned; nil when bound to a shared database
	coll   *mongo.Collection
	name   string
	logger database.Logger
	tracer trace.Tracer
}

// NewRepository connects a client for cfg and binds the collection of T.
// Any failure is logged and returned; no usable repository is returned with
// an error. The repository owns the client; Close disconnects it.
func NewRepository[T Document](ctx context.Context, cfg database.RepositoryConfig, opts ...Option) (Repository[T], error) {
	o := newRepoOptions(opts)
	fail := func(err error) (Repository[T], error) {
		o.logger.Error("Failed to create repository", "database", cfg.DatabaseName, "error", err)
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return fail(err)
	}
	name, err := collectionNameOf[T]()
	if err != nil {
		return fail(err)
	}

	conn := database.DefaultConnectionConfig()
	conn.RepositoryConfig = cfg
	base, _ := database.ClientOptions(conn, o.logger)
	clientOpts := []*options.ClientOptions{base}
	if o.clientOptions != nil {
		clientOpts = append(clientOpts, o.clientOptions)
	}

	client, err := mongo.Connect(ctx, clientOpts...)
	if err != nil {
		return fail(fmt.Errorf("failed to create database client: %w", err))
	}
	if o.ping {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return fail(fmt.Errorf("database connection test failed: %w", err))
		}
	}

	return &baseRepositoryImpl[T]{
		client: client,
		coll:   client.Database(cfg.DatabaseName).Collection(name),
		name:   name,
		logger: o.logger,
		tracer: o.tracer,
	}, nil
}

// NewRepositoryWithDatabase binds the collection of T in a shared database.
// Close is then a no-op; the owner of db disconnects its client.
func NewRepositoryWithDatabase[T Document](db *mongo.Database, opts ...Option) (Repository[T], error) {
	o := newRepoOptions(opts)
	if db == nil {
		err := database.ErrNotConnected
		o.logger.Error("Failed to create repository", "error", err)
		return nil, err
	}
	name, err := collectionNameOf[T]()
	if err != nil {
		o.logger.Error("Failed to create repository", "database", db.Name(), "error", err)
		return nil, err
	}
	return &baseRepositoryImpl[T]{
		coll:   db.Collection(name),
		name:   name,
		logger: o.logger,
		tracer: o.tracer,
	}, nil
}

// collectionNameOf reads the collection name from the zero value of T.
func collectionNameOf[T Document]() (name string, err error) {
	defer func() {
		if r := recover(); r != nil {
			name, err = "", fmt.Errorf("%w: %T must implement Document with value receivers", ErrNoCollectionName, *new(T))
		}
	}()
	var zero T
	name = strings.TrimSpace(zero.CollectionName())
	if name == "" {
		return "", fmt.Errorf("%w: %T", ErrNoCollectionName, zero)
	}
	return name, nil
}

func (r *baseRepositoryImpl[T]) Collection() *mongo.Collection { return r.coll }

func (r *baseRepositoryImpl[T]) CollectionName() string { return r.name }

func (r *baseRepositoryImpl[T]) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

func (r *baseRepositoryImpl[T]) AsQueryable() *Query[T] {
	return &Query[T]{repo: r, filter: predicate.All()}
}

func (r *baseRepositoryImpl[T]) Find(ctx context.Context, p predicate.Predicate) (cur *Cursor[T], err error) {
	ctx, span := r.startSpan(ctx, "Find")
	defer func() { endSpan(span, err) }()

	filter, err := Filter(p)
	if err != nil {
		return nil, err
	}
	c, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newCursor[T](c), nil
}

func (r *baseRepositoryImpl[T]) FindOne(ctx context.Context, p predicate.Predicate) (doc *T, err error) {
	ctx, span := r.startSpan(ctx, "FindOne")
	defer func() { endSpan(span, err) }()

	filter, err := Filter(p)
	if err != nil {
		return nil, err
	}
	var entity T
	if err := r.coll.FindOne(ctx, filter).Decode(&entity); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &entity, nil
}

// FindByID asks for at most two matches in one round trip so a duplicated
// identity is detected instead of silently picking one.
func (r *baseRepositoryImpl[T]) FindByID(ctx context.Context, id string) (doc *T, err error) {
	ctx, span := r.startSpan(ctx, "FindByID")
	defer func() { endSpan(span, err) }()

	c, err := r.coll.Find(ctx, bson.D{{Key: predicate.IDField, Value: id}}, options.Find().SetLimit(2))
	if err != nil {
		return nil, err
	}
	docs, err := newCursor[T](c).All(ctx)
	if err != nil {
		return nil, err
	}
	switch len(docs) {
	case 0:
		return nil, nil
	case 1:
		return docs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s %q in %s", ErrNotUnique, predicate.IDField, id, r.name)
	}
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, p predicate.Predicate) (n int64, err error) {
	ctx, span := r.startSpan(ctx, "Count")
	defer func() { endSpan(span, err) }()

	filter, err := Filter(p)
	if err != nil {
		return 0, err
	}
	return r.coll.CountDocuments(ctx, filter)
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(1, 10)
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := r.Count(ctx, pageRequest.GetFilter())
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return pagination, nil
	}
	// Without an order, skip/limit over store order can repeat or drop
	// documents between pages.
	orders := pageRequest.GetOrders()
	if len(orders) == 0 {
		orders = []string{predicate.IDField}
	}
	entities, err := r.AsQueryable().
		Where(pageRequest.GetFilter()).
		OrderBy(orders...).
		Skip(int64(pageRequest.GetOffset())).
		Limit(int64(pageRequest.GetPageSize())).
		All(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

// assignIdentity gives doc a new UUID when its id is empty and *T can take one.
func assignIdentity[T Document](doc *T) {
	if (*doc).GetID() != "" {
		return
	}
	if a, ok := any(doc).(IdentityAssigner); ok {
		a.SetID(uuid.NewString())
	}
}

func (r *baseRepositoryImpl[T]) InsertOne(ctx context.Context, doc *T) (err error) {
	ctx, span := r.startSpan(ctx, "InsertOne")
	defer func() { endSpan(span, err) }()

	if doc == nil {
		return ErrNilDocument
	}
	assignIdentity(doc)
	_, err = r.coll.InsertOne(ctx, doc)
	return err
}

// InsertMany sends one ordered insert. On failure the documents before the
// failing one stay inserted and the driver error is returned unmodified;
// FailedIndex reports the failing position. Empty input sends nothing.
func (r *baseRepositoryImpl[T]) InsertMany(ctx context.Context, docs []*T) (err error) {
	ctx, span := r.startSpan(ctx, "InsertMany")
	defer func() { endSpan(span, err) }()

	if len(docs) == 0 {
		return nil
	}
	items := make([]interface{}, len(docs))
	for i, doc := range docs {
		if doc == nil {
			return fmt.Errorf("%w at index %d", ErrNilDocument, i)
		}
		assignIdentity(doc)
		items[i] = doc
	}
	_, err = r.coll.InsertMany(ctx, items, options.InsertMany().SetOrdered(true))
	return err
}

// ReplaceOne overwrites the stored document with doc's id. There is no
// upsert and no version check: the last writer wins.
func (r *baseRepositoryImpl[T]) ReplaceOne(ctx context.Context, doc *T) (err error) {
	ctx, span := r.startSpan(ctx, "ReplaceOne")
	defer func() { endSpan(span, err) }()

	if doc == nil {
		return ErrNilDocument
	}
	filter := bson.D{{Key: predicate.IDField, Value: (*doc).GetID()}}
	_, err = r.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(false))
	return err
}

func (r *baseRepositoryImpl[T]) DeleteOne(ctx context.Context, p predicate.Predicate) (err error) {
	ctx, span := r.startSpan(ctx, "DeleteOne")
	defer func() { endSpan(span, err) }()

	filter, err := Filter(p)
	if err != nil {
		return err
	}
	_, err = r.coll.DeleteOne(ctx, filter)
	return err
}

func (r *baseRepositoryImpl[T]) DeleteByID(ctx context.Context, id string) error {
	return r.DeleteOne(ctx, predicate.ID(id))
}

// DeleteMany removes every match in one request. The deleted count is not
// reported; use Count first when it matters.
func (r *baseRepositoryImpl[T]) DeleteMany(ctx context.Context, p predicate.Predicate) (err error) {
	ctx, span := r.startSpan(ctx, "DeleteMany")
	defer func() { endSpan(span, err) }()

	filter, err := Filter(p)
	if err != nil {
		return err
	}
	_, err = r.coll.DeleteMany(ctx, filter)
	return err
}
