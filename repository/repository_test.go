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

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/mongorepo/database"
	"github.com/tomoncle/mongorepo/predicate"
	"github.com/tomoncle/mongorepo/repository"
	"github.com/tomoncle/mongorepo/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type widget struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
	Qty  int    `bson:"qty"`
}

func (w widget) GetID() string        { return w.ID }
func (widget) CollectionName() string { return "widgets" }
func (w *widget) SetID(id string)     { w.ID = id }

type unnamed struct{}

func (unnamed) GetID() string          { return "" }
func (unnamed) CollectionName() string { return " " }

func widgetDoc(id, name string, qty int) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "name", Value: name}, {Key: "qty", Value: qty}}
}

func newRepo(mt *mtest.T, opts ...repository.Option) repository.Repository[widget] {
	mt.Helper()
	repo, err := repository.NewRepositoryWithDatabase[widget](mt.DB, opts...)
	require.NoError(mt, err)
	return repo
}

func ns(mt *mtest.T) string {
	return mt.DB.Name() + ".widgets"
}

// sent returns the commands named name that reached the deployment.
func sent(mt *mtest.T, name string) []bson.Raw {
	var cmds []bson.Raw
	for _, e := range mt.GetAllStartedEvents() {
		if e.CommandName == name {
			cmds = append(cmds, e.Command)
		}
	}
	return cmds
}

func values(mt *mtest.T, cmd bson.Raw, key string) []bson.RawValue {
	mt.Helper()
	vals, err := cmd.Lookup(key).Array().Values()
	require.NoError(mt, err)
	return vals
}

func TestNewRepositoryFailsExplicitly(t *testing.T) {
	ctx := context.Background()

	repo, err := repository.NewRepository[widget](ctx, database.RepositoryConfig{DatabaseName: "app"})
	assert.ErrorIs(t, err, database.ErrInvalidConfig)
	assert.Nil(t, repo)

	repo, err = repository.NewRepository[widget](ctx, database.RepositoryConfig{ConnectionString: "postgres://nope", DatabaseName: "app"})
	assert.Error(t, err)
	assert.Nil(t, repo)

	_, err = repository.NewRepository[unnamed](ctx, database.RepositoryConfig{ConnectionString: "mongodb://localhost:27017", DatabaseName: "app"})
	assert.ErrorIs(t, err, repository.ErrNoCollectionName)

	_, err = repository.NewRepositoryWithDatabase[widget](nil)
	assert.ErrorIs(t, err, database.ErrNotConnected)
}

func TestNewRepositoryResolvesCollection(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.NewRepository[widget](ctx, database.RepositoryConfig{
		ConnectionString: "mongodb://localhost:27017",
		DatabaseName:     "app",
	})
	require.NoError(t, err)
	assert.Equal(t, "widgets", repo.CollectionName())
	assert.Equal(t, "app", repo.Collection().Database().Name())
	assert.NoError(t, repo.Close(ctx))
}

func TestRepositoryQueries(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("find by id returns the single match", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, widgetDoc("w-1", "bolt", 3)))

		w, err := repo.FindByID(ctx, "w-1")
		require.NoError(mt, err)
		require.NotNil(mt, w)
		assert.Equal(mt, widget{ID: "w-1", Name: "bolt", Qty: 3}, *w)

		finds := sent(mt, "find")
		require.Len(mt, finds, 1)
		filter, err := finds[0].Lookup("filter").Document().Elements()
		require.NoError(mt, err)
		require.Len(mt, filter, 1)
		assert.Equal(mt, "_id", filter[0].Key())
		assert.Equal(mt, "w-1", filter[0].Value().StringValue())
		assert.Equal(mt, int64(2), finds[0].Lookup("limit").Int64())
	})

	mt.Run("find by id absent is nil without error", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		w, err := repo.FindByID(ctx, "w-404")
		require.NoError(mt, err)
		assert.Nil(mt, w)
	})

	mt.Run("find by id with two matches is a uniqueness failure", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			widgetDoc("w-1", "bolt", 3), widgetDoc("w-1", "nut", 4)))

		w, err := repo.FindByID(ctx, "w-1")
		assert.ErrorIs(mt, err, repository.ErrNotUnique)
		assert.Nil(mt, w)
	})

	mt.Run("find one absent is nil without error", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		w, err := repo.FindOne(ctx, predicate.Eq("name", "missing"))
		require.NoError(mt, err)
		assert.Nil(mt, w)
	})

	mt.Run("find streams every match", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			widgetDoc("w-1", "bolt", 3), widgetDoc("w-2", "nut", 4)))

		cur, err := repo.Find(ctx, predicate.Gt("qty", 1))
		require.NoError(mt, err)

		var ids []string
		for w, err := range cur.Seq(ctx) {
			require.NoError(mt, err)
			ids = append(ids, w.ID)
		}
		assert.Equal(mt, []string{"w-1", "w-2"}, ids)
	})

	mt.Run("find with no match is an empty sequence", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		cur, err := repo.Find(ctx, predicate.Eq("name", "missing"))
		require.NoError(mt, err)
		docs, err := cur.All(ctx)
		require.NoError(mt, err)
		assert.NotNil(mt, docs)
		assert.Empty(mt, docs)
	})

	mt.Run("invalid predicate sends nothing", func(mt *mtest.T) {
		repo := newRepo(mt)
		_, err := repo.Find(ctx, predicate.And())
		assert.ErrorIs(mt, err, predicate.ErrInvalidPredicate)
		assert.ErrorIs(mt, repo.DeleteMany(ctx, predicate.Predicate{}), predicate.ErrInvalidPredicate)
	})

	mt.Run("count", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		n, err := repo.Count(ctx, predicate.All())
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)
	})

	mt.Run("page", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, widgetDoc("w-3", "gear", 9)),
		)

		page, err := repo.Page(ctx, types.NewPageRequest(2, 2, nil, []string{"qty DESC"}))
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), page.Total)
		assert.Equal(mt, int64(2), page.Pages())
		require.Len(mt, page.Items, 1)
		assert.Equal(mt, "w-3", page.Items[0].ID)
	})

	mt.Run("page without orders sorts by identity", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, widgetDoc("w-1", "bolt", 3)),
		)

		_, err := repo.Page(ctx, types.NewPageRequest(1, 10, nil, nil))
		require.NoError(mt, err)

		finds := sent(mt, "find")
		require.Len(mt, finds, 1)
		sort, err := finds[0].Lookup("sort").Document().Elements()
		require.NoError(mt, err)
		require.Len(mt, sort, 1)
		assert.Equal(mt, "_id", sort[0].Key())
		assert.Equal(mt, int32(1), sort[0].Value().Int32())
	})

	mt.Run("page count failure returns no page", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 13, Name: "Unauthorized", Message: "not authorized",
		}))

		page, err := repo.Page(ctx, types.NewPageRequest(1, 10, nil, nil))
		require.Error(mt, err)
		assert.Nil(mt, page)
		assert.Empty(mt, sent(mt, "find"))
	})
}

func TestRepositoryWrites(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("insert one assigns a missing identity", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		w := &widget{Name: "bolt"}
		require.NoError(mt, repo.InsertOne(ctx, w))
		_, err := uuid.Parse(w.ID)
		assert.NoError(mt, err)
	})

	mt.Run("insert one duplicate identity surfaces the driver error", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))

		err := repo.InsertOne(ctx, &widget{ID: "w-1"})
		require.Error(mt, err)
		assert.True(mt, mongo.IsDuplicateKeyError(err))
		assert.True(mt, database.IsDuplicateKey(err))
	})

	mt.Run("insert nil", func(mt *mtest.T) {
		repo := newRepo(mt)
		assert.ErrorIs(mt, repo.InsertOne(ctx, nil), repository.ErrNilDocument)
		assert.ErrorIs(mt, repo.InsertMany(ctx, []*widget{{ID: "a"}, nil}), repository.ErrNilDocument)
	})

	mt.Run("insert many reports the failing index", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 1, Code: 11000, Message: "E11000 duplicate key error",
		}))

		err := repo.InsertMany(ctx, []*widget{{ID: "a"}, {ID: "a"}, {ID: "b"}})
		require.Error(mt, err)
		idx, ok := repository.FailedIndex(err)
		require.True(mt, ok)
		assert.Equal(mt, 1, idx)
		assert.True(mt, mongo.IsDuplicateKeyError(err))

		inserts := sent(mt, "insert")
		require.Len(mt, inserts, 1)
		assert.True(mt, inserts[0].Lookup("ordered").Boolean())
		docs := values(mt, inserts[0], "documents")
		require.Len(mt, docs, 3)
		assert.Equal(mt, "b", docs[2].Document().Lookup("_id").StringValue())
	})

	mt.Run("insert many empty sends nothing", func(mt *mtest.T) {
		repo := newRepo(mt)
		assert.NoError(mt, repo.InsertMany(ctx, nil))
	})

	mt.Run("replace one missing target is a no-op", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		assert.NoError(mt, repo.ReplaceOne(ctx, &widget{ID: "w-404", Name: "ghost"}))

		updates := sent(mt, "update")
		require.Len(mt, updates, 1)
		stmts := values(mt, updates[0], "updates")
		require.Len(mt, stmts, 1)
		stmt := stmts[0].Document()
		assert.Equal(mt, "w-404", stmt.Lookup("q", "_id").StringValue())
		assert.False(mt, stmt.Lookup("upsert").Boolean())
		assert.Equal(mt, "ghost", stmt.Lookup("u", "name").StringValue())
	})

	mt.Run("replace many is one bulk request", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}))

		res, err := repo.ReplaceMany(ctx, []*widget{{ID: "w-1", Qty: 1}, {ID: "w-2", Qty: 2}})
		require.NoError(mt, err)
		assert.Equal(mt, &repository.BulkResult{Requested: 2, Matched: 2, Modified: 2}, res)

		updates := sent(mt, "update")
		require.Len(mt, updates, 1)
		assert.True(mt, updates[0].Lookup("ordered").Boolean())
		stmts := values(mt, updates[0], "updates")
		require.Len(mt, stmts, 2)
		for i, id := range []string{"w-1", "w-2"} {
			stmt := stmts[i].Document()
			assert.Equal(mt, id, stmt.Lookup("q", "_id").StringValue())
			assert.False(mt, stmt.Lookup("upsert").Boolean())
			assert.Equal(mt, int32(i+1), stmt.Lookup("u", "qty").Int32())
		}
	})

	mt.Run("replace many partial failure", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 1, Code: 121, Message: "Document failed validation",
		}))

		_, err := repo.ReplaceMany(ctx, []*widget{{ID: "w-1"}, {ID: "w-2"}, {ID: "w-3"}})
		require.Error(mt, err)
		idx, ok := repository.FailedIndex(err)
		require.True(mt, ok)
		assert.Equal(mt, 1, idx)
		_, kind := database.IsStoreError(err)
		assert.Equal(mt, database.ValidationErr, kind)
	})

	mt.Run("replace many empty sends nothing", func(mt *mtest.T) {
		repo := newRepo(mt)
		res, err := repo.ReplaceMany(ctx, nil)
		require.NoError(mt, err)
		assert.Equal(mt, 0, res.Requested)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})

	mt.Run("delete by id is idempotent", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)
		assert.NoError(mt, repo.DeleteByID(ctx, "w-1"))
		assert.NoError(mt, repo.DeleteByID(ctx, "w-1"))
	})

	mt.Run("delete one with no match", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		assert.NoError(mt, repo.DeleteOne(ctx, predicate.Eq("name", "ghost")))
	})

	mt.Run("delete many", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 7}))
		assert.NoError(mt, repo.DeleteMany(ctx, predicate.Lt("qty", 1)))
	})
}

func TestRepositoryAsync(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("find async", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, widgetDoc("w-1", "bolt", 3)))

		f := repo.FindAsync(ctx, predicate.All())
		docs, err := f.Await(ctx)
		require.NoError(mt, err)
		require.Len(mt, docs, 1)

		select {
		case <-f.Done():
		default:
			mt.Fatal("future should be done after Await returned its value")
		}
	})

	mt.Run("insert async surfaces errors", func(mt *mtest.T) {
		repo := newRepo(mt)
		_, err := repo.InsertOneAsync(ctx, nil).Await(ctx)
		assert.ErrorIs(mt, err, repository.ErrNilDocument)
	})

	mt.Run("replace many async", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		res, err := repo.ReplaceManyAsync(ctx, []*widget{{ID: "w-1"}}).Await(ctx)
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), res.Modified)
	})
}

func TestFutureAwaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	f := repository.Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 42, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFutureRecoversPanic(t *testing.T) {
	f := repository.Go(context.Background(), func(context.Context) (int, error) {
		panic("boom")
	})
	_, err := f.Await(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestOperationsAreTraced(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("uniqueness failure is recorded on the span", func(mt *mtest.T) {
		recorder := tracetest.NewSpanRecorder()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		repo := newRepo(mt, repository.WithTracer(provider.Tracer("test")))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			widgetDoc("w-1", "bolt", 3), widgetDoc("w-1", "nut", 4)))
		_, err := repo.FindByID(ctx, "w-1")
		require.Error(mt, err)

		spans := recorder.Ended()
		require.Len(mt, spans, 1)
		assert.Equal(mt, "mongorepo.FindByID", spans[0].Name())
		assert.Equal(mt, codes.Error, spans[0].Status().Code)
	})
}
