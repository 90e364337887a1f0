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

package mongorepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/mongorepo/database"
	"github.com/tomoncle/mongorepo/predicate"
	"github.com/tomoncle/mongorepo/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

type account struct {
	ID    string `bson:"_id"`
	Email string `bson:"email"`
}

func (a account) GetID() string        { return a.ID }
func (account) CollectionName() string { return "accounts" }

func TestServiceBeforeInitDB(t *testing.T) {
	svc := NewService[account]()
	_, err := svc.Get(context.Background(), "a-1")
	assert.ErrorIs(t, err, database.ErrNotConnected)

	_, err = svc.Query(context.Background())
	assert.ErrorIs(t, err, database.ErrNotConnected)
}

func TestServiceRebindsWhenDatabaseChanges(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("rebind", func(mt *mtest.T) {
		current := mt.DB
		svc := &baseServiceImpl[account]{source: func() *mongo.Database { return current }}

		first, err := svc.baseRepo()
		require.NoError(mt, err)
		again, err := svc.baseRepo()
		require.NoError(mt, err)
		assert.True(mt, first == again)

		current = nil
		_, err = svc.baseRepo()
		assert.ErrorIs(mt, err, database.ErrNotConnected)

		current = mt.Client.Database("reopened")
		rebound, err := svc.baseRepo()
		require.NoError(mt, err)
		assert.Equal(mt, "reopened", rebound.Collection().Database().Name())
		assert.Equal(mt, "accounts", rebound.CollectionName())
	})
}

func TestServiceDelegatesToRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("save then list", func(mt *mtest.T) {
		repo, err := repository.NewRepositoryWithDatabase[account](mt.DB)
		require.NoError(mt, err)
		svc := NewServiceWithRepository(repo)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
			mtest.CreateCursorResponse(0, mt.DB.Name()+".accounts", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "a-1"}, {Key: "email", Value: "a@example.com"}},
				bson.D{{Key: "_id", Value: "a-2"}, {Key: "email", Value: "b@example.com"}}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
		)

		require.NoError(mt, svc.SaveAll(ctx, []*account{{ID: "a-1", Email: "a@example.com"}, {ID: "a-2", Email: "b@example.com"}}))

		all, err := svc.All(ctx)
		require.NoError(mt, err)
		require.Len(mt, all, 2)
		assert.Equal(mt, "b@example.com", all[1].Email)

		require.NoError(mt, svc.DeleteWhere(ctx, predicate.Regex("email", "@example\\.com$", "")))
	})
}
