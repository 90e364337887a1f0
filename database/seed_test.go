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

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestParseSeedFileName(t *testing.T) {
	order, coll := parseSeedFileName("010_users.json")
	assert.Equal(t, 10, order)
	assert.Equal(t, "users", coll)

	order, coll = parseSeedFileName("settings.json")
	assert.Equal(t, unorderedSeed, order)
	assert.Equal(t, "settings", coll)
}

func TestGetSeedFilesOrdering(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "common/002_roles.json", "[]")
	writeFile(t, root, "common/001_users.json", "[]")
	writeFile(t, root, "common/README.md", "ignored")
	writeFile(t, root, "environments/dev/001_users.json", "[]")
	writeFile(t, root, "environments/prod/001_users.json", "[]")

	s := NewSeedManager(nil, "dev")
	s.SetRootPath(root)
	files, err := s.GetSeedFiles()
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "001_users.json", files[0].Name)
	assert.Equal(t, "common", files[0].Environment)
	assert.Equal(t, "roles", files[1].Collection)
	assert.Equal(t, "dev", files[2].Environment)
	assert.Equal(t, "users", files[2].Collection)
}

func TestGetSeedFilesMissingRoot(t *testing.T) {
	s := NewSeedManager(nil, "dev")
	s.SetRootPath(t.TempDir() + "/nothing")
	files, err := s.GetSeedFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLoadFileExpandsTemplateAndExtendedJSON(t *testing.T) {
	t.Setenv("SEED_ADMIN_EMAIL", "admin@example.com")
	path := writeFile(t, t.TempDir(), "001_users.json", `[
  {"_id": "u-1", "email": "{{.SEED_ADMIN_EMAIL}}", "env": "{{.ENVIRONMENT}}", "age": {"$numberInt": "42"}},
  {"_id": "u-2", "created": {"$date": "2024-01-02T03:04:05Z"}}
]`)

	s := NewSeedManager(nil, "staging")
	docs, err := s.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first := docs[0].(bson.D).Map()
	assert.Equal(t, "u-1", first["_id"])
	assert.Equal(t, "admin@example.com", first["email"])
	assert.Equal(t, "staging", first["env"])
	assert.Equal(t, int32(42), first["age"])

	second := docs[1].(bson.D).Map()
	created, ok := second["created"].(primitive.DateTime)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), created.Time().UTC())
}

func TestLoadFileRejectsInvalidJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "001_users.json", `{"_id": "not-an-array"}`)
	_, err := NewSeedManager(nil, "dev").LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileEmpty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "001_users.json", "  \n")
	docs, err := NewSeedManager(nil, "dev").LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func startedCommands(mt *mtest.T, name string) []bson.Raw {
	var cmds []bson.Raw
	for _, e := range mt.GetAllStartedEvents() {
		if e.CommandName == name {
			cmds = append(cmds, e.Command)
		}
	}
	return cmds
}

func TestSeedModels(t *testing.T) {
	models := seedModels([]interface{}{
		bson.D{{Key: "_id", Value: "u-1"}, {Key: "email", Value: "a@example.com"}},
		bson.D{{Key: "email", Value: "b@example.com"}},
	})
	require.Len(t, models, 2)
	assert.IsType(t, &mongo.ReplaceOneModel{}, models[0])
	assert.True(t, *models[0].(*mongo.ReplaceOneModel).Upsert)
	assert.IsType(t, &mongo.InsertOneModel{}, models[1])
}

func TestInitDataRunsOnce(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("second run skips recorded files", func(mt *mtest.T) {
		root := mt.TempDir()
		writeFile(mt.T, root, "common/001_users.json",
			`[{"_id": "u-1", "email": "a@example.com"}, {"email": "b@example.com"}]`)
		mm := NewMigrationManager(mt.DB, &Config{
			DataInitConfig: DataInitConfig{Filepath: root, Environment: "dev"},
		}, nil)
		seeds := mt.DB.Name() + "." + SeedsCollection

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, seeds, mtest.FirstBatch),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)
		require.NoError(mt, mm.InitData(ctx))

		updates := startedCommands(mt, "update")
		require.Len(mt, updates, 1)
		stmts, err := updates[0].Lookup("updates").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, stmts, 1)
		assert.Equal(mt, "u-1", stmts[0].Document().Lookup("q", "_id").StringValue())
		assert.True(mt, stmts[0].Document().Lookup("upsert").Boolean())

		inserts := startedCommands(mt, "insert")
		require.Len(mt, inserts, 2)
		assert.Equal(mt, "users", inserts[0].Lookup("insert").StringValue())
		assert.Equal(mt, SeedsCollection, inserts[1].Lookup("insert").StringValue())
		records, err := inserts[1].Lookup("documents").Array().Values()
		require.NoError(mt, err)
		assert.Equal(mt, "common/001_users.json", records[0].Document().Lookup("_id").StringValue())

		mt.ClearEvents()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, seeds, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "common/001_users.json"}, {Key: "collection", Value: "users"}}))
		require.NoError(mt, mm.InitData(ctx))
		assert.Empty(mt, startedCommands(mt, "update"))
		assert.Empty(mt, startedCommands(mt, "insert"))
	})

	mt.Run("record written by another process counts as applied", func(mt *mtest.T) {
		root := mt.TempDir()
		writeFile(mt.T, root, "common/001_users.json", `[{"_id": "u-1"}]`)
		mm := NewMigrationManager(mt.DB, &Config{
			DataInitConfig: DataInitConfig{Filepath: root},
		}, nil)

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, mt.DB.Name()+"."+SeedsCollection, mtest.FirstBatch),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
		)
		assert.NoError(mt, mm.InitData(ctx))
	})
}
