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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsStoreError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   bool
		kind StoreError
	}{
		{"nil", nil, false, UnknownErr},
		{"no documents", fmt.Errorf("find: %w", mongo.ErrNoDocuments), true, NoDocumentsErr},
		{"duplicate key", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}, true, DuplicateKeyErr},
		{"namespace not found", mongo.CommandError{Code: 26, Message: "ns not found"}, true, NamespaceNotFoundErr},
		{"namespace exists", mongo.CommandError{Code: 48, Message: "collection already exists"}, true, NamespaceExistsErr},
		{"index conflict", mongo.CommandError{Code: 85, Message: "index options conflict"}, true, IndexConflictErr},
		{"validation", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 121, Message: "Document failed validation"}}}, true, ValidationErr},
		{"unauthorized", mongo.CommandError{Code: 13}, true, UnauthorizedErr},
		{"unclassified server error", mongo.CommandError{Code: 2}, true, UnknownErr},
		{"plain", errors.New("boom"), false, UnknownErr},
		{"text fallback", errors.New("E11000 duplicate key error collection"), true, DuplicateKeyErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is, kind := IsStoreError(tc.err)
			assert.Equal(t, tc.is, is)
			assert.Equal(t, tc.kind, kind, kind.String())
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}))
	assert.False(t, IsDuplicateKey(mongo.CommandError{Code: 26}))
}
