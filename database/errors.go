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
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

type StoreError int

const (
	UnknownErr StoreError = iota
	NoDocumentsErr
	DuplicateKeyErr
	NamespaceNotFoundErr
	NamespaceExistsErr
	NetworkErr
	TimeoutErr
	WriteConflictErr
	UnauthorizedErr
	IndexConflictErr
	ValidationErr
)

func (e StoreError) String() string {
	switch e {
	case NoDocumentsErr:
		return "no_documents"
	case DuplicateKeyErr:
		return "duplicate_key"
	case NamespaceNotFoundErr:
		return "namespace_not_found"
	case NamespaceExistsErr:
		return "namespace_exists"
	case NetworkErr:
		return "network"
	case TimeoutErr:
		return "timeout"
	case WriteConflictErr:
		return "write_conflict"
	case UnauthorizedErr:
		return "unauthorized"
	case IndexConflictErr:
		return "index_conflict"
	case ValidationErr:
		return "validation"
	default:
		return "unknown"
	}
}

var serverCodes = []struct {
	codes []int
	kind  StoreError
}{
	{[]int{26}, NamespaceNotFoundErr},
	{[]int{48}, NamespaceExistsErr},
	{[]int{112}, WriteConflictErr},
	{[]int{13, 18}, UnauthorizedErr},
	{[]int{85, 86}, IndexConflictErr},
	{[]int{121}, ValidationErr},
}

// IsStoreError classifies a driver error. is reports whether err came from
// the store or the driver at all.
func IsStoreError(err error) (is bool, storeErr StoreError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return true, NoDocumentsErr
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, DuplicateKeyErr
	}
	if mongo.IsTimeout(err) {
		return true, TimeoutErr
	}
	if mongo.IsNetworkError(err) {
		return true, NetworkErr
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		for _, sc := range serverCodes {
			for _, code := range sc.codes {
				if serverErr.HasErrorCode(code) {
					return true, sc.kind
				}
			}
		}
		return true, UnknownErr
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "e11000") || strings.Contains(s, "duplicate key") {
		return true, DuplicateKeyErr
	}
	if strings.Contains(s, "ns not found") || strings.Contains(s, "namespace not found") {
		return true, NamespaceNotFoundErr
	}
	if strings.Contains(s, "already exists") && strings.Contains(s, "collection") {
		return true, NamespaceExistsErr
	}
	if strings.Contains(s, "server selection error") || strings.Contains(s, "connection refused") {
		return true, NetworkErr
	}
	return false, UnknownErr
}

// IsDuplicateKey is shorthand for a DuplicateKeyErr classification.
func IsDuplicateKey(err error) bool {
	_, kind := IsStoreError(err)
	return kind == DuplicateKeyErr
}
