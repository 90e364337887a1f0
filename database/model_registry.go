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
	"sort"
	"strings"
	"sync"
)

var defaultRegistry = newDocumentRegistry()

// CollectionNamer is satisfied by every document type.
type CollectionNamer interface {
	CollectionName() string
}

// DocumentModel is a registered document type. Priority controls the order
// in which collections are created (lower values first).
type DocumentModel interface {
	CollectionNamer
	Instance() interface{}
	Priority() int
}

// DocumentRegistry stores document models and exposes them in a
// deterministic order.
type DocumentRegistry interface {
	Register(model DocumentModel)
	Models() []DocumentModel
	Collections() []string
}

type documentRegistry struct {
	models []DocumentModel
	mutex  sync.RWMutex
}

func newDocumentRegistry() DocumentRegistry {
	return &documentRegistry{
		models: make([]DocumentModel, 0),
	}
}

// NewDocumentRegistry returns an empty registry, independent of the default one.
func NewDocumentRegistry() DocumentRegistry {
	return newDocumentRegistry()
}

func (r *documentRegistry) Register(model DocumentModel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.models = append(r.models, model)
}

func (r *documentRegistry) Models() []DocumentModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]DocumentModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

// Collections returns the distinct non-empty collection names in priority order.
func (r *documentRegistry) Collections() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range r.Models() {
		name := strings.TrimSpace(m.CollectionName())
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

type documentAdapter struct {
	instance CollectionNamer
	priority int
}

// NewDocumentAdapter wraps a document instance and priority into a DocumentModel.
func NewDocumentAdapter(instance CollectionNamer, priority int) DocumentModel {
	return &documentAdapter{
		instance: instance,
		priority: priority,
	}
}

func (a *documentAdapter) CollectionName() string { return a.instance.CollectionName() }
func (a *documentAdapter) Instance() interface{}  { return a.instance }
func (a *documentAdapter) Priority() int          { return a.priority }

// RegisterDocument adds doc to the default registry.
func RegisterDocument(doc CollectionNamer, priority int) {
	defaultRegistry.Register(NewDocumentAdapter(doc, priority))
}

// GetRegisteredDocuments returns the default registry's models sorted by
// ascending priority.
func GetRegisteredDocuments() []DocumentModel {
	return defaultRegistry.Models()
}

// RegisteredCollections returns the default registry's collection names.
func RegisteredCollections() []string {
	return defaultRegistry.Collections()
}
