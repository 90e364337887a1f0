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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"
)

// IndexKey is one component of an index key pattern.
type IndexKey struct {
	Field string `yaml:"field"`
	Desc  bool   `yaml:"desc,omitempty"`
}

func (k IndexKey) order() int {
	if k.Desc {
		return -1
	}
	return 1
}

// IndexDefinition describes a secondary index on a collection.
type IndexDefinition struct {
	Collection  string     `yaml:"collection"`
	Keys        []IndexKey `yaml:"keys"`
	Unique      bool       `yaml:"unique,omitempty"`
	Sparse      bool       `yaml:"sparse,omitempty"`
	TTLSeconds  int32      `yaml:"ttl_seconds,omitempty"`
	Name        string     `yaml:"name,omitempty"`
	Description string     `yaml:"description,omitempty"`
}

// GenerateName returns the explicit name or the store's default naming,
// e.g. "email_1_created_at_-1".
func (d *IndexDefinition) GenerateName() string {
	if d.Name != "" {
		return d.Name
	}
	parts := make([]string, 0, len(d.Keys)*2)
	for _, k := range d.Keys {
		parts = append(parts, k.Field, fmt.Sprint(k.order()))
	}
	return strings.Join(parts, "_")
}

// Model converts the definition into a driver index model.
func (d *IndexDefinition) Model() mongo.IndexModel {
	keys := make(bson.D, 0, len(d.Keys))
	for _, k := range d.Keys {
		keys = append(keys, bson.E{Key: k.Field, Value: k.order()})
	}
	opts := options.Index().SetName(d.GenerateName())
	if d.Unique {
		opts.SetUnique(true)
	}
	if d.Sparse {
		opts.SetSparse(true)
	}
	if d.TTLSeconds > 0 {
		opts.SetExpireAfterSeconds(d.TTLSeconds)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

// IndexConfig is the YAML structure that lists index definitions.
type IndexConfig struct {
	Indexes []IndexDefinition `yaml:"indexes"`
}

// IndexManager creates configured indexes.
type IndexManager struct {
	definitions []IndexDefinition
	logger      Logger
}

// NewIndexManager creates a manager with code-defined definitions.
func NewIndexManager(logger Logger, definitions ...IndexDefinition) *IndexManager {
	return &IndexManager{
		definitions: append([]IndexDefinition(nil), definitions...),
		logger:      logger,
	}
}

// EnsureAll creates every definition, one CreateMany per collection.
// Conflicts with an existing index of the same name are logged and skipped.
func (im *IndexManager) EnsureAll(ctx context.Context, db *mongo.Database) error {
	for _, coll := range im.collections() {
		defs := im.DefinitionsByCollection(coll)
		models := make([]mongo.IndexModel, len(defs))
		for i := range defs {
			models[i] = defs[i].Model()
		}

		names, err := db.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			if ok, kind := IsStoreError(err); ok && kind == IndexConflictErr {
				if im.logger != nil {
					im.logger.Warn("Index conflicts with an existing index, skipped", "collection", coll, "error", err.Error())
				}
				continue
			}
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
		if im.logger != nil {
			im.logger.Debug("Indexes ensured", "collection", coll, "indexes", names)
		}
	}
	return nil
}

// DropIndex drops a named index from a collection.
func (im *IndexManager) DropIndex(ctx context.Context, db *mongo.Database, collection, name string) error {
	_, err := db.Collection(collection).Indexes().DropOne(ctx, name)
	return err
}

// DefinitionsByCollection returns the definitions for a collection.
func (im *IndexManager) DefinitionsByCollection(collection string) []IndexDefinition {
	var result []IndexDefinition
	for _, d := range im.definitions {
		if d.Collection == collection {
			result = append(result, d)
		}
	}
	return result
}

func (im *IndexManager) ListAllDefinitions() []IndexDefinition {
	return im.definitions
}

func (im *IndexManager) collections() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, d := range im.definitions {
		if _, ok := seen[d.Collection]; ok {
			continue
		}
		seen[d.Collection] = struct{}{}
		names = append(names, d.Collection)
	}
	sort.Strings(names)
	return names
}

// Validate checks the definitions for common issues.
func (im *IndexManager) Validate() []error {
	var errs []error
	names := make(map[string]struct{})

	for _, d := range im.definitions {
		if strings.TrimSpace(d.Collection) == "" {
			errs = append(errs, fmt.Errorf("collection name cannot be empty: %s", d.GenerateName()))
		}
		if len(d.Keys) == 0 {
			errs = append(errs, fmt.Errorf("index must have at least one key: %s", d.Collection))
			continue
		}
		for _, k := range d.Keys {
			if strings.TrimSpace(k.Field) == "" {
				errs = append(errs, fmt.Errorf("index key field cannot be empty: %s", d.Collection))
			}
		}
		if d.TTLSeconds < 0 {
			errs = append(errs, fmt.Errorf("ttl cannot be negative: %s.%s", d.Collection, d.GenerateName()))
		}
		if d.TTLSeconds > 0 && len(d.Keys) > 1 {
			errs = append(errs, fmt.Errorf("ttl index must have a single key: %s.%s", d.Collection, d.GenerateName()))
		}

		qualified := d.Collection + "." + d.GenerateName()
		if _, ok := names[qualified]; ok {
			errs = append(errs, fmt.Errorf("duplicate index name: %s", qualified))
		}
		names[qualified] = struct{}{}
	}
	return errs
}

// ConfigurableIndexManager loads index definitions from a YAML file and
// falls back to code-defined definitions.
type ConfigurableIndexManager struct {
	*IndexManager
	configPath string
}

// NewConfigurableIndexManager creates an index manager backed by configPath.
func NewConfigurableIndexManager(logger Logger, configPath string, defaults ...IndexDefinition) *ConfigurableIndexManager {
	manager := &ConfigurableIndexManager{configPath: configPath}
	definitions, err := manager.loadFromConfig()
	if err != nil {
		if logger != nil {
			logger.Debug("Failed to load index definitions from config, using code-defined defaults", "error", err.Error(), "config_path", configPath)
		}
		definitions = defaults
	}
	manager.IndexManager = NewIndexManager(logger, definitions...)
	return manager
}

func (cim *ConfigurableIndexManager) loadFromConfig() ([]IndexDefinition, error) {
	data, err := os.ReadFile(cim.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config IndexConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config.Indexes, nil
}

// ReloadConfig refreshes definitions from the YAML file.
func (cim *ConfigurableIndexManager) ReloadConfig() error {
	definitions, err := cim.loadFromConfig()
	if err != nil {
		return err
	}
	cim.definitions = definitions
	return nil
}

// ExportToConfig writes the current definitions to outputPath, creating
// directories as needed.
func (cim *ConfigurableIndexManager) ExportToConfig(outputPath string) error {
	config := IndexConfig{Indexes: make([]IndexDefinition, len(cim.definitions))}
	for i, d := range cim.definitions {
		if d.Description == "" {
			d.Description = fmt.Sprintf("%s.%s", d.Collection, d.GenerateName())
		}
		config.Indexes[i] = d
	}

	data, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (cim *ConfigurableIndexManager) GetConfigPath() string {
	return cim.configPath
}
