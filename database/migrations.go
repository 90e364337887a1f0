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
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MigrationsCollection records applied migration versions.
const MigrationsCollection = "_migrations"

var ErrRollbackUnsupported = errors.New("migration has no rollback step")

// MigrationManager coordinates collection/index migrations and data
// initialization.
type MigrationManager struct {
	db          *mongo.Database
	config      *Config
	logger      Logger
	registry    DocumentRegistry
	environment string
}

// Migration is an applied migration record.
type Migration struct {
	Version     string    `bson:"_id"`
	Name        string    `bson:"name"`
	AppliedAt   time.Time `bson:"applied_at"`
	Description string    `bson:"description"`
}

// MigrationFunc is a single migration step.
type MigrationFunc func(ctx context.Context, db *mongo.Database) error

// MigrationItem describes a single migration version with up/down functions.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// NewMigrationManager constructs a MigrationManager over db. A nil config
// runs only the collection step against the default document registry.
func NewMigrationManager(db *mongo.Database, config *Config, logger Logger) *MigrationManager {
	if config == nil {
		config = &Config{}
	}
	env := config.DataInitConfig.Environment
	if env == "" {
		env = "prod"
	}
	return &MigrationManager{
		db:          db,
		config:      config,
		logger:      logger,
		registry:    defaultRegistry,
		environment: env,
	}
}

// SetEnvironment sets the environment used when seeding data.
func (mm *MigrationManager) SetEnvironment(env string) {
	mm.environment = env
}

// SetRegistry replaces the document registry used by the collection step.
func (mm *MigrationManager) SetRegistry(r DocumentRegistry) {
	mm.registry = r
}

// RunMigrations executes all pending migrations in ascending version order.
// Command logging is silenced unless MONGOREPO_MIGRATION_LOG is set.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return ErrNotConnected
	}
	if _, ok := os.LookupEnv("MONGOREPO_MIGRATION_LOG"); !ok {
		EnableCommandLogSilent(true)
		defer EnableCommandLogSilent(false)
	}

	applied, err := mm.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	migrations := mm.Migrations()
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, migration := range migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}

	if mm.logger != nil {
		mm.logger.Info("Database migrations completed!")
	}
	return nil
}

// Migrations returns the steps enabled by the configuration.
func (mm *MigrationManager) Migrations() []MigrationItem {
	migrations := []MigrationItem{
		{
			Version:     "001",
			Name:        "create_collections",
			Description: "Create collections of registered documents",
			Up:          mm.createCollections,
		},
	}
	if mm.config.DataMigrateConfig.EnableIndexes {
		migrations = append(migrations, MigrationItem{
			Version:     "002",
			Name:        "ensure_indexes",
			Description: "Create configured indexes",
			Up:          mm.ensureIndexes,
			Down:        mm.dropIndexes,
		})
	}
	if mm.config.DataInitConfig.AutoInitOnMigration {
		migrations = append(migrations, MigrationItem{
			Version:     "003",
			Name:        "seed_initial_data",
			Description: "Seed initial data",
			Up:          mm.seedInitialData,
		})
	}
	return migrations
}

func (mm *MigrationManager) appliedVersions(ctx context.Context) (map[string]struct{}, error) {
	records, err := mm.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	versions := make(map[string]struct{}, len(records))
	for _, r := range records {
		versions[r.Version] = struct{}{}
	}
	return versions, nil
}

// runMigration applies one step and records it. A step that fails before
// being recorded is retried on the next run: collections and indexes are
// created only when missing, and seed files are upserted by _id and skipped
// once recorded in SeedsCollection.
func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	if err := migration.Up(ctx, mm.db); err != nil {
		return err
	}

	record := Migration{
		Version:     migration.Version,
		Name:        migration.Name,
		AppliedAt:   time.Now().UTC(),
		Description: migration.Description,
	}
	if _, err := mm.db.Collection(MigrationsCollection).InsertOne(ctx, record); err != nil {
		return err
	}

	if mm.logger != nil {
		mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	}
	return nil
}

func (mm *MigrationManager) createCollections(ctx context.Context, db *mongo.Database) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return err
	}
	have := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		have[name] = struct{}{}
	}

	for _, name := range mm.registry.Collections() {
		if _, ok := have[name]; ok {
			continue
		}
		if err := db.CreateCollection(ctx, name); err != nil {
			if ok, kind := IsStoreError(err); ok && kind == NamespaceExistsErr {
				continue
			}
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		if mm.logger != nil {
			mm.logger.Debug("Collection created", "collection", name)
		}
	}
	return nil
}

func (mm *MigrationManager) indexManager() *ConfigurableIndexManager {
	return NewConfigurableIndexManager(mm.logger, mm.config.DataMigrateConfig.IndexFile)
}

func (mm *MigrationManager) ensureIndexes(ctx context.Context, db *mongo.Database) error {
	im := mm.indexManager()
	if errs := im.Validate(); len(errs) > 0 {
		for _, err := range errs {
			if mm.logger != nil {
				mm.logger.Debug("Index definition validation failed", "error", err.Error())
			}
		}
		return fmt.Errorf("index definition validation failed, %d errors in total", len(errs))
	}

	if mm.logger != nil {
		mm.logger.Debug("Managing indexes using config file", "config_path", im.GetConfigPath())
	}
	return im.EnsureAll(ctx, db)
}

func (mm *MigrationManager) dropIndexes(ctx context.Context, db *mongo.Database) error {
	im := mm.indexManager()
	for _, d := range im.ListAllDefinitions() {
		err := im.DropIndex(ctx, db, d.Collection, d.GenerateName())
		if err != nil {
			if ok, kind := IsStoreError(err); ok && kind == NamespaceNotFoundErr {
				continue
			}
			return err
		}
	}
	return nil
}

// InitData seeds data for the configured environment.
func (mm *MigrationManager) InitData(ctx context.Context) error {
	if mm.db == nil {
		return ErrNotConnected
	}
	return mm.seedInitialData(ctx, mm.db)
}

func (mm *MigrationManager) seedInitialData(ctx context.Context, db *mongo.Database) error {
	seeder := NewSeedManager(db, mm.environment)
	if mm.config.DataInitConfig.Filepath != "" {
		seeder.SetRootPath(mm.config.DataInitConfig.Filepath)
	}
	if mm.logger != nil {
		seeder.SetLogger(mm.logger)
		mm.logger.Info("Starting data initialization using seed files", "environment", mm.environment)
	}

	if err := seeder.ExecuteInitialization(ctx); err != nil {
		return fmt.Errorf("seed file initialization failed: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := mm.db.Collection(MigrationsCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var migrations []Migration
	if err := cursor.All(ctx, &migrations); err != nil {
		return nil, err
	}
	return migrations, nil
}

// RollbackMigration runs the down step of version and removes its record.
func (mm *MigrationManager) RollbackMigration(ctx context.Context, version string) error {
	for _, m := range mm.Migrations() {
		if m.Version != version {
			continue
		}
		if m.Down == nil {
			return fmt.Errorf("%w: %s", ErrRollbackUnsupported, version)
		}
		if err := m.Down(ctx, mm.db); err != nil {
			return err
		}
		_, err := mm.db.Collection(MigrationsCollection).DeleteOne(ctx, bson.D{{Key: "_id", Value: version}})
		return err
	}
	return fmt.Errorf("unknown migration version: %s", version)
}
