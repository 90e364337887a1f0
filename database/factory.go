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
	"time"

	"github.com/tomoncle/mongorepo/utils"
	"go.mongodb.org/mongo-driver/mongo"
)

// BaseDatabaseFactory creates and manages a configured database manager and
// provides helpers for initialization, health checks, and statistics.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

// CreateFromConfig constructs a database manager from cfg, applying
// environment overrides first.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *Config) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration cannot be empty", ErrInvalidConfig)
	}

	overrideFromEnv(cfg)

	if err := cfg.ConnectionConfig.Validate(); err != nil {
		return nil, err
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)

	f.manager = manager
	return manager, nil
}

// overrideFromEnv overrides sensitive values from MONGO_* variables.
func overrideFromEnv(cfg *Config) {
	conn := &cfg.ConnectionConfig
	conn.ConnectionString = utils.EnvDefaultString("MONGO_URI", conn.ConnectionString)
	conn.DatabaseName = utils.EnvDefaultString("MONGO_DATABASE", conn.DatabaseName)
	conn.AppName = utils.EnvDefaultString("MONGO_APP_NAME", conn.AppName)
	conn.MaxPoolSize = utils.EnvDefaultUint64("MONGO_MAX_POOL_SIZE", conn.MaxPoolSize)
	conn.EnableCommandLog = utils.EnvDefaultBool("MONGO_ENABLE_COMMAND_LOG", conn.EnableCommandLog)
	cfg.DataInitConfig.Environment = utils.EnvDefaultString("MONGO_ENV", cfg.DataInitConfig.Environment)
}

// InitializeDatabase connects and optionally runs migrations.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, runMigrations bool) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}

	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if runMigrations {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	f.logger.Info("Database initialization completed!")
	return nil
}

func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDatabase returns the database handle, or nil if not initialized.
func (f *BaseDatabaseFactory) GetDatabase() *mongo.Database {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDatabase()
}

// SetLogger sets the logger on the factory and the underlying manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *BaseDatabaseFactory) Close(ctx context.Context) error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect(ctx)
}

func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *BaseDatabaseFactory) GetStats() *PoolStats {
	if f.manager == nil {
		return &PoolStats{}
	}
	return f.manager.GetStats()
}
