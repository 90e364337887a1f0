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
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	globalMu      sync.RWMutex
	globalFactory *BaseDatabaseFactory
)

func factory() *BaseDatabaseFactory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFactory
}

// GetClient returns the global client, or nil before InitDB.
func GetClient() *mongo.Client {
	if f := factory(); f != nil && f.GetManager() != nil {
		return f.GetManager().GetClient()
	}
	return nil
}

// GetDatabase returns the global database handle, or nil before InitDB.
func GetDatabase() *mongo.Database {
	if f := factory(); f != nil {
		return f.GetDatabase()
	}
	return nil
}

func GetDatabaseManager() AbstractDatabaseManager {
	if f := factory(); f != nil {
		return f.GetManager()
	}
	return nil
}

func GetDatabaseFactory() *BaseDatabaseFactory {
	return factory()
}

// InitDB initializes the global database from cfg. Migrations run when
// cfg enables them on startup, seed data when cfg enables it on startup.
func InitDB(ctx context.Context, cfg *Config) (*mongo.Database, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration cannot be empty", ErrInvalidConfig)
	}

	f := NewDatabaseFactory()
	if _, err := f.CreateFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := startup(ctx, f, cfg); err != nil {
		return nil, err
	}

	setGlobalFactory(ctx, f)
	return f.GetDatabase(), nil
}

// startup connects f and runs the startup steps cfg asks for. On failure f
// is closed before returning.
func startup(ctx context.Context, f *BaseDatabaseFactory, cfg *Config) error {
	err := f.InitializeDatabase(ctx, cfg.DataMigrateConfig.EnableMigrateOnStartup)
	if err != nil {
		err = fmt.Errorf("failed to initialize database: %w", err)
	} else if cfg.DataInitConfig.AutoInitOnStartup {
		if err = f.GetManager().InitData(ctx); err != nil {
			err = fmt.Errorf("failed to initialize data: %w", err)
		}
	}
	if err == nil {
		return nil
	}
	if cerr := f.Close(ctx); cerr != nil {
		f.logger.Warn("Failed to close database after startup failure", "error", cerr)
	}
	return err
}

// setGlobalFactory installs f and closes the factory it replaces.
func setGlobalFactory(ctx context.Context, f *BaseDatabaseFactory) {
	globalMu.Lock()
	prev := globalFactory
	globalFactory = f
	globalMu.Unlock()

	if prev != nil && prev != f {
		if err := prev.Close(ctx); err != nil {
			prev.logger.Warn("Failed to close replaced database connection", "error", err)
		}
	}
}

// CloseDB disconnects the global client.
func CloseDB(ctx context.Context) error {
	globalMu.Lock()
	f := globalFactory
	globalFactory = nil
	globalMu.Unlock()

	if f != nil {
		return f.Close(ctx)
	}
	return nil
}

func GetHealthStatus(ctx context.Context) *HealthStatus {
	if f := factory(); f != nil {
		return f.GetHealthStatus(ctx)
	}
	return &HealthStatus{LastError: "Database not initialized"}
}

func GetDatabaseStats() *PoolStats {
	if f := factory(); f != nil {
		return f.GetStats()
	}
	return &PoolStats{}
}

// RunMigrations executes pending migrations against the global database.
func RunMigrations(ctx context.Context) error {
	manager := GetDatabaseManager()
	if manager == nil {
		return ErrNotConnected
	}
	return manager.RunMigrations(ctx)
}

// InitData seeds the global database for the configured environment.
func InitData(ctx context.Context) error {
	manager := GetDatabaseManager()
	if manager == nil {
		return ErrNotConnected
	}
	return manager.InitData(ctx)
}
