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
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var ErrNotConnected = errors.New("database not connected")

type defaultDatabaseManager struct {
	config       *Config
	client       *mongo.Client
	db           *mongo.Database
	pool         *PoolMonitor
	logger       Logger
	mu           sync.RWMutex
	connected    bool
	lastError    error
	healthStatus *HealthStatus
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by the
// official driver. If config is nil, a default configuration is used and
// Connect fails until a connection string and database name are set.
func NewDatabaseManager(config *Config) AbstractDatabaseManager {
	if config == nil {
		config = &Config{ConnectionConfig: *DefaultConnectionConfig()}
	}
	return &defaultDatabaseManager{
		config:       config,
		healthStatus: &HealthStatus{},
	}
}

// ClientOptions translates cfg into driver options with the command and
// pool monitors attached. The returned PoolMonitor backs PoolStats.
func ClientOptions(cfg *ConnectionConfig, logger Logger) (*options.ClientOptions, *PoolMonitor) {
	pool := NewPoolMonitor(cfg.EnableMetrics)
	opts := options.Client().
		ApplyURI(cfg.ConnectionString).
		SetPoolMonitor(pool.Event())

	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(cfg.MaxConnIdleTime)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	}
	if cfg.EnableCommandLog || cfg.SlowCommandTime > 0 || cfg.EnableMetrics {
		opts.SetMonitor(NewCommandMonitor(cfg, logger).Event())
	}
	return opts, pool
}

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.connected && dm.client != nil {
		return nil
	}

	cfg := &dm.config.ConnectionConfig
	if err := cfg.Validate(); err != nil {
		dm.lastError = err
		return err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts, pool := ClientOptions(cfg, dm.logger)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("failed to create database client: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctxTimeout, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		dm.lastError = err
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.client = client
	dm.db = client.Database(cfg.DatabaseName)
	dm.pool = pool
	dm.connected = true
	dm.lastError = nil

	if dm.logger != nil {
		dm.logger.Info("Database connected successfully:", "database", cfg.DatabaseName, "app_name", cfg.AppName)
	}
	return nil
}

func (dm *defaultDatabaseManager) Disconnect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.client == nil {
		return nil
	}

	err := dm.client.Disconnect(ctx)
	dm.client = nil
	dm.db = nil
	dm.connected = false

	if dm.logger != nil {
		if err != nil {
			dm.logger.Error("Failed to close database connection", "error", err)
		} else {
			dm.logger.Info("Database connection closed")
		}
	}
	return err
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	if dm.logger != nil {
		dm.logger.Info("Attempting to reconnect to the database")
	}

	if err := dm.Disconnect(ctx); err != nil && dm.logger != nil {
		dm.logger.Warn("Error disconnecting existing connection", "error", err)
	}

	return dm.Connect(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	client := dm.GetClient()
	if client == nil {
		return ErrNotConnected
	}
	return client.Ping(ctx, readpref.Primary())
}

func (dm *defaultDatabaseManager) GetClient() *mongo.Client {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.client
}

func (dm *defaultDatabaseManager) GetDatabase() *mongo.Database {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

// HealthCheck pings the primary on demand. There is no background loop.
// The ping runs without holding the manager lock.
func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.RLock()
	client, pool, connected := dm.client, dm.pool, dm.connected
	dm.mu.RUnlock()

	start := time.Now()
	status := &HealthStatus{
		LastCheckTime: start,
		Connected:     connected,
	}

	if client == nil {
		status.LastError = "Database not initialized"
		return status
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	err := client.Ping(ctxTimeout, readpref.Primary())
	status.ResponseTime = time.Since(start)

	if err != nil {
		status.Connected = false
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.Connected = true
	}

	if pool != nil {
		stats := pool.Stats()
		status.OpenConns = stats.OpenConns
		status.InUseConns = stats.InUse
	}

	dm.mu.Lock()
	// A concurrent Disconnect or Reconnect owns the state now.
	if dm.client == client {
		dm.lastError = err
		dm.healthStatus = status
	}
	dm.mu.Unlock()
	return status
}

func (dm *defaultDatabaseManager) GetStats() *PoolStats {
	dm.mu.RLock()
	pool := dm.pool
	dm.mu.RUnlock()

	if pool == nil {
		return &PoolStats{}
	}
	return pool.Stats()
}

func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context) error {
	db := dm.GetDatabase()
	if db == nil {
		return ErrNotConnected
	}
	return NewMigrationManager(db, dm.config, dm.logger).RunMigrations(ctx)
}

func (dm *defaultDatabaseManager) InitData(ctx context.Context) error {
	db := dm.GetDatabase()
	if db == nil {
		return ErrNotConnected
	}
	return NewMigrationManager(db, dm.config, dm.logger).InitData(ctx)
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
