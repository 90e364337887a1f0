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
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

var ErrInvalidConfig = errors.New("invalid repository config")

// AbstractDatabaseManager defines the operations for managing a client
// connection, running migrations, initializing data, and reporting health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetClient() *mongo.Client
	GetDatabase() *mongo.Database
	RunMigrations(ctx context.Context) error
	InitData(ctx context.Context) error
	GetStats() *PoolStats
	SetLogger(logger Logger)
}

// AbstractDatabaseConfigProvider exposes configuration loading.
type AbstractDatabaseConfigProvider interface {
	ConfigLoader() *Config
}

// HealthStatus holds the result of a health check against the deployment.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	OpenConns     int64         `json:"open_conns"`
	InUseConns    int64         `json:"in_use_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// PoolStats is collected from the driver's connection pool events.
type PoolStats struct {
	OpenConns     int64 `json:"open_conns"`
	InUse         int64 `json:"in_use"`
	Created       int64 `json:"created"`
	Closed        int64 `json:"closed"`
	CheckedOut    int64 `json:"checked_out"`
	CheckOutFails int64 `json:"check_out_fails"`
}

// RepositoryConfig is the minimal description of how to reach the store.
type RepositoryConfig struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string" mapstructure:"connection_string"`
	DatabaseName     string `json:"database_name" yaml:"database_name" mapstructure:"database_name"`
}

// Validate only checks that both values are present. Reachability is not
// checked here; connectivity errors surface when the store is used.
func (c RepositoryConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ConnectionString) == "" {
		missing = append(missing, "connection_string")
	}
	if strings.TrimSpace(c.DatabaseName) == "" {
		missing = append(missing, "database_name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// ConnectionConfig describes how to connect to the deployment and tune the
// client.
type ConnectionConfig struct {
	RepositoryConfig       `yaml:",inline" mapstructure:",squash"`
	AppName                string        `json:"app_name" yaml:"app_name" mapstructure:"app_name"`
	MaxPoolSize            uint64        `json:"max_pool_size" yaml:"max_pool_size" mapstructure:"max_pool_size"`
	MinPoolSize            uint64        `json:"min_pool_size" yaml:"min_pool_size" mapstructure:"min_pool_size"`
	MaxConnIdleTime        time.Duration `json:"max_conn_idle_time" yaml:"max_conn_idle_time" mapstructure:"max_conn_idle_time"`
	ConnectTimeout         time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`
	ServerSelectionTimeout time.Duration `json:"server_selection_timeout" yaml:"server_selection_timeout" mapstructure:"server_selection_timeout"`
	EnableCommandLog       bool          `json:"enable_command_log" yaml:"enable_command_log" mapstructure:"enable_command_log"`
	SlowCommandTime        time.Duration `json:"slow_command_time" yaml:"slow_command_time" mapstructure:"slow_command_time"`
	EnableMetrics          bool          `json:"enable_metrics" yaml:"enable_metrics" mapstructure:"enable_metrics"`
}

// DataMigrateConfig controls collection and index migration on startup.
type DataMigrateConfig struct {
	EnableMigrateOnStartup bool   `json:"enable_migrate_on_startup" yaml:"enable_migrate_on_startup" mapstructure:"enable_migrate_on_startup"`
	EnableIndexes          bool   `json:"enable_indexes" yaml:"enable_indexes" mapstructure:"enable_indexes"`
	IndexFile              string `json:"index_file" yaml:"index_file" mapstructure:"index_file"`
}

// DataInitConfig controls seeding and environment selection.
type DataInitConfig struct {
	AutoInitOnStartup   bool   `json:"auto_init_on_startup" yaml:"auto_init_on_startup" mapstructure:"auto_init_on_startup"`
	AutoInitOnMigration bool   `json:"auto_init_on_migration" yaml:"auto_init_on_migration" mapstructure:"auto_init_on_migration"`
	Filepath            string `json:"filepath" yaml:"filepath" mapstructure:"filepath"`
	Environment         string `json:"environment" yaml:"environment" mapstructure:"environment"`
}

// Config aggregates connection, migration, and data initialization settings.
type Config struct {
	ConnectionConfig  ConnectionConfig  `json:"connection" yaml:"connection" mapstructure:"connection"`
	DataMigrateConfig DataMigrateConfig `json:"migrate" yaml:"migrate" mapstructure:"migrate"`
	DataInitConfig    DataInitConfig    `json:"init" yaml:"init" mapstructure:"init"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxPoolSize:            100,
		MinPoolSize:            0,
		MaxConnIdleTime:        time.Minute * 30,
		ConnectTimeout:         time.Second * 10,
		ServerSelectionTimeout: time.Second * 30,
		EnableCommandLog:       false,
		SlowCommandTime:        time.Second * 2,
		EnableMetrics:          true,
	}
}
