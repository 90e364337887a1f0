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
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig.
const EnvPrefix = "MONGOREPO"

// LoadConfig reads configuration from an optional YAML file, environment
// variables (MONGOREPO_*) and defaults, in increasing order of precedence:
// defaults < file < environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.ConnectionConfig.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConnectionConfig()
	v.SetDefault("connection.connection_string", "mongodb://localhost:27017")
	v.SetDefault("connection.database_name", "")
	v.SetDefault("connection.app_name", "")
	v.SetDefault("connection.max_pool_size", def.MaxPoolSize)
	v.SetDefault("connection.min_pool_size", def.MinPoolSize)
	v.SetDefault("connection.max_conn_idle_time", def.MaxConnIdleTime)
	v.SetDefault("connection.connect_timeout", def.ConnectTimeout)
	v.SetDefault("connection.server_selection_timeout", def.ServerSelectionTimeout)
	v.SetDefault("connection.enable_command_log", def.EnableCommandLog)
	v.SetDefault("connection.slow_command_time", def.SlowCommandTime)
	v.SetDefault("connection.enable_metrics", def.EnableMetrics)

	v.SetDefault("migrate.enable_migrate_on_startup", false)
	v.SetDefault("migrate.enable_indexes", false)
	v.SetDefault("migrate.index_file", "configs/indexes.yaml")

	v.SetDefault("init.auto_init_on_startup", false)
	v.SetDefault("init.auto_init_on_migration", false)
	v.SetDefault("init.filepath", "configs/seed")
	v.SetDefault("init.environment", "prod")
}

// bindEnvVars adds short aliases next to the automatic MONGOREPO_<SECTION>_<KEY> names.
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("connection.connection_string", EnvPrefix+"_URI", EnvPrefix+"_CONNECTION_CONNECTION_STRING")
	_ = v.BindEnv("connection.database_name", EnvPrefix+"_DATABASE", EnvPrefix+"_CONNECTION_DATABASE_NAME")
	_ = v.BindEnv("init.environment", EnvPrefix+"_ENV", EnvPrefix+"_INIT_ENVIRONMENT")
}
