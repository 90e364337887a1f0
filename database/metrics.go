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
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exported by this module.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(CommandDuration, CommandTotal, PoolConnections)
}

// CommandDuration observes driver command round trips in seconds.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mongorepo_command_duration_seconds",
		Help:    "MongoDB command round trip duration in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"command", "status"},
)

// CommandTotal counts driver commands by outcome.
var CommandTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mongorepo_command_total",
		Help: "MongoDB commands issued, by command name and status.",
	},
	[]string{"command", "status"}, // succeeded | failed
)

// PoolConnections tracks pooled connections by state.
var PoolConnections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "mongorepo_pool_connections",
		Help: "MongoDB pooled connections by state.",
	},
	[]string{"state"}, // open | in_use
)

// MetricsHandler serves Registry in the Prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
