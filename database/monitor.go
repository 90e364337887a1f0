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
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"go.mongodb.org/mongo-driver/event"
)

const maxLoggedCommandLen = 512

var commandLogSilent atomic.Bool

// EnableCommandLogSilent suppresses command logging, e.g. while migrations run.
func EnableCommandLogSilent(b bool) {
	commandLogSilent.Store(b)
}

var (
	readColor   = color.New(color.FgGreen).SprintFunc()
	insertColor = color.New(color.FgBlue).SprintFunc()
	updateColor = color.New(color.FgYellow).SprintFunc()
	deleteColor = color.New(color.FgMagenta).SprintFunc()
	otherColor  = color.New(color.FgCyan).SprintFunc()
	failedColor = color.New(color.BgRed, color.FgWhite).SprintFunc()
	slowColor   = color.New(color.BgYellow, color.FgBlack).SprintFunc()
)

func colorizeCommand(name, body string) string {
	switch name {
	case "find", "aggregate", "count", "getMore", "distinct":
		return readColor(body)
	case "insert":
		return insertColor(body)
	case "update", "findAndModify":
		return updateColor(body)
	case "delete":
		return deleteColor(body)
	default:
		return otherColor(body)
	}
}

// CommandMonitor logs driver commands and feeds the command metrics.
type CommandMonitor struct {
	logger   Logger
	logAll   bool
	slowTime time.Duration
	metrics  bool
	pending  sync.Map // request id -> command text
}

// NewCommandMonitor builds a monitor from the connection settings.
func NewCommandMonitor(cfg *ConnectionConfig, logger Logger) *CommandMonitor {
	return &CommandMonitor{
		logger:   logger,
		logAll:   cfg.EnableCommandLog,
		slowTime: cfg.SlowCommandTime,
		metrics:  cfg.EnableMetrics,
	}
}

// Event returns the driver hook.
func (m *CommandMonitor) Event() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started:   m.started,
		Succeeded: m.succeeded,
		Failed:    m.failed,
	}
}

func (m *CommandMonitor) tracksText() bool {
	return m.logger != nil && (m.logAll || m.slowTime > 0)
}

func (m *CommandMonitor) started(_ context.Context, evt *event.CommandStartedEvent) {
	if !m.tracksText() {
		return
	}
	body := evt.Command.String()
	if len(body) > maxLoggedCommandLen {
		body = body[:maxLoggedCommandLen] + "..."
	}
	m.pending.Store(evt.RequestID, body)
}

func (m *CommandMonitor) succeeded(_ context.Context, evt *event.CommandSucceededEvent) {
	m.finish(evt.CommandFinishedEvent, "succeeded", "")
}

func (m *CommandMonitor) failed(_ context.Context, evt *event.CommandFailedEvent) {
	m.finish(evt.CommandFinishedEvent, "failed", evt.Failure)
}

func (m *CommandMonitor) finish(evt event.CommandFinishedEvent, status, failure string) {
	if m.metrics {
		CommandDuration.WithLabelValues(evt.CommandName, status).Observe(evt.Duration.Seconds())
		CommandTotal.WithLabelValues(evt.CommandName, status).Inc()
	}

	raw, ok := m.pending.LoadAndDelete(evt.RequestID)
	if !ok || commandLogSilent.Load() {
		return
	}
	body, _ := raw.(string)

	switch {
	case failure != "":
		if m.logAll {
			m.logger.Error("MongoDB command failed",
				"command", evt.CommandName,
				"database", evt.DatabaseName,
				"duration", evt.Duration,
				"body", colorizeCommand(evt.CommandName, body),
				"error", failedColor(" "+failure+" "),
			)
		}
	case m.slowTime > 0 && evt.Duration > m.slowTime:
		m.logger.Warn(slowColor(" MongoDB slow command detected "),
			"command", evt.CommandName,
			"database", evt.DatabaseName,
			"duration", evt.Duration,
			"slow_threshold", m.slowTime,
			"body", body,
		)
	case m.logAll:
		m.logger.Debug("MongoDB command",
			"command", evt.CommandName,
			"database", evt.DatabaseName,
			"duration", evt.Duration,
			"body", colorizeCommand(evt.CommandName, body),
		)
	}
}

// PoolMonitor keeps connection pool counters for PoolStats and metrics.
type PoolMonitor struct {
	metrics       bool
	created       atomic.Int64
	closed        atomic.Int64
	checkedOut    atomic.Int64
	checkedIn     atomic.Int64
	checkOutFails atomic.Int64
}

func NewPoolMonitor(metrics bool) *PoolMonitor {
	return &PoolMonitor{metrics: metrics}
}

// Event returns the driver hook.
func (m *PoolMonitor) Event() *event.PoolMonitor {
	return &event.PoolMonitor{Event: m.handle}
}

func (m *PoolMonitor) handle(evt *event.PoolEvent) {
	switch evt.Type {
	case event.ConnectionCreated:
		m.created.Add(1)
	case event.ConnectionClosed:
		m.closed.Add(1)
	case event.GetSucceeded:
		m.checkedOut.Add(1)
	case event.ConnectionReturned:
		m.checkedIn.Add(1)
	case event.GetFailed:
		m.checkOutFails.Add(1)
	default:
		return
	}
	if m.metrics {
		stats := m.Stats()
		PoolConnections.WithLabelValues("open").Set(float64(stats.OpenConns))
		PoolConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	}
}

// Stats returns a snapshot of the counters.
func (m *PoolMonitor) Stats() *PoolStats {
	created, closed := m.created.Load(), m.closed.Load()
	out, in := m.checkedOut.Load(), m.checkedIn.Load()
	return &PoolStats{
		OpenConns:     created - closed,
		InUse:         out - in,
		Created:       created,
		Closed:        closed,
		CheckedOut:    out,
		CheckOutFails: m.checkOutFails.Load(),
	}
}
