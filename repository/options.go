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

package repository

import (
	"github.com/tomoncle/mongorepo/database"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tomoncle/mongorepo/repository"

// Option configures a repository at construction.
type Option func(*repoOptions)

type repoOptions struct {
	logger        database.Logger
	clientOptions *options.ClientOptions
	tracer        trace.Tracer
	ping          bool
}

// WithLogger replaces the global database logger.
func WithLogger(logger database.Logger) Option {
	return func(o *repoOptions) { o.logger = logger }
}

// WithClientOptions adds driver options applied after the connection
// string. Ignored by NewRepositoryWithDatabase.
func WithClientOptions(opts *options.ClientOptions) Option {
	return func(o *repoOptions) { o.clientOptions = opts }
}

// WithTracer replaces the tracer of the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *repoOptions) { o.tracer = tracer }
}

// WithStartupPing makes NewRepository ping the primary and fail when the
// deployment is unreachable. Without it connectivity errors surface on first use.
func WithStartupPing() Option {
	return func(o *repoOptions) { o.ping = true }
}

func newRepoOptions(opts []Option) *repoOptions {
	o := &repoOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}
