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
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SeedsCollection records the seed files already applied.
const SeedsCollection = "_seeds"

const (
	commonSeedDir   = "common"
	defaultSeedPath = "configs/seed"
	unorderedSeed   = 999
)

var seedOrderPattern = regexp.MustCompile(`^(\d+)_(.+)$`)

// SeedManager loads Extended JSON seed files and writes them.
//
// Layout under the root path:
//
//	common/NNN_<collection>.json
//	environments/<env>/NNN_<collection>.json
//
// Each file holds a JSON array of documents. Go template placeholders such
// as {{.ENVIRONMENT}} or any environment variable are expanded first.
// Documents carrying an _id are upserted by it, the rest are inserted. A file
// is recorded in SeedsCollection once written and skipped on later runs.
type SeedManager struct {
	db          *mongo.Database
	environment string
	rootPath    string
	logger      Logger
}

// SeedFileInfo describes a seed file to be loaded.
type SeedFileInfo struct {
	Path        string
	Name        string
	Collection  string
	Order       int
	Environment string
	ModTime     time.Time
}

// ExecutionResult contains the outcome of loading a single seed file.
type ExecutionResult struct {
	File     string
	Success  bool
	Error    error
	Duration time.Duration
	Inserted int
	Matched  int
}

// SeedRecord marks a seed file as applied.
type SeedRecord struct {
	File        string    `bson:"_id"`
	Collection  string    `bson:"collection"`
	Environment string    `bson:"environment"`
	AppliedAt   time.Time `bson:"applied_at"`
}

// NewSeedManager creates a seeder for the given environment.
func NewSeedManager(db *mongo.Database, environment string) *SeedManager {
	return &SeedManager{
		db:          db,
		environment: environment,
		rootPath:    defaultSeedPath,
		logger:      GetLogger(),
	}
}

func (s *SeedManager) SetRootPath(path string) {
	s.rootPath = path
}

func (s *SeedManager) SetLogger(logger Logger) {
	s.logger = logger
}

// ExecuteInitialization loads every seed file in order. The first failing
// file stops the run.
func (s *SeedManager) ExecuteInitialization(ctx context.Context) error {
	s.logger.Info("Starting seed initialization", "environment", s.environment, "seed_path", s.rootPath)

	files, err := s.GetSeedFiles()
	if err != nil {
		return fmt.Errorf("failed to get seed files: %w", err)
	}
	if len(files) == 0 {
		s.logger.Info("No seed files found to load")
		return nil
	}

	applied, err := s.appliedFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to read applied seed files: %w", err)
	}

	for _, file := range files {
		key := s.seedKey(file)
		if _, ok := applied[key]; ok {
			s.logger.Debug("Seed file already applied", "file", key)
			continue
		}
		result := s.executeFile(ctx, file)
		if !result.Success {
			s.logger.Error("Seed file load failed", "file", result.File, "error", result.Error.Error())
			return fmt.Errorf("seed file load failed %s: %w", result.File, result.Error)
		}
		if err := s.markApplied(ctx, key, file); err != nil {
			return fmt.Errorf("failed to record seed file %s: %w", key, err)
		}
		s.logger.Info("Seed file loaded successfully",
			"file", result.File,
			"collection", file.Collection,
			"duration", result.Duration.String(),
			"inserted", result.Inserted,
			"matched", result.Matched,
		)
	}

	s.logger.Info("Seed initialization completed", "total_files", len(files), "environment", s.environment)
	return nil
}

func (s *SeedManager) appliedFiles(ctx context.Context) (map[string]struct{}, error) {
	cursor, err := s.db.Collection(SeedsCollection).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var records []SeedRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	applied := make(map[string]struct{}, len(records))
	for _, r := range records {
		applied[r.File] = struct{}{}
	}
	return applied, nil
}

func (s *SeedManager) markApplied(ctx context.Context, key string, file SeedFileInfo) error {
	_, err := s.db.Collection(SeedsCollection).InsertOne(ctx, SeedRecord{
		File:        key,
		Collection:  file.Collection,
		Environment: file.Environment,
		AppliedAt:   time.Now().UTC(),
	})
	// Another process recorded the same file first.
	if IsDuplicateKey(err) {
		return nil
	}
	return err
}

// seedKey identifies file relative to the root, e.g. "common/001_users.json".
func (s *SeedManager) seedKey(file SeedFileInfo) string {
	if rel, err := filepath.Rel(s.rootPath, file.Path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(file.Path)
}

// GetSeedFiles returns common files first, then environment files, each
// group ordered by the numeric prefix.
func (s *SeedManager) GetSeedFiles() ([]SeedFileInfo, error) {
	var files []SeedFileInfo

	commonFiles, err := s.getFilesFromDir(filepath.Join(s.rootPath, commonSeedDir), commonSeedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get common seed files: %w", err)
	}
	files = append(files, commonFiles...)

	envFiles, err := s.getFilesFromDir(filepath.Join(s.rootPath, "environments", s.environment), s.environment)
	if err != nil {
		return nil, fmt.Errorf("failed to get environment seed files: %w", err)
	}
	files = append(files, envFiles...)

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Environment != files[j].Environment {
			return files[i].Environment == commonSeedDir
		}
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func (s *SeedManager) getFilesFromDir(dir, environment string) ([]SeedFileInfo, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []SeedFileInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		order, collection := parseSeedFileName(d.Name())
		files = append(files, SeedFileInfo{
			Path:        path,
			Name:        d.Name(),
			Collection:  collection,
			Order:       order,
			Environment: environment,
			ModTime:     info.ModTime(),
		})
		return nil
	})
	return files, err
}

// parseSeedFileName splits "010_users.json" into (10, "users"). Files
// without a numeric prefix sort last.
func parseSeedFileName(name string) (int, string) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if m := seedOrderPattern.FindStringSubmatch(base); len(m) == 3 {
		if order, err := strconv.Atoi(m[1]); err == nil {
			return order, m[2]
		}
	}
	return unorderedSeed, base
}

func (s *SeedManager) executeFile(ctx context.Context, file SeedFileInfo) ExecutionResult {
	start := time.Now()
	result := ExecutionResult{File: file.Path}

	docs, err := s.LoadFile(file.Path)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	if len(docs) == 0 {
		result.Success = true
		result.Duration = time.Since(start)
		return result
	}

	res, err := s.db.Collection(file.Collection).BulkWrite(ctx, seedModels(docs), options.BulkWrite().SetOrdered(true))
	if res != nil {
		result.Inserted = int(res.InsertedCount + res.UpsertedCount)
		result.Matched = int(res.MatchedCount)
	}
	if err != nil {
		result.Error = err
	} else {
		result.Success = true
	}
	result.Duration = time.Since(start)
	return result
}

// seedModels upserts documents that carry an _id and inserts the rest.
func seedModels(docs []interface{}) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		if d, ok := doc.(bson.D); ok {
			if id, found := documentID(d); found {
				models = append(models, mongo.NewReplaceOneModel().
					SetFilter(bson.D{{Key: "_id", Value: id}}).
					SetReplacement(d).
					SetUpsert(true))
				continue
			}
		}
		models = append(models, mongo.NewInsertOneModel().SetDocument(doc))
	}
	return models
}

func documentID(d bson.D) (interface{}, bool) {
	for _, e := range d {
		if e.Key == "_id" {
			return e.Value, true
		}
	}
	return nil, false
}

// LoadFile reads, templates and decodes one seed file.
func (s *SeedManager) LoadFile(path string) ([]interface{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	expanded, err := s.replaceEnvVariables(string(content))
	if err != nil {
		return nil, err
	}
	return decodeSeedDocuments([]byte(expanded))
}

func decodeSeedDocuments(data []byte) ([]interface{}, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	// Extended JSON must be a document at the top level.
	wrapped := make([]byte, 0, len(data)+16)
	wrapped = append(wrapped, `{"documents":`...)
	wrapped = append(wrapped, data...)
	wrapped = append(wrapped, '}')

	var holder struct {
		Documents []bson.D `bson:"documents"`
	}
	if err := bson.UnmarshalExtJSON(wrapped, false, &holder); err != nil {
		return nil, fmt.Errorf("failed to decode extended json: %w", err)
	}

	docs := make([]interface{}, len(holder.Documents))
	for i, d := range holder.Documents {
		docs[i] = d
	}
	return docs, nil
}

func (s *SeedManager) replaceEnvVariables(content string) (string, error) {
	tmpl, err := template.New("seed").Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	envVars := make(map[string]string)
	for _, env := range os.Environ() {
		if k, v, ok := strings.Cut(env, "="); ok {
			envVars[k] = v
		}
	}
	envVars["ENVIRONMENT"] = s.environment
	envVars["TIMESTAMP"] = time.Now().UTC().Format(time.RFC3339)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envVars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
