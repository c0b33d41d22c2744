// Copyright 2025 The benchtool Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// snapshotFileName is the cache file written under the output directory.
const snapshotFileName = "processed_data.json"

// sourceFingerprint identifies one input file version. Size plus
// modification time is enough to catch a re-export without hashing
// multi-megabyte bill files on every run.
type sourceFingerprint struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// snapshotEnvelope is the on-disk cache layout: the inputs it was built
// from, then the data itself. Facts contain no unavailable sentinels (the
// pipeline zeroes them), so plain JSON round-trips the table exactly.
type snapshotEnvelope struct {
	Sources []sourceFingerprint `json:"sources"`
	Data    ProcessedData       `json:"data"`
}

// SnapshotCache persists the pipeline's fact table between runs so a
// reporting-only rerun can skip the aggregation stages entirely.
type SnapshotCache struct {
	path   string
	logger *Logger
}

// NewSnapshotCache creates a cache rooted in the output directory.
func NewSnapshotCache(outputDir string, logger *Logger) *SnapshotCache {
	return &SnapshotCache{
		path:   filepath.Join(outputDir, snapshotFileName),
		logger: logger.WithComponent("cache"),
	}
}

// Load returns the cached fact table if every source file still matches
// the fingerprints taken when the snapshot was written. Any mismatch, a
// missing cache file, or a corrupt one is a miss, never an error: the
// pipeline can always rebuild.
func (c *SnapshotCache) Load(sourcePaths ...string) (*ProcessedData, bool) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}

	var envelope snapshotEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Warn("Discarding unreadable snapshot", "path", c.path, "error", err)
		return nil, false
	}

	current, err := fingerprintSources(sourcePaths)
	if err != nil {
		return nil, false
	}
	if !fingerprintsEqual(envelope.Sources, current) {
		c.logger.Debug("Snapshot stale, inputs changed", "path", c.path)
		return nil, false
	}

	c.logger.LogStorageOperation("snapshot_hit", c.path)
	return &envelope.Data, true
}

// Store writes the fact table with fingerprints of the inputs it was
// built from.
func (c *SnapshotCache) Store(data *ProcessedData, sourcePaths ...string) error {
	sources, err := fingerprintSources(sourcePaths)
	if err != nil {
		return &StorageError{Operation: "fingerprint_sources", Path: c.path, Err: err}
	}

	raw, err := json.MarshalIndent(snapshotEnvelope{Sources: sources, Data: *data}, "", "  ")
	if err != nil {
		return &StorageError{Operation: "encode_snapshot", Path: c.path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return &StorageError{Operation: "create_output_dir", Path: c.path, Err: err}
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return &StorageError{Operation: "write_snapshot", Path: c.path, Err: err}
	}

	c.logger.LogStorageOperation("snapshot_write", c.path)
	return nil
}

func fingerprintSources(paths []string) ([]sourceFingerprint, error) {
	out := make([]sourceFingerprint, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		out = append(out, sourceFingerprint{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}
	return out, nil
}

func fingerprintsEqual(a, b []sourceFingerprint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path || a[i].Size != b[i].Size || !a[i].ModTime.Equal(b[i].ModTime) {
			return false
		}
	}
	return true
}
