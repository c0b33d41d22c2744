// Copyright 2025 The benchtool Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"time"
)

// DataIntegrityError means the billing data and reference data cannot be
// safely reconciled (malformed date range, site missing from the building
// table). It aborts the run: silently dropping the line would desynchronize
// reported totals.
type DataIntegrityError struct {
	SiteID  string
	From    time.Time
	Thru    time.Time
	Message string
}

func (e *DataIntegrityError) Error() string {
	if !e.From.IsZero() || !e.Thru.IsZero() {
		return fmt.Sprintf("data integrity error for site %s (%s to %s): %s",
			e.SiteID, e.From.Format("2006-01-02"), e.Thru.Format("2006-01-02"), e.Message)
	}
	return fmt.Sprintf("data integrity error for site %s: %s", e.SiteID, e.Message)
}

// NotFoundError is returned by reference-data lookups for unknown keys
// where absence is a caller error rather than a missing value.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// ConfigError represents a configuration error, fatal at startup.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// StorageError represents a storage operation error
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s at %s: %v", e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// APIError represents an ARIS API error
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API error at %s (status %d): %s: %v", e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API error at %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if this error should be retried
func (e *APIError) IsRetryable() bool {
	switch e.StatusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
