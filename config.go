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
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Input data
	UtilityBillFile string `yaml:"utility_bill_file"`
	OtherDataFile   string `yaml:"other_data_file"`

	// Output
	OutputDir string `yaml:"output_dir"`
	FactsDB   string `yaml:"facts_db"`

	// Run settings
	MaxSites           int      `yaml:"max_sites"`
	UseDataFromLastRun bool     `yaml:"use_data_from_last_run"`
	Groupings          []string `yaml:"groupings"`

	// ARIS API (only needed for -aris ingestion runs)
	ARISURL      string `yaml:"aris_url"`
	ARISUsername string `yaml:"aris_username"`
	ARISPassword string `yaml:"aris_password"`

	// Debugging
	Debug bool `yaml:"debug"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	// Set defaults
	config := &Config{
		OutputDir: "output",
		FactsDB:   "output/facts.db",
		Groupings: []string{"site_category"},
	}

	// If no path provided, return defaults with env var overrides
	if path == "" {
		config.applyEnvironmentVariables()
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentVariables()

	return config, nil
}

// applyEnvironmentVariables overrides config with environment variables
func (c *Config) applyEnvironmentVariables() {
	if val := os.Getenv("BENCHTOOL_BILL_FILE"); val != "" {
		c.UtilityBillFile = val
	}
	if val := os.Getenv("BENCHTOOL_OTHER_DATA_FILE"); val != "" {
		c.OtherDataFile = val
	}
	if val := os.Getenv("BENCHTOOL_OUTPUT_DIR"); val != "" {
		c.OutputDir = val
	}
	if val := os.Getenv("ARIS_API_URL"); val != "" {
		c.ARISURL = val
	}
	if val := os.Getenv("ARIS_USERNAME"); val != "" {
		c.ARISUsername = val
	}
	if val := os.Getenv("ARIS_PASSWORD"); val != "" {
		c.ARISPassword = val
	}
	if val := os.Getenv("BENCHTOOL_DEBUG"); val == "true" || val == "1" {
		c.Debug = true
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	if c.UtilityBillFile == "" {
		errors = append(errors, "utility_bill_file is required")
	}
	if c.OtherDataFile == "" {
		errors = append(errors, "other_data_file is required")
	}
	if c.OutputDir == "" {
		errors = append(errors, "output_dir is required")
	}
	if c.MaxSites < 0 {
		errors = append(errors, "max_sites must be zero (no limit) or positive")
	}

	// Grouping dimensions are resolved against BuildingInfo up front so a
	// typo fails at startup rather than mid-pipeline.
	for _, dim := range c.Groupings {
		if _, err := (BuildingInfo{}).GroupValue(dim); err != nil {
			errors = append(errors, fmt.Sprintf("groupings: unrecognized dimension %q", dim))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// ValidateARIS checks the extra fields an ARIS ingestion run needs.
func (c *Config) ValidateARIS() error {
	var errors []string

	if c.ARISURL == "" {
		errors = append(errors, "aris_url is required")
	}
	if c.ARISUsername == "" {
		errors = append(errors, "aris_username is required")
	}
	if c.ARISPassword == "" {
		errors = append(errors, "aris_password is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
