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
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	outputDir := flag.String("output", "", "Output directory (overrides config)")
	arisMode := flag.Bool("aris", false, "Fetch bill records from the ARIS API instead of benchmarking")
	useCached := flag.Bool("cached", false, "Reuse the processed data from the last run if inputs are unchanged")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("benchtool %s\n", GetVersion())
		os.Exit(0)
	}

	// Initialize logger
	logger := NewLogger(*debug)
	logger.Info("Starting benchtool", "version", GetVersion())

	// Load configuration
	logger.Info("Loading configuration", "config_file", *configPath)
	config, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Override with command-line flags
	if *outputDir != "" {
		config.OutputDir = *outputDir
	}
	if *useCached {
		config.UseDataFromLastRun = true
	}
	if *debug {
		config.Debug = true
		logger = NewLogger(true)
	}

	if *arisMode {
		if err := runARISIngestion(config, logger); err != nil {
			logger.Error("ARIS ingestion failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runBenchmark(config, logger); err != nil {
		logger.Error("Benchmark run failed", "error", err)
		os.Exit(1)
	}
}

// runARISIngestion fetches the bill history from the ARIS API and writes
// the bill CSV and building workbook that a later benchmark run consumes.
func runARISIngestion(config *Config, logger *Logger) error {
	if err := config.ValidateARIS(); err != nil {
		return err
	}

	client := NewARISClient(config, logger)

	buildings, err := client.GetBuildingList()
	if err != nil {
		return err
	}

	lines, err := client.FetchAllRecords(buildings)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return &StorageError{Operation: "create_output_dir", Path: config.OutputDir, Err: err}
	}

	billPath := filepath.Join(config.OutputDir, "aris_records.csv")
	if err := WriteBillFile(billPath, lines, logger); err != nil {
		return err
	}
	if _, err := WriteBuildingWorkbook(config.OutputDir, buildings, logger); err != nil {
		return err
	}

	logger.UserMessage("Wrote %d bill records to %s", len(lines), billPath)
	return nil
}

// runBenchmark is the main path: aggregate the bill data, persist the
// facts, compute metrics, and emit the workbook, summary and charts.
func runBenchmark(config *Config, logger *Logger) error {
	if err := config.Validate(); err != nil {
		return err
	}
	logger.Info("Configuration loaded successfully")

	// The reference workbook is a hard requirement: there is no degraded
	// mode without building areas and fuel energy content.
	store, err := LoadReferenceData(config.OtherDataFile, logger)
	if err != nil {
		return err
	}

	data, err := processedFacts(config, store, logger)
	if err != nil {
		return err
	}

	factStore, err := OpenFactStore(config.FactsDB, logger)
	if err != nil {
		return err
	}
	defer factStore.Close()

	if err := factStore.ReplaceFacts(data.Facts); err != nil {
		return err
	}

	engine := NewMetricsEngine(store, logger)
	result, err := engine.Benchmark(data.Facts)
	if err != nil {
		return err
	}

	if err := factStore.ReplaceSiteYearMetrics(result.SiteYears); err != nil {
		return err
	}
	if err := factStore.RecordRun(result.GeneratedAt, len(data.Facts), len(result.SiteYears)); err != nil {
		return err
	}

	reporter := NewReporter(store, logger)
	workbookPath, err := reporter.WriteWorkbook(config.OutputDir, data, result)
	if err != nil {
		return err
	}
	summaryPath := filepath.Join(config.OutputDir, "summary.md")
	if err := reporter.WriteSummary(summaryPath, result); err != nil {
		return err
	}

	if err := renderSiteCharts(config, store, engine, data, result, logger); err != nil {
		return err
	}

	logger.UserMessage("Benchmark complete: %s", workbookPath)
	return nil
}

// processedFacts returns the cached fact table when allowed and fresh,
// otherwise runs the pipeline and refreshes the cache.
func processedFacts(config *Config, store *ReferenceDataStore, logger *Logger) (*ProcessedData, error) {
	cache := NewSnapshotCache(config.OutputDir, logger)

	if config.UseDataFromLastRun {
		if data, ok := cache.Load(config.UtilityBillFile, config.OtherDataFile); ok {
			logger.Info("Using processed data from last run")
			return data, nil
		}
		logger.Info("No usable cached data, processing from source")
	}

	lines, err := ReadBillFile(config.UtilityBillFile, logger)
	if err != nil {
		return nil, err
	}

	pipeline := NewPipeline(store, config.Groupings, logger)
	data, err := pipeline.Process(lines)
	if err != nil {
		return nil, err
	}

	if err := cache.Store(data, config.UtilityBillFile, config.OtherDataFile); err != nil {
		logger.Warn("Failed to cache processed data", "error", err)
	}
	return data, nil
}

// renderSiteCharts draws the per-building charts, honoring the max-sites
// cutoff used for quick partial runs.
func renderSiteCharts(config *Config, store *ReferenceDataStore, engine *MetricsEngine, data *ProcessedData, result *BenchmarkResult, logger *Logger) error {
	charts := NewChartGenerator(config.OutputDir, engine, logger)

	sites := store.AllSites()
	if config.MaxSites > 0 && len(sites) > config.MaxSites {
		logger.Info("Limiting chart generation", "max_sites", config.MaxSites)
		sites = sites[:config.MaxSites]
	}

	for i, siteID := range sites {
		logger.LogSiteProgress(siteID, i+1, len(sites))

		if _, err := charts.GenerateMonthlyUsageChart(siteID, data.Facts); err != nil {
			logger.Debug("Skipping usage chart", "site_id", siteID, "reason", err)
		}
		if _, err := charts.GenerateEUITrendChart(siteID, result.SiteYears); err != nil {
			logger.Debug("Skipping EUI trend chart", "site_id", siteID, "reason", err)
		}
	}
	return nil
}
