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
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FactStore persists the fact table and the derived metrics to SQLite so
// downstream analysis (BI tools, ad-hoc queries) does not have to re-run
// the pipeline. Unavailable metric values are stored as NULL.
type FactStore struct {
	conn   *sql.DB
	logger *Logger
}

// OpenFactStore opens (creating if needed) the facts database and ensures
// the schema exists. Each run replaces the previous contents.
func OpenFactStore(dbPath string, logger *Logger) (*FactStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StorageError{Operation: "create_db_dir", Path: dbPath, Err: err}
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &StorageError{Operation: "open_database", Path: dbPath, Err: err}
	}

	store := &FactStore{conn: conn, logger: logger.WithComponent("store")}
	if err := store.initSchema(); err != nil {
		conn.Close()
		return nil, &StorageError{Operation: "init_schema", Path: dbPath, Err: err}
	}

	logger.LogStorageOperation("open_database", dbPath)
	return store, nil
}

// Close closes the database connection
func (s *FactStore) Close() error {
	return s.conn.Close()
}

func (s *FactStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS facts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		grouping TEXT NOT NULL,
		site_id TEXT NOT NULL,
		service_category TEXT NOT NULL,
		cal_year INTEGER NOT NULL,
		cal_month INTEGER NOT NULL,
		fiscal_year INTEGER NOT NULL,
		fiscal_month INTEGER NOT NULL,
		item_desc TEXT NOT NULL,
		units TEXT NOT NULL,
		days_served REAL NOT NULL,
		usage REAL NOT NULL,
		cost REAL NOT NULL,
		mmbtu REAL NOT NULL,
		UNIQUE(grouping, site_id, service_category, cal_year, cal_month, item_desc, units)
	);
	CREATE INDEX IF NOT EXISTS idx_facts_site ON facts(site_id);
	CREATE INDEX IF NOT EXISTS idx_facts_fiscal ON facts(fiscal_year, fiscal_month);
	CREATE INDEX IF NOT EXISTS idx_facts_grouping ON facts(grouping);

	CREATE TABLE IF NOT EXISTS site_year_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_id TEXT NOT NULL,
		fiscal_year INTEGER NOT NULL,
		month_count INTEGER NOT NULL,
		square_feet REAL NOT NULL,
		degree_days REAL,
		total_mmbtu REAL NOT NULL,
		electricity_mmbtu REAL NOT NULL,
		heat_mmbtu REAL NOT NULL,
		total_cost REAL NOT NULL,
		eui REAL,
		eci REAL,
		specific_eui REAL,
		eui_change_pct REAL,
		eci_change_pct REAL,
		specific_eui_change_pct REAL,
		UNIQUE(site_id, fiscal_year)
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_fiscal ON site_year_metrics(fiscal_year);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		generated_at TEXT NOT NULL,
		fact_count INTEGER NOT NULL,
		site_year_count INTEGER NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// ReplaceFacts replaces the facts table contents in one transaction.
func (s *FactStore) ReplaceFacts(facts []FactRow) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM facts`); err != nil {
		return fmt.Errorf("clearing facts: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO facts (grouping, site_id, service_category, cal_year, cal_month,
		fiscal_year, fiscal_month, item_desc, units, days_served, usage, cost, mmbtu)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range facts {
		_, err := stmt.Exec(f.Grouping, f.SiteID, f.ServiceCategory, f.CalYear, f.CalMonth,
			f.FiscalYear, f.FiscalMonth, f.ItemDesc, f.Units, f.DaysServed, f.Usage, f.Cost, f.MMBtu)
		if err != nil {
			return fmt.Errorf("inserting fact row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing facts: %w", err)
	}

	s.logger.LogDataLoaded("facts_persisted", len(facts))
	return nil
}

// ReplaceSiteYearMetrics replaces the metrics table contents. Unavailable
// values become NULL so SQL aggregates skip them naturally.
func (s *FactStore) ReplaceSiteYearMetrics(rows []SiteYearMetrics) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM site_year_metrics`); err != nil {
		return fmt.Errorf("clearing metrics: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO site_year_metrics (site_id, fiscal_year, month_count, square_feet,
		degree_days, total_mmbtu, electricity_mmbtu, heat_mmbtu, total_cost,
		eui, eci, specific_eui, eui_change_pct, eci_change_pct, specific_eui_change_pct)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range rows {
		_, err := stmt.Exec(m.SiteID, m.FiscalYear, m.MonthCount, m.SquareFeet,
			nullable(m.DegreeDays), m.TotalMMBtu, m.ElecMMBtu, m.HeatMMBtu, m.TotalCost,
			nullable(m.EUI), nullable(m.ECI), nullable(m.SpecificEUI),
			nullable(m.EUIChangePct), nullable(m.ECIChangePct), nullable(m.SpecificEUIChangePct))
		if err != nil {
			return fmt.Errorf("inserting metrics row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing metrics: %w", err)
	}

	s.logger.LogDataLoaded("site_year_metrics_persisted", len(rows))
	return nil
}

// RecordRun appends a row to the run log.
func (s *FactStore) RecordRun(generatedAt time.Time, factCount, siteYearCount int) error {
	_, err := s.conn.Exec(
		`INSERT INTO runs (generated_at, fact_count, site_year_count) VALUES (?, ?, ?)`,
		generatedAt.UTC().Format(time.RFC3339), factCount, siteYearCount,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// SiteFacts retrieves the facility facts for one site ordered by fiscal
// period, for ad-hoc inspection and tests.
func (s *FactStore) SiteFacts(siteID string) ([]FactRow, error) {
	rows, err := s.conn.Query(`
	SELECT grouping, site_id, service_category, cal_year, cal_month,
		fiscal_year, fiscal_month, item_desc, units, days_served, usage, cost, mmbtu
	FROM facts
	WHERE site_id = ? AND grouping = ?
	ORDER BY fiscal_year, fiscal_month, service_category, item_desc
	`, siteID, GroupingFacility)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()
	return scanFactRows(rows)
}

// FactsForGrouping retrieves every row of one grouping kind, the rollup
// counterpart of SiteFacts.
func (s *FactStore) FactsForGrouping(grouping string) ([]FactRow, error) {
	rows, err := s.conn.Query(`
	SELECT grouping, site_id, service_category, cal_year, cal_month,
		fiscal_year, fiscal_month, item_desc, units, days_served, usage, cost, mmbtu
	FROM facts
	WHERE grouping = ?
	ORDER BY site_id, fiscal_year, fiscal_month, service_category, item_desc
	`, grouping)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()
	return scanFactRows(rows)
}

// FiscalYearFacts retrieves the facility facts for one fiscal year across
// all sites.
func (s *FactStore) FiscalYearFacts(fiscalYear int) ([]FactRow, error) {
	rows, err := s.conn.Query(`
	SELECT grouping, site_id, service_category, cal_year, cal_month,
		fiscal_year, fiscal_month, item_desc, units, days_served, usage, cost, mmbtu
	FROM facts
	WHERE fiscal_year = ? AND grouping = ?
	ORDER BY site_id, fiscal_month, service_category, item_desc
	`, fiscalYear, GroupingFacility)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()
	return scanFactRows(rows)
}

func scanFactRows(rows *sql.Rows) ([]FactRow, error) {
	var results []FactRow
	for rows.Next() {
		var f FactRow
		if err := rows.Scan(&f.Grouping, &f.SiteID, &f.ServiceCategory, &f.CalYear, &f.CalMonth,
			&f.FiscalYear, &f.FiscalMonth, &f.ItemDesc, &f.Units, &f.DaysServed, &f.Usage, &f.Cost, &f.MMBtu); err != nil {
			return nil, fmt.Errorf("scanning fact row: %w", err)
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

// nullable converts the unavailable sentinel to a SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	if IsUnavailable(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
