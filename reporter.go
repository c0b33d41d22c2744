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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/xuri/excelize/v2"
)

// Workbook layout names.
const (
	workbookFileName   = "benchmark.xlsx"
	sheetFacts         = "Facts"
	sheetSiteMetrics   = "Site Metrics"
	sheetPortfolioYear = "Portfolio"
)

// Reporter renders the benchmark results: an Excel workbook for analysts
// and a markdown summary for humans. Unavailable values render as blank
// cells; a blank is a statement that the number does not exist, a zero
// would be a lie.
type Reporter struct {
	store  *ReferenceDataStore
	logger *Logger
}

// NewReporter creates a report generator
func NewReporter(store *ReferenceDataStore, logger *Logger) *Reporter {
	return &Reporter{store: store, logger: logger.WithComponent("reporter")}
}

// WriteWorkbook writes the full results workbook into the output directory
// and returns its path.
func (r *Reporter) WriteWorkbook(outputDir string, data *ProcessedData, result *BenchmarkResult) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetFacts)
	f.NewSheet(sheetSiteMetrics)
	f.NewSheet(sheetPortfolioYear)

	if err := r.writeFactsSheet(f, data.Facts); err != nil {
		return "", err
	}
	if err := r.writeSiteMetricsSheet(f, result.SiteYears); err != nil {
		return "", err
	}
	if err := r.writePortfolioSheet(f, result.Portfolio); err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", &StorageError{Operation: "create_output_dir", Path: outputDir, Err: err}
	}
	path := filepath.Join(outputDir, workbookFileName)
	if err := f.SaveAs(path); err != nil {
		return "", &StorageError{Operation: "write_workbook", Path: path, Err: err}
	}

	r.logger.LogStorageOperation("write_workbook", path)
	return path, nil
}

func (r *Reporter) writeFactsSheet(f *excelize.File, facts []FactRow) error {
	header := []interface{}{
		"Grouping", "Site", "Service", "Cal Year", "Cal Month",
		"Fiscal Year", "Fiscal Month", "Item", "Units",
		"Days Served", "Usage", "Cost", "MMBtu",
	}
	if err := f.SetSheetRow(sheetFacts, "A1", &header); err != nil {
		return fmt.Errorf("writing facts header: %w", err)
	}
	for i, fact := range facts {
		row := []interface{}{
			fact.Grouping, fact.SiteID, fact.ServiceCategory,
			fact.CalYear, fact.CalMonth, fact.FiscalYear,
			FiscalMonthLabel(fact.FiscalMonth), fact.ItemDesc, fact.Units,
			fact.DaysServed, fact.Usage, fact.Cost, fact.MMBtu,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetFacts, cell, &row); err != nil {
			return fmt.Errorf("writing facts row %d: %w", i+2, err)
		}
	}
	return nil
}

func (r *Reporter) writeSiteMetricsSheet(f *excelize.File, siteYears []SiteYearMetrics) error {
	header := []interface{}{
		"Site", "Site Name", "Fiscal Year", "Months", "Square Feet",
		"Degree Days", "Total MMBtu", "Electricity MMBtu", "Heat MMBtu",
		"Total Cost", "EUI (kBtu/ft2)", "ECI ($/ft2)", "Specific EUI (Btu/dd/ft2)",
		"EUI Change %", "ECI Change %", "Specific EUI Change %",
		"EUI Rank", "Share of Portfolio MMBtu",
	}
	if err := f.SetSheetRow(sheetSiteMetrics, "A1", &header); err != nil {
		return fmt.Errorf("writing metrics header: %w", err)
	}
	for i, m := range siteYears {
		siteName := m.SiteID
		if b, err := r.store.BuildingInfo(m.SiteID); err == nil {
			siteName = b.SiteName
		}

		var euiRank, mmbtuShare interface{}
		if c, ok := m.Comparisons[ColEUI]; ok {
			euiRank = c.Rank
		}
		if c, ok := m.Comparisons[ColTotalMMBtu]; ok {
			mmbtuShare = c.PortfolioShare
		}

		row := []interface{}{
			m.SiteID, siteName, FiscalYearLabel(m.FiscalYear), m.MonthCount, m.SquareFeet,
			blankIfUnavailable(m.DegreeDays), m.TotalMMBtu, m.ElecMMBtu, m.HeatMMBtu,
			m.TotalCost,
			blankIfUnavailable(m.EUI), blankIfUnavailable(m.ECI), blankIfUnavailable(m.SpecificEUI),
			blankIfUnavailable(m.EUIChangePct), blankIfUnavailable(m.ECIChangePct), blankIfUnavailable(m.SpecificEUIChangePct),
			euiRank, mmbtuShare,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetSiteMetrics, cell, &row); err != nil {
			return fmt.Errorf("writing metrics row %d: %w", i+2, err)
		}
	}
	return nil
}

func (r *Reporter) writePortfolioSheet(f *excelize.File, portfolio []PortfolioYearMetrics) error {
	header := []interface{}{
		"Fiscal Year", "Sites", "Square Feet", "Total MMBtu",
		"Electricity MMBtu", "Heat MMBtu", "Total Cost",
		"Degree Days (heat-weighted)", "EUI (kBtu/ft2)", "ECI ($/ft2)",
		"Specific EUI (Btu/dd/ft2)",
	}
	if err := f.SetSheetRow(sheetPortfolioYear, "A1", &header); err != nil {
		return fmt.Errorf("writing portfolio header: %w", err)
	}
	for i, p := range portfolio {
		row := []interface{}{
			FiscalYearLabel(p.FiscalYear), p.SiteCount, p.SquareFeet, p.TotalMMBtu,
			p.ElecMMBtu, p.HeatMMBtu, p.TotalCost,
			blankIfUnavailable(p.DegreeDays),
			blankIfUnavailable(p.EUI), blankIfUnavailable(p.ECI),
			blankIfUnavailable(p.SpecificEUI),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetPortfolioYear, cell, &row); err != nil {
			return fmt.Errorf("writing portfolio row %d: %w", i+2, err)
		}
	}
	return nil
}

// blankIfUnavailable maps the sentinel to a nil cell value.
func blankIfUnavailable(v float64) interface{} {
	if IsUnavailable(v) {
		return nil
	}
	return v
}

// WriteSummary writes a markdown run summary. An empty path means stdout.
func (r *Reporter) WriteSummary(outputPath string, result *BenchmarkResult) error {
	var writer io.Writer
	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return &StorageError{Operation: "create_summary", Path: outputPath, Err: err}
		}
		defer file.Close()
		writer = file
	}

	r.writeSummaryHeader(writer, result)
	r.writePortfolioSummary(writer, result)
	r.writeCategorySummary(writer)

	if outputPath != "" {
		r.logger.Info("Summary saved", "path", outputPath)
	}
	return nil
}

func (r *Reporter) writeSummaryHeader(w io.Writer, result *BenchmarkResult) {
	fmt.Fprintf(w, "# Utility Benchmark Report\n\n")
	fmt.Fprintf(w, "**Generated:** %s\n\n", result.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**benchtool version:** %s\n\n", GetVersion())
	fmt.Fprintf(w, "---\n\n")
}

func (r *Reporter) writePortfolioSummary(w io.Writer, result *BenchmarkResult) {
	if len(result.Portfolio) == 0 {
		fmt.Fprintf(w, "*No portfolio metrics available.*\n\n")
		return
	}

	fmt.Fprintf(w, "## Portfolio by Fiscal Year\n\n")
	fmt.Fprintf(w, "| Fiscal Year | Sites | Square Feet | Total MMBtu | Total Cost | EUI | ECI |\n")
	fmt.Fprintf(w, "|-------------|-------|-------------|-------------|------------|-----|-----|\n")
	for _, p := range result.Portfolio {
		fmt.Fprintf(w, "| %s | %d | %s | %s | $%s | %s | %s |\n",
			FiscalYearLabel(p.FiscalYear),
			p.SiteCount,
			humanize.Comma(int64(p.SquareFeet)),
			humanize.CommafWithDigits(p.TotalMMBtu, 0),
			humanize.CommafWithDigits(p.TotalCost, 0),
			formatMetric(p.EUI, 1),
			formatMetric(p.ECI, 2),
		)
	}
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writeCategorySummary(w io.Writer) {
	groups := r.store.SiteCategoriesAndBuildings()
	if len(groups) == 0 {
		return
	}

	fmt.Fprintf(w, "## Buildings by Category\n\n")
	for _, group := range groups {
		fmt.Fprintf(w, "- **%s**: %d buildings\n", group.Category, len(group.Buildings))
	}
	fmt.Fprintf(w, "\n")
}

// formatMetric renders a metric value or a dash when unavailable.
func formatMetric(v float64, digits int) string {
	if IsUnavailable(v) {
		return "-"
	}
	return humanize.CommafWithDigits(v, digits)
}
