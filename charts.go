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
	"os"
	"path/filepath"
	"sort"

	charts "github.com/vicanso/go-charts/v2"
)

// imagesDirName is the subdirectory of the output dir holding chart PNGs.
const imagesDirName = "images"

// ChartGenerator renders per-building trend charts as PNG files.
type ChartGenerator struct {
	theme   string
	dir     string
	metrics *MetricsEngine
	logger  *Logger
}

// NewChartGenerator creates a chart generator writing under outputDir.
func NewChartGenerator(outputDir string, metrics *MetricsEngine, logger *Logger) *ChartGenerator {
	return &ChartGenerator{
		theme:   "light",
		dir:     filepath.Join(outputDir, imagesDirName),
		metrics: metrics,
		logger:  logger.WithComponent("charts"),
	}
}

// GenerateMonthlyUsageChart renders one building's monthly energy use over
// the whole fact history, one line per energy category, months on the x
// axis in fiscal order.
func (cg *ChartGenerator) GenerateMonthlyUsageChart(siteID string, facts []FactRow) (string, error) {
	type monthKey struct {
		fiscalYear  int
		fiscalMonth int
	}

	byCategory := map[string]map[monthKey]float64{}
	monthSet := map[monthKey]bool{}
	for _, fact := range facts {
		if fact.Grouping != GroupingFacility || fact.SiteID != siteID || fact.MMBtu == 0 {
			continue
		}
		key := monthKey{fact.FiscalYear, fact.FiscalMonth}
		monthSet[key] = true
		series, ok := byCategory[fact.ServiceCategory]
		if !ok {
			series = map[monthKey]float64{}
			byCategory[fact.ServiceCategory] = series
		}
		series[key] += fact.MMBtu
	}
	if len(monthSet) == 0 {
		return "", fmt.Errorf("no energy data for site %s", siteID)
	}

	months := make([]monthKey, 0, len(monthSet))
	for key := range monthSet {
		months = append(months, key)
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].fiscalYear != months[j].fiscalYear {
			return months[i].fiscalYear < months[j].fiscalYear
		}
		return months[i].fiscalMonth < months[j].fiscalMonth
	})

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var labels []string
	for _, m := range months {
		labels = append(labels, fmt.Sprintf("%s %d", FiscalMonthLabel(m.fiscalMonth), m.fiscalYear))
	}

	values := [][]float64{}
	legendLabels := []string{}
	for _, cat := range categories {
		var series []float64
		for _, m := range months {
			series = append(series, byCategory[cat][m])
		}
		values = append(values, series)
		legendLabels = append(legendLabels, cat+" (MMBtu)")
	}

	return cg.render(
		fmt.Sprintf("%s_monthly_usage.png", siteID),
		values, labels, legendLabels,
		fmt.Sprintf("Monthly Energy Use: %s", siteID),
	)
}

// GenerateEUITrendChart renders a building's annual EUI against the
// P10/P90 band of its site-category cohort.
func (cg *ChartGenerator) GenerateEUITrendChart(siteID string, siteYears []SiteYearMetrics) (string, error) {
	bands, err := cg.metrics.CohortBands(siteYears, ColEUI, "site_category", siteID)
	if err != nil {
		return "", err
	}

	byYear := map[int]float64{}
	for _, row := range siteYears {
		if row.SiteID == siteID && !IsUnavailable(row.EUI) {
			byYear[row.FiscalYear] = row.EUI
		}
	}
	if len(byYear) == 0 {
		return "", fmt.Errorf("no EUI data for site %s", siteID)
	}

	bandByYear := map[int]CohortBand{}
	for _, band := range bands {
		bandByYear[band.FiscalYear] = band
	}

	years := make([]int, 0, len(byYear))
	for fy := range byYear {
		years = append(years, fy)
	}
	sort.Ints(years)

	var labels []string
	var site, p10, p90 []float64
	for _, fy := range years {
		labels = append(labels, FiscalYearLabel(fy))
		site = append(site, byYear[fy])
		band := bandByYear[fy]
		p10 = append(p10, band.P10)
		p90 = append(p90, band.P90)
	}

	values := [][]float64{site, p10, p90}
	legendLabels := []string{"Site EUI", "Cohort P10", "Cohort P90"}

	return cg.render(
		fmt.Sprintf("%s_eui_trend.png", siteID),
		values, labels, legendLabels,
		fmt.Sprintf("EUI Trend: %s", siteID),
	)
}

// render draws one line chart and writes it to disk, returning the path.
func (cg *ChartGenerator) render(fileName string, values [][]float64, labels, legendLabels []string, title string) (string, error) {
	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc(title),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legendLabels, charts.PositionRight),
		charts.ThemeOptionFunc(cg.theme),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return "", fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	if err := os.MkdirAll(cg.dir, 0o755); err != nil {
		return "", &StorageError{Operation: "create_images_dir", Path: cg.dir, Err: err}
	}
	path := filepath.Join(cg.dir, fileName)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", &StorageError{Operation: "write_chart", Path: path, Err: err}
	}

	cg.logger.LogStorageOperation("write_chart", path)
	return path, nil
}
