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
	"time"
)

// RawBillLine is one utility-bill charge as read from the bill export.
// Lines are immutable once read; the pipeline always copies before
// transforming. Usage is the unavailable sentinel for non-metered charges.
type RawBillLine struct {
	SiteID      string    `json:"siteId"`
	From        time.Time `json:"from"`
	Thru        time.Time `json:"thru"`
	ServiceType string    `json:"serviceType"`
	ItemDesc    string    `json:"itemDesc"`
	Usage       float64   `json:"usage"`
	Cost        float64   `json:"cost"`
	Units       string    `json:"units"`
}

// PeriodSplit is one calendar-month piece of a billing period.
// BillFrac values for all pieces of one bill sum to 1.0.
type PeriodSplit struct {
	CalYear    int     `json:"calYear"`
	CalMonth   int     `json:"calMonth"`
	DaysServed float64 `json:"daysServed"`
	BillFrac   float64 `json:"billFrac"`
}

// GroupingFacility tags per-site fact rows; rollup rows carry the name of
// the building attribute they were grouped on instead.
const GroupingFacility = "facility"

// FactRow is one row of the canonical aggregated dataset, unique on
// (Grouping, SiteID, ServiceCategory, CalYear, CalMonth, ItemDesc, Units).
// For rollup rows SiteID holds the group identifier instead of a site.
type FactRow struct {
	Grouping        string  `json:"grouping"`
	SiteID          string  `json:"siteId"`
	ServiceCategory string  `json:"serviceCategory"`
	CalYear         int     `json:"calYear"`
	CalMonth        int     `json:"calMonth"`
	FiscalYear      int     `json:"fiscalYear"`
	FiscalMonth     int     `json:"fiscalMonth"`
	ItemDesc        string  `json:"itemDesc"`
	Units           string  `json:"units"`
	DaysServed      float64 `json:"daysServed"`
	Usage           float64 `json:"usage"`
	Cost            float64 `json:"cost"`
	MMBtu           float64 `json:"mmbtu"`
}

// BuildingInfo is the reference record for one site, loaded once at startup
// and read-only for the run.
type BuildingInfo struct {
	SiteID       string  `json:"siteId"`
	SiteName     string  `json:"siteName"`
	SiteCategory string  `json:"siteCategory"`
	PrimaryFunc  string  `json:"primaryFunc"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	YearBuilt    int     `json:"yearBuilt"`
	SquareFeet   float64 `json:"squareFeet"`
	DDSite       string  `json:"ddSite"`
	OnsiteGen    string  `json:"onsiteGen"`

	// Provider and account metadata keyed by service category, defaulted
	// to empty string when the reference sheet leaves them blank.
	Providers map[string]string `json:"providers,omitempty"`
	Accounts  map[string]string `json:"accounts,omitempty"`
}

// Provider returns the utility provider for a service category, or "".
func (b BuildingInfo) Provider(category string) string {
	return b.Providers[category]
}

// Account returns the account number for a service category, or "".
func (b BuildingInfo) Account(category string) string {
	return b.Accounts[category]
}

// GroupValue returns the value of a rollup grouping dimension for this
// building. Unknown dimension names are a configuration error.
func (b BuildingInfo) GroupValue(dimension string) (string, error) {
	switch dimension {
	case "site_category":
		return b.SiteCategory, nil
	case "primary_func":
		return b.PrimaryFunc, nil
	case "city":
		return b.City, nil
	default:
		return "", &ConfigError{
			Field:   "groupings",
			Message: "unrecognized grouping dimension " + dimension,
		}
	}
}

// BuildingSummary is the display entry used by category groupings.
type BuildingSummary struct {
	SiteID   string `json:"siteId"`
	SiteName string `json:"siteName"`
}

// CategoryGroup is one ownership category with its buildings, sorted by
// display name.
type CategoryGroup struct {
	Category  string            `json:"category"`
	Buildings []BuildingSummary `json:"buildings"`
}

// MonthDegreeDays is one (fiscal year, fiscal month) degree-day lookup
// result. DegreeDays is the unavailable sentinel when the reference series
// has no value for the month.
type MonthDegreeDays struct {
	FiscalYear  int     `json:"fiscalYear"`
	FiscalMonth int     `json:"fiscalMonth"`
	DegreeDays  float64 `json:"degreeDays"`
}

// MetricColumn names a numeric column of the site-year metrics table.
// Rank and share comparisons are computed per column.
type MetricColumn string

const (
	ColTotalMMBtu       MetricColumn = "total_mmbtu"
	ColElectricityMMBtu MetricColumn = "electricity_mmbtu"
	ColHeatMMBtu        MetricColumn = "heat_mmbtu"
	ColTotalCost        MetricColumn = "total_cost"
	ColEUI              MetricColumn = "eui"
	ColECI              MetricColumn = "eci"
	ColSpecificEUI      MetricColumn = "specific_eui"
)

// MetricColumns lists every comparable column in table order.
var MetricColumns = []MetricColumn{
	ColTotalMMBtu,
	ColElectricityMMBtu,
	ColHeatMMBtu,
	ColTotalCost,
	ColEUI,
	ColECI,
	ColSpecificEUI,
}

// ColumnComparison holds a site's portfolio-wide standing for one column:
// rank 1 is the highest value, PortfolioShare is the site's fraction of the
// portfolio total.
type ColumnComparison struct {
	Rank           int     `json:"rank"`
	PortfolioShare float64 `json:"portfolioShare"`
}

// SiteYearMetrics is the per-site, per-fiscal-year summary record.
// Derived ratios are the unavailable sentinel whenever a denominator is
// zero or missing.
type SiteYearMetrics struct {
	SiteID      string  `json:"siteId"`
	FiscalYear  int     `json:"fiscalYear"`
	MonthCount  int     `json:"monthCount"`
	SquareFeet  float64 `json:"squareFeet"`
	DegreeDays  float64 `json:"degreeDays"`
	TotalMMBtu  float64 `json:"totalMmbtu"`
	ElecMMBtu   float64 `json:"electricityMmbtu"`
	HeatMMBtu   float64 `json:"heatMmbtu"`
	TotalCost   float64 `json:"totalCost"`
	EUI         float64 `json:"eui"`
	ECI         float64 `json:"eci"`
	SpecificEUI float64 `json:"specificEui"`

	// Year-over-year percent changes against the prior complete fiscal
	// year; sentinel when either year is incomplete or unavailable.
	EUIChangePct         float64 `json:"euiChangePct"`
	ECIChangePct         float64 `json:"eciChangePct"`
	SpecificEUIChangePct float64 `json:"specificEuiChangePct"`

	Comparisons map[MetricColumn]ColumnComparison `json:"comparisons,omitempty"`
}

// Column returns the value of one comparable metrics column.
func (m SiteYearMetrics) Column(c MetricColumn) float64 {
	switch c {
	case ColTotalMMBtu:
		return m.TotalMMBtu
	case ColElectricityMMBtu:
		return m.ElecMMBtu
	case ColHeatMMBtu:
		return m.HeatMMBtu
	case ColTotalCost:
		return m.TotalCost
	case ColEUI:
		return m.EUI
	case ColECI:
		return m.ECI
	case ColSpecificEUI:
		return m.SpecificEUI
	default:
		return Unavailable()
	}
}

// PortfolioYearMetrics is the "all buildings" row for one fiscal year.
// Ratios are recomputed from summed numerators and denominators, not
// averaged per-site ratios.
type PortfolioYearMetrics struct {
	FiscalYear  int     `json:"fiscalYear"`
	SiteCount   int     `json:"siteCount"`
	SquareFeet  float64 `json:"squareFeet"`
	TotalMMBtu  float64 `json:"totalMmbtu"`
	ElecMMBtu   float64 `json:"electricityMmbtu"`
	HeatMMBtu   float64 `json:"heatMmbtu"`
	TotalCost   float64 `json:"totalCost"`
	DegreeDays  float64 `json:"degreeDays"` // heat-mmbtu-weighted average
	EUI         float64 `json:"eui"`
	ECI         float64 `json:"eci"`
	SpecificEUI float64 `json:"specificEui"`
}

// CohortBand is the 10th/90th percentile band of one metric for one fiscal
// year across the buildings sharing a cohort attribute.
type CohortBand struct {
	FiscalYear int     `json:"fiscalYear"`
	P10        float64 `json:"p10"`
	P90        float64 `json:"p90"`
	Count      int     `json:"count"`
}

// BenchmarkResult bundles everything the metrics engine produces for the
// reporting layer.
type BenchmarkResult struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	SiteYears   []SiteYearMetrics      `json:"siteYears"`
	Portfolio   []PortfolioYearMetrics `json:"portfolio"`
}

// ProcessedData is the snapshot the pipeline hands downstream: the canonical
// fact table plus the moment it was produced. It is also what gets cached
// between runs.
type ProcessedData struct {
	Facts       []FactRow `json:"facts"`
	GeneratedAt time.Time `json:"generatedAt"`
}
