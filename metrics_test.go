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
	"math"
	"testing"
)

// yearOfFacts emits one facility fact per fiscal month for one category.
func yearOfFacts(siteID string, fiscalYear int, category string, monthlyMMBtu, monthlyCost float64, months int) []FactRow {
	var facts []FactRow
	for fm := 1; fm <= months; fm++ {
		calYear, calMonth := FiscalToCalendar(fiscalYear, fm)
		facts = append(facts, FactRow{
			Grouping:        GroupingFacility,
			SiteID:          siteID,
			ServiceCategory: category,
			CalYear:         calYear,
			CalMonth:        calMonth,
			FiscalYear:      fiscalYear,
			FiscalMonth:     fm,
			ItemDesc:        "Energy",
			Units:           "-",
			DaysServed:      30,
			Usage:           monthlyMMBtu,
			Cost:            monthlyCost,
			MMBtu:           monthlyMMBtu,
		})
	}
	return facts
}

func siteYear(t *testing.T, result *BenchmarkResult, siteID string, fiscalYear int) SiteYearMetrics {
	t.Helper()
	for _, row := range result.SiteYears {
		if row.SiteID == siteID && row.FiscalYear == fiscalYear {
			return row
		}
	}
	t.Fatalf("no site-year row for %s FY %d", siteID, fiscalYear)
	return SiteYearMetrics{}
}

func TestBenchmarkSiteYear(t *testing.T) {
	engine := NewMetricsEngine(testStore(), testLogger())

	var facts []FactRow
	facts = append(facts, yearOfFacts("01", 2022, "electricity", 10, 1000, 12)...)
	facts = append(facts, yearOfFacts("01", 2022, "natural_gas", 20, 800, 12)...)
	// water is a non-energy category and must not count
	facts = append(facts, yearOfFacts("01", 2022, "water", 5, 100, 12)...)

	result, err := engine.Benchmark(facts)
	if err != nil {
		t.Fatalf("Benchmark returned error: %v", err)
	}

	row := siteYear(t, result, "01", 2022)
	if row.MonthCount != 12 {
		t.Errorf("month count = %d, want 12", row.MonthCount)
	}
	if math.Abs(row.TotalMMBtu-360) > 1e-9 {
		t.Errorf("total mmbtu = %v, want 360", row.TotalMMBtu)
	}
	if math.Abs(row.ElecMMBtu-120) > 1e-9 {
		t.Errorf("electricity mmbtu = %v, want 120", row.ElecMMBtu)
	}
	if math.Abs(row.HeatMMBtu-240) > 1e-9 {
		t.Errorf("heat mmbtu = %v, want 240", row.HeatMMBtu)
	}
	if math.Abs(row.TotalCost-21600) > 1e-9 {
		t.Errorf("total cost = %v, want 21600", row.TotalCost)
	}

	// 50,000 ft2, 12,000 degree days (testStore DD1, FY 2022).
	if math.Abs(row.EUI-360*1000.0/50000) > 1e-9 {
		t.Errorf("EUI = %v, want %v", row.EUI, 360*1000.0/50000)
	}
	if math.Abs(row.ECI-21600.0/50000) > 1e-9 {
		t.Errorf("ECI = %v, want %v", row.ECI, 21600.0/50000)
	}
	wantSpecific := 240e6 / 12000 / 50000
	if math.Abs(row.SpecificEUI-wantSpecific) > 1e-9 {
		t.Errorf("specific EUI = %v, want %v", row.SpecificEUI, wantSpecific)
	}
}

func TestBenchmarkZeroAreaSite(t *testing.T) {
	engine := NewMetricsEngine(testStore(), testLogger())
	facts := yearOfFacts("03", 2022, "electricity", 10, 100, 12)

	result, err := engine.Benchmark(facts)
	if err != nil {
		t.Fatalf("Benchmark returned error: %v", err)
	}

	row := siteYear(t, result, "03", 2022)
	if !IsUnavailable(row.EUI) || !IsUnavailable(row.ECI) {
		t.Errorf("intensities for zero-area site = %v/%v, want unavailable", row.EUI, row.ECI)
	}
	// Absolute totals are still reported.
	if math.Abs(row.TotalMMBtu-120) > 1e-9 {
		t.Errorf("total mmbtu = %v, want 120", row.TotalMMBtu)
	}
}

func TestBenchmarkYearOverYearGating(t *testing.T) {
	engine := NewMetricsEngine(testStore(), testLogger())

	var facts []FactRow
	facts = append(facts, yearOfFacts("01", 2022, "electricity", 10, 100, 12)...)
	facts = append(facts, yearOfFacts("01", 2023, "electricity", 12, 120, 12)...)
	// Site 02 has a partial prior year: no trend for FY 2023.
	facts = append(facts, yearOfFacts("02", 2022, "electricity", 10, 100, 7)...)
	facts = append(facts, yearOfFacts("02", 2023, "electricity", 12, 120, 12)...)

	result, err := engine.Benchmark(facts)
	if err != nil {
		t.Fatalf("Benchmark returned error: %v", err)
	}

	complete := siteYear(t, result, "01", 2023)
	if math.Abs(complete.EUIChangePct-20) > 1e-9 {
		t.Errorf("EUI change = %v, want 20", complete.EUIChangePct)
	}

	gated := siteYear(t, result, "02", 2023)
	if !IsUnavailable(gated.EUIChangePct) {
		t.Errorf("EUI change with partial prior year = %v, want unavailable", gated.EUIChangePct)
	}

	first := siteYear(t, result, "01", 2022)
	if !IsUnavailable(first.EUIChangePct) {
		t.Errorf("EUI change with no prior year = %v, want unavailable", first.EUIChangePct)
	}
}

func TestBenchmarkPortfolio(t *testing.T) {
	engine := NewMetricsEngine(testStore(), testLogger())

	var facts []FactRow
	facts = append(facts, yearOfFacts("01", 2022, "electricity", 10, 100, 12)...)
	facts = append(facts, yearOfFacts("01", 2022, "natural_gas", 20, 200, 12)...)
	facts = append(facts, yearOfFacts("02", 2022, "electricity", 5, 50, 12)...)
	// Site 03 has zero square feet and stays out of the portfolio.
	facts = append(facts, yearOfFacts("03", 2022, "electricity", 50, 500, 12)...)

	result, err := engine.Benchmark(facts)
	if err != nil {
		t.Fatalf("Benchmark returned error: %v", err)
	}

	if len(result.Portfolio) != 1 {
		t.Fatalf("got %d portfolio rows, want 1", len(result.Portfolio))
	}
	p := result.Portfolio[0]
	if p.FiscalYear != 2022 {
		t.Errorf("fiscal year = %d, want 2022", p.FiscalYear)
	}
	if p.SiteCount != 2 {
		t.Errorf("site count = %d, want 2 (zero-area site excluded)", p.SiteCount)
	}
	if math.Abs(p.SquareFeet-70000) > 1e-9 {
		t.Errorf("square feet = %v, want 70000", p.SquareFeet)
	}
	if math.Abs(p.TotalMMBtu-420) > 1e-9 {
		t.Errorf("total mmbtu = %v, want 420", p.TotalMMBtu)
	}

	// Only site 01 burned heating fuel; its degree days carry full weight
	// even though site 02's year is poisoned by a missing month.
	if math.Abs(p.DegreeDays-12000) > 1e-9 {
		t.Errorf("portfolio degree days = %v, want 12000", p.DegreeDays)
	}

	if math.Abs(p.EUI-420*1000/70000) > 1e-9 {
		t.Errorf("portfolio EUI = %v, want %v", p.EUI, 420*1000.0/70000)
	}
}

func TestBenchmarkRankingsAndShares(t *testing.T) {
	engine := NewMetricsEngine(testStore(), testLogger())

	var facts []FactRow
	facts = append(facts, yearOfFacts("01", 2022, "electricity", 30, 300, 12)...)
	facts = append(facts, yearOfFacts("02", 2022, "electricity", 10, 100, 12)...)

	result, err := engine.Benchmark(facts)
	if err != nil {
		t.Fatalf("Benchmark returned error: %v", err)
	}

	big := siteYear(t, result, "01", 2022)
	small := siteYear(t, result, "02", 2022)

	if big.Comparisons[ColTotalMMBtu].Rank != 1 {
		t.Errorf("largest consumer rank = %d, want 1", big.Comparisons[ColTotalMMBtu].Rank)
	}
	if small.Comparisons[ColTotalMMBtu].Rank != 2 {
		t.Errorf("smaller consumer rank = %d, want 2", small.Comparisons[ColTotalMMBtu].Rank)
	}

	if share := big.Comparisons[ColTotalMMBtu].PortfolioShare; math.Abs(share-0.75) > 1e-9 {
		t.Errorf("share = %v, want 0.75", share)
	}
}

func TestCohortBands(t *testing.T) {
	engine := NewMetricsEngine(testStore(), testLogger())

	// Sites 01 and 03 share the Borough category, but 03 has no area and
	// therefore no EUI, so the cohort band collapses to site 01 alone.
	var facts []FactRow
	facts = append(facts, yearOfFacts("01", 2022, "electricity", 30, 300, 12)...)
	facts = append(facts, yearOfFacts("03", 2022, "electricity", 10, 100, 12)...)

	result, err := engine.Benchmark(facts)
	if err != nil {
		t.Fatalf("Benchmark returned error: %v", err)
	}

	bands, err := engine.CohortBands(result.SiteYears, ColEUI, "site_category", "01")
	if err != nil {
		t.Fatalf("CohortBands returned error: %v", err)
	}
	if len(bands) != 1 {
		t.Fatalf("got %d bands, want 1", len(bands))
	}
	if bands[0].Count != 1 {
		t.Errorf("cohort count = %d, want 1", bands[0].Count)
	}
	if bands[0].P10 != bands[0].P90 {
		t.Errorf("singleton band P10 %v != P90 %v", bands[0].P10, bands[0].P90)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{0.5, 30},
		{1, 50},
		{0.1, 14},
		{0.9, 46},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if !IsUnavailable(percentile(nil, 0.5)) {
		t.Error("empty sample should be unavailable")
	}
}
