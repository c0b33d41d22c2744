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
	"sort"
	"sync"
	"time"
)

// completeYearMonths is the month count a fiscal year needs before its
// normalized metrics are compared year over year. Partial years still get
// their own row, they just never anchor a trend.
const completeYearMonths = 12

// MetricsEngine derives per-building and portfolio benchmarking metrics
// from the fact table. All energy figures are restricted to service
// categories with positive Btu content; stormwater, refuse and similar
// non-energy services never leak into an EUI.
type MetricsEngine struct {
	store  *ReferenceDataStore
	logger *Logger
}

func NewMetricsEngine(store *ReferenceDataStore, logger *Logger) *MetricsEngine {
	return &MetricsEngine{store: store, logger: logger}
}

// siteYearKey identifies one building's fiscal year.
type siteYearKey struct {
	siteID     string
	fiscalYear int
}

// Benchmark computes site-year metrics, portfolio rows, rankings and
// portfolio shares from facility-level facts. Rollup rows are ignored;
// they answer reporting questions, not benchmarking ones.
func (e *MetricsEngine) Benchmark(facts []FactRow) (*BenchmarkResult, error) {
	accum, err := e.accumulate(facts)
	if err != nil {
		return nil, err
	}

	siteYears, err := e.siteYearMetrics(accum)
	if err != nil {
		return nil, err
	}

	attachYearOverYear(siteYears)
	attachComparisons(siteYears)
	portfolio := e.portfolioMetrics(siteYears)

	e.logger.LogStage("benchmark")
	return &BenchmarkResult{
		GeneratedAt: time.Now(),
		SiteYears:   siteYears,
		Portfolio:   portfolio,
	}, nil
}

// yearAccum collects one site-year's raw sums before ratio derivation.
type yearAccum struct {
	totalMMBtu float64
	elecMMBtu  float64
	totalCost  float64
	months     map[[2]int]struct{}
}

// accumulate sums energy-category facility facts per (site, fiscal year).
func (e *MetricsEngine) accumulate(facts []FactRow) (map[siteYearKey]*yearAccum, error) {
	energy := map[string]struct{}{}
	for _, cat := range e.store.EnergyCategories() {
		energy[cat] = struct{}{}
	}

	accum := map[siteYearKey]*yearAccum{}
	for _, fact := range facts {
		if fact.Grouping != GroupingFacility {
			continue
		}
		if _, ok := energy[fact.ServiceCategory]; !ok {
			continue
		}

		key := siteYearKey{fact.SiteID, fact.FiscalYear}
		a, ok := accum[key]
		if !ok {
			a = &yearAccum{months: map[[2]int]struct{}{}}
			accum[key] = a
		}
		a.totalMMBtu += fact.MMBtu
		a.totalCost += fact.Cost
		if fact.ServiceCategory == CategoryElectricity {
			a.elecMMBtu += fact.MMBtu
		}
		a.months[[2]int{fact.CalYear, fact.CalMonth}] = struct{}{}
	}
	return accum, nil
}

// siteYearMetrics turns accumulated sums into metric rows. Degree-day
// lookups dominate the cost here, so sites are fanned out to goroutines;
// each site's years are independent of every other site's.
func (e *MetricsEngine) siteYearMetrics(accum map[siteYearKey]*yearAccum) ([]SiteYearMetrics, error) {
	bySite := map[string][]siteYearKey{}
	for key := range accum {
		bySite[key.siteID] = append(bySite[key.siteID], key)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		out     []SiteYearMetrics
		loadErr error
	)
	for siteID, keys := range bySite {
		wg.Add(1)
		go func(siteID string, keys []siteYearKey) {
			defer wg.Done()
			rows, err := e.siteMetrics(siteID, keys, accum)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if loadErr == nil {
					loadErr = err
				}
				return
			}
			out = append(out, rows...)
		}(siteID, keys)
	}
	wg.Wait()
	if loadErr != nil {
		return nil, loadErr
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SiteID != out[j].SiteID {
			return out[i].SiteID < out[j].SiteID
		}
		return out[i].FiscalYear < out[j].FiscalYear
	})
	return out, nil
}

// siteMetrics computes every fiscal-year row for one building.
func (e *MetricsEngine) siteMetrics(siteID string, keys []siteYearKey, accum map[siteYearKey]*yearAccum) ([]SiteYearMetrics, error) {
	building, err := e.store.BuildingInfo(siteID)
	if err != nil {
		return nil, err
	}

	degreeDays, err := e.store.DegreeDaysYearly(fiscalPairs(keys), siteID)
	if err != nil {
		return nil, err
	}

	rows := make([]SiteYearMetrics, 0, len(keys))
	for _, key := range keys {
		a := accum[key]
		dd, ok := degreeDays[key.fiscalYear]
		if !ok {
			dd = Unavailable()
		}

		heat := a.totalMMBtu - a.elecMMBtu
		row := SiteYearMetrics{
			SiteID:      siteID,
			FiscalYear:  key.fiscalYear,
			MonthCount:  len(a.months),
			SquareFeet:  building.SquareFeet,
			DegreeDays:  dd,
			TotalMMBtu:  a.totalMMBtu,
			ElecMMBtu:   a.elecMMBtu,
			HeatMMBtu:   heat,
			TotalCost:   a.totalCost,
			EUI:         SafeDiv(a.totalMMBtu*1000, building.SquareFeet),
			ECI:         SafeDiv(a.totalCost, building.SquareFeet),
			SpecificEUI: SafeDiv(SafeDiv(heat*1e6, dd), building.SquareFeet),
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// fiscalPairs expands site-year keys into every (fiscal year, fiscal month)
// pair the degree-day lookup needs.
func fiscalPairs(keys []siteYearKey) [][2]int {
	var pairs [][2]int
	for _, key := range keys {
		pairs = append(pairs, FiscalYearMonths(key.fiscalYear)...)
	}
	return pairs
}

// attachYearOverYear fills the change columns. A trend is only reported
// when both the current and the prior fiscal year cover all twelve months;
// comparing a partial year against a full one reports noise as signal.
func attachYearOverYear(siteYears []SiteYearMetrics) {
	index := map[siteYearKey]int{}
	for i, row := range siteYears {
		index[siteYearKey{row.SiteID, row.FiscalYear}] = i
	}

	for i := range siteYears {
		row := &siteYears[i]
		row.EUIChangePct = Unavailable()
		row.ECIChangePct = Unavailable()
		row.SpecificEUIChangePct = Unavailable()

		if row.MonthCount < completeYearMonths {
			continue
		}
		j, ok := index[siteYearKey{row.SiteID, row.FiscalYear - 1}]
		if !ok || siteYears[j].MonthCount < completeYearMonths {
			continue
		}
		prev := siteYears[j]
		row.EUIChangePct = PctChange(row.EUI, prev.EUI)
		row.ECIChangePct = PctChange(row.ECI, prev.ECI)
		row.SpecificEUIChangePct = PctChange(row.SpecificEUI, prev.SpecificEUI)
	}
}

// attachComparisons computes per-column ranks and portfolio shares within
// each fiscal year. Rank 1 is the largest value; rows whose value is
// unavailable get no comparison entry for that column.
func attachComparisons(siteYears []SiteYearMetrics) {
	byYear := map[int][]int{}
	for i, row := range siteYears {
		byYear[row.FiscalYear] = append(byYear[row.FiscalYear], i)
	}

	for _, indices := range byYear {
		for _, col := range MetricColumns {
			type valued struct {
				index int
				value float64
			}
			var ranked []valued
			total := 0.0
			for _, i := range indices {
				v := siteYears[i].Column(col)
				if IsUnavailable(v) {
					continue
				}
				ranked = append(ranked, valued{i, v})
				total += v
			}
			sort.Slice(ranked, func(a, b int) bool {
				return ranked[a].value > ranked[b].value
			})
			for rank, rv := range ranked {
				row := &siteYears[rv.index]
				if row.Comparisons == nil {
					row.Comparisons = map[MetricColumn]ColumnComparison{}
				}
				row.Comparisons[col] = ColumnComparison{
					Rank:           rank + 1,
					PortfolioShare: SafeDiv(rv.value, total),
				}
			}
		}
	}
}

// portfolioMetrics builds the "all buildings" row per fiscal year. Ratios
// come from summed numerators over summed denominators, so large buildings
// weigh in proportionally; averaging per-site ratios would not. The
// portfolio degree-day figure is the heat-weighted mean over buildings
// that actually burned heating fuel that year.
func (e *MetricsEngine) portfolioMetrics(siteYears []SiteYearMetrics) []PortfolioYearMetrics {
	type portfolioAccum struct {
		siteCount  int
		squareFeet float64
		totalMMBtu float64
		elecMMBtu  float64
		heatMMBtu  float64
		totalCost  float64
		ddWeighted float64
		ddWeight   float64
	}

	years := map[int]*portfolioAccum{}
	for _, row := range siteYears {
		if row.SquareFeet <= 0 {
			continue // unmetered square footage would dilute every intensity
		}
		a, ok := years[row.FiscalYear]
		if !ok {
			a = &portfolioAccum{}
			years[row.FiscalYear] = a
		}
		a.siteCount++
		a.squareFeet += row.SquareFeet
		a.totalMMBtu += row.TotalMMBtu
		a.elecMMBtu += row.ElecMMBtu
		a.heatMMBtu += row.HeatMMBtu
		a.totalCost += row.TotalCost
		if row.HeatMMBtu > 0 && !IsUnavailable(row.DegreeDays) {
			a.ddWeighted += row.DegreeDays * row.HeatMMBtu
			a.ddWeight += row.HeatMMBtu
		}
	}

	out := make([]PortfolioYearMetrics, 0, len(years))
	for fy, a := range years {
		dd := SafeDiv(a.ddWeighted, a.ddWeight)
		out = append(out, PortfolioYearMetrics{
			FiscalYear:  fy,
			SiteCount:   a.siteCount,
			SquareFeet:  a.squareFeet,
			TotalMMBtu:  a.totalMMBtu,
			ElecMMBtu:   a.elecMMBtu,
			HeatMMBtu:   a.heatMMBtu,
			TotalCost:   a.totalCost,
			DegreeDays:  dd,
			EUI:         SafeDiv(a.totalMMBtu*1000, a.squareFeet),
			ECI:         SafeDiv(a.totalCost, a.squareFeet),
			SpecificEUI: SafeDiv(SafeDiv(a.heatMMBtu*1e6, dd), a.squareFeet),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiscalYear < out[j].FiscalYear })
	return out
}

// CohortBands computes the P10/P90 band of one metric column per fiscal
// year over the buildings sharing the given grouping-attribute value with
// the reference site. The band gives a trend chart its peer context.
func (e *MetricsEngine) CohortBands(siteYears []SiteYearMetrics, col MetricColumn, dimension, siteID string) ([]CohortBand, error) {
	reference, err := e.store.BuildingInfo(siteID)
	if err != nil {
		return nil, err
	}
	want, err := reference.GroupValue(dimension)
	if err != nil {
		return nil, err
	}

	byYear := map[int][]float64{}
	for _, row := range siteYears {
		building, err := e.store.BuildingInfo(row.SiteID)
		if err != nil {
			continue
		}
		val, err := building.GroupValue(dimension)
		if err != nil || val != want {
			continue
		}
		v := row.Column(col)
		if IsUnavailable(v) {
			continue
		}
		byYear[row.FiscalYear] = append(byYear[row.FiscalYear], v)
	}

	out := make([]CohortBand, 0, len(byYear))
	for fy, values := range byYear {
		sort.Float64s(values)
		out = append(out, CohortBand{
			FiscalYear: fy,
			P10:        percentile(values, 0.10),
			P90:        percentile(values, 0.90),
			Count:      len(values),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiscalYear < out[j].FiscalYear })
	return out, nil
}

// percentile interpolates linearly between closest ranks of a sorted
// sample. An empty sample is unavailable, a singleton is its own band.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return Unavailable()
	case 1:
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
