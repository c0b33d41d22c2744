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
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *FactStore {
	t.Helper()
	store, err := OpenFactStore(filepath.Join(t.TempDir(), "facts.db"), testLogger())
	if err != nil {
		t.Fatalf("OpenFactStore returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFactStoreReplaceAndQuery(t *testing.T) {
	store := openTestStore(t)

	facts := []FactRow{
		{
			Grouping: GroupingFacility, SiteID: "01", ServiceCategory: "electricity",
			CalYear: 2022, CalMonth: 5, FiscalYear: 2022, FiscalMonth: 11,
			ItemDesc: "Energy", Units: "kWh", DaysServed: 30, Usage: 1000, Cost: 150, MMBtu: 3.412,
		},
		{
			Grouping: GroupingFacility, SiteID: "01", ServiceCategory: "natural_gas",
			CalYear: 2022, CalMonth: 4, FiscalYear: 2022, FiscalMonth: 10,
			ItemDesc: "Energy", Units: "CCF", DaysServed: 29, Usage: 90, Cost: 80, MMBtu: 9.333,
		},
		{
			Grouping: "site_category", SiteID: "Borough", ServiceCategory: "electricity",
			CalYear: 2022, CalMonth: 5, FiscalYear: 2022, FiscalMonth: 11,
			ItemDesc: "Energy", Units: "kWh", DaysServed: 30, Usage: 1000, Cost: 150, MMBtu: 3.412,
		},
	}

	if err := store.ReplaceFacts(facts); err != nil {
		t.Fatalf("ReplaceFacts returned error: %v", err)
	}

	got, err := store.SiteFacts("01")
	if err != nil {
		t.Fatalf("SiteFacts returned error: %v", err)
	}
	// Rollup rows never come back from a facility query; rows are in
	// fiscal order.
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].ServiceCategory != "natural_gas" || got[1].ServiceCategory != "electricity" {
		t.Errorf("row order = %q, %q", got[0].ServiceCategory, got[1].ServiceCategory)
	}
	if got[1] != facts[0] {
		t.Errorf("round-tripped fact = %+v, want %+v", got[1], facts[0])
	}

	// A second replace clears the previous contents.
	if err := store.ReplaceFacts(facts[:1]); err != nil {
		t.Fatalf("second ReplaceFacts returned error: %v", err)
	}
	got, err = store.SiteFacts("01")
	if err != nil {
		t.Fatalf("SiteFacts returned error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("after replace got %d rows, want 1", len(got))
	}
}

func TestFactStoreMetricsNullables(t *testing.T) {
	store := openTestStore(t)

	rows := []SiteYearMetrics{{
		SiteID:               "03",
		FiscalYear:           2022,
		MonthCount:           12,
		SquareFeet:           0,
		DegreeDays:           Unavailable(),
		TotalMMBtu:           120,
		ElecMMBtu:            120,
		TotalCost:            1000,
		EUI:                  Unavailable(),
		ECI:                  Unavailable(),
		SpecificEUI:          Unavailable(),
		EUIChangePct:         Unavailable(),
		ECIChangePct:         Unavailable(),
		SpecificEUIChangePct: Unavailable(),
	}}

	// Unavailable values must insert as NULL, not NaN; the driver would
	// reject a NaN bind.
	if err := store.ReplaceSiteYearMetrics(rows); err != nil {
		t.Fatalf("ReplaceSiteYearMetrics returned error: %v", err)
	}

	if err := store.RecordRun(time.Now(), 1, 1); err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}
}
