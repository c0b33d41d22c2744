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
	"errors"
	"testing"
)

// testStore builds a small three-building reference store used across the
// package tests. Site 03 shares the DD1 degree-day site with site 01 but
// has no square footage.
func testStore() *ReferenceDataStore {
	buildings := map[string]BuildingInfo{
		"01": {
			SiteID:       "01",
			SiteName:     "Main Library",
			SiteCategory: "Borough",
			PrimaryFunc:  "Library",
			City:         "Fairview",
			SquareFeet:   50000,
			DDSite:       "DD1",
		},
		"02": {
			SiteID:       "02",
			SiteName:     "Annex Shop",
			SiteCategory: "School District",
			PrimaryFunc:  "Maintenance",
			City:         "Fairview",
			SquareFeet:   20000,
			DDSite:       "DD2",
		},
		"03": {
			SiteID:       "03",
			SiteName:     "Old Depot",
			SiteCategory: "Borough",
			PrimaryFunc:  "Storage",
			City:         "Northgate",
			SquareFeet:   0,
			DDSite:       "DD1",
		},
	}

	degreeDays := map[DegreeDayKey]float64{}
	for fm := 1; fm <= 12; fm++ {
		degreeDays[DegreeDayKey{2022, fm, "DD1"}] = 1000
		degreeDays[DegreeDayKey{2023, fm, "DD1"}] = 1100
		// DD2 is missing January (fiscal month 7) in 2022
		if fm != 7 {
			degreeDays[DegreeDayKey{2022, fm, "DD2"}] = 900
		}
	}

	fuelBtus := map[FuelUnitKey]float64{
		{"Electric", "kWh"}:    3412,
		{"Natural Gas", "CCF"}: 103700,
		{"Oil #1", "Gallons"}:  135000,
	}

	serviceCategories := map[string]string{
		"Electric":          "electricity",
		"Demand - Electric": "electricity",
		"Natural Gas":       "natural_gas",
		"Oil #1":            "fuel_oil",
		"Water":             "water",
	}

	categoryInfo := map[string]ServiceCategoryInfo{
		"electricity": {StandardUnit: "kWh", BtuPerUnit: 3412},
		"natural_gas": {StandardUnit: "CCF", BtuPerUnit: 103700},
		"fuel_oil":    {StandardUnit: "Gallons", BtuPerUnit: 135000},
		"water":       {StandardUnit: "Gallons", BtuPerUnit: 0},
	}

	return NewReferenceDataStore(buildings, degreeDays, fuelBtus, serviceCategories, categoryInfo)
}

func TestBuildingLookup(t *testing.T) {
	store := testStore()

	b, err := store.BuildingInfo("01")
	if err != nil {
		t.Fatalf("BuildingInfo returned error: %v", err)
	}
	if b.SiteName != "Main Library" {
		t.Errorf("SiteName = %q", b.SiteName)
	}

	_, err = store.BuildingInfo("99")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("unknown site error = %v, want NotFoundError", err)
	}
}

func TestAllSitesSorted(t *testing.T) {
	store := testStore()
	sites := store.AllSites()
	want := []string{"01", "02", "03"}
	if len(sites) != len(want) {
		t.Fatalf("got %d sites, want %d", len(sites), len(want))
	}
	for i := range want {
		if sites[i] != want[i] {
			t.Errorf("sites[%d] = %q, want %q", i, sites[i], want[i])
		}
	}
}

func TestSiteCategoriesAndBuildings(t *testing.T) {
	store := testStore()
	groups := store.SiteCategoriesAndBuildings()
	if len(groups) != 2 {
		t.Fatalf("got %d categories, want 2", len(groups))
	}
	if groups[0].Category != "Borough" || groups[1].Category != "School District" {
		t.Errorf("category order = %q, %q", groups[0].Category, groups[1].Category)
	}
	// Borough buildings sorted by display name: Main Library, Old Depot
	borough := groups[0].Buildings
	if len(borough) != 2 || borough[0].SiteName != "Main Library" || borough[1].SiteName != "Old Depot" {
		t.Errorf("borough buildings = %+v", borough)
	}
}

func TestFuelBtusPerUnitCaseInsensitive(t *testing.T) {
	store := testStore()
	if got := store.FuelBtusPerUnit("ELECTRIC", "kwh"); got != 3412 {
		t.Errorf("FuelBtusPerUnit = %v, want 3412", got)
	}
	if got := store.FuelBtusPerUnit("Sewer", "Gallons"); got != 0 {
		t.Errorf("unknown combo = %v, want 0", got)
	}
}

func TestDegreeDaysMonthlyMissingMonth(t *testing.T) {
	store := testStore()
	monthly, err := store.DegreeDaysMonthly([][2]int{{2022, 6}, {2022, 7}}, "02")
	if err != nil {
		t.Fatalf("DegreeDaysMonthly returned error: %v", err)
	}
	if monthly[0].DegreeDays != 900 {
		t.Errorf("present month = %v, want 900", monthly[0].DegreeDays)
	}
	if !IsUnavailable(monthly[1].DegreeDays) {
		t.Errorf("missing month = %v, want unavailable", monthly[1].DegreeDays)
	}
}

func TestDegreeDaysMonthlyUnknownSite(t *testing.T) {
	store := testStore()
	_, err := store.DegreeDaysMonthly([][2]int{{2022, 1}}, "99")
	var integrity *DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Errorf("error = %v, want DataIntegrityError", err)
	}
}

func TestDegreeDaysYearlyContamination(t *testing.T) {
	store := testStore()

	// DD1 has all twelve months: a complete sum.
	sums, err := store.DegreeDaysYearly(FiscalYearMonths(2022), "01")
	if err != nil {
		t.Fatalf("DegreeDaysYearly returned error: %v", err)
	}
	if sums[2022] != 12000 {
		t.Errorf("complete year = %v, want 12000", sums[2022])
	}

	// DD2 is missing one month: the whole year is unavailable.
	sums, err = store.DegreeDaysYearly(FiscalYearMonths(2022), "02")
	if err != nil {
		t.Fatalf("DegreeDaysYearly returned error: %v", err)
	}
	if !IsUnavailable(sums[2022]) {
		t.Errorf("partial year = %v, want unavailable", sums[2022])
	}
}

func TestServiceToCategoryDefensiveCopy(t *testing.T) {
	store := testStore()
	m := store.ServiceToCategory()
	m["Electric"] = "tampered"
	if got := store.CategoryForService("Electric"); got != "electricity" {
		t.Errorf("store mutated through returned map: %q", got)
	}
}

func TestCategoryForServicePassThrough(t *testing.T) {
	store := testStore()
	if got := store.CategoryForService("District Chilled Water"); got != "District Chilled Water" {
		t.Errorf("unmapped label = %q, want pass-through", got)
	}
}

func TestEnergyCategories(t *testing.T) {
	store := testStore()
	cats := store.EnergyCategories()
	want := []string{"electricity", "fuel_oil", "natural_gas"}
	if len(cats) != len(want) {
		t.Fatalf("got %v, want %v", cats, want)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("cats[%d] = %q, want %q", i, cats[i], want[i])
		}
	}
}

func TestGroupValue(t *testing.T) {
	b := BuildingInfo{SiteCategory: "Borough", PrimaryFunc: "Library", City: "Fairview"}

	tests := []struct {
		dimension string
		want      string
	}{
		{"site_category", "Borough"},
		{"primary_func", "Library"},
		{"city", "Fairview"},
	}
	for _, tt := range tests {
		got, err := b.GroupValue(tt.dimension)
		if err != nil || got != tt.want {
			t.Errorf("GroupValue(%q) = %q, %v, want %q", tt.dimension, got, err, tt.want)
		}
	}

	_, err := b.GroupValue("zip_code")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("unknown dimension error = %v, want ConfigError", err)
	}
}
