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
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// CategoryElectricity is the standardized category whose energy is excluded
// from heating-fuel totals.
const CategoryElectricity = "electricity"

// ServiceCategoryInfo describes a standardized service category: the unit
// its usage is reported in and that unit's energy content.
type ServiceCategoryInfo struct {
	StandardUnit string  `json:"standardUnit"`
	BtuPerUnit   float64 `json:"btuPerUnit"`
}

type ddKey struct {
	fiscalYear  int
	fiscalMonth int
	site        string
}

type fuelKey struct {
	fuel string
	unit string
}

// ReferenceDataStore indexes the reference tables every pipeline stage
// reads: building metadata, degree-day series, fuel energy content and the
// service-type-to-category mapping. It is built once at startup and
// immutable afterwards; lookups define their own missing-data behavior.
type ReferenceDataStore struct {
	buildings  map[string]BuildingInfo
	degreeDays map[ddKey]float64
	fuelBtus   map[fuelKey]float64
	categories map[string]string
	catInfo    map[string]ServiceCategoryInfo
}

// NewReferenceDataStore builds a store from already-indexed tables. Degree
// days are keyed by fiscal (year, month, degree-day site); fuel factors by
// lowercased (fuel, unit).
func NewReferenceDataStore(
	buildings map[string]BuildingInfo,
	degreeDays map[DegreeDayKey]float64,
	fuelBtus map[FuelUnitKey]float64,
	serviceCategories map[string]string,
	categoryInfo map[string]ServiceCategoryInfo,
) *ReferenceDataStore {
	s := &ReferenceDataStore{
		buildings:  make(map[string]BuildingInfo, len(buildings)),
		degreeDays: make(map[ddKey]float64, len(degreeDays)),
		fuelBtus:   make(map[fuelKey]float64, len(fuelBtus)),
		categories: make(map[string]string, len(serviceCategories)),
		catInfo:    make(map[string]ServiceCategoryInfo, len(categoryInfo)),
	}
	for id, b := range buildings {
		s.buildings[id] = b
	}
	for k, v := range degreeDays {
		s.degreeDays[ddKey{k.FiscalYear, k.FiscalMonth, k.Site}] = v
	}
	for k, v := range fuelBtus {
		s.fuelBtus[fuelKey{strings.ToLower(k.Fuel), strings.ToLower(k.Unit)}] = v
	}
	for raw, cat := range serviceCategories {
		s.categories[raw] = cat
	}
	for cat, info := range categoryInfo {
		s.catInfo[cat] = info
	}
	return s
}

// DegreeDayKey is the exported key form used when constructing a store.
type DegreeDayKey struct {
	FiscalYear  int
	FiscalMonth int
	Site        string
}

// FuelUnitKey is the exported key form used when constructing a store.
type FuelUnitKey struct {
	Fuel string
	Unit string
}

// BuildingInfo returns the reference record for a site.
func (s *ReferenceDataStore) BuildingInfo(siteID string) (BuildingInfo, error) {
	b, ok := s.buildings[siteID]
	if !ok {
		return BuildingInfo{}, &NotFoundError{Kind: "building", Key: siteID}
	}
	return b, nil
}

// HasBuilding reports whether a site is present in the building table.
func (s *ReferenceDataStore) HasBuilding(siteID string) bool {
	_, ok := s.buildings[siteID]
	return ok
}

// AllSites returns every site ID in alphabetical order.
func (s *ReferenceDataStore) AllSites() []string {
	sites := make([]string, 0, len(s.buildings))
	for id := range s.buildings {
		sites = append(sites, id)
	}
	sort.Strings(sites)
	return sites
}

// SiteCategoriesAndBuildings groups buildings by ownership category.
// Categories come back alphabetically, each category's buildings sorted by
// display name.
func (s *ReferenceDataStore) SiteCategoriesAndBuildings() []CategoryGroup {
	byCat := map[string][]BuildingSummary{}
	for id, b := range s.buildings {
		byCat[b.SiteCategory] = append(byCat[b.SiteCategory], BuildingSummary{
			SiteID:   id,
			SiteName: b.SiteName,
		})
	}

	cats := make([]string, 0, len(byCat))
	for cat := range byCat {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	groups := make([]CategoryGroup, 0, len(cats))
	for _, cat := range cats {
		buildings := byCat[cat]
		sort.Slice(buildings, func(i, j int) bool {
			return buildings[i].SiteName < buildings[j].SiteName
		})
		groups = append(groups, CategoryGroup{Category: cat, Buildings: buildings})
	}
	return groups
}

// DegreeDaysMonthly looks up degree days for each requested (fiscal year,
// fiscal month) pair through the site's configured degree-day site. A
// missing month yields the unavailable sentinel, not an error; an unknown
// site is a data-integrity failure because allocation cannot proceed.
func (s *ReferenceDataStore) DegreeDaysMonthly(months [][2]int, siteID string) ([]MonthDegreeDays, error) {
	b, ok := s.buildings[siteID]
	if !ok {
		return nil, &DataIntegrityError{
			SiteID:  siteID,
			Message: "site missing from building table, degree-day site unknown",
		}
	}

	out := make([]MonthDegreeDays, 0, len(months))
	for _, fm := range months {
		dd, ok := s.degreeDays[ddKey{fm[0], fm[1], b.DDSite}]
		if !ok {
			dd = Unavailable()
		}
		out = append(out, MonthDegreeDays{
			FiscalYear:  fm[0],
			FiscalMonth: fm[1],
			DegreeDays:  dd,
		})
	}
	return out, nil
}

// DegreeDaysYearly sums DegreeDaysMonthly by fiscal year. A year with even
// one missing month sums to the unavailable sentinel rather than a partial
// total: a partial sum would understate the heating season and silently
// skew every normalized metric downstream.
func (s *ReferenceDataStore) DegreeDaysYearly(months [][2]int, siteID string) (map[int]float64, error) {
	monthly, err := s.DegreeDaysMonthly(months, siteID)
	if err != nil {
		return nil, err
	}

	sums := map[int]float64{}
	for _, m := range monthly {
		if IsUnavailable(sums[m.FiscalYear]) {
			continue
		}
		if IsUnavailable(m.DegreeDays) {
			sums[m.FiscalYear] = Unavailable()
			continue
		}
		sums[m.FiscalYear] += m.DegreeDays
	}
	return sums, nil
}

// FuelBtusPerUnit returns the Btu content of one unit of a fuel,
// case-insensitively. Unrecognized fuel/unit combinations return 0.0 so
// they contribute zero energy rather than failing the run.
func (s *ReferenceDataStore) FuelBtusPerUnit(fuel, unit string) float64 {
	return s.fuelBtus[fuelKey{strings.ToLower(fuel), strings.ToLower(unit)}]
}

// ServiceToCategory returns a copy of the raw-service-type-to-category
// mapping. Callers get their own map so they cannot mutate the store.
func (s *ReferenceDataStore) ServiceToCategory() map[string]string {
	out := make(map[string]string, len(s.categories))
	for raw, cat := range s.categories {
		out[raw] = cat
	}
	return out
}

// CategoryForService maps a raw vendor service label to its standardized
// category; unmapped labels pass through unchanged.
func (s *ReferenceDataStore) CategoryForService(raw string) string {
	if cat, ok := s.categories[raw]; ok {
		return cat
	}
	return raw
}

// ServiceCategoryInfo returns the standard unit and energy content for a
// standardized category.
func (s *ReferenceDataStore) ServiceCategoryInfo(category string) (ServiceCategoryInfo, error) {
	info, ok := s.catInfo[category]
	if !ok {
		return ServiceCategoryInfo{}, &NotFoundError{Kind: "service category", Key: category}
	}
	return info, nil
}

// EnergyCategories returns the standardized categories that carry energy
// content (nonzero Btu per unit), sorted alphabetically.
func (s *ReferenceDataStore) EnergyCategories() []string {
	cats := make([]string, 0, len(s.catInfo))
	for cat, info := range s.catInfo {
		if info.BtuPerUnit > 0 {
			cats = append(cats, cat)
		}
	}
	sort.Strings(cats)
	return cats
}

// ---------------------------------------------------------------------------
// Workbook loading

// Sheet names in the Other Data workbook.
const (
	sheetBuilding   = "Building"
	sheetDegreeDays = "Degree Days"
	sheetFuelTypes  = "Fuel Types"
	sheetServices   = "Services"
)

// headerRow is the 1-based row holding column headers in every sheet; the
// rows above it are titles and notes in the maintained workbook.
const headerRow = 4

// LoadReferenceData reads the Other Data workbook and builds the store.
// Any failure here is a fatal startup failure: the pipeline has no
// partial-reference-table mode.
func LoadReferenceData(path string, logger *Logger) (*ReferenceDataStore, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &StorageError{Operation: "open_workbook", Path: path, Err: err}
	}
	defer f.Close()

	buildings, err := loadBuildingSheet(f)
	if err != nil {
		return nil, err
	}
	degreeDays, err := loadDegreeDaySheet(f)
	if err != nil {
		return nil, err
	}
	fuelBtus, err := loadFuelSheet(f)
	if err != nil {
		return nil, err
	}
	categories, catInfo, err := loadServiceSheet(f)
	if err != nil {
		return nil, err
	}

	logger.LogDataLoaded("buildings", len(buildings))
	logger.LogDataLoaded("degree_day_months", len(degreeDays))
	logger.LogDataLoaded("fuel_conversions", len(fuelBtus))
	logger.LogDataLoaded("service_mappings", len(categories))

	return NewReferenceDataStore(buildings, degreeDays, fuelBtus, categories, catInfo), nil
}

// sheetRows returns the data rows of a sheet along with a header-name to
// column-index mapping.
func sheetRows(f *excelize.File, sheet string) (map[string]int, [][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, &StorageError{Operation: "read_sheet", Path: sheet, Err: err}
	}
	if len(rows) < headerRow {
		return nil, nil, &StorageError{
			Operation: "read_sheet",
			Path:      sheet,
			Err:       fmt.Errorf("sheet has no header row (need row %d)", headerRow),
		}
	}

	header := map[string]int{}
	for i, name := range rows[headerRow-1] {
		name = strings.TrimSpace(name)
		if name != "" {
			header[name] = i
		}
	}
	return header, rows[headerRow:], nil
}

func cell(row []string, idx int, ok bool) string {
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func cellFloat(row []string, idx int, ok bool) float64 {
	v := cell(row, idx, ok)
	if v == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return 0
	}
	return parsed
}

func loadBuildingSheet(f *excelize.File) (map[string]BuildingInfo, error) {
	header, rows, err := sheetRows(f, sheetBuilding)
	if err != nil {
		return nil, err
	}

	buildings := map[string]BuildingInfo{}
	for _, row := range rows {
		get := func(name string) string {
			i, ok := header[name]
			return cell(row, i, ok)
		}
		getFloat := func(name string) float64 {
			i, ok := header[name]
			return cellFloat(row, i, ok)
		}

		siteID := get("site_id")
		if siteID == "" {
			continue
		}
		b := BuildingInfo{
			SiteID:       siteID,
			SiteName:     get("site_name"),
			SiteCategory: get("site_category"),
			PrimaryFunc:  get("primary_func"),
			Address:      get("address"),
			City:         get("city"),
			DDSite:       get("dd_site"),
			OnsiteGen:    get("onsite_gen"),
			Providers:    map[string]string{},
			Accounts:     map[string]string{},
			SquareFeet:   getFloat("sq_ft"),
			YearBuilt:    int(getFloat("year_built")),
		}

		// provider/account columns follow the pattern <category>_provider
		// and <category>_acct; anything absent stays an empty string
		for name, i := range header {
			if cat, found := strings.CutSuffix(name, "_provider"); found {
				if v := cell(row, i, true); v != "" {
					b.Providers[cat] = v
				}
			}
			if cat, found := strings.CutSuffix(name, "_acct"); found {
				if v := cell(row, i, true); v != "" {
					b.Accounts[cat] = v
				}
			}
		}

		buildings[siteID] = b
	}
	return buildings, nil
}

// degreeDayDateLayouts are the month-cell formats seen in maintained
// workbooks, tried in order.
var degreeDayDateLayouts = []string{
	"1/2/06", "01-02-06", "2006-01-02", "Jan-06", "January 2006", "1/2/2006",
}

func loadDegreeDaySheet(f *excelize.File) (map[DegreeDayKey]float64, error) {
	header, rows, err := sheetRows(f, sheetDegreeDays)
	if err != nil {
		return nil, err
	}

	monthCol, ok := header["Month"]
	if !ok {
		return nil, &StorageError{
			Operation: "read_sheet",
			Path:      sheetDegreeDays,
			Err:       fmt.Errorf("missing Month column"),
		}
	}

	// every non-Month header is a degree-day site
	type siteCol struct {
		name string
		idx  int
	}
	var siteCols []siteCol
	for name, i := range header {
		if name != "Month" {
			siteCols = append(siteCols, siteCol{name, i})
		}
	}

	dd := map[DegreeDayKey]float64{}
	for _, row := range rows {
		monthCell := cell(row, monthCol, true)
		if monthCell == "" {
			continue
		}
		month, err := parseMonthCell(monthCell)
		if err != nil {
			return nil, &StorageError{
				Operation: "parse_month",
				Path:      sheetDegreeDays,
				Err:       err,
			}
		}
		fy, fm := CalendarToFiscal(month.Year(), int(month.Month()))
		for _, sc := range siteCols {
			v := cell(row, sc.idx, true)
			if v == "" {
				continue // missing month stays missing
			}
			parsed, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
			if err != nil {
				continue
			}
			dd[DegreeDayKey{fy, fm, sc.name}] = parsed
		}
	}
	return dd, nil
}

func parseMonthCell(v string) (time.Time, error) {
	for _, layout := range degreeDayDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable month %q", v)
}

func loadFuelSheet(f *excelize.File) (map[FuelUnitKey]float64, error) {
	header, rows, err := sheetRows(f, sheetFuelTypes)
	if err != nil {
		return nil, err
	}

	fuels := map[FuelUnitKey]float64{}
	for _, row := range rows {
		get := func(name string) string {
			i, ok := header[name]
			return cell(row, i, ok)
		}
		fuel := get("fuel")
		unit := get("unit")
		if fuel == "" || unit == "" {
			continue
		}
		i, ok := header["btus_per_unit"]
		fuels[FuelUnitKey{Fuel: fuel, Unit: unit}] = cellFloat(row, i, ok)
	}
	return fuels, nil
}

func loadServiceSheet(f *excelize.File) (map[string]string, map[string]ServiceCategoryInfo, error) {
	header, rows, err := sheetRows(f, sheetServices)
	if err != nil {
		return nil, nil, err
	}

	categories := map[string]string{}
	catInfo := map[string]ServiceCategoryInfo{}
	for _, row := range rows {
		get := func(name string) string {
			i, ok := header[name]
			return cell(row, i, ok)
		}
		raw := get("service_type")
		cat := get("category")
		if raw == "" || cat == "" {
			continue
		}
		categories[raw] = cat
		if _, seen := catInfo[cat]; !seen {
			i, ok := header["btus_per_unit"]
			catInfo[cat] = ServiceCategoryInfo{
				StandardUnit: get("standard_unit"),
				BtuPerUnit:   cellFloat(row, i, ok),
			}
		}
	}
	return categories, catInfo, nil
}
