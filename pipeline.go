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
	"sort"
	"time"
)

// OtherChargeLabel replaces the item description of lines without metered
// usage so fixed fees and adjustments collapse into one grouping bucket
// instead of fragmenting the key space.
const OtherChargeLabel = "Other Charge"

// missingUnitsLabel stands in for blank unit cells; a null cannot take part
// in a grouping key.
const missingUnitsLabel = "-"

// Pipeline turns raw bill lines into the canonical fact table: normalize,
// pre-aggregate, split across calendar months, re-aggregate, derive energy
// content, remap to standardized categories, tag fiscal periods, and emit
// optional rollup rows.
type Pipeline struct {
	store     *ReferenceDataStore
	groupings []string
	logger    *Logger
}

// NewPipeline creates a pipeline over an immutable reference store.
// Grouping dimensions were already validated at startup.
func NewPipeline(store *ReferenceDataStore, groupings []string, logger *Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		groupings: groupings,
		logger:    logger,
	}
}

// Process runs the full aggregation pipeline. The input slice is never
// mutated; every transformation works on copies.
func (p *Pipeline) Process(lines []RawBillLine) (*ProcessedData, error) {
	normalized, err := p.normalize(lines)
	if err != nil {
		return nil, err
	}
	p.logger.LogStage("normalize")

	deduped := preAggregate(normalized)
	p.logger.LogStage("pre_aggregate")

	fragments := p.splitAll(deduped)
	p.logger.LogStage("split_periods")

	facts := p.aggregateFragments(fragments)
	p.logger.LogStage("aggregate")

	facts = p.remapCategories(facts)
	p.logger.LogStage("remap_categories")

	facts = append(facts, p.rollups(facts)...)
	sortFacts(facts)
	p.logger.LogStage("rollups")

	return &ProcessedData{Facts: facts, GeneratedAt: time.Now()}, nil
}

// normalize validates each line and applies the Other Charge relabeling and
// unit placeholder. A reversed date range or a site absent from the
// building table is a fatal data-integrity error: dropping the line would
// silently desynchronize reported totals.
func (p *Pipeline) normalize(lines []RawBillLine) ([]RawBillLine, error) {
	out := make([]RawBillLine, 0, len(lines))
	for _, line := range lines {
		if line.Thru.Before(line.From) {
			return nil, &DataIntegrityError{
				SiteID:  line.SiteID,
				From:    line.From,
				Thru:    line.Thru,
				Message: "service end date precedes start date",
			}
		}
		if !p.store.HasBuilding(line.SiteID) {
			return nil, &DataIntegrityError{
				SiteID:  line.SiteID,
				From:    line.From,
				Thru:    line.Thru,
				Message: "site missing from building table",
			}
		}

		if IsUnavailable(line.Usage) {
			line.ItemDesc = OtherChargeLabel
		}
		if line.Units == "" {
			line.Units = missingUnitsLabel
		}
		out = append(out, line)
	}
	return out, nil
}

type billKey struct {
	siteID      string
	from        time.Time
	thru        time.Time
	serviceType string
	itemDesc    string
	units       string
}

// preAggregate merges exact-duplicate lines before splitting. Splitting is
// linear in usage and cost, so summing first and splitting once is
// equivalent to splitting each duplicate and summing after; doing it first
// just avoids redundant work.
func preAggregate(lines []RawBillLine) []RawBillLine {
	merged := map[billKey]*RawBillLine{}
	var order []billKey
	for _, line := range lines {
		key := billKey{
			siteID:      line.SiteID,
			from:        line.From,
			thru:        line.Thru,
			serviceType: line.ServiceType,
			itemDesc:    line.ItemDesc,
			units:       line.Units,
		}
		if existing, ok := merged[key]; ok {
			existing.Usage = SumOrZero(existing.Usage, line.Usage)
			existing.Cost += line.Cost
			continue
		}
		copied := line
		copied.Usage = SumOrZero(line.Usage)
		merged[key] = &copied
		order = append(order, key)
	}

	out := make([]RawBillLine, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}

// billFragment is one calendar-month share of a bill. The original service
// dates are gone: they no longer describe the fragment.
type billFragment struct {
	siteID      string
	serviceType string
	itemDesc    string
	units       string
	calYear     int
	calMonth    int
	daysServed  float64
	usage       float64
	cost        float64
}

func (p *Pipeline) splitAll(lines []RawBillLine) []billFragment {
	var fragments []billFragment
	for _, line := range lines {
		for _, piece := range SplitPeriod(line.From, line.Thru) {
			fragments = append(fragments, billFragment{
				siteID:      line.SiteID,
				serviceType: line.ServiceType,
				itemDesc:    line.ItemDesc,
				units:       line.Units,
				calYear:     piece.CalYear,
				calMonth:    piece.CalMonth,
				daysServed:  piece.DaysServed,
				usage:       line.Usage * piece.BillFrac,
				cost:        line.Cost * piece.BillFrac,
			})
		}
	}
	return fragments
}

type factKey struct {
	siteID   string
	service  string
	calYear  int
	calMonth int
	itemDesc string
	units    string
}

// aggregateFragments merges fragments landing in the same month bucket,
// possibly from different original bills, then derives each bucket's MMBtu
// energy content from the raw service type and unit.
func (p *Pipeline) aggregateFragments(fragments []billFragment) []FactRow {
	sums := map[factKey]*FactRow{}
	for _, frag := range fragments {
		key := factKey{
			siteID:   frag.siteID,
			service:  frag.serviceType,
			calYear:  frag.calYear,
			calMonth: frag.calMonth,
			itemDesc: frag.itemDesc,
			units:    frag.units,
		}
		row, ok := sums[key]
		if !ok {
			fy, fm := CalendarToFiscal(frag.calYear, frag.calMonth)
			row = &FactRow{
				Grouping:        GroupingFacility,
				SiteID:          frag.siteID,
				ServiceCategory: frag.serviceType,
				CalYear:         frag.calYear,
				CalMonth:        frag.calMonth,
				FiscalYear:      fy,
				FiscalMonth:     fm,
				ItemDesc:        frag.itemDesc,
				Units:           frag.units,
			}
			sums[key] = row
		}
		row.DaysServed += frag.daysServed
		row.Usage += frag.usage
		row.Cost += frag.cost
	}

	facts := make([]FactRow, 0, len(sums))
	for _, row := range sums {
		// energy content is only meaningful for metered energy services;
		// unrecognized fuel/unit combos degrade to zero, not an error
		mmbtu := p.store.FuelBtusPerUnit(row.ServiceCategory, row.Units) * row.Usage / 1e6
		if IsUnavailable(mmbtu) {
			mmbtu = 0
		}
		row.MMBtu = mmbtu
		facts = append(facts, *row)
	}
	return facts
}

// remapCategories replaces raw vendor service labels with standardized
// categories and re-aggregates: several raw labels may collide into one
// category. Unmapped labels pass through unchanged.
func (p *Pipeline) remapCategories(facts []FactRow) []FactRow {
	sums := map[factKey]*FactRow{}
	for _, fact := range facts {
		fact.ServiceCategory = p.store.CategoryForService(fact.ServiceCategory)
		key := factKey{
			siteID:   fact.SiteID,
			service:  fact.ServiceCategory,
			calYear:  fact.CalYear,
			calMonth: fact.CalMonth,
			itemDesc: fact.ItemDesc,
			units:    fact.Units,
		}
		if existing, ok := sums[key]; ok {
			existing.DaysServed += fact.DaysServed
			existing.Usage += fact.Usage
			existing.Cost += fact.Cost
			existing.MMBtu += fact.MMBtu
			continue
		}
		copied := fact
		sums[key] = &copied
	}

	out := make([]FactRow, 0, len(sums))
	for _, row := range sums {
		out = append(out, *row)
	}
	return out
}

// rollups produces the configured grouping-dimension row sets. Sites with
// no value for a dimension are dropped from that rollup; each output row
// carries the dimension name as its grouping kind.
func (p *Pipeline) rollups(facts []FactRow) []FactRow {
	var out []FactRow
	for _, dim := range p.groupings {
		sums := map[factKey]*FactRow{}
		for _, fact := range facts {
			if fact.Grouping != GroupingFacility {
				continue
			}
			building, err := p.store.BuildingInfo(fact.SiteID)
			if err != nil {
				continue // rollups only cover known sites
			}
			groupVal, err := building.GroupValue(dim)
			if err != nil || groupVal == "" {
				continue
			}
			key := factKey{
				siteID:   groupVal,
				service:  fact.ServiceCategory,
				calYear:  fact.CalYear,
				calMonth: fact.CalMonth,
				itemDesc: fact.ItemDesc,
				units:    fact.Units,
			}
			row, ok := sums[key]
			if !ok {
				copied := fact
				copied.Grouping = dim
				copied.SiteID = groupVal
				copied.DaysServed = 0
				copied.Usage = 0
				copied.Cost = 0
				copied.MMBtu = 0
				row = &copied
				sums[key] = row
			}
			row.DaysServed += fact.DaysServed
			row.Usage += fact.Usage
			row.Cost += fact.Cost
			row.MMBtu += fact.MMBtu
		}
		for _, row := range sums {
			out = append(out, *row)
		}
	}
	return out
}

// sortFacts orders the fact table deterministically on its unique key.
func sortFacts(facts []FactRow) {
	sort.Slice(facts, func(i, j int) bool {
		a, b := facts[i], facts[j]
		switch {
		case a.Grouping != b.Grouping:
			return a.Grouping < b.Grouping
		case a.SiteID != b.SiteID:
			return a.SiteID < b.SiteID
		case a.ServiceCategory != b.ServiceCategory:
			return a.ServiceCategory < b.ServiceCategory
		case a.CalYear != b.CalYear:
			return a.CalYear < b.CalYear
		case a.CalMonth != b.CalMonth:
			return a.CalMonth < b.CalMonth
		case a.ItemDesc != b.ItemDesc:
			return a.ItemDesc < b.ItemDesc
		default:
			return a.Units < b.Units
		}
	})
}
