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
	"encoding/json"
	"testing"
	"time"
)

func detailRecord(buildingID, fuel, unit string, qty, cost float64, meterRead string) arisDetailRecord {
	return arisDetailRecord{
		BuildingID:     json.Number(buildingID),
		EnergyTypeName: fuel,
		EnergyUnitName: unit,
		EnergyQuantity: qty,
		DollarCost:     cost,
		MeterReadDate:  meterRead,
	}
}

func TestConvertMonthlyFuel(t *testing.T) {
	records := []arisDetailRecord{
		detailRecord("7", "Electric", "kWh", 1200, 180, "2022-03-20"),
	}

	lines, err := ConvertDetailRecords(records)
	if err != nil {
		t.Fatalf("ConvertDetailRecords returned error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}

	line := lines[0]
	if !line.Thru.Equal(day(2022, time.March, 20)) {
		t.Errorf("Thru = %v, want 2022-03-20", line.Thru)
	}
	// One month earlier, same day of month.
	if !line.From.Equal(day(2022, time.February, 20)) {
		t.Errorf("From = %v, want 2022-02-20", line.From)
	}
	if line.ItemDesc != "Energy" || line.ServiceType != "Electric" {
		t.Errorf("line = %+v", line)
	}
}

func TestConvertDemandElectric(t *testing.T) {
	rec := detailRecord("7", "Demand - Electric", "kWh", 1000, 150, "2022-03-20")
	rec.DemandUse = 42
	rec.DemandCost = 300

	lines, err := ConvertDetailRecords([]arisDetailRecord{rec})
	if err != nil {
		t.Fatalf("ConvertDetailRecords returned error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want energy + demand", len(lines))
	}

	energy, demand := lines[0], lines[1]
	if energy.ServiceType != "Electric" || energy.ItemDesc != "Energy" {
		t.Errorf("energy line = %+v", energy)
	}
	if demand.ServiceType != "Electric" || demand.ItemDesc != "Demand Charge" {
		t.Errorf("demand line = %+v", demand)
	}
	if demand.Usage != 42 || demand.Cost != 300 || demand.Units != "kW" {
		t.Errorf("demand values = %+v", demand)
	}
}

func TestConvertSporadicFuel(t *testing.T) {
	records := []arisDetailRecord{
		detailRecord("9", "Oil #1", "Gallons", 300, 900, "2022-03-05"),
		detailRecord("9", "Oil #1", "Gallons", 250, 750, "2021-11-12"),
		detailRecord("9", "Oil #1", "Gallons", 200, 600, "2022-01-20"),
	}

	lines, err := ConvertDetailRecords(records)
	if err != nil {
		t.Fatalf("ConvertDetailRecords returned error: %v", err)
	}

	// First delivery (Nov 12) has no start date and is dropped; the rest
	// chain their From to the prior delivery's Thru.
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !lines[0].From.Equal(day(2021, time.November, 12)) || !lines[0].Thru.Equal(day(2022, time.January, 20)) {
		t.Errorf("first kept line period = %v - %v", lines[0].From, lines[0].Thru)
	}
	if !lines[1].From.Equal(day(2022, time.January, 20)) || !lines[1].Thru.Equal(day(2022, time.March, 5)) {
		t.Errorf("second kept line period = %v - %v", lines[1].From, lines[1].Thru)
	}
	if lines[0].Usage != 200 || lines[1].Usage != 300 {
		t.Errorf("usage order = %v, %v", lines[0].Usage, lines[1].Usage)
	}
}

func TestConvertDropsLongPeriods(t *testing.T) {
	records := []arisDetailRecord{
		detailRecord("9", "Oil #1", "Gallons", 250, 750, "2020-01-01"),
		// A 500+ day gap means the inferred period is discarded.
		detailRecord("9", "Oil #1", "Gallons", 300, 900, "2021-06-01"),
	}

	lines, err := ConvertDetailRecords(records)
	if err != nil {
		t.Fatalf("ConvertDetailRecords returned error: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("got %d lines, want 0", len(lines))
	}
}

func TestConvertMeterReadFallback(t *testing.T) {
	rec := detailRecord("7", "Natural Gas", "CCF", 90, 80, "")
	rec.UsageDate = "2022-02-01"

	lines, err := ConvertDetailRecords([]arisDetailRecord{rec})
	if err != nil {
		t.Fatalf("ConvertDetailRecords returned error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if !lines[0].Thru.Equal(day(2022, time.February, 15)) {
		t.Errorf("Thru = %v, want the 15th of the usage month", lines[0].Thru)
	}
}

func TestConvertSkipsEmptySporadicRecords(t *testing.T) {
	records := []arisDetailRecord{
		detailRecord("9", "Wood", "Cords", 0, 0, "2021-10-01"),
		detailRecord("9", "Wood", "Cords", 2, 400, "2021-12-01"),
		detailRecord("9", "Wood", "Cords", 3, 600, "2022-02-01"),
	}

	lines, err := ConvertDetailRecords(records)
	if err != nil {
		t.Fatalf("ConvertDetailRecords returned error: %v", err)
	}
	// Zero record ignored entirely, then first real delivery dropped.
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if !lines[0].From.Equal(day(2021, time.December, 1)) {
		t.Errorf("From = %v, want 2021-12-01", lines[0].From)
	}
}
