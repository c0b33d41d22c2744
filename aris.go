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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// maxBillingPeriodDays discards ARIS records whose billing period is
// implausibly long; these are data-entry artifacts, usually a Thru date
// typed into the wrong year.
const maxBillingPeriodDays = 450

// monthlyBilledFuels are billed on a regular monthly cycle, so a record's
// start date can be inferred as one month before its end date. Everything
// else (fuel oil, propane, wood) is delivered sporadically and gets its
// start date from the prior delivery instead.
var monthlyBilledFuels = map[string]bool{
	"Electric":            true,
	"Natural Gas":         true,
	"Steam District Ht":   true,
	"Hot Wtr District Ht": true,
}

// ARISClient talks to the ARIS utility-billing API.
type ARISClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *Logger
}

// NewARISClient creates a client from the ARIS settings.
func NewARISClient(config *Config, logger *Logger) *ARISClient {
	return &ARISClient{
		baseURL:  strings.TrimRight(config.ARISURL, "/"),
		username: config.ARISUsername,
		password: config.ARISPassword,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.WithComponent("aris"),
	}
}

// ARISBuilding is one building record from GetBuildingList. Building IDs
// arrive as JSON numbers but are opaque identifiers to us.
type ARISBuilding struct {
	BuildingID   json.Number `json:"BuildingId"`
	BuildingName string      `json:"BuildingName"`
	OwnerName    string      `json:"BuildingOwnerName"`
	Street       string      `json:"BuildingStreet"`
	City         string      `json:"BuildingCity"`
	Zip          string      `json:"BuildingZip"`
	UsageName    string      `json:"BuildingUsageName"`
	YearBuilt    int         `json:"YearBuilt"`
	SquareFeet   float64     `json:"SquareFeet"`
}

// arisDetailRecord is one energy purchase from GetBuildingEnergyDetail.
type arisDetailRecord struct {
	BuildingID     json.Number `json:"BuildingId"`
	EnergyTypeName string      `json:"EnergyTypeName"`
	EnergyUnitName string      `json:"EnergyUnitTypeName"`
	EnergyQuantity float64     `json:"EnergyQuantity"`
	DollarCost     float64     `json:"DollarCost"`
	DemandUse      float64     `json:"DemandUse"`
	DemandCost     float64     `json:"DemandCost"`
	UsageDate      string      `json:"UsageDate"`
	MeterReadDate  string      `json:"MeterReadDate"`
}

type arisDetailResponse struct {
	BuildingEnergyDetailList []arisDetailRecord `json:"BuildingEnergyDetailList"`
}

// GetBuildingList fetches every building in the ARIS database.
func (c *ARISClient) GetBuildingList() ([]ARISBuilding, error) {
	endpoint := c.baseURL + "/GetBuildingList"
	params := url.Values{
		"username": {c.username},
		"password": {c.password},
	}

	req, err := http.NewRequest("POST", endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", GetUserAgent())

	c.logger.LogAPIRequest("POST", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{
			Endpoint: endpoint,
			Message:  "failed to fetch building list",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.LogAPIError(endpoint, resp.StatusCode, fmt.Errorf("%s", string(bodyBytes)))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    string(bodyBytes),
		}
	}

	var buildings []ARISBuilding
	if err := json.NewDecoder(resp.Body).Decode(&buildings); err != nil {
		return nil, fmt.Errorf("failed to decode building list: %w", err)
	}

	c.logger.LogDataLoaded("aris_buildings", len(buildings))
	return buildings, nil
}

// GetBuildingEnergyDetail fetches every energy purchase for one building.
func (c *ARISClient) GetBuildingEnergyDetail(buildingID string) ([]arisDetailRecord, error) {
	endpoint := c.baseURL + "/GetBuildingEnergyDetail"
	form := url.Values{
		"username":   {c.username},
		"password":   {c.password},
		"buildingId": {buildingID},
	}

	req, err := http.NewRequest("POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", GetUserAgent())

	c.logger.LogAPIRequest("POST", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{
			Endpoint: endpoint,
			Message:  "failed to fetch energy detail for building " + buildingID,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.LogAPIError(endpoint, resp.StatusCode, fmt.Errorf("%s", string(bodyBytes)))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    string(bodyBytes),
		}
	}

	var detail arisDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("failed to decode energy detail: %w", err)
	}
	return detail.BuildingEnergyDetailList, nil
}

// FetchAllRecords pulls the energy detail for every building and converts
// it into bill lines the pipeline can consume.
func (c *ARISClient) FetchAllRecords(buildings []ARISBuilding) ([]RawBillLine, error) {
	var records []arisDetailRecord
	for i, b := range buildings {
		c.logger.LogSiteProgress(b.BuildingID.String(), i+1, len(buildings))
		detail, err := c.GetBuildingEnergyDetail(b.BuildingID.String())
		if err != nil {
			return nil, err
		}
		records = append(records, detail...)
	}
	c.logger.LogDataLoaded("aris_detail_records", len(records))
	return ConvertDetailRecords(records)
}

// ConvertDetailRecords turns raw ARIS purchase records into bill lines with
// inferred billing periods:
//
//   - Monthly-billed fuels get a From date one month before Thru, on the
//     same day of month. Electric demand charges become separate lines.
//   - Sporadically delivered fuels carry the prior delivery's Thru forward
//     as From; the first delivery of a series has no start and is dropped.
//   - Records spanning 450 days or more are discarded as data errors.
func ConvertDetailRecords(records []arisDetailRecord) ([]RawBillLine, error) {
	var monthly, sporadic []arisDetailRecord
	for _, rec := range records {
		// demand-metered electricity is still electricity; the demand
		// component is broken out into its own line below
		if rec.EnergyTypeName == "Demand - Electric" {
			rec.EnergyTypeName = "Electric"
		}
		if monthlyBilledFuels[rec.EnergyTypeName] {
			monthly = append(monthly, rec)
		} else {
			sporadic = append(sporadic, rec)
		}
	}

	var lines []RawBillLine

	for _, rec := range monthly {
		thru, err := recordThruDate(rec)
		if err != nil {
			return nil, err
		}
		from := monthBefore(thru)

		lines = append(lines, RawBillLine{
			SiteID:      rec.BuildingID.String(),
			From:        from,
			Thru:        thru,
			ServiceType: rec.EnergyTypeName,
			ItemDesc:    "Energy",
			Usage:       rec.EnergyQuantity,
			Cost:        rec.DollarCost,
			Units:       rec.EnergyUnitName,
		})

		if rec.EnergyTypeName == "Electric" && rec.DemandCost > 0 {
			lines = append(lines, RawBillLine{
				SiteID:      rec.BuildingID.String(),
				From:        from,
				Thru:        thru,
				ServiceType: "Electric",
				ItemDesc:    "Demand Charge",
				Usage:       rec.DemandUse,
				Cost:        rec.DemandCost,
				Units:       "kW",
			})
		}
	}

	sporadicLines, err := convertSporadic(sporadic)
	if err != nil {
		return nil, err
	}
	lines = append(lines, sporadicLines...)

	out := lines[:0]
	for _, line := range lines {
		if line.Thru.Sub(line.From).Hours()/24 < maxBillingPeriodDays {
			out = append(out, line)
		}
	}
	return out, nil
}

// convertSporadic infers delivery periods per (building, fuel) series.
func convertSporadic(records []arisDetailRecord) ([]RawBillLine, error) {
	type seriesKey struct {
		buildingID string
		fuel       string
	}

	series := map[seriesKey][]arisDetailRecord{}
	var order []seriesKey
	for _, rec := range records {
		if rec.DollarCost <= 0 && rec.EnergyQuantity <= 0 {
			continue
		}
		key := seriesKey{rec.BuildingID.String(), rec.EnergyTypeName}
		if _, ok := series[key]; !ok {
			order = append(order, key)
		}
		series[key] = append(series[key], rec)
	}

	var lines []RawBillLine
	for _, key := range order {
		recs := series[key]

		thrus := make([]time.Time, len(recs))
		for i, rec := range recs {
			thru, err := recordThruDate(rec)
			if err != nil {
				return nil, err
			}
			thrus[i] = thru
		}
		sort.Sort(byThru{recs, thrus})

		// first delivery has no inferable start date
		for i := 1; i < len(recs); i++ {
			lines = append(lines, RawBillLine{
				SiteID:      key.buildingID,
				From:        thrus[i-1],
				Thru:        thrus[i],
				ServiceType: key.fuel,
				ItemDesc:    "Energy",
				Usage:       recs[i].EnergyQuantity,
				Cost:        recs[i].DollarCost,
				Units:       recs[i].EnergyUnitName,
			})
		}
	}
	return lines, nil
}

// byThru sorts a detail-record slice and its parallel Thru dates together.
type byThru struct {
	recs  []arisDetailRecord
	thrus []time.Time
}

func (s byThru) Len() int           { return len(s.recs) }
func (s byThru) Less(i, j int) bool { return s.thrus[i].Before(s.thrus[j]) }
func (s byThru) Swap(i, j int) {
	s.recs[i], s.recs[j] = s.recs[j], s.recs[i]
	s.thrus[i], s.thrus[j] = s.thrus[j], s.thrus[i]
}

// recordThruDate resolves a record's period end: the meter read date when
// present, otherwise the 15th of the usage month.
func recordThruDate(rec arisDetailRecord) (time.Time, error) {
	if rec.MeterReadDate != "" {
		return parseARISDate(rec.MeterReadDate)
	}
	usage, err := parseARISDate(rec.UsageDate)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(usage.Year(), usage.Month(), 15, 0, 0, 0, 0, time.UTC), nil
}

// monthBefore returns the date one calendar month earlier, keeping the day
// of month. Overflow past a short month normalizes forward.
func monthBefore(t time.Time) time.Time {
	prev := t.AddDate(0, 0, -30)
	return time.Date(prev.Year(), prev.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var arisDateLayouts = []string{
	time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "1/2/2006", "1/2/2006 15:04:05",
}

func parseARISDate(v string) (time.Time, error) {
	for _, layout := range arisDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return dateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable ARIS date %q", v)
}

// WriteBuildingWorkbook writes the building list in the reference-workbook
// Building sheet layout (headers on row 4) so a refreshed Other Data file
// can start from it.
func WriteBuildingWorkbook(outputDir string, buildings []ARISBuilding, logger *Logger) (string, error) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheetBuilding)

	header := []interface{}{
		"site_id", "site_name", "site_category", "primary_func",
		"address", "city", "year_built", "sq_ft", "dd_site", "onsite_gen",
	}
	if err := f.SetSheetRow(sheetBuilding, fmt.Sprintf("A%d", headerRow), &header); err != nil {
		return "", fmt.Errorf("writing building header: %w", err)
	}
	for i, b := range buildings {
		row := []interface{}{
			b.BuildingID.String(), b.BuildingName, b.OwnerName, b.UsageName,
			b.Street, b.City, b.YearBuilt, b.SquareFeet,
			"", // degree-day site assigned manually from the zip code
			"",
		}
		cell := fmt.Sprintf("A%d", headerRow+1+i)
		if err := f.SetSheetRow(sheetBuilding, cell, &row); err != nil {
			return "", fmt.Errorf("writing building row %d: %w", i, err)
		}
	}

	path := filepath.Join(outputDir, "Buildings.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", &StorageError{Operation: "write_building_workbook", Path: path, Err: err}
	}

	logger.LogStorageOperation("write_building_workbook", path)
	return path, nil
}
