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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Bill export column headers. Site IDs are opaque strings so leading zeros
// survive the round trip.
var billFileHeader = []string{
	"Site ID", "From", "Thru", "Service Name", "Item Description",
	"Usage", "Cost", "Units", "Account Number", "Vendor Name",
}

// billDateLayouts are the date formats accepted in bill exports.
var billDateLayouts = []string{
	"2006-01-02", "1/2/2006", "1/2/06", "01/02/2006", "2006-01-02 15:04:05",
}

// ReadBillFile reads a utility bill export CSV into raw bill lines. Blank
// usage and unit cells become the unavailable sentinel and empty string
// respectively; the pipeline normalizes them later.
func ReadBillFile(path string, logger *Logger) ([]RawBillLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StorageError{Operation: "open_bill_file", Path: path, Err: err}
	}
	defer f.Close()

	lines, err := readBillCSV(f)
	if err != nil {
		return nil, &StorageError{Operation: "read_bill_file", Path: path, Err: err}
	}

	logger.LogDataLoaded("bill_lines", len(lines))
	return lines, nil
}

func readBillCSV(r io.Reader) ([]RawBillLine, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"Site ID", "From", "Thru", "Service Name", "Cost"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var lines []RawBillLine
	for lineNo := 2; ; lineNo++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		from, err := parseBillDate(get("From"))
		if err != nil {
			return nil, fmt.Errorf("line %d: From: %w", lineNo, err)
		}
		thru, err := parseBillDate(get("Thru"))
		if err != nil {
			return nil, fmt.Errorf("line %d: Thru: %w", lineNo, err)
		}

		usage := Unavailable()
		if v := get("Usage"); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				usage = parsed
			}
		}
		cost := 0.0
		if v := get("Cost"); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				cost = parsed
			}
		}

		lines = append(lines, RawBillLine{
			SiteID:      get("Site ID"),
			From:        from,
			Thru:        thru,
			ServiceType: get("Service Name"),
			ItemDesc:    get("Item Description"),
			Usage:       usage,
			Cost:        cost,
			Units:       get("Units"),
		})
	}
	return lines, nil
}

func parseBillDate(v string) (time.Time, error) {
	for _, layout := range billDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return dateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", v)
}

// WriteBillFile writes raw bill lines in the bill export schema. Used by
// the ARIS ingestion mode to produce input for later benchmarking runs.
func WriteBillFile(path string, lines []RawBillLine, logger *Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return &StorageError{Operation: "create_bill_file", Path: path, Err: err}
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(billFileHeader); err != nil {
		return &StorageError{Operation: "write_bill_file", Path: path, Err: err}
	}
	for _, line := range lines {
		usage := ""
		if !IsUnavailable(line.Usage) {
			usage = strconv.FormatFloat(line.Usage, 'f', -1, 64)
		}
		record := []string{
			line.SiteID,
			line.From.Format("2006-01-02"),
			line.Thru.Format("2006-01-02"),
			line.ServiceType,
			line.ItemDesc,
			usage,
			strconv.FormatFloat(line.Cost, 'f', -1, 64),
			line.Units,
			"", // account number unavailable from the API
			"", // vendor name unavailable from the API
		}
		if err := cw.Write(record); err != nil {
			return &StorageError{Operation: "write_bill_file", Path: path, Err: err}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return &StorageError{Operation: "flush_bill_file", Path: path, Err: err}
	}

	logger.LogStorageOperation("write_bill_file", path)
	return nil
}
