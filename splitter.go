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

import "time"

// SplitPeriod splits a billing period into calendar-month pieces, each with
// a pro-rated share of the bill. Every day in [start, thru] counts as one
// served day except the first and last, which count as half a day each: the
// meter is typically read partway through those days, and halving them stops
// double counting when one bill's end date equals the next bill's start.
//
// A single-day period gets the half-day assignment on both ends of the same
// day, so its total served weight is 0.5, not 1.0. That matches the long
// standing behavior of the production data and is deliberately not "fixed";
// the single piece still carries a bill fraction of 1.0.
//
// Pieces are returned in chronological order. Pure function of its inputs.
func SplitPeriod(start, thru time.Time) []PeriodSplit {
	start = dateOnly(start)
	thru = dateOnly(thru)
	if thru.Before(start) {
		return nil
	}

	type monthKey struct {
		year  int
		month int
	}

	var (
		order  []monthKey
		served = map[monthKey]float64{}
		total  float64
	)

	for d := start; !d.After(thru); d = d.AddDate(0, 0, 1) {
		weight := 1.0
		if d.Equal(start) || d.Equal(thru) {
			weight = 0.5
		}
		key := monthKey{d.Year(), int(d.Month())}
		if _, seen := served[key]; !seen {
			order = append(order, key)
		}
		served[key] += weight
		total += weight
	}

	splits := make([]PeriodSplit, 0, len(order))
	for _, key := range order {
		days := served[key]
		splits = append(splits, PeriodSplit{
			CalYear:    key.year,
			CalMonth:   key.month,
			DaysServed: days,
			BillFrac:   days / total,
		})
	}
	return splits
}

// TotalServedDays returns the served-day count of a billing period under
// the half-day endpoint convention.
func TotalServedDays(start, thru time.Time) float64 {
	start = dateOnly(start)
	thru = dateOnly(thru)
	if thru.Before(start) {
		return 0
	}
	if start.Equal(thru) {
		return 0.5
	}
	// interior full days plus two half-day endpoints: (n-1) + 0.5 + 0.5
	// for a period spanning n+1 calendar days
	return thru.Sub(start).Hours() / 24
}

// dateOnly truncates a timestamp to midnight UTC so day stepping is exact.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
