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

import "fmt"

// The fiscal year starts in July: fiscal month 1 is July of the prior
// calendar year, fiscal month 12 is June of the fiscal year itself.

// CalendarToFiscal converts a calendar (year, month) to (fiscal year,
// fiscal month). Defined for every month 1..12; pure function.
func CalendarToFiscal(year, month int) (int, int) {
	if month <= 6 {
		return year, month + 6
	}
	return year + 1, month - 6
}

// FiscalToCalendar is the exact inverse of CalendarToFiscal.
func FiscalToCalendar(fiscalYear, fiscalMonth int) (int, int) {
	if fiscalMonth >= 7 {
		return fiscalYear, fiscalMonth - 6
	}
	return fiscalYear - 1, fiscalMonth + 6
}

// fiscalMonthLabels indexes abbreviated month names by fiscal month (1 = Jul).
var fiscalMonthLabels = [13]string{
	"", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
}

// FiscalMonthLabel returns the abbreviated calendar-month name for a fiscal
// month, e.g. 1 -> "Jul".
func FiscalMonthLabel(fiscalMonth int) string {
	if fiscalMonth < 1 || fiscalMonth > 12 {
		return ""
	}
	return fiscalMonthLabels[fiscalMonth]
}

// FiscalYearLabel formats a fiscal year for display, e.g. 2023 -> "FY 2023".
func FiscalYearLabel(fiscalYear int) string {
	return fmt.Sprintf("FY %d", fiscalYear)
}

// FiscalYearMonths returns the (fiscalYear, fiscalMonth) pairs making up one
// fiscal year, in order.
func FiscalYearMonths(fiscalYear int) [][2]int {
	months := make([][2]int, 0, 12)
	for fm := 1; fm <= 12; fm++ {
		months = append(months, [2]int{fiscalYear, fm})
	}
	return months
}
