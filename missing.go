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

import "math"

// The unavailable sentinel is IEEE NaN. Multiplication, addition and
// subtraction propagate it natively; division must go through SafeDiv
// because Go yields ±Inf, not NaN, for x/0. Consumers render the sentinel
// as a blank cell, never as an error.

// Unavailable returns the missing-value sentinel.
func Unavailable() float64 {
	return math.NaN()
}

// IsUnavailable reports whether v is the missing-value sentinel.
func IsUnavailable(v float64) bool {
	return math.IsNaN(v)
}

// SafeDiv divides num by den, returning the sentinel when the denominator
// is zero or either operand is unavailable. Division by zero is a defined
// "unavailable" outcome, not a crash.
func SafeDiv(num, den float64) float64 {
	if den == 0 || IsUnavailable(num) || IsUnavailable(den) {
		return Unavailable()
	}
	return num / den
}

// PctChange returns the percent change from prev to curr, sentinel when
// prev is zero or either value is unavailable.
func PctChange(curr, prev float64) float64 {
	if IsUnavailable(curr) || IsUnavailable(prev) || prev == 0 {
		return Unavailable()
	}
	return (curr - prev) / prev * 100
}

// SumOrZero sums values, treating unavailable entries as zero. Used where
// the aggregation policy is "missing contributes nothing" (e.g. usage of
// non-metered charges).
func SumOrZero(values ...float64) float64 {
	total := 0.0
	for _, v := range values {
		if !IsUnavailable(v) {
			total += v
		}
	}
	return total
}
