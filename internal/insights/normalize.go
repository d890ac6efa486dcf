// Package insights turns raw report rows into KPI sets, groupings and rankings.
// Everything here is pure: no I/O, no shared state, no blocking.
package insights

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ToNumber coerces a numeric-ish API value into a finite float64.
// Numeric kinds pass through, pointers are followed, numeric strings are parsed.
// nil, unparsable strings, unsupported types and non-finite values become 0.
func ToNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return finite(f)
	case string:
		return parseNumber(x)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.String:
		if n, ok := rv.Interface().(json.Number); ok {
			return ToNumber(n)
		}
		return parseNumber(rv.String())
	}
	return 0
}

// parseNumber parses a decimal string, dropping surrounding space and "," grouping.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(n float64) float64 {
	if isNonFinite(n) {
		return 0
	}
	out, _ := decimal.NewFromFloat(n).Round(2).Float64()
	return out
}

// RoundCount rounds a counter to the nearest integer, half away from zero.
func RoundCount(n float64) float64 {
	return finite(math.Round(n))
}

// SafeDiv returns num/den, or 0 when den is exactly zero.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

func finite(f float64) float64 {
	if isNonFinite(f) {
		return 0
	}
	return f
}

func isNonFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}
