package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Rule coerces the raw values of one field. raw is never empty when Coerce is
// called; absence is handled by Fields and Optional.
type Rule interface {
	Coerce(raw []string) (any, error)
}

// violation is a client-facing message describing why a value was rejected.
type violation string

func (v violation) Error() string { return string(v) }

func violationf(format string, args ...any) error {
	return violation(fmt.Sprintf(format, args...))
}

const errSingleValue = violation("Expected a single value")

type intRule struct {
	min, max int
}

// Int parses a base-10 integer and enforces min <= n <= max. Values outside
// the range are rejected, not clamped.
func Int(min, max int) Rule {
	return intRule{min: min, max: max}
}

func (r intRule) Coerce(raw []string) (any, error) {
	if len(raw) != 1 {
		return nil, errSingleValue
	}
	s := strings.TrimSpace(raw[0])
	if s == "" {
		return nil, violation("Expected number, received empty string")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, violation("Expected number, received nan")
	}
	if f != math.Trunc(f) {
		return nil, violation("Expected integer, received float")
	}
	if f < float64(r.min) {
		return nil, violationf("Number must be greater than or equal to %d", r.min)
	}
	if f > float64(r.max) {
		return nil, violationf("Number must be less than or equal to %d", r.max)
	}
	return int(f), nil
}

type stringRule struct {
	minLen, maxLen int
}

// String accepts a single value whose length in characters is within
// [minLen, maxLen]. A maxLen of 0 means unbounded.
func String(minLen, maxLen int) Rule {
	return stringRule{minLen: minLen, maxLen: maxLen}
}

func (r stringRule) Coerce(raw []string) (any, error) {
	if len(raw) != 1 {
		return nil, errSingleValue
	}
	n := utf8.RuneCountInString(raw[0])
	if n < r.minLen {
		return nil, violationf("String must contain at least %d character(s)", r.minLen)
	}
	if r.maxLen > 0 && n > r.maxLen {
		return nil, violationf("String must contain at most %d character(s)", r.maxLen)
	}
	return raw[0], nil
}

type oneOfRule struct {
	values []string
}

// OneOf accepts exactly one of the listed values.
func OneOf(values ...string) Rule {
	return oneOfRule{values: values}
}

func (r oneOfRule) Coerce(raw []string) (any, error) {
	if len(raw) != 1 {
		return nil, errSingleValue
	}
	for _, v := range r.values {
		if raw[0] == v {
			return v, nil
		}
	}
	return nil, violationf("Invalid enum value. Expected '%s', received '%s'", strings.Join(r.values, "' | '"), raw[0])
}

type optionalRule struct {
	Rule
}

// Optional lets a field be absent. When present, r still applies.
func Optional(r Rule) Rule {
	return optionalRule{Rule: r}
}

func isOptional(r Rule) bool {
	_, ok := r.(optionalRule)
	return ok
}
