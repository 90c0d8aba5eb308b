package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Field names of a patient check-in.
const (
	FieldName        = "name"
	FieldPhone       = "phone"
	FieldEmail       = "email"
	FieldTemperature = "temperature"
	FieldPainLevel   = "pain_level"
	FieldBleeding    = "bleeding"
	FieldSymptoms    = "symptoms"
	FieldTimestamp   = "timestamp"
)

// IntakeRecord is one patient self-report as submitted by the form. Every
// field is optional and unknown fields are kept as-is.
type IntakeRecord map[string]any

// Raw returns the value stored under key, nil when absent.
func (r IntakeRecord) Raw(key string) any {
	if r == nil {
		return nil
	}
	return r[key]
}

// Str renders the value under key as text. Falsy values (absent, nil, "",
// 0, false) render as "".
func (r IntakeRecord) Str(key string) string {
	return stringify(r.Raw(key))
}

func (r IntakeRecord) Name() string     { return r.Str(FieldName) }
func (r IntakeRecord) Phone() string    { return r.Str(FieldPhone) }
func (r IntakeRecord) Email() string    { return r.Str(FieldEmail) }
func (r IntakeRecord) Symptoms() string { return r.Str(FieldSymptoms) }

// Temperature is the reported body temperature in °C, 0 when unparseable.
func (r IntakeRecord) Temperature() float64 {
	return parseFloatPrefix(r.Str(FieldTemperature))
}

// PainLevel is the integral pain score. Out-of-range values are not clamped.
func (r IntakeRecord) PainLevel() int {
	return parseIntPrefix(r.Str(FieldPainLevel))
}

// Bleeding is true for "yes" or "có" in any letter case.
func (r IntakeRecord) Bleeding() bool {
	s, ok := r.Raw(FieldBleeding).(string)
	if !ok {
		return false
	}
	return strings.EqualFold(s, "yes") || strings.EqualFold(s, "có")
}

// Clone returns a shallow copy, so callers can add fields without touching
// the caller's map.
func (r IntakeRecord) Clone() IntakeRecord {
	out := make(IntakeRecord, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 || math.IsNaN(t) {
			return ""
		}
		if math.IsInf(t, 1) {
			return "Infinity"
		}
		if math.IsInf(t, -1) {
			return "-Infinity"
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		if t == 0 || math.IsNaN(float64(t)) {
			return ""
		}
		if math.IsInf(float64(t), 0) {
			return stringify(float64(t))
		}
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return stringify(float64(t))
	case int64:
		return stringify(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// parseFloatPrefix returns the longest decimal prefix of s (after leading
// whitespace) as a float, or 0 when there is none.
func parseFloatPrefix(s string) float64 {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	if inf, ok := infinityPrefix(s); ok {
		return inf
	}
	end := scanDigits(s, 0, true)
	if end == 0 {
		return 0
	}
	// optional exponent, only taken when followed by digits
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		i := end + 1
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > i {
			end = j
		}
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		// overflow still yields ±Inf from ParseFloat; anything else is no number
		if math.IsInf(f, 0) {
			return f
		}
		return 0
	}
	return f
}

// infinityPrefix recognizes an optionally signed "Infinity" at the start of s.
func infinityPrefix(s string) (float64, bool) {
	sign := 1
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "Infinity") {
		return 0, false
	}
	return math.Inf(sign), true
}

// parseIntPrefix returns the leading integer of s, or 0 when there is none.
func parseIntPrefix(s string) int {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	end := scanDigits(s, 0, false)
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// out of range saturates
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return n
		}
		return 0
	}
	return n
}

// scanDigits returns the end of an optionally signed run of digits starting
// at i. With fraction set, a single '.' may appear. It returns 0 when no
// digit was consumed.
func scanDigits(s string, i int, fraction bool) int {
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if fraction && i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
			digits++
		}
		if j > i+1 || digits > 0 {
			i = j
		}
	}
	if digits == 0 {
		return 0
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
