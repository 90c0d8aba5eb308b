package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntakeRecord_Temperature(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want float64
	}{
		{"absent", nil, 0},
		{"number", 38.5, 38.5},
		{"string", "37.9", 37.9},
		{"unit suffix", "38.2C", 38.2},
		{"leading space", "  38", 38},
		{"comma decimal", "38,5", 38},
		{"garbage", "hot", 0},
		{"empty", "", 0},
		{"leading dot", ".5", 0.5},
		{"exponent", "3.8e1", 38},
		{"dangling exponent", "38e", 38},
		{"json number", json.Number("37.5"), 37.5},
		{"bool", true, 0},
		{"infinity", "Infinity", math.Inf(1)},
		{"negative infinity", "-Infinity", math.Inf(-1)},
		{"infinity suffix", "+Infinity degrees", math.Inf(1)},
		{"lowercase inf", "inf", 0},
		{"overflow", "1e400", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := IntakeRecord{}
			if tt.raw != nil {
				r[FieldTemperature] = tt.raw
			}
			got := r.Temperature()
			if math.IsInf(tt.want, 0) {
				assert.Equal(t, tt.want, got)
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestIntakeRecord_PainLevel(t *testing.T) {
	tests := []struct {
		raw  any
		want int
	}{
		{nil, 0},
		{8.0, 8},
		{"7", 7},
		{"7.9", 7},
		{7.9, 7},
		{"7 /10", 7},
		{"-3", -3},
		{"12", 12},
		{"severe", 0},
		{"99999999999999999999", math.MaxInt},
		{"-99999999999999999999", math.MinInt},
		{1e21, math.MaxInt},
	}
	for _, tt := range tests {
		r := IntakeRecord{FieldPainLevel: tt.raw}
		assert.Equal(t, tt.want, r.PainLevel(), "raw %#v", tt.raw)
	}
}

func TestIntakeRecord_Bleeding(t *testing.T) {
	assert.True(t, IntakeRecord{FieldBleeding: "yes"}.Bleeding())
	assert.True(t, IntakeRecord{FieldBleeding: "YES"}.Bleeding())
	assert.True(t, IntakeRecord{FieldBleeding: "Có"}.Bleeding())
	assert.True(t, IntakeRecord{FieldBleeding: "CÓ"}.Bleeding())
	assert.False(t, IntakeRecord{FieldBleeding: "no"}.Bleeding())
	assert.False(t, IntakeRecord{FieldBleeding: " yes"}.Bleeding())
	assert.False(t, IntakeRecord{FieldBleeding: true}.Bleeding())
	assert.False(t, IntakeRecord{}.Bleeding())
}

func TestIntakeRecord_Str(t *testing.T) {
	r := IntakeRecord{
		"name":  "Lan",
		"zero":  0.0,
		"off":   false,
		"on":    true,
		"temp":  38.0,
		"list":  []any{"a", 1.0},
		"nil":   nil,
		"empty": "",
	}
	assert.Equal(t, "Lan", r.Str("name"))
	assert.Equal(t, "", r.Str("zero"))
	assert.Equal(t, "", r.Str("off"))
	assert.Equal(t, "true", r.Str("on"))
	assert.Equal(t, "38", r.Str("temp"))
	assert.Equal(t, `["a",1]`, r.Str("list"))
	assert.Equal(t, "", r.Str("nil"))
	assert.Equal(t, "", r.Str("missing"))

	tests := []struct {
		raw  any
		want string
	}{
		{float32(37.9), "37.9"},
		{float32(38), "38"},
		{float32(0), ""},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{int64(7), "7"},
		{json.Number("0"), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IntakeRecord{"v": tt.raw}.Str("v"), "raw %#v", tt.raw)
	}

	var nilRecord IntakeRecord
	assert.Equal(t, "", nilRecord.Name())
}

func TestIntakeRecord_Clone(t *testing.T) {
	orig := IntakeRecord{"name": "Lan"}
	c := orig.Clone()
	c[FieldTimestamp] = "2026-01-01T00:00:00Z"

	assert.NotContains(t, orig, FieldTimestamp)
	assert.Equal(t, "Lan", c.Name())
}
