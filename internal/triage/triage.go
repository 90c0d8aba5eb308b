// Package triage maps a patient check-in to a severity tier.
package triage

import (
	"fmt"
	"strings"

	"PostOpTriage/internal/models"
)

// Tier is the severity of a check-in.
type Tier string

const (
	Red    Tier = "RED"
	Yellow Tier = "YELLOW"
	Green  Tier = "GREEN"
)

// Thresholds, inclusive.
const (
	RedTemperature    = 38.0
	RedPainLevel      = 8
	YellowTemperature = 37.5
	YellowPainLevel   = 5
)

func (t Tier) String() string { return string(t) }

// Lower is the wire form used in API responses ("red", "yellow", "green").
func (t Tier) Lower() string { return strings.ToLower(string(t)) }

// ParseTier accepts either case. Unknown input is reported as not ok.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case Red:
		return Red, true
	case Yellow:
		return Yellow, true
	case Green:
		return Green, true
	}
	return "", false
}

// Classify is total and never mutates record. The first matching rule wins.
func Classify(record models.IntakeRecord) Tier {
	temp := record.Temperature()
	pain := record.PainLevel()

	if temp >= RedTemperature || record.Bleeding() || pain >= RedPainLevel {
		return Red
	}
	if pain >= YellowPainLevel || temp >= YellowTemperature {
		return Yellow
	}
	return Green
}

// Summarize renders the one-line clinician summary of record.
func Summarize(record models.IntakeRecord) string {
	return fmt.Sprintf("Name: %s; Phone: %s; Temp:%s; Pain:%s; Bleeding:%s; Symptoms:%s",
		record.Str(models.FieldName),
		record.Str(models.FieldPhone),
		record.Str(models.FieldTemperature),
		record.Str(models.FieldPainLevel),
		record.Str(models.FieldBleeding),
		record.Str(models.FieldSymptoms),
	)
}
