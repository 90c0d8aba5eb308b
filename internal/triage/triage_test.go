package triage

import (
	"strings"
	"testing"

	"PostOpTriage/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		record models.IntakeRecord
		want   Tier
	}{
		{"empty record", models.IntakeRecord{}, Green},
		{"nil record", nil, Green},
		{"fever boundary", models.IntakeRecord{"temperature": 38.0}, Red},
		{"fever as string", models.IntakeRecord{"temperature": "38"}, Red},
		{"just below fever", models.IntakeRecord{"temperature": 37.9}, Yellow},
		{"low grade boundary", models.IntakeRecord{"temperature": 37.5}, Yellow},
		{"normal temperature", models.IntakeRecord{"temperature": 37.4}, Green},
		{"bleeding yes", models.IntakeRecord{"bleeding": "yes"}, Red},
		{"bleeding vietnamese mixed case", models.IntakeRecord{"bleeding": "Có"}, Red},
		{"bleeding no", models.IntakeRecord{"bleeding": "no"}, Green},
		{"pain 8", models.IntakeRecord{"pain_level": 8}, Red},
		{"pain 7", models.IntakeRecord{"pain_level": 7}, Yellow},
		{"pain 7.9 truncates", models.IntakeRecord{"pain_level": "7.9"}, Yellow},
		{"pain 5", models.IntakeRecord{"pain_level": "5"}, Yellow},
		{"pain 4", models.IntakeRecord{"pain_level": 4}, Green},
		{"pain out of range", models.IntakeRecord{"pain_level": 42}, Red},
		{"unparseable numbers", models.IntakeRecord{"temperature": "hot", "pain_level": "a lot"}, Green},
		{"red wins over yellow", models.IntakeRecord{"temperature": 37.6, "pain_level": 9}, Red},
		{"huge pain string", models.IntakeRecord{"pain_level": "99999999999999999999"}, Red},
		{"huge pain number", models.IntakeRecord{"pain_level": 1e21}, Red},
		{"infinite temperature", models.IntakeRecord{"temperature": "Infinity"}, Red},
		{"negative infinite temperature", models.IntakeRecord{"temperature": "-Infinity"}, Green},
		{"huge negative pain", models.IntakeRecord{"pain_level": "-99999999999999999999"}, Green},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.record))
		})
	}
}

func TestClassify_DoesNotMutate(t *testing.T) {
	r := models.IntakeRecord{"temperature": "38.5", "name": "Lan"}
	before := r.Clone()

	Classify(r)
	Summarize(r)

	assert.Equal(t, before, r)
}

func TestSummarize(t *testing.T) {
	r := models.IntakeRecord{
		"name":        "Nguyễn Văn A",
		"phone":       "0901234567",
		"temperature": 38.5,
		"pain_level":  "9",
		"bleeding":    "có",
		"symptoms":    "sưng <má>",
		"email":       "a@example.com",
	}
	assert.Equal(t,
		"Name: Nguyễn Văn A; Phone: 0901234567; Temp:38.5; Pain:9; Bleeding:có; Symptoms:sưng <má>",
		Summarize(r))
}

func TestSummarize_EmptyAndFalsy(t *testing.T) {
	assert.Equal(t, "Name: ; Phone: ; Temp:; Pain:; Bleeding:; Symptoms:", Summarize(nil))

	got := Summarize(models.IntakeRecord{"pain_level": 0, "temperature": "", "name": "Binh"})
	assert.Equal(t, "Name: Binh; Phone: ; Temp:; Pain:; Bleeding:; Symptoms:", got)
}

func TestSummarize_ValuesInOrder(t *testing.T) {
	r := models.IntakeRecord{"symptoms": "S", "name": "N", "bleeding": "B", "phone": "P"}
	s := Summarize(r)

	last := -1
	for _, v := range []string{"N", "P", "B", "S"} {
		i := strings.Index(s, v)
		assert.Greater(t, i, last, v)
		last = i
	}
}

func TestTier(t *testing.T) {
	assert.Equal(t, "red", Red.Lower())
	assert.Equal(t, "GREEN", Green.String())

	tier, ok := ParseTier("yellow")
	assert.True(t, ok)
	assert.Equal(t, Yellow, tier)

	_, ok = ParseTier("purple")
	assert.False(t, ok)
}
