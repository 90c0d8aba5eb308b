package dispatch

import (
	"time"

	"PostOpTriage/internal/triage"
)

type Channel string

const (
	ChannelClinician Channel = "clinician"
	ChannelSMS       Channel = "sms"
	ChannelEmail     Channel = "email"
)

// ChannelResult is what happened on one channel. Attempted is false when a
// precondition (configuration, contact field) was not met.
type ChannelResult struct {
	Channel   Channel `json:"channel"`
	Attempted bool    `json:"attempted"`
	Succeeded bool    `json:"succeeded"`
	Error     string  `json:"error,omitempty"`
}

// Outcome aggregates one dispatch run.
type Outcome struct {
	Tier       triage.Tier   `json:"tier"`
	Clinician  ChannelResult `json:"clinician"`
	SMS        ChannelResult `json:"sms"`
	Email      ChannelResult `json:"email"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"duration_ms"`
}

func newOutcome(tier triage.Tier) Outcome {
	return Outcome{
		Tier:      tier,
		Clinician: ChannelResult{Channel: ChannelClinician},
		SMS:       ChannelResult{Channel: ChannelSMS},
		Email:     ChannelResult{Channel: ChannelEmail},
	}
}

func (o *Outcome) finish(d time.Duration) {
	o.Duration = d
	o.DurationMs = d.Milliseconds()
}

// Results lists the channels in clinician, sms, email order.
func (o Outcome) Results() []ChannelResult {
	return []ChannelResult{o.Clinician, o.SMS, o.Email}
}

func (o Outcome) Attempts() int {
	n := 0
	for _, r := range o.Results() {
		if r.Attempted {
			n++
		}
	}
	return n
}

func (o Outcome) Successes() int {
	n := 0
	for _, r := range o.Results() {
		if r.Succeeded {
			n++
		}
	}
	return n
}
