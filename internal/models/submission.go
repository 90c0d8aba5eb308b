package models

import "time"

const (
	SourceForm = "form" // /webhook/form-submit
	SourceAPI  = "api"  // /api/save-response
)

// Submission is a captured raw check-in.
type Submission struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"size:128" json:"name"`
	Phone      string    `gorm:"size:32;index" json:"phone"`
	Email      string    `gorm:"size:256" json:"email"`
	Payload    string    `gorm:"type:text" json:"payload"` // raw JSON as received
	Source     string    `gorm:"size:16" json:"source"`
	ReceivedAt time.Time `gorm:"index" json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TriageLog audits one dispatch run.
type TriageLog struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	SubmissionID       string    `gorm:"size:36;index" json:"submission_id"`
	Tier               string    `gorm:"size:8;index" json:"tier"` // RED / YELLOW / GREEN
	ClinicianAttempted bool      `json:"clinician_attempted"`
	ClinicianSucceeded bool      `json:"clinician_succeeded"`
	SMSAttempted       bool      `json:"sms_attempted"`
	SMSSucceeded       bool      `json:"sms_succeeded"`
	EmailAttempted     bool      `json:"email_attempted"`
	EmailSucceeded     bool      `json:"email_succeeded"`
	DurationMs         int64     `json:"duration_ms"`
	CreatedAt          time.Time `gorm:"index" json:"created_at"`
}

// Appointment is a follow-up visit request.
type Appointment struct {
	Key       string    `gorm:"primaryKey;size:36" json:"key"`
	ID        string    `gorm:"size:32;index" json:"id"` // APPT-<unix millis>, not unique
	Name      string    `gorm:"size:128" json:"name"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Email     string    `gorm:"size:256" json:"email,omitempty"`
	Date      string    `gorm:"size:64" json:"date"`
	Procedure string    `gorm:"size:256" json:"procedure"`
	CreatedAt time.Time `json:"created_at"`
}
