// Package store persists captured check-ins, dispatch audits and appointments.
package store

import (
	"context"
	"encoding/json"
	"time"

	"PostOpTriage/internal/models"
	"PostOpTriage/pkg/errors"
	"PostOpTriage/pkg/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// RawStore captures submissions as they arrive.
type RawStore interface {
	Append(ctx context.Context, record models.IntakeRecord, source string) (models.Submission, error)
}

// Repository is the gorm-backed store. It is safe for concurrent use.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects with the given driver and migrates the schema.
func Open(driver, dsn string) (*Repository, error) {
	db, err := util.InitDatabase(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driverName(driver))
	}
	repo, err := New(db)
	if err != nil {
		if sqlDB, e := db.DB(); e == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return repo, nil
}

// New migrates the schema on an existing connection.
func New(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&models.Submission{}, &models.TriageLog{}, &models.Appointment{}); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *Repository) DB() *gorm.DB { return r.db }

// Append stores record as received. ReceivedAt comes from the record's
// timestamp field when it parses, otherwise from the clock.
func (r *Repository) Append(ctx context.Context, record models.IntakeRecord, source string) (models.Submission, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return models.Submission{}, errors.WithCodef(errors.CodeInvalidInput, "encode submission: %v", err)
	}
	received := r.now()
	if ts, err := time.Parse(time.RFC3339Nano, record.Str(models.FieldTimestamp)); err == nil {
		received = ts.UTC()
	}
	sub := models.Submission{
		ID:         uuid.NewString(),
		Name:       record.Name(),
		Phone:      record.Phone(),
		Email:      record.Email(),
		Payload:    string(payload),
		Source:     source,
		ReceivedAt: received,
	}
	if err := r.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return models.Submission{}, storeErr(err, "append submission")
	}
	return sub, nil
}

// ListSubmissions returns the newest submissions first.
func (r *Repository) ListSubmissions(ctx context.Context, limit int) ([]models.Submission, error) {
	var subs []models.Submission
	err := r.db.WithContext(ctx).
		Order("received_at DESC").
		Limit(clampLimit(limit)).
		Find(&subs).Error
	if err != nil {
		return nil, storeErr(err, "list submissions")
	}
	return subs, nil
}

func (r *Repository) GetSubmission(ctx context.Context, id string) (models.Submission, error) {
	var sub models.Submission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sub, errors.WithCodef(errors.CodeNotFound, "submission %s not found", id)
		}
		return sub, storeErr(err, "get submission")
	}
	return sub, nil
}

func (r *Repository) RecordTriage(ctx context.Context, log *models.TriageLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return storeErr(err, "record triage")
	}
	return nil
}

// TriageLogs returns the audits of one submission, oldest first.
func (r *Repository) TriageLogs(ctx context.Context, submissionID string) ([]models.TriageLog, error) {
	var logs []models.TriageLog
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, storeErr(err, "list triage logs")
	}
	return logs, nil
}

// CreateAppointment assigns a Key when the caller left it empty.
func (r *Repository) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt.Key == "" {
		appt.Key = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(appt).Error; err != nil {
		return storeErr(err, "create appointment")
	}
	return nil
}

func (r *Repository) ListAppointments(ctx context.Context, limit int) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&appts).Error
	if err != nil {
		return nil, storeErr(err, "list appointments")
	}
	return appts, nil
}

// PurgeBefore deletes submissions received before cutoff together with
// their triage logs, and reports how many submissions went.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	cutoff = cutoff.UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&models.Submission{}).Select("id").Where("received_at < ?", cutoff)
		if err := tx.Where("submission_id IN (?)", old).Delete(&models.TriageLog{}).Error; err != nil {
			return err
		}
		res := tx.Where("received_at < ?", cutoff).Delete(&models.Submission{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, storeErr(err, "purge submissions")
	}
	return purged, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return storeErr(err, "database handle")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storeErr(err, "database ping")
	}
	return nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func storeErr(err error, msg string) error {
	e := errors.Wrap(err, msg)
	e.Code = errors.CodeStoreFailure
	return e
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func driverName(driver string) string {
	if driver == "" {
		return "sqlite"
	}
	return driver
}
