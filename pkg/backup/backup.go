package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const filePrefix = "postop_backup_"

// Backup snapshots the sqlite database into a directory and keeps the newest
// Keep files.
type Backup struct {
	db     *gorm.DB
	driver string
	dir    string
	keep   int
	logger *zap.Logger
	now    func() time.Time
}

func New(db *gorm.DB, driver, dir string, keep int, logger *zap.Logger) *Backup {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keep <= 0 {
		keep = 7
	}
	return &Backup{db: db, driver: driver, dir: dir, keep: keep, logger: logger.Named("backup"), now: time.Now}
}

// Run implements scheduler.Job.
func (b *Backup) Run(ctx context.Context) error {
	_, err := b.Execute(ctx)
	return err
}

// Execute writes one snapshot and returns its path.
func (b *Backup) Execute(ctx context.Context) (string, error) {
	if b.driver != "" && b.driver != "sqlite" {
		return "", fmt.Errorf("unsupported DB_DRIVER for backup: %s", b.driver)
	}
	if err := os.MkdirAll(b.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	dst := filepath.Join(b.dir, fmt.Sprintf("%s%s.db", filePrefix, b.now().Format("20060102_150405")))
	// VACUUM INTO produces a consistent copy even while WAL writers are active
	if err := b.db.WithContext(ctx).Exec("VACUUM INTO ?", dst).Error; err != nil {
		return "", fmt.Errorf("sqlite backup to %s: %w", dst, err)
	}
	b.logger.Info("SQLite database backup completed", zap.String("path", dst))

	if err := b.prune(); err != nil {
		b.logger.Warn("pruning old backups failed", zap.Error(err))
	}
	return dst, nil
}

func (b *Backup) prune() error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= b.keep {
		return nil
	}
	// timestamped names sort chronologically
	sort.Strings(names)
	for _, name := range names[:len(names)-b.keep] {
		if err := os.Remove(filepath.Join(b.dir, name)); err != nil {
			return err
		}
	}
	return nil
}
