package util

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase opens the configured database. An empty driver means sqlite.
func InitDatabase(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	db, err := createDatabaseInstance(cfg, driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "" || driver == "sqlite" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY on concurrent appends
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}
