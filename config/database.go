package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// ConnectLocalDatabase opens (or creates) the on-device sqlite file and
// returns the handle. The handle is passed explicitly to every service;
// there is no package-level DB.
//
// sqlite open failures on a tablet are almost always transient (another
// process holding the file during an update), so we retry briefly with
// backoff instead of failing the whole app start.
func ConnectLocalDatabase(settings Settings) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", settings.LocalDBPath)

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		db, err = gorm.Open(sqlite.Open(dsn), initConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				// sqlite serializes writers; one connection avoids
				// SQLITE_BUSY churn under the sync drain.
				sqlDB.SetMaxOpenConns(1)
			}
			return db, nil
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 4))
		if sleep > 10*time.Second {
			sleep = 10 * time.Second
		}
		log.Printf("failed to open local database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
	return nil, fmt.Errorf("open local database %s: %w", settings.LocalDBPath, err)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
	return newLogger
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
