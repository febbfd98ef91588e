package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/documents"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InMemoryPath is the sqlite DSN used when no persistent file can be opened.
const InMemoryPath = ":memory:"

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, zapLogger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// A single connection keeps writes serialized and keeps ":memory:" databases alive.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&documents.Document{}, &migrationRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := applyMigrations(db, zapLogger); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if zapLogger != nil {
		zapLogger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// OpenWithFallback opens the persistent database at path and, when that fails,
// falls back to a transient in-memory database.
func OpenWithFallback(path string, zapLogger *zap.Logger) (*gorm.DB, bool, error) {
	db, err := OpenSQLite(path, zapLogger)
	if err == nil {
		return db, false, nil
	}
	if zapLogger != nil {
		zapLogger.Warn("persistent database unavailable, using in-memory database",
			zap.String("path", path),
			zap.Error(err))
	}
	db, memErr := OpenSQLite(InMemoryPath, zapLogger)
	if memErr != nil {
		return nil, false, fmt.Errorf("open %s: %w; in-memory fallback: %w", path, err, memErr)
	}
	return db, true, nil
}
