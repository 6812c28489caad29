package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/logger"
)

// sqliteDSNOptions enables WAL so the consumer query can read while a
// ranking pass replaces rows.
const sqliteDSNOptions = "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Database.SQLite.Path == "" {
		return errors.ValidationError("sqlite path must not be empty")
	}
	return nil
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	path := store.Settings.Database.SQLite.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(fmt.Errorf("failed to create database directory: %w", err)).
				Component("datastore").
				Category(errors.CategorySystem).
				Context("path", dir).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path+sqliteDSNOptions), store.gormConfig(store.Settings.Database.SlowThreshold))
	if err != nil {
		return errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	store.DB = db
	store.isConstraintViolation = isSQLiteConstraintViolation
	GetLogger().Info("opened SQLite database", logger.String("path", path))
	return performAutoMigration(db, conf.DatabaseSQLite)
}

// Close closes the SQLite database connection.
func (store *SQLiteStore) Close() error {
	return store.closeDB(conf.DatabaseSQLite)
}

func isSQLiteConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
