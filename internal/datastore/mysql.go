package datastore

import (
	"fmt"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/logger"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	s := settings.Database.MySQL
	if s.Host == "" || s.Database == "" {
		return errors.ValidationError("mysql host and database must be set")
	}
	return nil
}

// mysqlDSN builds the driver DSN from settings.
func mysqlDSN(s conf.MySQLSettings) string {
	cfg := gomysql.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	cfg.DBName = s.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	s := store.Settings.Database.MySQL
	db, err := gorm.Open(mysql.Open(mysqlDSN(s)), store.gormConfig(store.Settings.Database.SlowThreshold))
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", s.Host),
			logger.Int("port", s.Port),
			logger.String("database", s.Database),
			logger.Error(err))
		return errors.New(fmt.Errorf("failed to open MySQL database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("host", s.Host).
			Context("database", s.Database).
			Build()
	}

	store.DB = db
	store.isConstraintViolation = isMySQLConstraintViolation
	return performAutoMigration(db, conf.DatabaseMySQL)
}

// Close closes the MySQL database connection.
func (store *MySQLStore) Close() error {
	return store.closeDB(conf.DatabaseMySQL)
}

func isMySQLConstraintViolation(err error) bool {
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}
