package datastore

import (
	"fmt"

	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/logger"
)

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// dbError wraps a failed query with its operation and table.
func dbError(err error, operation, table string) error {
	return errors.New(fmt.Errorf("%s: %w", operation, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("table", table).
		Build()
}
