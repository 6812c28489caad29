package activelearning

import "github.com/wildlens/wildlens-go/internal/logger"

// GetLogger returns the activelearning module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("activelearning")
}
