package logger

import (
	"os"
	"path/filepath"
	"sync"
)

var (
	globalLogger   Logger
	globalLoggerMu sync.RWMutex
)

// SetGlobal sets the process-wide root logger.
// Call once during startup after the configuration is loaded.
func SetGlobal(l Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = l
}

// Global returns the root logger, falling back to an info-level console logger
// when SetGlobal has not been called.
func Global() Logger {
	globalLoggerMu.RLock()
	l := globalLogger
	globalLoggerMu.RUnlock()
	if l != nil {
		return l
	}

	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if globalLogger == nil {
		globalLogger = newZapLogger(os.Stdout, LogLevelInfo, false)
	}
	return globalLogger
}

func ensureFileDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
