// conf/config.go
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wildlens/wildlens-go/internal/errors"
)

// EnvPrefix is prepended to environment variable overrides, e.g. WILDLENS_DATABASE_TYPE.
const EnvPrefix = "WILDLENS"

// Database types
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // json or console
	Output string `yaml:"output"` // stdout, stderr or a file path
}

// SQLiteSettings holds the embedded database location
type SQLiteSettings struct {
	Path string `yaml:"path"`
}

// MySQLSettings holds the connection details of a MySQL server
type MySQLSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"` // may reference ${ENV_VARS}
	// PasswordFile takes precedence over Password, e.g. /run/secrets/mysql
	PasswordFile string `yaml:"passwordfile"`
	Database     string `yaml:"database"`
}

// DatabaseSettings selects and configures the ranking store
type DatabaseSettings struct {
	Type          string         `yaml:"type"`
	SlowThreshold time.Duration  `yaml:"slowthreshold"` // queries slower than this are logged at warn
	SQLite        SQLiteSettings `yaml:"sqlite"`
	MySQL         MySQLSettings  `yaml:"mysql"`
}

// ActiveLearningSettings configures the ENMS-DivProto selection
type ActiveLearningSettings struct {
	Algorithm      string  `yaml:"algorithm"`      // ranking tag written to the store
	NumClasses     int     `yaml:"numclasses"`     // fallback when the class table cannot be read
	Budget         int     `yaml:"budget"`         // 0 ranks the whole pool
	ENMSThreshold  float64 `yaml:"enmsthreshold"`  // same-class suppression similarity
	IntraThreshold float64 `yaml:"intrathreshold"` // max prototype similarity for acceptance
	InterThreshold float64 `yaml:"interthreshold"` // minority presence confidence
	Alpha          float64 `yaml:"alpha"`          // minority class fraction
	Beta           float64 `yaml:"beta"`           // budget share reserved for minority classes
}

// FeatureSettings configures detection feature extraction
type FeatureSettings struct {
	Workers   int           `yaml:"workers"`
	CacheTTL  time.Duration `yaml:"cachettl"`
	Dimension int           `yaml:"dimension"` // 0 accepts any embedding length
}

// SchedulerSettings configures threshold-triggered ranking passes
type SchedulerSettings struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Threshold   int           `yaml:"threshold"` // new pool images required for a pass
	PassTimeout time.Duration `yaml:"passtimeout"`
}

// MQTTSettings configures ranking-updated events
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientid"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// PasswordFile takes precedence over Password
	PasswordFile string `yaml:"passwordfile"`
	Topic        string `yaml:"topic"`
	Retain       bool   `yaml:"retain"`
}

// NotificationSettings configures operator alerts for failed passes
type NotificationSettings struct {
	Enabled bool          `yaml:"enabled"`
	URLs    []string      `yaml:"urls"` // shoutrrr service URLs
	Timeout time.Duration `yaml:"timeout"`
	// MaxPerHour caps alerts per hour, 0 disables the cap
	MaxPerHour int `yaml:"maxperhour"`
}

// TelemetrySettings configures Sentry error reporting
type TelemetrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// MetricsSettings configures the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Settings contains all configuration options for the service
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name string    `yaml:"name"`
		Log  LogConfig `yaml:"log"`
	} `yaml:"main"`

	Database       DatabaseSettings       `yaml:"database"`
	ActiveLearning ActiveLearningSettings `yaml:"activelearning"`
	Features       FeatureSettings        `yaml:"features"`
	Scheduler      SchedulerSettings      `yaml:"scheduler"`
	MQTT           MQTTSettings           `yaml:"mqtt"`
	Notification   NotificationSettings   `yaml:"notification"`
	Telemetry      TelemetrySettings      `yaml:"telemetry"`
	Metrics        MetricsSettings        `yaml:"metrics"`

	ConfigFile string `yaml:"-"` // file the settings were read from, runtime value
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings.
// An empty configPath searches the default config paths; a missing file
// there leaves the defaults in place.
func Load(configPath string) (*Settings, error) {
	v, err := initViper(configPath)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "init_viper").
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Category(errors.CategoryConfiguration).
			Build()
	}
	settings.ConfigFile = v.ConfigFileUsed()

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Category(errors.CategoryValidation).
			Build()
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// initViper creates a viper instance with defaults, env overrides and the config file.
func initViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaultConfig(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("fatal error reading config file %s: %w", configPath, err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	for _, path := range GetDefaultConfigPaths() {
		v.AddConfigPath(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("fatal error reading config file: %w", err)
	}
	return v, nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wildlens"))
	}
	return append(paths, "/etc/wildlens")
}

// GetSettings returns the settings of the last successful Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAML writes the settings to configPath atomically.
// Comments and ordering of an existing file are not preserved. Passwords
// read from a password file are not written.
func SaveYAML(configPath string, settings *Settings) error {
	out := *settings
	if out.Database.MySQL.PasswordFile != "" {
		out.Database.MySQL.Password = ""
	}
	if out.MQTT.PasswordFile != "" {
		out.MQTT.Password = ""
	}

	yamlData, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
