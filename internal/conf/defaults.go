// conf/defaults.go default values for settings
package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultSettings returns the settings used when no config file and no
// environment overrides exist. No secrets are resolved.
func DefaultSettings() (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling default settings: %w", err)
	}
	return settings, nil
}

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "wildlens")
	v.SetDefault("main.log.level", "info")
	v.SetDefault("main.log.format", "json")
	v.SetDefault("main.log.output", "stdout")

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.slowthreshold", 200*time.Millisecond)
	v.SetDefault("database.sqlite.path", "wildlens.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.passwordfile", "")
	v.SetDefault("database.mysql.database", "wildlens")

	v.SetDefault("activelearning.algorithm", "enms_diversity")
	v.SetDefault("activelearning.numclasses", 98)
	v.SetDefault("activelearning.budget", 0)
	v.SetDefault("activelearning.enmsthreshold", 0.5)
	v.SetDefault("activelearning.intrathreshold", 0.7)
	v.SetDefault("activelearning.interthreshold", 0.3)
	v.SetDefault("activelearning.alpha", 0.5)
	v.SetDefault("activelearning.beta", 0.75)

	v.SetDefault("features.workers", 4)
	v.SetDefault("features.cachettl", 10*time.Minute)
	v.SetDefault("features.dimension", 0)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("scheduler.threshold", 50)
	v.SetDefault("scheduler.passtimeout", 10*time.Minute)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientid", "wildlens")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.passwordfile", "")
	v.SetDefault("mqtt.topic", "wildlens/rankings")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.timeout", 10*time.Second)
	v.SetDefault("notification.maxperhour", 6)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", ":9090")
}
