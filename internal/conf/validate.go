// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateLogSettings,
		validateDatabaseSettings,
		validateActiveLearningSettings,
		validateFeatureSettings,
		validateSchedulerSettings,
		validateMQTTSettings,
		validateNotificationSettings,
		validateTelemetrySettings,
		validateMetricsSettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLogSettings(s *Settings) error {
	switch strings.ToLower(s.Main.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("main.log.format must be json or console, got %q", s.Main.Log.Format)
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	switch s.Database.Type {
	case DatabaseSQLite:
		if s.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case DatabaseMySQL:
		m := s.Database.MySQL
		if m.Host == "" || m.Database == "" || m.Username == "" {
			return fmt.Errorf("database.mysql requires host, username and database")
		}
		if m.Port <= 0 || m.Port > 65535 {
			return fmt.Errorf("database.mysql.port %d out of range", m.Port)
		}
	default:
		return fmt.Errorf("database.type must be %s or %s, got %q", DatabaseSQLite, DatabaseMySQL, s.Database.Type)
	}
	return nil
}

func validateActiveLearningSettings(s *Settings) error {
	al := s.ActiveLearning
	var errs []string
	if al.Algorithm == "" {
		errs = append(errs, "activelearning.algorithm is required")
	}
	if al.NumClasses <= 0 {
		errs = append(errs, "activelearning.numclasses must be positive")
	}
	if al.Budget < 0 {
		errs = append(errs, "activelearning.budget must not be negative")
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"enmsthreshold", al.ENMSThreshold},
		{"intrathreshold", al.IntraThreshold},
		{"interthreshold", al.InterThreshold},
		{"beta", al.Beta},
	} {
		if p.value < 0 || p.value > 1 {
			errs = append(errs, fmt.Sprintf("activelearning.%s must be within [0, 1]", p.name))
		}
	}
	if al.Alpha <= 0 || al.Alpha > 1 {
		errs = append(errs, "activelearning.alpha must be within (0, 1]")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateFeatureSettings(s *Settings) error {
	if s.Features.Workers < 1 {
		return fmt.Errorf("features.workers must be at least 1")
	}
	if s.Features.Dimension < 0 {
		return fmt.Errorf("features.dimension must not be negative")
	}
	return nil
}

func validateSchedulerSettings(s *Settings) error {
	if !s.Scheduler.Enabled {
		return nil
	}
	if s.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if s.Scheduler.Threshold < 1 {
		return fmt.Errorf("scheduler.threshold must be at least 1")
	}
	if s.Scheduler.PassTimeout <= 0 {
		return fmt.Errorf("scheduler.passtimeout must be positive")
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	if s.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
	}
	u, err := url.Parse(s.MQTT.Broker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("mqtt.broker %q is not a valid broker URL", s.MQTT.Broker)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("mqtt.broker scheme %q is not supported", u.Scheme)
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	if s.Notification.Enabled && len(s.Notification.URLs) == 0 {
		return fmt.Errorf("notification.urls must not be empty when notifications are enabled")
	}
	if s.Notification.MaxPerHour < 0 {
		return fmt.Errorf("notification.maxperhour must be non-negative, got %d", s.Notification.MaxPerHour)
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	if s.Telemetry.Enabled && s.Telemetry.DSN == "" {
		return fmt.Errorf("telemetry.dsn is required when telemetry is enabled")
	}
	return nil
}

func validateMetricsSettings(s *Settings) error {
	if !s.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Metrics.Listen); err != nil {
		return fmt.Errorf("metrics.listen %q: %w", s.Metrics.Listen, err)
	}
	return nil
}
