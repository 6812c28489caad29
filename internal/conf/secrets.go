package conf

import (
	"fmt"

	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/secrets"
)

// resolveSecrets replaces credential settings with their resolved values:
// password files are read and ${VAR} references are expanded.
func resolveSecrets(s *Settings) error {
	var err error
	if s.Database.MySQL.Password, err = secrets.Resolve(s.Database.MySQL.PasswordFile, s.Database.MySQL.Password); err != nil {
		return secretSettingError("database.mysql.password", err)
	}
	if s.MQTT.Password, err = secrets.Resolve(s.MQTT.PasswordFile, s.MQTT.Password); err != nil {
		return secretSettingError("mqtt.password", err)
	}
	if s.Telemetry.DSN, err = secrets.ExpandString(s.Telemetry.DSN); err != nil {
		return secretSettingError("telemetry.dsn", err)
	}
	for i, u := range s.Notification.URLs {
		if s.Notification.URLs[i], err = secrets.ExpandString(u); err != nil {
			return secretSettingError(fmt.Sprintf("notification.urls[%d]", i), err)
		}
	}
	return nil
}

func secretSettingError(key string, err error) error {
	return errors.New(fmt.Errorf("error resolving %s: %w", key, err)).
		Category(errors.CategoryConfiguration).
		Context("setting", key).
		Build()
}
