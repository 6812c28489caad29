package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildlens/wildlens-go/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "main:\n  name: test-site\n")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-site", settings.Main.Name)
	assert.Equal(t, path, settings.ConfigFile)
	assert.Equal(t, DatabaseSQLite, settings.Database.Type)
	assert.Equal(t, "enms_diversity", settings.ActiveLearning.Algorithm)
	assert.Equal(t, 98, settings.ActiveLearning.NumClasses)
	assert.InDelta(t, 0.5, settings.ActiveLearning.ENMSThreshold, 0)
	assert.InDelta(t, 0.7, settings.ActiveLearning.IntraThreshold, 0)
	assert.InDelta(t, 0.3, settings.ActiveLearning.InterThreshold, 0)
	assert.InDelta(t, 0.5, settings.ActiveLearning.Alpha, 0)
	assert.InDelta(t, 0.75, settings.ActiveLearning.Beta, 0)
	assert.Equal(t, 4, settings.Features.Workers)
	assert.Equal(t, 10*time.Minute, settings.Features.CacheTTL)
	assert.Equal(t, time.Minute, settings.Scheduler.Interval)
	assert.Equal(t, 50, settings.Scheduler.Threshold)
	assert.Equal(t, "wildlens/rankings", settings.MQTT.Topic)
	assert.Equal(t, ":9090", settings.Metrics.Listen)
	assert.Same(t, settings, GetSettings())
}

func TestLoadOverridesAndEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  type: mysql
  mysql:
    host: db.internal
    port: 3307
    username: ranker
    database: wildlife
activelearning:
  budget: 25
  alpha: 0.25
scheduler:
  interval: 30s
notification:
  enabled: true
  urls:
    - generic://hooks.example.com/alerts
`)
	t.Setenv("WILDLENS_MQTT_TOPIC", "site-a/rankings")
	t.Setenv("WILDLENS_FEATURES_WORKERS", "8")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DatabaseMySQL, settings.Database.Type)
	assert.Equal(t, "db.internal", settings.Database.MySQL.Host)
	assert.Equal(t, 3307, settings.Database.MySQL.Port)
	assert.Equal(t, 25, settings.ActiveLearning.Budget)
	assert.InDelta(t, 0.25, settings.ActiveLearning.Alpha, 0)
	assert.Equal(t, 30*time.Second, settings.Scheduler.Interval)
	assert.Equal(t, []string{"generic://hooks.example.com/alerts"}, settings.Notification.URLs)
	assert.Equal(t, "site-a/rankings", settings.MQTT.Topic)
	assert.Equal(t, 8, settings.Features.Workers)
}

func TestLoadResolvesSecrets(t *testing.T) {
	dir := t.TempDir()
	pwFile := filepath.Join(dir, "mysql_password")
	require.NoError(t, os.WriteFile(pwFile, []byte("from-file\n"), 0o600))
	t.Setenv("TEST_MQTT_PASSWORD", "from-env")
	t.Setenv("TEST_NTFY_TOKEN", "tok123")

	path := writeConfig(t, `
database:
  mysql:
    password: ignored
    passwordfile: `+pwFile+`
mqtt:
  password: ${TEST_MQTT_PASSWORD}
notification:
  urls:
    - ntfy://:${TEST_NTFY_TOKEN}@ntfy.example.com/wildlens
`)

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", settings.Database.MySQL.Password)
	assert.Equal(t, "from-env", settings.MQTT.Password)
	assert.Equal(t, []string{"ntfy://:tok123@ntfy.example.com/wildlens"}, settings.Notification.URLs)

	path = writeConfig(t, "telemetry:\n  dsn: ${TEST_UNSET_SENTRY_DSN}\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "telemetry.dsn")
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := writeConfig(t, `
database:
  type: postgres
activelearning:
  alpha: 0
  beta: 1.5
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 2)
	assert.Contains(t, ve.Errors[0], "database.type")
	assert.Contains(t, ve.Errors[1], "activelearning.beta")
	assert.Contains(t, ve.Errors[1], "activelearning.alpha")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestSaveYAMLRoundTrip(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  threshold: 75\n")
	settings, err := Load(path)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAML(out, settings))

	reloaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, 75, reloaded.Scheduler.Threshold)
	assert.Equal(t, settings.Scheduler.PassTimeout, reloaded.Scheduler.PassTimeout)
	assert.Equal(t, settings.Features.CacheTTL, reloaded.Features.CacheTTL)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be renamed away")
}

func TestSaveYAMLOmitsFilePasswords(t *testing.T) {
	t.Parallel()

	settings, err := DefaultSettings()
	require.NoError(t, err)
	settings.Database.MySQL.PasswordFile = "/run/secrets/db"
	settings.Database.MySQL.Password = "resolved-db-secret"
	settings.MQTT.Password = "inline-mqtt"

	out := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveYAML(out, settings))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "resolved-db-secret")
	assert.Contains(t, string(data), "/run/secrets/db")
	assert.Contains(t, string(data), "inline-mqtt", "inline values are kept as configured")
	assert.Equal(t, "resolved-db-secret", settings.Database.MySQL.Password, "caller settings are not modified")
}

func TestValidateSettingsSections(t *testing.T) {
	t.Parallel()

	valid := func() *Settings {
		s := &Settings{}
		s.Main.Log.Format = "json"
		s.Database = DatabaseSettings{Type: DatabaseSQLite, SQLite: SQLiteSettings{Path: "x.db"}}
		s.ActiveLearning = ActiveLearningSettings{
			Algorithm: "enms_diversity", NumClasses: 98,
			ENMSThreshold: 0.5, IntraThreshold: 0.7, InterThreshold: 0.3, Alpha: 0.5, Beta: 0.75,
		}
		s.Features.Workers = 1
		return s
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"bad log format", func(s *Settings) { s.Main.Log.Format = "xml" }, "main.log.format"},
		{"mysql port", func(s *Settings) {
			s.Database = DatabaseSettings{Type: DatabaseMySQL, MySQL: MySQLSettings{Host: "h", Username: "u", Database: "d"}}
		}, "port"},
		{"negative budget", func(s *Settings) { s.ActiveLearning.Budget = -1 }, "budget"},
		{"no workers", func(s *Settings) { s.Features.Workers = 0 }, "features.workers"},
		{"scheduler interval", func(s *Settings) {
			s.Scheduler = SchedulerSettings{Enabled: true, Threshold: 1, PassTimeout: time.Second}
		}, "scheduler.interval"},
		{"mqtt scheme", func(s *Settings) {
			s.MQTT = MQTTSettings{Enabled: true, Broker: "http://broker:80", Topic: "t"}
		}, "scheme"},
		{"notification urls", func(s *Settings) { s.Notification.Enabled = true }, "notification.urls"},
		{"notification rate", func(s *Settings) { s.Notification.MaxPerHour = -1 }, "notification.maxperhour"},
		{"telemetry dsn", func(s *Settings) { s.Telemetry.Enabled = true }, "telemetry.dsn"},
		{"metrics listen", func(s *Settings) { s.Metrics = MetricsSettings{Enabled: true, Listen: "9090"} }, "metrics.listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
