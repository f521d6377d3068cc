package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load searches the working directory, so each test runs from its own
// temp dir to stay clear of any real config.yaml.
func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ocpp-sim", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.True(t, cfg.Development())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.UI.Enabled)
	assert.Equal(t, ":8080", cfg.UI.Addr)
	assert.Equal(t, "./data/stations", cfg.Storage.Dir)
	assert.Equal(t, 256, cfg.Cache.Size)
	assert.Equal(t, 30*time.Second, cfg.Shutdown.Timeout)
	assert.Empty(t, cfg.Stations)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := chtemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
app:
  environment: production
logging:
  level: warn
ui:
  addr: ":9090"
stations:
  - template_file: templates/ac-22kw.json
    number_of_stations: 5
    auto_start: true
shutdown:
  timeout: 10s
`), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Development())
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.UI.Addr)
	assert.Equal(t, 10*time.Second, cfg.Shutdown.Timeout)
	require.Len(t, cfg.Stations, 1)
	assert.Equal(t, "templates/ac-22kw.json", cfg.Stations[0].TemplateFile)
	assert.Equal(t, 5, cfg.Stations[0].NumberOfStations)
	assert.True(t, cfg.Stations[0].AutoStart)
}

func TestEnvironmentOverrides(t *testing.T) {
	chtemp(t)
	t.Setenv("SIM_UI_ADDR", ":7070")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_DIR", "/var/lib/sim")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.UI.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/sim", cfg.Storage.Dir)
}

func TestEnvironmentBeatsFile(t *testing.T) {
	dir := chtemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("ui:\n  addr: \":9090\"\n"), 0o644))
	t.Setenv("UI_ADDR", ":6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.UI.Addr)
}

func TestValidateRejectsBadStations(t *testing.T) {
	dir := chtemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
stations:
  - number_of_stations: 3
`), 0o644))

	_, err := Load()
	assert.ErrorContains(t, err, "template_file")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
stations:
  - template_file: t.json
    number_of_stations: -1
`), 0o644))

	_, err = Load()
	assert.ErrorContains(t, err, "negative")
}

func TestMalformedFileErrors(t *testing.T) {
	dir := chtemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("ui: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}
