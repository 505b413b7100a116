package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/trafficgen/internal/traffic"
)

var envKeys = []string{
	"URL", "HIGH_LOAD_MAX", "HIGH_LOAD_MIN", "BURST_DELAY_MAX", "BURST_DELAY_MIN",
	"LOW_LOAD_MAX", "LOW_LOAD_MIN", "LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
	"SUMMARY_INTERVAL",
}

// clearEnv unsets every configuration variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trafficgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultURL, cfg.URL)
	assert.Equal(t, traffic.DefaultLoad(), cfg.Load)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, FormatJSON, cfg.LogFormat)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, time.Minute, cfg.SummaryInterval)
	assert.Empty(t, cfg.Fallbacks)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("URL", "http://petclinic.local:8080")
	t.Setenv("HIGH_LOAD_MAX", "10")
	t.Setenv("HIGH_LOAD_MIN", "5")
	t.Setenv("BURST_DELAY_MAX", "3")
	t.Setenv("BURST_DELAY_MIN", "2")
	t.Setenv("LOW_LOAD_MAX", "1")
	t.Setenv("LOW_LOAD_MIN", "1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("METRICS_ADDR", ":9102")
	t.Setenv("SUMMARY_INTERVAL", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://petclinic.local:8080", cfg.URL)
	assert.Equal(t, traffic.Range{Min: 5, Max: 10}, cfg.Load.High)
	assert.Equal(t, traffic.Range{Min: 2, Max: 3}, cfg.Load.BurstDelay)
	assert.Equal(t, traffic.Range{Min: 1, Max: 1}, cfg.Load.Low)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, FormatText, cfg.LogFormat)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
	assert.Equal(t, 30*time.Second, cfg.SummaryInterval)
}

func TestLoadFallsBackOnNonPositiveCounts(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"zero", "0"},
		{"negative", "-5"},
		{"not a number", "lots"},
		{"sign only", "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("LOW_LOAD_MAX", tt.value)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, 40, cfg.Load.Low.Max)
			assert.Equal(t, []string{KeyLowLoadMax}, cfg.Fallbacks)
		})
	}
}

func TestLoadReadsLeadingDigits(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"12abc", 12},
		{" 7 ", 7},
		{"1.5", 1},
		{"+30", 30},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("LOW_LOAD_MIN", "1")
			t.Setenv("LOW_LOAD_MAX", tt.value)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Load.Low.Max)
			assert.Empty(t, cfg.Fallbacks)
		})
	}
}

func TestLoadSwapsInvertedRanges(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOW_LOAD_MIN", "50")
	t.Setenv("HIGH_LOAD_MIN", "2000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, traffic.Range{Min: 40, Max: 50}, cfg.Load.Low)
	assert.Equal(t, traffic.Range{Min: 1200, Max: 2000}, cfg.Load.High)
	assert.Equal(t, traffic.Range{Min: 100, Max: 200}, cfg.Load.BurstDelay)
	assert.Equal(t, []string{KeyLowLoadMin, KeyHighLoadMin}, cfg.Swapped)
}

func TestLoadSingleBoundOverride(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  traffic.Range
	}{
		{"max below default min", "BURST_DELAY_MAX", "10", traffic.Range{Min: 10, Max: 100}},
		{"max above default min", "BURST_DELAY_MAX", "150", traffic.Range{Min: 100, Max: 150}},
		{"min above default max", "BURST_DELAY_MIN", "500", traffic.Range{Min: 200, Max: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Load.BurstDelay)
			assert.LessOrEqual(t, cfg.Load.BurstDelay.Min, cfg.Load.BurstDelay.Max)
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		path string
	}{
		{"url without scheme", map[string]string{"URL": "petclinic.local"}, KeyURL},
		{"unsupported scheme", map[string]string{"URL": "ftp://petclinic.local"}, KeyURL},
		{"log level", map[string]string{"LOG_LEVEL": "loud"}, KeyLogLevel},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, KeyLogFormat},
		{"summary interval", map[string]string{"SUMMARY_INTERVAL": "soon"}, KeySummaryInterval},
		{"negative summary interval", map[string]string{"SUMMARY_INTERVAL": "-1m"}, KeySummaryInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.path, verrs[0].Path)
		})
	}
}

func TestLoadSummaryIntervalZeroDisables(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUMMARY_INTERVAL", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, cfg.SummaryInterval)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
url: https://petclinic.example.com
low_load_min: 3
low_load_max: 6
log_format: text
summary_interval: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://petclinic.example.com", cfg.URL)
	assert.Equal(t, traffic.Range{Min: 3, Max: 6}, cfg.Load.Low)
	assert.Equal(t, traffic.Range{Min: 600, Max: 1200}, cfg.Load.High)
	assert.Equal(t, FormatText, cfg.LogFormat)
	assert.Equal(t, 5*time.Minute, cfg.SummaryInterval)
	assert.Equal(t, path, cfg.File)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "url: http://from-file\nlow_load_max: 6\n")
	t.Setenv("URL", "http://from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env", cfg.URL)
	assert.Equal(t, traffic.Range{Min: 6, Max: 20}, cfg.Load.Low)
	assert.Equal(t, []string{KeyLowLoadMin}, cfg.Swapped)
}

func TestLoadFileSchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "target: http://x\n"},
		{"count is a string", "low_load_max: many\n"},
		{"log format", "log_format: xml\n"},
		{"summary interval", "summary_interval: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation error at")
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = Load(writeFile(t, "url: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadEmptyFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, cfg.URL)
}

func TestValidationErrorsError(t *testing.T) {
	errs := ValidationErrors{
		{Path: "a", Message: "broken"},
		{Path: "b", Message: "also broken"},
	}
	assert.Equal(t, "invalid configuration: a: broken; b: also broken", errs.Error())
}
