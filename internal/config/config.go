// Package config loads the generator settings from the environment and an
// optional YAML file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/trafficgen/internal/traffic"
)

// Configuration keys. The environment variable of a key is its upper-case
// form, for example HIGH_LOAD_MAX.
const (
	KeyURL             = "url"
	KeyHighLoadMax     = "high_load_max"
	KeyHighLoadMin     = "high_load_min"
	KeyBurstDelayMax   = "burst_delay_max"
	KeyBurstDelayMin   = "burst_delay_min"
	KeyLowLoadMax      = "low_load_max"
	KeyLowLoadMin      = "low_load_min"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
	KeyMetricsAddr     = "metrics_addr"
	KeySummaryInterval = "summary_interval"
)

// Log formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// DefaultURL is the placeholder target used when URL is not set.
const DefaultURL = "http://your-sample-app-end-point"

// loadDefaults holds the default of every load count. A count that is
// missing, unparsable or not positive falls back to it.
var loadDefaults = map[string]int{
	KeyHighLoadMax:   1200,
	KeyHighLoadMin:   600,
	KeyBurstDelayMax: 200,
	KeyBurstDelayMin: 100,
	KeyLowLoadMax:    40,
	KeyLowLoadMin:    20,
}

// Config represents the generator configuration. It is not modified after
// Load returns.
type Config struct {
	URL             string
	Load            traffic.Load
	LogLevel        logrus.Level
	LogFormat       string
	MetricsAddr     string
	SummaryInterval time.Duration

	// File is the configuration file that was read, if any.
	File string

	// Fallbacks lists the load keys whose configured value was replaced
	// by the default.
	Fallbacks []string

	// Swapped lists the min keys of load pairs that were configured above
	// their max and have been swapped.
	Swapped []string
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used. Environment variables win over
// the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyURL, DefaultURL)
	for key, def := range loadDefaults {
		v.SetDefault(key, def)
	}
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, FormatJSON)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeySummaryInterval, "1m")
	v.AutomaticEnv()

	if path != "" {
		if err := readFile(v, path); err != nil {
			return nil, err
		}
	}

	return build(v, path)
}

func readFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if doc != nil {
		if err := ValidateDocument(doc); err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
	}

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	return nil
}

func build(v *viper.Viper, path string) (*Config, error) {
	var errs ValidationErrors

	cfg := &Config{
		URL:         strings.TrimSpace(v.GetString(KeyURL)),
		LogFormat:   strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		MetricsAddr: strings.TrimSpace(v.GetString(KeyMetricsAddr)),
		File:        path,
	}

	count := func(key string) int {
		n, fellBack := positiveInt(v.GetString(key), loadDefaults[key])
		if fellBack {
			cfg.Fallbacks = append(cfg.Fallbacks, key)
		}
		return n
	}
	pair := func(minKey, maxKey string) traffic.Range {
		r := traffic.Range{Min: count(minKey), Max: count(maxKey)}
		if r.Min > r.Max {
			r.Min, r.Max = r.Max, r.Min
			cfg.Swapped = append(cfg.Swapped, minKey)
		}
		return r
	}
	cfg.Load = traffic.Load{
		Low:        pair(KeyLowLoadMin, KeyLowLoadMax),
		High:       pair(KeyHighLoadMin, KeyHighLoadMax),
		BurstDelay: pair(KeyBurstDelayMin, KeyBurstDelayMax),
		BurstUnit:  time.Minute,
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(v.GetString(KeyLogLevel)))
	if err != nil {
		errs = append(errs, ValidationError{Path: KeyLogLevel, Message: err.Error()})
	}
	cfg.LogLevel = level

	interval, err := parseInterval(v.GetString(KeySummaryInterval))
	if err != nil {
		errs = append(errs, ValidationError{Path: KeySummaryInterval, Message: err.Error()})
	}
	cfg.SummaryInterval = interval

	errs = append(errs, ValidateConfig(cfg)...)
	if len(errs) > 0 {
		return nil, errs
	}

	return cfg, nil
}

// positiveInt reads the leading integer of s, so "12abc" and "1.5" give 12
// and 1. It returns def and true when s has no leading integer or the value
// is not positive.
func positiveInt(s string, def int) (int, bool) {
	n, ok := leadingInt(s)
	if !ok || n <= 0 {
		return def, true
	}
	return n, false
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
