package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every problem found in one configuration.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, err := range ve {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) []ValidationError {
	var errors []ValidationError

	if config.URL == "" {
		errors = append(errors, ValidationError{
			Path:    KeyURL,
			Message: "url is required",
		})
	} else if u, err := url.Parse(config.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Path:    KeyURL,
			Message: fmt.Sprintf("invalid url: %s", config.URL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, ValidationError{
			Path:    KeyURL,
			Message: fmt.Sprintf("unsupported scheme: %s", u.Scheme),
		})
	}

	if config.LogFormat != FormatJSON && config.LogFormat != FormatText {
		errors = append(errors, ValidationError{
			Path:    KeyLogFormat,
			Message: fmt.Sprintf("invalid log format: %s", config.LogFormat),
		})
	}

	if config.SummaryInterval < 0 {
		errors = append(errors, ValidationError{
			Path:    KeySummaryInterval,
			Message: "summary interval cannot be negative",
		})
	}

	return errors
}
