package config

import (
	"sync"

	"github.com/wesleyorama2/trafficgen/pkg/jsonschema"
)

// fileSchema describes the optional configuration file.
const fileSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"url": { "type": "string", "minLength": 1 },
		"high_load_max": { "type": "integer" },
		"high_load_min": { "type": "integer" },
		"burst_delay_max": { "type": "integer" },
		"burst_delay_min": { "type": "integer" },
		"low_load_max": { "type": "integer" },
		"low_load_min": { "type": "integer" },
		"log_level": {
			"type": "string",
			"enum": ["trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"]
		},
		"log_format": { "type": "string", "enum": ["json", "text"] },
		"metrics_addr": { "type": "string" },
		"summary_interval": {
			"type": ["string", "integer"],
			"pattern": "^0$|^([0-9.]+(ns|us|µs|ms|s|m|h))+$",
			"minimum": 0
		}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.Compile(fileSchema)
	})
	return compiledSchema, schemaErr
}

// ValidateDocument checks a decoded configuration file against the schema.
func ValidateDocument(doc map[string]interface{}) error {
	s, err := schema()
	if err != nil {
		return err
	}
	if errs := s.ValidateValue(doc); len(errs) > 0 {
		return errs
	}
	return nil
}
