// Package jsonpath reads single values out of JSON documents such as the
// error bodies returned by the pet clinic services.
package jsonpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNotFound is returned when a path does not resolve to a value.
var ErrNotFound = errors.New("path not found")

// Extract returns the value at path in json as a string.
//
// Paths use JSONPath notation ($.error.message, $.errors[0].field) or plain
// gjson notation (error.message).
func Extract(json string, path string) (string, error) {
	if json == "" {
		return "", fmt.Errorf("empty JSON string")
	}
	if path == "" {
		return "", fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.Valid(json) {
		return "", fmt.Errorf("invalid JSON document")
	}

	result := gjson.Get(json, toGjsonPath(path))
	if !result.Exists() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}

	return result.String(), nil
}

// First returns the first non-empty string found at any of paths, in order.
// It returns false when json is not a JSON document or no path matches.
func First(json string, paths ...string) (string, bool) {
	for _, path := range paths {
		v, err := Extract(json, path)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return "", false
		}
		if v = strings.TrimSpace(v); v != "" && v != "null" {
			return v, true
		}
	}
	return "", false
}

// toGjsonPath converts $.users[0].name to users.0.name.
func toGjsonPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	path = strings.NewReplacer(`['`, ".", `']`, "", `["`, ".", `"]`, "").Replace(path)
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)

	return strings.TrimPrefix(path, ".")
}
