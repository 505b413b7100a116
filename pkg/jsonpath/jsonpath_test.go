package jsonpath

import (
	"errors"
	"testing"
)

func TestExtract(t *testing.T) {
	doc := `{
		"status": 404,
		"error": "Not Found",
		"message": "Owner -1 not found",
		"details": {"reason": "missing", "codes": [12, 13]},
		"empty": null
	}`

	tests := []struct {
		name     string
		path     string
		expected string
		wantErr  bool
	}{
		{"root field", "$.message", "Owner -1 not found", false},
		{"plain gjson path", "error", "Not Found", false},
		{"number", "$.status", "404", false},
		{"nested", "$.details.reason", "missing", false},
		{"array index", "$.details.codes[1]", "13", false},
		{"bracket quotes", "$['details']['reason']", "missing", false},
		{"null value", "$.empty", "null", false},
		{"missing", "$.nope", "", true},
		{"empty path", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(doc, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Extract(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("Extract(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestExtract_NotFoundIsTyped(t *testing.T) {
	_, err := Extract(`{"a":1}`, "$.b")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExtract_InvalidDocument(t *testing.T) {
	if _, err := Extract("upstream connect error", "$.message"); err == nil {
		t.Error("expected error for non-JSON input")
	}
	if _, err := Extract("", "$.message"); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestFirst(t *testing.T) {
	tests := []struct {
		name   string
		json   string
		paths  []string
		want   string
		wantOK bool
	}{
		{"first path wins", `{"message":"m","error":"e"}`, []string{"message", "error"}, "m", true},
		{"falls through blank", `{"message":"  ","error":"e"}`, []string{"message", "error"}, "e", true},
		{"falls through null", `{"message":null,"detail":"d"}`, []string{"message", "error", "detail"}, "d", true},
		{"nothing matches", `{"status":500}`, []string{"message", "error"}, "", false},
		{"not json", `Bad Gateway`, []string{"message"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := First(tt.json, tt.paths...)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("First() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
