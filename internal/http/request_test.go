package http

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"
)

func TestRequest_Build(t *testing.T) {
	tests := []struct {
		name           string
		req            *Request
		baseURL        string
		expectedURL    string
		expectedMethod string
	}{
		{
			name:           "Simple GET request",
			req:            Get("get-owner", "/api/gateway/owners/1"),
			baseURL:        "http://petclinic.local",
			expectedURL:    "http://petclinic.local/api/gateway/owners/1",
			expectedMethod: "GET",
		},
		{
			name:           "Negative id is kept verbatim",
			req:            Get("get-invalid-owner", "/api/gateway/owners/-1"),
			baseURL:        "http://petclinic.local",
			expectedURL:    "http://petclinic.local/api/gateway/owners/-1",
			expectedMethod: "GET",
		},
		{
			name:           "Trailing slash in base URL",
			req:            Delete("clean-payments", "/api/payments/clean-db"),
			baseURL:        "http://petclinic.local/",
			expectedURL:    "http://petclinic.local/api/payments/clean-db",
			expectedMethod: "DELETE",
		},
		{
			name:           "Base URL with path prefix",
			req:            Get("get-owner", "/api/gateway/owners/1"),
			baseURL:        "http://proxy.local/petclinic",
			expectedURL:    "http://proxy.local/petclinic/api/gateway/owners/1",
			expectedMethod: "GET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpReq, err := tt.req.Build(context.Background(), tt.baseURL)
			if err != nil {
				t.Fatalf("Error building request: %v", err)
			}

			if httpReq.Method != tt.expectedMethod {
				t.Errorf("Expected method %s, got %s", tt.expectedMethod, httpReq.Method)
			}
			if httpReq.URL.String() != tt.expectedURL {
				t.Errorf("Expected URL %s, got %s", tt.expectedURL, httpReq.URL.String())
			}
		})
	}
}

func TestRequest_BuildJSONBody(t *testing.T) {
	req := Post("post-payment", "/api/payments/owners/1/pets/1", map[string]interface{}{
		"amount": 42,
		"notes":  "low-traffic-payment",
	})

	httpReq, err := req.Build(context.Background(), "http://petclinic.local")
	if err != nil {
		t.Fatalf("Error building request: %v", err)
	}

	if ct := httpReq.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %q", ct)
	}

	raw, err := io.ReadAll(httpReq.Body)
	if err != nil {
		t.Fatalf("Error reading body: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if decoded["notes"] != "low-traffic-payment" {
		t.Errorf("Unexpected body %s", raw)
	}

	// Building must not mutate the request's own headers.
	if _, ok := req.Headers["Content-Type"]; ok {
		t.Error("Build should not add headers to the Request")
	}
}

func TestRequest_BuildStringBodyKeepsContentType(t *testing.T) {
	req := NewRequest("POST", "/raw").
		WithBody("plain").
		WithHeader("Content-Type", "text/plain")

	httpReq, err := req.Build(context.Background(), "http://petclinic.local")
	if err != nil {
		t.Fatalf("Error building request: %v", err)
	}
	if ct := httpReq.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Expected Content-Type text/plain, got %q", ct)
	}
}

func TestRequest_BuildInvalidBaseURL(t *testing.T) {
	if _, err := Get("x", "/x").Build(context.Background(), "://bad"); err == nil {
		t.Error("Expected error for invalid base URL")
	}
}

func TestRequest_Builders(t *testing.T) {
	req := Get("diagnose", "/api/customer/diagnose/owners/1/pets/1").WithTimeout(DiagnosticsTimeout)

	if req.Name != "diagnose" {
		t.Errorf("Expected name diagnose, got %s", req.Name)
	}
	if req.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", req.Timeout)
	}
}

func TestRequest_WithHeaderOnLiteral(t *testing.T) {
	req := (&Request{Name: "get-owner", Method: "GET", Path: "/api/gateway/owners/1"}).
		WithHeader("X-Trace", "abc")

	if req.Headers["X-Trace"] != "abc" {
		t.Errorf("Expected X-Trace header abc, got %q", req.Headers["X-Trace"])
	}

	httpReq, err := req.Build(context.Background(), "http://petclinic.local")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := httpReq.Header.Get("X-Trace"); got != "abc" {
		t.Errorf("Expected built X-Trace header abc, got %q", got)
	}
}
