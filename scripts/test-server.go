//go:build ignore

// Stand-in for the pet clinic API, for running trafficgen locally:
//
//	go run scripts/test-server.go
//	URL=http://localhost:9966 go run ./cmd/trafficgen
package main

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	mux := http.NewServeMux()

	mux.HandleFunc("/api/gateway/owners/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/-1") {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Owner -1 not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 1, "firstName": "George", "pets": []string{}})
	})

	mux.HandleFunc("/api/customer/diagnose/", func(w http.ResponseWriter, r *http.Request) {
		// Diagnostics are slow upstream.
		time.Sleep(time.Duration(500+rand.IntN(2500)) * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]string{"diagnosis": "healthy"})
	})

	mux.HandleFunc("/api/payments/clean-db", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "use DELETE"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Owners, pets, visits and payments all accept a JSON body on POST.
	for _, prefix := range []string{"/api/customer/owners", "/api/visit/owners/", "/api/payments/owners/"} {
		mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusOK, []interface{}{})
				return
			}
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
				return
			}
			writeJSON(w, http.StatusCreated, body)
		})
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mux.ServeHTTP(w, r)
		logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": r.Header.Get("X-Request-Id"),
			"duration":   time.Since(start).String(),
		}).Info("request")
	})

	addr := ":9966"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.WithField("addr", addr).Info("pet clinic stand-in listening")
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
