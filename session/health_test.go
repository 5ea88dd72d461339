// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"ws://localhost:8000/ws", "http://localhost:8000/health"},
		{"wss://logs.example.com/api/ws?x=1", "https://logs.example.com/health"},
	}
	for _, test := range tests {
		got, err := HealthURL(test.endpoint)
		if err != nil {
			t.Errorf("HealthURL(%q): %v", test.endpoint, err)
			continue
		}
		if got != test.want {
			t.Errorf("HealthURL(%q) = %q, want %q", test.endpoint, got, test.want)
		}
	}

	if _, err := HealthURL("http://localhost:8000/ws"); err == nil {
		t.Error("HealthURL accepted an http endpoint")
	}
}

func TestProbeHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/health" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			writer.Header().Set("Content-Type", "application/json")
			writer.Write([]byte(`{"status":"healthy","timestamp":"2026-01-01T12:00:00"}`))
		}))
		defer server.Close()

		health, err := ProbeHealth(context.Background(), server.Client(), wsEndpoint(server))
		if err != nil {
			t.Fatalf("ProbeHealth: %v", err)
		}
		if !health.Healthy() {
			t.Fatalf("Healthy() = false for %+v", health)
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			http.Error(writer, "database unavailable", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := ProbeHealth(context.Background(), server.Client(), wsEndpoint(server))
		if err == nil {
			t.Fatal("ProbeHealth succeeded against a failing server")
		}
		if !strings.Contains(err.Error(), "database unavailable") {
			t.Fatalf("error = %v, want the response body", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.Write([]byte(`<html>`))
		}))
		defer server.Close()

		if _, err := ProbeHealth(context.Background(), server.Client(), wsEndpoint(server)); err == nil {
			t.Fatal("ProbeHealth accepted a non-JSON body")
		}
	})
}

func wsEndpoint(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}
