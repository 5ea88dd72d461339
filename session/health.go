// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/uavlogviewer/flightlink/lib/netutil"
)

// Health is the service's answer to GET /health.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Healthy reports whether the service described itself as healthy.
func (h Health) Healthy() bool {
	return h.Status == "healthy"
}

// HealthURL derives the HTTP health endpoint from a websocket
// endpoint: ws://host:port/ws becomes http://host:port/health.
func HealthURL(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("session: invalid endpoint %q: %w", endpoint, err)
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("session: endpoint %q must use ws or wss", endpoint)
	}
	parsed.Path = "/health"
	parsed.RawPath = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

// ProbeHealth queries the service's health endpoint. A nil client
// means http.DefaultClient.
func ProbeHealth(ctx context.Context, client *http.Client, endpoint string) (*Health, error) {
	if client == nil {
		client = http.DefaultClient
	}
	target, err := HealthURL(endpoint)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("session: building health request: %w", err)
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("session: health probe %s: %w", target, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session: health probe %s returned %s: %s",
			target, response.Status, netutil.ErrorBody(response.Body))
	}

	var health Health
	if err := netutil.DecodeResponse(response.Body, &health); err != nil {
		return nil, fmt.Errorf("session: parsing health response: %w", err)
	}
	return &health, nil
}
