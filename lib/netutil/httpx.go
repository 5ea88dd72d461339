// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds HTTP response body reads. The service's HTTP
// endpoints return small status documents; anything larger than this
// is a misbehaving server.
const MaxResponseSize int64 = 1 << 20

// DecodeResponse reads at most MaxResponseSize bytes of body and
// JSON-decodes them into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody returns a bounded prefix of an error response body for use
// in error messages. Read errors are ignored.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return string(data)
}
