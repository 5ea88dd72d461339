// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports flightlink build information.
//
// The variables are injected at build time:
//
//	go build -ldflags "-X github.com/uavlogviewer/flightlink/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds and tests see the defaults.
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty is "true" when the tree had uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns the one-line form used by --version.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns Info plus the Go toolchain and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent returns the value sent in the websocket handshake's
// User-Agent header.
func UserAgent() string {
	return "flightlink/" + Version
}
