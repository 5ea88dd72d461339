// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the
// flightlink client.
//
// Configuration is loaded from a single file named by either the
// FLIGHTLINK_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). Without either, the command runs on
// [Resolved] defaults. There is no automatic file search.
//
// The file may contain development and production sections that
// override the server and log settings when [Config].Environment
// matches.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${FLIGHTLINK_STATE}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// This package depends on no other flightlink packages.
package config
