// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for Lattice task clients.
//
// Configuration is loaded from a single file specified by either the
// LATTICE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no fallback file. Files
// ending in .json or .jsonc are read as JSON with comments and
// trailing commas; anything else is read as YAML.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without a section of its
// own logs JSON at warn level.
//
// ${VAR} and ${VAR:-default} patterns are expanded in api.base_url,
// api.token and stream.path after loading, so tokens can stay out of
// the file. No other environment variables override config values.
//
// Durations are strings in [time.ParseDuration] form ("5s", "1m30s").
// [Config.Validate] checks them along with everything else and reports
// every problem at once.
package config
