// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads proctoring configuration.
//
// Configuration comes from a single file named by the PROCTOR_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no discovery and no search path, so the
// effective configuration is always the file an operator can point at.
//
// YAML files (.yaml, .yml) are decoded with gopkg.in/yaml.v3. JSON
// files (.json, .jsonc) may carry // and /* */ comments and trailing
// commas; they are normalized with tidwall/jsonc and then decoded by
// the same YAML decoder, so durations are written the same way in both
// formats ("3s", "2s").
//
// Values absent from the file keep the [Default] values, which are the
// proctoring policy constants: 3 s sampling, a 3-violation limit, a
// 10-entry history, 0.02/0.35 skin-ratio bounds, a noise threshold of
// 40, 5 reconnect attempts with a 2 s linear backoff step, and a
// 20-gap typing cadence window.
//
// A file may carry development, staging, and production sections that
// override the base values when [Config].Environment matches.
// ${VAR} and ${VAR:-default} are expanded in the collector URL and the
// media paths after loading.
//
// This package depends on no other proctor packages.
package config
