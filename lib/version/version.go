// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for proctor
// binaries.
//
// Version information is injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/codeshield/proctor/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// The variables default to "unknown" and "0.1.0-dev" in development
// builds and test runs.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// UserAgent identifies a proctor binary in collector handshakes, for
// example "proctor-agent/0.1.0-dev (abc1234)".
func UserAgent(binary string) string {
	return fmt.Sprintf("%s/%s (%s)", binary, Version, GitCommit)
}

// Print writes "binary Full()" to stdout, for --version.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Full())
}
