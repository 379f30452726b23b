// Package version exposes build metadata for the stepalarm binary.
//
// Version, Commit and BuildTime are injected through ldflags and keep
// placeholder values in local builds.
package version
