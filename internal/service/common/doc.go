// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client wrapper over the AlarmService with
// call timeouts, and a helper that detects the current system actor
// (hostname/username) recorded on stop requests.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
