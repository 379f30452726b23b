// Package config defines the settings shared by the step alarm daemon and its
// CLI clients and provides helpers to load, validate, save and watch them in
// YAML format.
//
// Validate fills defaults in place, so a loaded Config is always complete.
// DetectionParams and SensorSources convert the YAML view into the types the
// detection engine consumes.
package config
