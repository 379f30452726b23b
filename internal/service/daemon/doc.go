// Package daemon runs the step alarm service.
//
// Run loads the settings, takes the single-instance lock, builds the sensor
// subsystem selected by the configuration, wires the detection engine and
// the lifecycle controller to the notifiers and session history, and serves
// the AlarmService over gRPC until the context is canceled. Detection
// tunables and the default target are hot-reloaded from the settings file.
package daemon
