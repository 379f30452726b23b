// Package simulate replays a recorded sample script through the detection
// engine and the lifecycle controller without any hardware.
//
// Scripts are YAML files listing the sources the device offered, the target
// and the samples in arrival order. The replay prints every accepted step and
// a summary, which makes it the tool for tuning fallback thresholds from
// field recordings.
package simulate
