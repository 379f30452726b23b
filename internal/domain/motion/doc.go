// Package motion contains the value types exchanged between sensor
// subsystems and the step detection engine.
//
// A Sample is one timestamped hardware reading tagged with the Source that
// produced it; a StepEvent reports that the running step count advanced.
package motion
