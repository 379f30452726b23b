// Package detection turns a stream of motion samples into a step count.
//
// The Engine selects one detection strategy per armed session from the
// sources a SensorSubsystem advertises, in a fixed priority order: the
// hardware step detector pulse, the hardware cumulative step counter, the
// software accelerometer fallback and finally the software gyroscope
// fallback. Each strategy keeps its own filter state and its own named
// constants; the engine serializes samples, drops regressing timestamps and
// reports StepEvents whenever the running count advances.
package detection
