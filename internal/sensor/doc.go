// Package sensor provides SensorSubsystem implementations for the step
// detection engine.
//
// Fake is a scripted subsystem for tests, simulations and development
// daemons. MQTTSubsystem receives samples published by an edge device over
// MQTT. GPIOPulse turns rising edges of a hardware pedometer line into step
// detector pulses through the Linux GPIO character device.
package sensor
