package motion

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Source identifies the kind of hardware reading carried by a Sample.
type Source string

const (
	// SourceStepCounter is a hardware running total of steps since boot.
	SourceStepCounter Source = "step_counter"
	// SourceStepDetector is a hardware pulse emitted once per step.
	SourceStepDetector Source = "step_detector"
	// SourceAccelerometer is a raw 3-axis acceleration vector.
	SourceAccelerometer Source = "accelerometer"
	// SourceGyroscope is a raw 3-axis rotation rate vector.
	SourceGyroscope Source = "gyroscope"
)

// ErrUnknownSource is returned when a source name cannot be parsed.
var ErrUnknownSource = errors.New("unknown motion source")

// Sources lists every known source in declaration order.
func Sources() []Source {
	return []Source{SourceStepCounter, SourceStepDetector, SourceAccelerometer, SourceGyroscope}
}

// ParseSource converts a configuration or wire name into a Source.
func ParseSource(s string) (Source, error) {
	candidate := Source(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Sources(), candidate) {
		return candidate, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Sample is one hardware reading. Timestamp is monotonic milliseconds.
// Values holds 1 to 3 floats whose meaning depends on Source.
type Sample struct {
	// Timestamp is the monotonic time of the reading in milliseconds.
	Timestamp int64
	// Source identifies the sensor that produced the reading.
	Source Source
	// Values carries the raw reading.
	Values []float64
}

// Value returns the component at index i, or false when it is missing.
func (s Sample) Value(i int) (float64, bool) {
	if i < 0 || i >= len(s.Values) {
		return 0, false
	}

	return s.Values[i], true
}

// StepEvent reports a change of the running step count.
type StepEvent struct {
	// Timestamp is the timestamp of the sample that produced the step.
	Timestamp int64
	// Source is the source of the active detection strategy.
	Source Source
	// Count is the running step count after the event.
	Count uint64
	// Resync is true when a cumulative counter restarted and was rebaselined.
	Resync bool
}

// SourceSet is an unordered set of available sources.
type SourceSet map[Source]struct{}

// NewSourceSet builds a set from the provided sources.
func NewSourceSet(sources ...Source) SourceSet {
	set := make(SourceSet, len(sources))
	for _, source := range sources {
		set[source] = struct{}{}
	}

	return set
}

// Has reports whether the source is present in the set.
func (s SourceSet) Has(source Source) bool {
	_, ok := s[source]

	return ok
}

// Slice returns the set members in declaration order.
func (s SourceSet) Slice() []Source {
	result := make([]Source, 0, len(s))

	for _, source := range Sources() {
		if s.Has(source) {
			result = append(result, source)
		}
	}

	return result
}
