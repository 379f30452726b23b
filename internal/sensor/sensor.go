package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/domain/motion"
)

var (
	// ErrSourceUnavailable is returned when registering a source the device lacks.
	ErrSourceUnavailable = errors.New("sensor source unavailable")
	// ErrInvalidPayload is returned when a sample message cannot be decoded.
	ErrInvalidPayload = errors.New("invalid sample payload")
)

// maxSampleValues is the widest vector a sensor reports.
const maxSampleValues = 3

// SamplePayload is the JSON wire form of one sample.
type SamplePayload struct {
	// Timestamp is the monotonic time of the reading in milliseconds.
	Timestamp int64 `json:"timestamp"`
	// Values carries 1 to 3 readings.
	Values []float64 `json:"values"`
}

// ControlPayload announces which source the engine listens to and at what rate.
type ControlPayload struct {
	// Source is the sensor source being controlled.
	Source string `json:"source"`
	// Active is true while a listener is registered.
	Active bool `json:"active"`
	// Rate is the requested sampling rate name.
	Rate string `json:"rate,omitempty"`
	// IntervalMs is the requested interval between samples.
	IntervalMs int64 `json:"interval_ms"`
}

// DecodeSample parses a JSON sample published for the given source.
func DecodeSample(source motion.Source, payload []byte) (motion.Sample, error) {
	var p SamplePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return motion.Sample{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if len(p.Values) == 0 || len(p.Values) > maxSampleValues {
		return motion.Sample{}, fmt.Errorf("%w: %d values", ErrInvalidPayload, len(p.Values))
	}

	return motion.Sample{
		Timestamp: p.Timestamp,
		Source:    source,
		Values:    p.Values,
	}, nil
}

// EncodeSample renders a sample in the JSON wire form.
func EncodeSample(sample motion.Sample) ([]byte, error) {
	return json.Marshal(SamplePayload{
		Timestamp: sample.Timestamp,
		Values:    sample.Values,
	})
}

// EncodeControl renders a control message for a source.
func EncodeControl(source motion.Source, active bool, rate detection.SamplingRate) ([]byte, error) {
	payload := ControlPayload{
		Source: string(source),
		Active: active,
	}

	if active {
		payload.Rate = string(rate)
		payload.IntervalMs = rate.Interval().Milliseconds()
	}

	return json.Marshal(payload)
}

// SampleTopic returns the topic samples of a source are published on.
func SampleTopic(prefix string, source motion.Source) string {
	return strings.TrimSuffix(prefix, "/") + "/" + string(source)
}

// ControlTopic returns the topic control messages of a source are published on.
func ControlTopic(prefix string, source motion.Source) string {
	return SampleTopic(prefix, source) + "/control"
}
