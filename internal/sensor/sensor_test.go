package sensor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/domain/motion"
)

// TestDecodeSample checks the JSON sample codec and its rejection rules.
func TestDecodeSample(t *testing.T) {
	t.Parallel()

	sample, err := DecodeSample(motion.SourceAccelerometer, []byte(`{"timestamp":150,"values":[0,0.5,9.8]}`))
	require.NoError(t, err)
	require.Equal(t, int64(150), sample.Timestamp)
	require.Equal(t, motion.SourceAccelerometer, sample.Source)
	require.Equal(t, []float64{0, 0.5, 9.8}, sample.Values)

	_, err = DecodeSample(motion.SourceStepDetector, []byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = DecodeSample(motion.SourceStepDetector, []byte(`{"timestamp":1,"values":[]}`))
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = DecodeSample(motion.SourceGyroscope, []byte(`{"timestamp":1,"values":[1,2,3,4]}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

// TestEncodeSampleRoundTrip verifies an encoded sample decodes to the same reading.
func TestEncodeSampleRoundTrip(t *testing.T) {
	t.Parallel()

	original := motion.Sample{Timestamp: 42, Source: motion.SourceStepCounter, Values: []float64{107}}

	payload, err := EncodeSample(original)
	require.NoError(t, err)

	decoded, err := DecodeSample(motion.SourceStepCounter, payload)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

// TestEncodeControl checks that inactive messages omit the rate.
func TestEncodeControl(t *testing.T) {
	t.Parallel()

	payload, err := EncodeControl(motion.SourceAccelerometer, true, detection.RateGame)
	require.NoError(t, err)

	var active ControlPayload
	require.NoError(t, json.Unmarshal(payload, &active))
	require.Equal(t, "accelerometer", active.Source)
	require.True(t, active.Active)
	require.Equal(t, string(detection.RateGame), active.Rate)
	require.Equal(t, int64(20), active.IntervalMs)

	payload, err = EncodeControl(motion.SourceAccelerometer, false, detection.RateGame)
	require.NoError(t, err)

	var inactive ControlPayload
	require.NoError(t, json.Unmarshal(payload, &inactive))
	require.False(t, inactive.Active)
	require.Empty(t, inactive.Rate)
	require.Zero(t, inactive.IntervalMs)
}

// TestTopics checks topic layout with and without a trailing slash.
func TestTopics(t *testing.T) {
	t.Parallel()

	require.Equal(t, "home/phone/step_detector", SampleTopic("home/phone", motion.SourceStepDetector))
	require.Equal(t, "home/phone/step_detector", SampleTopic("home/phone/", motion.SourceStepDetector))
	require.Equal(t, "home/phone/gyroscope/control", ControlTopic("home/phone", motion.SourceGyroscope))
}

// TestFakeRegistration covers availability checks, forced failures and delivery.
func TestFakeRegistration(t *testing.T) {
	t.Parallel()

	fake := NewFake(motion.SourceStepDetector)

	err := fake.Register(motion.SourceGyroscope, detection.RateGame, func(motion.Sample) {})
	require.ErrorIs(t, err, ErrSourceUnavailable)

	var got []motion.Sample

	err = fake.Register(motion.SourceStepDetector, detection.RateUI, func(s motion.Sample) {
		got = append(got, s)
	})
	require.NoError(t, err)
	require.True(t, fake.Registered(motion.SourceStepDetector))
	require.Equal(t, 1, fake.Registrations())

	rate, ok := fake.Rate(motion.SourceStepDetector)
	require.True(t, ok)
	require.Equal(t, detection.RateUI, rate)

	require.True(t, fake.Emit(motion.Sample{Timestamp: 1, Source: motion.SourceStepDetector, Values: []float64{1}}))
	require.False(t, fake.Emit(motion.Sample{Timestamp: 2, Source: motion.SourceGyroscope, Values: []float64{1}}))
	require.Len(t, got, 1)

	require.NoError(t, fake.Unregister(motion.SourceStepDetector))
	require.False(t, fake.Registered(motion.SourceStepDetector))
	require.False(t, fake.Emit(motion.Sample{Timestamp: 3, Source: motion.SourceStepDetector, Values: []float64{1}}))

	boom := errors.New("boom")
	fake.FailRegistration(boom)
	require.ErrorIs(t, fake.Register(motion.SourceStepDetector, detection.RateGame, func(motion.Sample) {}), boom)

	fake.FailRegistration(nil)
	fake.SetAvailable()
	require.Empty(t, fake.Available())
}
