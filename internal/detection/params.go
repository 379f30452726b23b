package detection

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oshokin/step-alarm/internal/domain/motion"
)

// Accelerometer fallback defaults.
const (
	// AccelerometerThreshold is the linear acceleration magnitude a step must cross.
	AccelerometerThreshold = 2.0
	// AccelerometerAlpha is the low-pass weight kept from the previous gravity estimate.
	AccelerometerAlpha = 0.8
	// AccelerometerRefractory is the minimum interval between accepted steps.
	AccelerometerRefractory = 300 * time.Millisecond
)

// Gyroscope fallback defaults.
const (
	// GyroscopeThreshold is the smoothed rotation magnitude a step must cross.
	GyroscopeThreshold = 0.2
	// GyroscopeSmoothing is the weight given to each new rotation magnitude.
	GyroscopeSmoothing = 0.2
	// GyroscopeRefractory is the minimum interval between accepted steps.
	GyroscopeRefractory = 200 * time.Millisecond
)

// SamplingRate is the delivery rate hint passed to the sensor subsystem.
type SamplingRate string

const (
	// RateFastest asks for samples as fast as the hardware allows.
	RateFastest SamplingRate = "fastest"
	// RateGame is the low-latency rate used while counting.
	RateGame SamplingRate = "game"
	// RateUI is a rate suited to screen updates.
	RateUI SamplingRate = "ui"
	// RateNormal is the power-saving rate used by older revisions.
	RateNormal SamplingRate = "normal"
)

// Interval returns the nominal delay between two samples for the rate.
func (r SamplingRate) Interval() time.Duration {
	switch r {
	case RateFastest:
		return 0
	case RateUI:
		return 66667 * time.Microsecond
	case RateNormal:
		return 200 * time.Millisecond
	default:
		return 20 * time.Millisecond
	}
}

// ParseSamplingRate converts a configuration value into a SamplingRate.
func ParseSamplingRate(s string) (SamplingRate, error) {
	rate := SamplingRate(strings.ToLower(strings.TrimSpace(s)))
	switch rate {
	case RateFastest, RateGame, RateUI, RateNormal:
		return rate, nil
	case "":
		return RateGame, nil
	default:
		return "", fmt.Errorf("%w: unknown sampling rate %q", ErrInvalidParams, s)
	}
}

// ResyncPolicy decides what happens to progress when a cumulative counter
// goes backwards.
type ResyncPolicy string

const (
	// ResyncReset rebaselines and drops the running count to zero.
	ResyncReset ResyncPolicy = "reset"
	// ResyncCarry rebaselines and keeps the steps already counted.
	ResyncCarry ResyncPolicy = "carry"
)

// AccelerometerParams tunes the accelerometer fallback.
type AccelerometerParams struct {
	// Threshold is the magnitude a step must cross upward.
	Threshold float64
	// Alpha is the low-pass weight kept from the previous gravity estimate.
	Alpha float64
	// Refractory is the minimum interval between accepted steps.
	Refractory time.Duration
	// SeedGravity copies the first reading into the gravity estimate instead
	// of filtering it from zero. The seeding sample never counts as a step.
	SeedGravity bool
}

// GyroscopeParams tunes the gyroscope fallback.
type GyroscopeParams struct {
	// Threshold is the smoothed magnitude a step must cross upward.
	Threshold float64
	// Smoothing is the weight given to each new magnitude.
	Smoothing float64
	// Refractory is the minimum interval between accepted steps.
	Refractory time.Duration
}

// Params configures strategy selection and filtering.
type Params struct {
	// Priority lists sources from most to least preferred.
	Priority []motion.Source
	// SamplingRate is requested from the sensor subsystem at arm time.
	SamplingRate SamplingRate
	// Resync controls cumulative counter reboot handling.
	Resync ResyncPolicy
	// Accelerometer tunes the accelerometer fallback.
	Accelerometer AccelerometerParams
	// Gyroscope tunes the gyroscope fallback.
	Gyroscope GyroscopeParams
}

// ErrInvalidParams is returned when detection parameters are out of range.
var ErrInvalidParams = errors.New("invalid detection parameters")

// DefaultPriority returns the reference strategy priority.
func DefaultPriority() []motion.Source {
	return []motion.Source{
		motion.SourceStepDetector,
		motion.SourceStepCounter,
		motion.SourceAccelerometer,
		motion.SourceGyroscope,
	}
}

// DefaultParams returns the reference defaults.
func DefaultParams() Params {
	return Params{
		Priority:     DefaultPriority(),
		SamplingRate: RateGame,
		Resync:       ResyncReset,
		Accelerometer: AccelerometerParams{
			Threshold:  AccelerometerThreshold,
			Alpha:      AccelerometerAlpha,
			Refractory: AccelerometerRefractory,
		},
		Gyroscope: GyroscopeParams{
			Threshold:  GyroscopeThreshold,
			Smoothing:  GyroscopeSmoothing,
			Refractory: GyroscopeRefractory,
		},
	}
}

// Validate checks ranges and the priority list.
func (p *Params) Validate() error {
	if len(p.Priority) == 0 {
		return fmt.Errorf("%w: empty priority list", ErrInvalidParams)
	}

	seen := make(motion.SourceSet, len(p.Priority))
	for _, source := range p.Priority {
		if !slices.Contains(motion.Sources(), source) {
			return fmt.Errorf("%w: %w: %q", ErrInvalidParams, motion.ErrUnknownSource, source)
		}

		if seen.Has(source) {
			return fmt.Errorf("%w: duplicate source %q in priority", ErrInvalidParams, source)
		}

		seen[source] = struct{}{}
	}

	if _, err := ParseSamplingRate(string(p.SamplingRate)); err != nil {
		return err
	}

	if p.Resync != ResyncCarry && p.Resync != ResyncReset {
		return fmt.Errorf("%w: unknown resync policy %q", ErrInvalidParams, p.Resync)
	}

	if p.Accelerometer.Threshold <= 0 || p.Gyroscope.Threshold <= 0 {
		return fmt.Errorf("%w: thresholds must be positive", ErrInvalidParams)
	}

	if p.Accelerometer.Alpha <= 0 || p.Accelerometer.Alpha >= 1 {
		return fmt.Errorf("%w: accelerometer alpha must be in (0, 1)", ErrInvalidParams)
	}

	if p.Gyroscope.Smoothing <= 0 || p.Gyroscope.Smoothing > 1 {
		return fmt.Errorf("%w: gyroscope smoothing must be in (0, 1]", ErrInvalidParams)
	}

	if p.Accelerometer.Refractory < 0 || p.Gyroscope.Refractory < 0 {
		return fmt.Errorf("%w: refractory periods must not be negative", ErrInvalidParams)
	}

	return nil
}

// Clone returns a copy that does not share the priority slice.
func (p Params) Clone() Params {
	p.Priority = slices.Clone(p.Priority)

	return p
}
