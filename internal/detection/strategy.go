package detection

import (
	"math"

	"github.com/oshokin/step-alarm/internal/domain/motion"
)

// SampleOutcome classifies what a strategy did with one sample.
type SampleOutcome string

const (
	// OutcomeIgnored means the sample produced no step.
	OutcomeIgnored SampleOutcome = "ignored"
	// OutcomeStep means the running count advanced.
	OutcomeStep SampleOutcome = "step"
	// OutcomeBaseline means a cumulative baseline was captured.
	OutcomeBaseline SampleOutcome = "baseline"
	// OutcomeResync means a cumulative counter went backwards and was rebaselined.
	OutcomeResync SampleOutcome = "resync"
	// OutcomeOutOfOrder means the sample timestamp did not advance and it was dropped.
	OutcomeOutOfOrder SampleOutcome = "out_of_order"
	// OutcomeWrongSource means the sample did not match the active strategy.
	OutcomeWrongSource SampleOutcome = "wrong_source"
	// OutcomeNotArmed means the engine was not armed.
	OutcomeNotArmed SampleOutcome = "not_armed"
)

// Strategy names reported in status and session records.
const (
	StrategyStepDetectorPulse     = "step_detector_pulse"
	StrategyStepCounterCumulative = "step_counter_cumulative"
	StrategyAccelerometerFallback = "accelerometer_fallback"
	StrategyGyroscopeFallback     = "gyroscope_fallback"
)

// Strategy consumes samples of one source and maintains its own filter state.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string
	// Source returns the only source the strategy accepts.
	Source() motion.Source
	// Reset clears all filter state.
	Reset()
	// Apply processes a sample given the current running count and returns
	// the new running count.
	Apply(sample motion.Sample, count uint64) (uint64, SampleOutcome)
}

// NewStrategy builds the strategy that consumes the given source.
//
//nolint:ireturn // Strategy is a closed set of variants selected at runtime.
func NewStrategy(source motion.Source, params Params) (Strategy, error) {
	switch source {
	case motion.SourceStepDetector:
		return new(pulseStrategy), nil
	case motion.SourceStepCounter:
		return &cumulativeStrategy{policy: params.Resync}, nil
	case motion.SourceAccelerometer:
		return newAccelerometerStrategy(params.Accelerometer), nil
	case motion.SourceGyroscope:
		return newGyroscopeStrategy(params.Gyroscope), nil
	default:
		return nil, motion.ErrUnknownSource
	}
}

// pulseStrategy counts hardware step detector pulses. The hardware already
// debounces, so a value of exactly 1.0 is one step.
type pulseStrategy struct{}

func (*pulseStrategy) Name() string          { return StrategyStepDetectorPulse }
func (*pulseStrategy) Source() motion.Source { return motion.SourceStepDetector }
func (*pulseStrategy) Reset()                {}

func (*pulseStrategy) Apply(sample motion.Sample, count uint64) (uint64, SampleOutcome) {
	if v, ok := sample.Value(0); ok && v == 1.0 {
		return count + 1, OutcomeStep
	}

	return count, OutcomeIgnored
}

// cumulativeStrategy converts a running total since boot into steps since arming.
type cumulativeStrategy struct {
	// policy decides what a backwards counter does to progress.
	policy ResyncPolicy
	// baseline is the counter value steps are measured from.
	baseline float64
	// hasBaseline is false until the first sample after Reset.
	hasBaseline bool
	// carried holds steps counted against a previous baseline.
	carried uint64
}

func (*cumulativeStrategy) Name() string          { return StrategyStepCounterCumulative }
func (*cumulativeStrategy) Source() motion.Source { return motion.SourceStepCounter }

func (s *cumulativeStrategy) Reset() {
	s.baseline = 0
	s.hasBaseline = false
	s.carried = 0
}

func (s *cumulativeStrategy) Apply(sample motion.Sample, count uint64) (uint64, SampleOutcome) {
	value, ok := sample.Value(0)
	if !ok || !finite(value) || value < 0 {
		return count, OutcomeIgnored
	}

	if !s.hasBaseline {
		s.baseline = value
		s.hasBaseline = true

		return count, OutcomeBaseline
	}

	// A smaller total means the counter restarted, usually after a reboot.
	if value < s.baseline {
		s.baseline = value

		if s.policy == ResyncReset {
			s.carried = 0

			return 0, OutcomeResync
		}

		s.carried = count

		return count, OutcomeResync
	}

	// A total between the baseline and the last reading is jitter and never
	// lowers the count.
	next := s.carried + uint64(math.Floor(value-s.baseline))
	if next > count {
		return next, OutcomeStep
	}

	return count, OutcomeIgnored
}

// edgeDetector accepts upward threshold crossings outside a refractory window.
type edgeDetector struct {
	// threshold is the level a signal must cross.
	threshold float64
	// refractory is the minimum interval between accepted steps in milliseconds.
	refractory int64
	// last is the previous signal value.
	last float64
	// lastStep is the timestamp of the last accepted step.
	lastStep int64
	// stepped is false until the first accepted step after reset.
	stepped bool
}

func (d *edgeDetector) reset() {
	d.last = 0
	d.lastStep = 0
	d.stepped = false
}

// observe feeds one signal value and reports whether it is an accepted step.
// The previous value is always updated so a signal that stays high through
// the refractory window does not produce a late step.
func (d *edgeDetector) observe(timestamp int64, value float64) bool {
	crossed := d.last <= d.threshold && value > d.threshold
	d.last = value

	if !crossed {
		return false
	}

	if d.stepped && timestamp-d.lastStep < d.refractory {
		return false
	}

	d.lastStep = timestamp
	d.stepped = true

	return true
}

// accelerometerStrategy detects steps on the linear acceleration magnitude
// left after removing a low-pass gravity estimate that starts at zero.
type accelerometerStrategy struct {
	// alpha is the low-pass weight kept from the previous gravity estimate.
	alpha float64
	// gravity is the running gravity estimate per axis.
	gravity [3]float64
	// seed copies the first reading into gravity instead of filtering it.
	seed bool
	// seeded is false until the first sample after reset when seed is set.
	seeded bool
	// edge applies the threshold and refractory window.
	edge edgeDetector
}

func newAccelerometerStrategy(params AccelerometerParams) *accelerometerStrategy {
	return &accelerometerStrategy{
		alpha: params.Alpha,
		seed:  params.SeedGravity,
		edge: edgeDetector{
			threshold:  params.Threshold,
			refractory: params.Refractory.Milliseconds(),
		},
	}
}

func (*accelerometerStrategy) Name() string          { return StrategyAccelerometerFallback }
func (*accelerometerStrategy) Source() motion.Source { return motion.SourceAccelerometer }

func (s *accelerometerStrategy) Reset() {
	s.gravity = [3]float64{}
	s.seeded = false
	s.edge.reset()
}

func (s *accelerometerStrategy) Apply(sample motion.Sample, count uint64) (uint64, SampleOutcome) {
	raw, ok := vector(sample)
	if !ok {
		return count, OutcomeIgnored
	}

	// Gravity starts at zero unless seeding is enabled.
	if s.seed && !s.seeded {
		s.gravity = raw
		s.seeded = true

		return count, OutcomeIgnored
	}

	var linear [3]float64
	for i := range raw {
		s.gravity[i] = s.alpha*s.gravity[i] + (1-s.alpha)*raw[i]
		linear[i] = raw[i] - s.gravity[i]
	}

	magnitude := norm(linear)
	if !finite(magnitude) {
		return count, OutcomeIgnored
	}

	if s.edge.observe(sample.Timestamp, magnitude) {
		return count + 1, OutcomeStep
	}

	return count, OutcomeIgnored
}

// gyroscopeStrategy detects steps on an exponentially smoothed rotation magnitude.
type gyroscopeStrategy struct {
	// smoothing is the weight given to each new magnitude.
	smoothing float64
	// smoothed is the running smoothed magnitude.
	smoothed float64
	// edge applies the threshold and refractory window.
	edge edgeDetector
}

func newGyroscopeStrategy(params GyroscopeParams) *gyroscopeStrategy {
	return &gyroscopeStrategy{
		smoothing: params.Smoothing,
		edge: edgeDetector{
			threshold:  params.Threshold,
			refractory: params.Refractory.Milliseconds(),
		},
	}
}

func (*gyroscopeStrategy) Name() string          { return StrategyGyroscopeFallback }
func (*gyroscopeStrategy) Source() motion.Source { return motion.SourceGyroscope }

func (s *gyroscopeStrategy) Reset() {
	s.smoothed = 0
	s.edge.reset()
}

func (s *gyroscopeStrategy) Apply(sample motion.Sample, count uint64) (uint64, SampleOutcome) {
	raw, ok := vector(sample)
	if !ok {
		return count, OutcomeIgnored
	}

	magnitude := norm(raw)
	if !finite(magnitude) {
		return count, OutcomeIgnored
	}

	s.smoothed += s.smoothing * (magnitude - s.smoothed)

	if s.edge.observe(sample.Timestamp, s.smoothed) {
		return count + 1, OutcomeStep
	}

	return count, OutcomeIgnored
}

// vector extracts a finite 3-axis reading.
func vector(sample motion.Sample) ([3]float64, bool) {
	var v [3]float64
	if len(sample.Values) < len(v) {
		return v, false
	}

	for i := range v {
		if !finite(sample.Values[i]) {
			return v, false
		}

		v[i] = sample.Values[i]
	}

	return v, true
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
