package detection

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/oshokin/step-alarm/internal/domain/motion"
)

// SensorSubsystem is the platform sensor service the engine registers with.
// Implementations must not invoke deliver from inside Register.
type SensorSubsystem interface {
	// Available returns the sources present on the device.
	Available() motion.SourceSet
	// Register starts delivering samples of the source at the requested rate.
	// The engine holds its lock while Register runs, so implementations must
	// return within a bounded time.
	Register(source motion.Source, rate SamplingRate, deliver func(motion.Sample)) error
	// Unregister stops delivering samples of the source.
	Unregister(source motion.Source) error
}

// StepHandler observes step events of an armed session.
type StepHandler func(event motion.StepEvent)

var (
	// ErrNoSensorAvailable is returned when none of the prioritized sources exists.
	ErrNoSensorAvailable = errors.New("no step sensor available")
	// ErrRegistrationFailed is returned when the sensor subsystem refuses a listener.
	ErrRegistrationFailed = errors.New("sensor registration failed")
)

// Engine counts steps from one sensor source per armed session.
// Samples are applied one at a time under a mutex, in arrival order.
type Engine struct {
	// sensors is the subsystem that delivers samples.
	sensors SensorSubsystem
	// log receives warnings about duplicate arming and counter resyncs.
	log *zap.SugaredLogger

	// mu serializes samples and lifecycle calls.
	mu sync.Mutex
	// params is applied at the next Arm.
	params Params
	// strategy is the strategy of the current or last session.
	strategy Strategy
	// handler observes steps of the current session.
	handler StepHandler
	// count is the running step count.
	count uint64
	// armed reports whether samples mutate the session.
	armed bool
	// lastTimestamp is the timestamp of the last accepted sample.
	lastTimestamp int64
	// seen is false until the first sample of a session.
	seen bool
}

// SelectStrategy picks the first source of priority present in available.
func SelectStrategy(available motion.SourceSet, priority []motion.Source) (motion.Source, error) {
	for _, source := range priority {
		if available.Has(source) {
			return source, nil
		}
	}

	return "", ErrNoSensorAvailable
}

// NewEngine creates an unarmed engine. A nil logger disables logging.
func NewEngine(sensors SensorSubsystem, params Params, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Engine{
		sensors: sensors,
		params:  params.Clone(),
		log:     log,
	}
}

// SetParams replaces the detection parameters used from the next Arm on.
// The running session keeps the strategy it was armed with.
func (e *Engine) SetParams(params Params) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.params = params.Clone()
}

// Arm selects a strategy, resets the session and registers for samples.
// Arming an armed engine logs a warning and changes nothing.
func (e *Engine) Arm(handler StepHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.armed {
		e.log.Warnw("Engine already armed, ignoring arm request", "strategy", e.strategy.Name())

		return nil
	}

	source, err := SelectStrategy(e.sensors.Available(), e.params.Priority)
	if err != nil {
		return err
	}

	strategy, err := NewStrategy(source, e.params)
	if err != nil {
		return fmt.Errorf("build strategy for %s: %w", source, err)
	}

	if err = e.sensors.Register(source, e.params.SamplingRate, e.deliver); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRegistrationFailed, source, err)
	}

	strategy.Reset()

	e.strategy = strategy
	e.handler = handler
	e.count = 0
	e.lastTimestamp = 0
	e.seen = false
	e.armed = true

	e.log.Infow("Engine armed", "strategy", strategy.Name(), "rate", e.params.SamplingRate)

	return nil
}

// Disarm unregisters from the sensor subsystem. The running count stays
// readable but no longer changes.
func (e *Engine) Disarm() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.armed {
		return
	}

	e.armed = false
	e.handler = nil

	if err := e.sensors.Unregister(e.strategy.Source()); err != nil {
		e.log.Warnw("Failed to unregister sensor listener", "source", e.strategy.Source(), "error", err)
	}

	e.log.Infow("Engine disarmed", "strategy", e.strategy.Name(), "steps", e.count)
}

// OnSample applies one sample to the armed session. When the running count
// advances, the step handler is invoked after the engine lock is released
// and the event is returned. A counter resync also reaches the handler, with
// Resync set, but is not reported as a step.
func (e *Engine) OnSample(sample motion.Sample) (motion.StepEvent, bool) {
	event, handler, outcome := e.process(sample)
	if outcome != OutcomeStep && outcome != OutcomeResync {
		return motion.StepEvent{}, false
	}

	if handler != nil {
		handler(event)
	}

	return event, outcome == OutcomeStep
}

// StepCount returns the running count. It is zero before the first Arm.
func (e *Engine) StepCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.count
}

// Armed reports whether the engine is counting.
func (e *Engine) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.armed
}

// Strategy returns the name of the current or last strategy, or an empty string.
func (e *Engine) Strategy() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.strategy == nil {
		return ""
	}

	return e.strategy.Name()
}

// deliver is the callback handed to the sensor subsystem.
func (e *Engine) deliver(sample motion.Sample) {
	e.OnSample(sample)
}

func (e *Engine) process(sample motion.Sample) (motion.StepEvent, StepHandler, SampleOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.armed {
		return motion.StepEvent{}, nil, OutcomeNotArmed
	}

	if sample.Source != e.strategy.Source() {
		e.log.Debugw("Dropping sample from inactive source", "source", sample.Source)

		return motion.StepEvent{}, nil, OutcomeWrongSource
	}

	if e.seen && sample.Timestamp <= e.lastTimestamp {
		e.log.Debugw("Dropping out of order sample", "timestamp", sample.Timestamp, "last", e.lastTimestamp)

		return motion.StepEvent{}, nil, OutcomeOutOfOrder
	}

	e.seen = true
	e.lastTimestamp = sample.Timestamp

	previous := e.count

	next, outcome := e.strategy.Apply(sample, previous)
	e.count = next

	switch outcome {
	case OutcomeResync:
		e.log.Warnw("Step counter went backwards, rebaselined",
			"timestamp", sample.Timestamp, "steps", next, "policy", e.params.Resync)

		event := motion.StepEvent{
			Timestamp: sample.Timestamp,
			Source:    sample.Source,
			Count:     next,
			Resync:    true,
		}

		return event, e.handler, outcome
	case OutcomeStep:
		if next <= previous {
			return motion.StepEvent{}, nil, OutcomeIgnored
		}
	default:
		return motion.StepEvent{}, nil, outcome
	}

	event := motion.StepEvent{
		Timestamp: sample.Timestamp,
		Source:    sample.Source,
		Count:     next,
	}

	return event, e.handler, OutcomeStep
}
