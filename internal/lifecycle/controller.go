package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oshokin/step-alarm/internal/detection"
	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
	"github.com/oshokin/step-alarm/internal/domain/motion"
)

// Engine is the part of the step detection engine the controller drives.
type Engine interface {
	Arm(handler detection.StepHandler) error
	Disarm()
	StepCount() uint64
	Strategy() string
}

// Notifier receives the single outcome of every session. Calls are made
// outside the controller lock and must not block for long.
type Notifier interface {
	TargetReached(session *domain.Session)
	Stopped(session *domain.Session)
	ArmFailed(session *domain.Session, err error)
}

// TriggerResult tells the caller what a trigger did.
type TriggerResult string

const (
	// TriggerArmed means a new session started counting.
	TriggerArmed TriggerResult = "armed"
	// TriggerDuplicate means a session was already active and nothing changed.
	TriggerDuplicate TriggerResult = "duplicate"
)

const (
	// DefaultTargetSteps is used when a trigger does not specify a target.
	DefaultTargetSteps uint64 = 10
	// MaxTargetSteps bounds the target accepted from trigger sources.
	MaxTargetSteps uint64 = 100_000
)

var (
	// ErrArmFailed wraps the engine error when a trigger could not arm it.
	ErrArmFailed = errors.New("arm failed")
	// ErrInvalidTarget is returned for a target above MaxTargetSteps.
	ErrInvalidTarget = errors.New("invalid target steps")
)

// Status is a point-in-time view of the controller for polling clients.
type Status struct {
	// State is the controller state.
	State domain.State
	// Steps is the running step count.
	Steps uint64
	// Remaining is how many steps the active session still needs.
	Remaining uint64
	// Strategy is the current or last detection strategy.
	Strategy string
	// Session is the active session, or the last finished one.
	Session *domain.Session
}

// Controller owns the alarm state machine. A single mutex guards the state,
// the guard flag and the session so check-and-set cannot race.
type Controller struct {
	// engine counts steps for the active session.
	engine Engine
	// notifier receives session outcomes.
	notifier Notifier
	// log records duplicate triggers and transitions.
	log *zap.SugaredLogger
	// now returns the wall clock used for session timestamps.
	now func() time.Time
	// newID generates session identifiers.
	newID func() string

	// mu guards every field below.
	mu sync.Mutex
	// state is Idle or Counting.
	state domain.State
	// active is the guard flag: true while a session is counting.
	active bool
	// session is the active session.
	session *domain.Session
	// last is the most recently finished session.
	last *domain.Session
	// defaultTarget replaces a zero target at trigger time.
	defaultTarget uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithDefaultTarget sets the target used when a trigger passes zero.
func WithDefaultTarget(target uint64) Option {
	return func(c *Controller) {
		if target > 0 {
			c.defaultTarget = target
		}
	}
}

// New creates an idle controller.
func New(engine Engine, notifier Notifier, opts ...Option) *Controller {
	c := &Controller{
		engine:        engine,
		notifier:      notifier,
		log:           zap.NewNop().Sugar(),
		now:           time.Now,
		newID:         uuid.NewString,
		state:         domain.StateIdle,
		defaultTarget: DefaultTargetSteps,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetDefaultTarget changes the target used by later triggers without one.
func (c *Controller) SetDefaultTarget(target uint64) {
	if target == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.defaultTarget = target
}

// Trigger starts a session. A zero target uses the default target. While a
// session is active the call is ignored and TriggerDuplicate is returned.
// When the engine cannot be armed the controller stays Idle and the error
// wraps ErrArmFailed.
func (c *Controller) Trigger(target uint64, alarmID string) (TriggerResult, error) {
	c.mu.Lock()

	if c.active {
		c.log.Infow("Alarm already active, ignoring trigger",
			"alarm_id", alarmID, "active_alarm_id", c.session.AlarmID, "session_id", c.session.ID)
		c.mu.Unlock()

		return TriggerDuplicate, nil
	}

	if target == 0 {
		target = c.defaultTarget
	}

	if target > MaxTargetSteps {
		c.mu.Unlock()

		return "", fmt.Errorf("%w: %d exceeds %d", ErrInvalidTarget, target, MaxTargetSteps)
	}

	session := &domain.Session{
		ID:          c.newID(),
		AlarmID:     alarmID,
		TargetSteps: target,
		StartedAt:   c.now(),
	}

	sessionID := session.ID

	err := c.engine.Arm(func(event motion.StepEvent) {
		c.onStep(sessionID, event)
	})
	if err != nil {
		session.Outcome = domain.OutcomeArmFailed
		session.Reason = err.Error()
		session.EndedAt = c.now()
		c.last = session
		failed := session.Clone()
		c.mu.Unlock()

		c.log.Errorw("Failed to arm step detection", "alarm_id", alarmID, "error", err)
		c.notifier.ArmFailed(failed, err)

		return "", fmt.Errorf("%w: %w", ErrArmFailed, err)
	}

	session.Strategy = c.engine.Strategy()
	c.session = session
	c.active = true
	c.state = domain.StateCounting
	c.mu.Unlock()

	c.log.Infow("Alarm triggered",
		"alarm_id", alarmID, "session_id", sessionID, "target_steps", target, "strategy", session.Strategy)

	return TriggerArmed, nil
}

// ExternalStop ends the active session without a TargetReached signal.
// It returns false when no session is active.
func (c *Controller) ExternalStop(actor *domain.Actor) bool {
	c.mu.Lock()

	if !c.active {
		c.mu.Unlock()
		c.log.Debugw("Stop requested while idle, ignoring", "actor", actor.String())

		return false
	}

	c.engine.Disarm()
	c.session.Steps = c.engine.StepCount()
	c.session.StoppedBy = actor.Clone()
	stopped := c.finishLocked(domain.OutcomeStopped)
	c.mu.Unlock()

	c.log.Infow("Alarm stopped externally",
		"session_id", stopped.ID, "steps", stopped.Steps, "target_steps", stopped.TargetSteps, "actor", actor.String())
	c.notifier.Stopped(stopped)

	return true
}

// State returns the controller state.
func (c *Controller) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// StepCount returns the engine running count for live display.
func (c *Controller) StepCount() uint64 {
	return c.engine.StepCount()
}

// Status returns the state with the active or last session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		State:    c.state,
		Steps:    c.engine.StepCount(),
		Strategy: c.engine.Strategy(),
	}

	session := c.session
	if session == nil {
		session = c.last
	}

	if session == nil {
		return status
	}

	status.Session = session.Clone()

	if c.active {
		status.Session.Steps = status.Steps
	}

	status.Steps = status.Session.Steps
	status.Remaining = status.Session.Remaining()

	return status
}

// onStep is the engine step handler bound to one session.
func (c *Controller) onStep(sessionID string, event motion.StepEvent) {
	c.mu.Lock()

	if !c.active || c.session.ID != sessionID {
		c.mu.Unlock()

		return
	}

	// The session mirrors the engine count, including a drop on resync.
	c.session.Steps = event.Count

	if event.Resync {
		c.log.Warnw("Step counter rebaselined during session",
			"session_id", sessionID, "steps", event.Count)
	}

	if c.session.Steps < c.session.TargetSteps {
		c.mu.Unlock()

		return
	}

	c.engine.Disarm()
	reached := c.finishLocked(domain.OutcomeTargetReached)
	c.mu.Unlock()

	c.log.Infow("Target steps reached", "session_id", reached.ID, "steps", reached.Steps)
	c.notifier.TargetReached(reached)
}

// finishLocked closes the active session and returns a copy for notifiers.
// Caller holds mu.
func (c *Controller) finishLocked(outcome domain.Outcome) *domain.Session {
	c.session.Outcome = outcome
	c.session.EndedAt = c.now()

	c.last = c.session
	c.session = nil
	c.active = false
	c.state = domain.StateIdle

	return c.last.Clone()
}
