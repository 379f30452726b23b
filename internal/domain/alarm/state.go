package alarm

import "time"

// State is the lifecycle state of the alarm controller.
type State string

const (
	// StateIdle means no alarm session is active.
	StateIdle State = "idle"
	// StateCounting means an alarm fired and steps are being counted.
	StateCounting State = "counting"
	// StateRinging is owned by the audio/UI collaborator. The controller
	// collapses it into the transition from Counting back to Idle.
	StateRinging State = "ringing"
)

// Outcome describes how a session ended.
type Outcome string

const (
	// OutcomeNone marks a session that is still running.
	OutcomeNone Outcome = ""
	// OutcomeTargetReached means the configured number of steps was taken.
	OutcomeTargetReached Outcome = "target_reached"
	// OutcomeStopped means an external stop request ended the session.
	OutcomeStopped Outcome = "stopped"
	// OutcomeArmFailed means the engine could not be armed.
	OutcomeArmFailed Outcome = "arm_failed"
)

// Actor identifies who requested a lifecycle transition.
type Actor struct {
	// Hostname is the machine name where the request originated.
	Hostname string
	// Username is the system user who sent the request.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String renders the actor as user@host.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return a.Username + "@" + a.Hostname
}

// Session is the record of one armed alarm.
type Session struct {
	// ID uniquely identifies the session.
	ID string
	// AlarmID is the identifier supplied by the trigger source.
	AlarmID string
	// TargetSteps is the number of steps required to stop the alarm.
	TargetSteps uint64
	// Steps is the last observed running step count.
	Steps uint64
	// Strategy names the detection strategy selected at arm time.
	Strategy string
	// StartedAt is when the trigger was accepted.
	StartedAt time.Time
	// EndedAt is when the session reached its outcome.
	EndedAt time.Time
	// Outcome is how the session ended.
	Outcome Outcome
	// Reason carries the failure text for OutcomeArmFailed.
	Reason string
	// StoppedBy is the actor behind an external stop, if known.
	StoppedBy *Actor
}

// Remaining returns how many steps are still required.
func (s *Session) Remaining() uint64 {
	if s == nil || s.Steps >= s.TargetSteps {
		return 0
	}

	return s.TargetSteps - s.Steps
}

// Finished reports whether the session has an outcome.
func (s *Session) Finished() bool {
	return s != nil && s.Outcome != OutcomeNone
}

// Clone returns a copy of the session to avoid leaking internal references.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.StoppedBy = s.StoppedBy.Clone()

	return &cloned
}
