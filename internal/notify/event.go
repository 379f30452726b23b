package notify

import (
	"encoding/json"
	"strings"
	"time"

	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
)

// Event names published for each outcome.
const (
	// EventTargetReached is published when a session reaches its target.
	EventTargetReached = "TARGET_REACHED"
	// EventStopped is published when a session is stopped externally.
	EventStopped = "STOPPED"
	// EventArmFailed is published when a trigger could not arm the engine.
	EventArmFailed = "ARM_FAILED"
)

// Payload is the JSON body of a lifecycle event.
type Payload struct {
	Alarm AlarmPayload `json:"alarm"`
}

// AlarmPayload carries the session details of a lifecycle event.
type AlarmPayload struct {
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	SessionID   string `json:"session_id"`
	AlarmID     string `json:"alarm_id,omitempty"`
	TargetSteps uint64 `json:"target_steps"`
	Steps       uint64 `json:"steps"`
	Strategy    string `json:"strategy,omitempty"`
	StartedAt   string `json:"started_at"`
	StoppedBy   string `json:"stopped_by,omitempty"`
	Error       string `json:"error,omitempty"`
}

// FormatPayload creates the JSON payload for a session outcome.
func FormatPayload(event string, session *domain.Session, err error) ([]byte, error) {
	payload := Payload{
		Alarm: AlarmPayload{
			Timestamp:   formatTime(session.EndedAt),
			Event:       event,
			SessionID:   session.ID,
			AlarmID:     session.AlarmID,
			TargetSteps: session.TargetSteps,
			Steps:       session.Steps,
			Strategy:    session.Strategy,
			StartedAt:   formatTime(session.StartedAt),
		},
	}

	if session.StoppedBy != nil {
		payload.Alarm.StoppedBy = session.StoppedBy.String()
	}

	if err != nil {
		payload.Alarm.Error = err.Error()
	}

	return json.Marshal(payload)
}

// EventTopic returns the topic an event is published on.
func EventTopic(prefix, event string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.ToLower(event)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}
