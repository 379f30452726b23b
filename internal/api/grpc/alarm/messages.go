package alarm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
	"github.com/oshokin/step-alarm/internal/domain/motion"
	"github.com/oshokin/step-alarm/internal/lifecycle"
)

// Message keys.
const (
	keyTargetSteps = "target_steps"
	keyAlarmID     = "alarm_id"
	keyResult      = "result"
	keyStatus      = "status"
	keyState       = "state"
	keySteps       = "steps"
	keyRemaining   = "remaining"
	keyStrategy    = "strategy"
	keySessionID   = "session_id"
	keyOutcome     = "outcome"
	keyStartedAt   = "started_at"
	keyEndedAt     = "ended_at"
	keyReason      = "reason"
	keyHostname    = "hostname"
	keyUsername    = "username"
	keySource      = "source"
	keyTimestamp   = "timestamp"
	keyValues      = "values"
)

// errInvalidMessage is returned when a request does not have the expected shape.
var errInvalidMessage = errors.New("invalid message")

// TriggerRequest asks the daemon to start a session.
type TriggerRequest struct {
	// TargetSteps is the number of steps to walk; zero uses the daemon default.
	TargetSteps uint64
	// AlarmID identifies the alarm that fired.
	AlarmID string
}

// TriggerResponse reports what a trigger did.
type TriggerResponse struct {
	// Result is armed or duplicate.
	Result string
	// Status is the controller status after the trigger.
	Status StatusResponse
}

// StatusResponse is the wire view of lifecycle.Status.
type StatusResponse struct {
	State       string
	Steps       uint64
	Remaining   uint64
	TargetSteps uint64
	Strategy    string
	SessionID   string
	AlarmID     string
	Outcome     string
	StartedAt   time.Time
	EndedAt     time.Time
	Reason      string
}

// SampleRequest carries one motion sample for injection.
type SampleRequest struct {
	Source    string
	Timestamp int64
	Values    []float64
}

// ToStruct encodes the request.
func (r TriggerRequest) ToStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyTargetSteps: structpb.NewNumberValue(float64(r.TargetSteps)),
		keyAlarmID:     structpb.NewStringValue(r.AlarmID),
	}}
}

// TriggerRequestFromStruct decodes a trigger request. Missing fields stay zero.
func TriggerRequestFromStruct(s *structpb.Struct) (TriggerRequest, error) {
	fields := s.GetFields()

	target, err := countField(fields, keyTargetSteps)
	if err != nil {
		return TriggerRequest{}, err
	}

	return TriggerRequest{
		TargetSteps: target,
		AlarmID:     fields[keyAlarmID].GetStringValue(),
	}, nil
}

// ToStruct encodes the response.
func (r TriggerResponse) ToStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyResult: structpb.NewStringValue(r.Result),
		keyStatus: structpb.NewStructValue(r.Status.ToStruct()),
	}}
}

// TriggerResponseFromStruct decodes a trigger response.
func TriggerResponseFromStruct(s *structpb.Struct) TriggerResponse {
	fields := s.GetFields()

	return TriggerResponse{
		Result: fields[keyResult].GetStringValue(),
		Status: StatusResponseFromStruct(fields[keyStatus].GetStructValue()),
	}
}

// NewStatusResponse converts a controller status for the wire.
func NewStatusResponse(status lifecycle.Status) StatusResponse {
	response := StatusResponse{
		State:     string(status.State),
		Steps:     status.Steps,
		Remaining: status.Remaining,
		Strategy:  status.Strategy,
	}

	if session := status.Session; session != nil {
		response.TargetSteps = session.TargetSteps
		response.SessionID = session.ID
		response.AlarmID = session.AlarmID
		response.Outcome = string(session.Outcome)
		response.StartedAt = session.StartedAt
		response.EndedAt = session.EndedAt
		response.Reason = session.Reason

		if session.Strategy != "" {
			response.Strategy = session.Strategy
		}
	}

	return response
}

// ToStruct encodes the status.
func (r StatusResponse) ToStruct() *structpb.Struct {
	fields := map[string]*structpb.Value{
		keyState:       structpb.NewStringValue(r.State),
		keySteps:       structpb.NewNumberValue(float64(r.Steps)),
		keyRemaining:   structpb.NewNumberValue(float64(r.Remaining)),
		keyTargetSteps: structpb.NewNumberValue(float64(r.TargetSteps)),
		keyStrategy:    structpb.NewStringValue(r.Strategy),
		keySessionID:   structpb.NewStringValue(r.SessionID),
		keyAlarmID:     structpb.NewStringValue(r.AlarmID),
		keyOutcome:     structpb.NewStringValue(r.Outcome),
		keyReason:      structpb.NewStringValue(r.Reason),
	}

	if !r.StartedAt.IsZero() {
		fields[keyStartedAt] = structpb.NewStringValue(r.StartedAt.UTC().Format(time.RFC3339Nano))
	}

	if !r.EndedAt.IsZero() {
		fields[keyEndedAt] = structpb.NewStringValue(r.EndedAt.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// StatusResponseFromStruct decodes a status. Malformed fields stay zero.
func StatusResponseFromStruct(s *structpb.Struct) StatusResponse {
	fields := s.GetFields()

	steps, _ := countField(fields, keySteps)
	remaining, _ := countField(fields, keyRemaining)
	target, _ := countField(fields, keyTargetSteps)

	return StatusResponse{
		State:       fields[keyState].GetStringValue(),
		Steps:       steps,
		Remaining:   remaining,
		TargetSteps: target,
		Strategy:    fields[keyStrategy].GetStringValue(),
		SessionID:   fields[keySessionID].GetStringValue(),
		AlarmID:     fields[keyAlarmID].GetStringValue(),
		Outcome:     fields[keyOutcome].GetStringValue(),
		StartedAt:   timeField(fields, keyStartedAt),
		EndedAt:     timeField(fields, keyEndedAt),
		Reason:      fields[keyReason].GetStringValue(),
	}
}

// ActorToStruct encodes the actor of a stop request.
func ActorToStruct(actor *domain.Actor) *structpb.Struct {
	if actor == nil {
		return &structpb.Struct{}
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyHostname: structpb.NewStringValue(actor.Hostname),
		keyUsername: structpb.NewStringValue(actor.Username),
	}}
}

// ActorFromStruct decodes the actor of a stop request, or nil when absent.
func ActorFromStruct(s *structpb.Struct) *domain.Actor {
	fields := s.GetFields()

	hostname := fields[keyHostname].GetStringValue()
	username := fields[keyUsername].GetStringValue()

	if hostname == "" && username == "" {
		return nil
	}

	return &domain.Actor{
		Hostname: hostname,
		Username: username,
	}
}

// ToStruct encodes the sample request.
func (r SampleRequest) ToStruct() *structpb.Struct {
	values := make([]*structpb.Value, 0, len(r.Values))
	for _, v := range r.Values {
		values = append(values, structpb.NewNumberValue(v))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keySource:    structpb.NewStringValue(r.Source),
		keyTimestamp: structpb.NewNumberValue(float64(r.Timestamp)),
		keyValues:    structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// SampleFromStruct decodes and validates an injected sample.
func SampleFromStruct(s *structpb.Struct) (motion.Sample, error) {
	fields := s.GetFields()

	source, err := motion.ParseSource(fields[keySource].GetStringValue())
	if err != nil {
		return motion.Sample{}, err
	}

	raw := fields[keyValues].GetListValue().GetValues()
	if len(raw) == 0 {
		return motion.Sample{}, fmt.Errorf("%w: %s is required", errInvalidMessage, keyValues)
	}

	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		values = append(values, v.GetNumberValue())
	}

	return motion.Sample{
		Timestamp: int64(fields[keyTimestamp].GetNumberValue()),
		Source:    source,
		Values:    values,
	}, nil
}

// countField reads a non-negative integral number.
func countField(fields map[string]*structpb.Value, key string) (uint64, error) {
	value, ok := fields[key]
	if !ok {
		return 0, nil
	}

	number, isNumber := value.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return 0, fmt.Errorf("%w: %s must be a number", errInvalidMessage, key)
	}

	n := number.NumberValue
	if n < 0 || n != math.Trunc(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errInvalidMessage, key)
	}

	return uint64(n), nil
}

func timeField(fields map[string]*structpb.Value, key string) time.Time {
	raw := fields[key].GetStringValue()
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return t
}
