package alarm

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
	"github.com/oshokin/step-alarm/internal/domain/motion"
	"github.com/oshokin/step-alarm/internal/lifecycle"
	"github.com/oshokin/step-alarm/internal/logger"
)

// Service abstracts the lifecycle operations the transport layer depends on.
type Service interface {
	Trigger(target uint64, alarmID string) (lifecycle.TriggerResult, error)
	ExternalStop(actor *domain.Actor) bool
	Status() lifecycle.Status
	StepCount() uint64
}

// SampleInjector accepts samples pushed through the API. Only the fake
// sensor subsystem provides one.
type SampleInjector interface {
	Emit(sample motion.Sample) bool
}

// Server implements the AlarmService gRPC API.
type Server struct {
	// service provides the lifecycle operations.
	service Service
	// injector receives InjectSample calls; nil disables the method.
	injector SampleInjector
}

var _ AlarmServiceServer = (*Server)(nil)

// NewServer wires the provided service into a gRPC handler. injector may be nil.
func NewServer(service Service, injector SampleInjector) *Server {
	return &Server{
		service:  service,
		injector: injector,
	}
}

// Trigger starts a session, or reports a duplicate while one is active.
func (s *Server) Trigger(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	request, err := TriggerRequestFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.service.Trigger(request.TargetSteps, request.AlarmID)
	if err != nil {
		logger.WarnKV(ctx, "Trigger rejected", "alarm_id", request.AlarmID, "error", err)

		return nil, toStatusError(err)
	}

	response := TriggerResponse{
		Result: string(result),
		Status: NewStatusResponse(s.service.Status()),
	}

	return response.ToStruct(), nil
}

// Stop ends the active session. The response is false when nothing was active.
func (s *Server) Stop(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	actor := ActorFromStruct(req)

	stopped := s.service.ExternalStop(actor)

	logger.DebugKV(ctx, "Stop handled", "actor", actor.String(), "stopped", stopped)

	return wrapperspb.Bool(stopped), nil
}

// Status returns the controller state and session progress.
func (s *Server) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return NewStatusResponse(s.service.Status()).ToStruct(), nil
}

// StepCount returns the running step count.
func (s *Server) StepCount(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	return wrapperspb.UInt64(s.service.StepCount()), nil
}

// InjectSample delivers a sample to the fake sensor subsystem. The response
// is false when no listener is registered for the sample source.
func (s *Server) InjectSample(_ context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	if s.injector == nil {
		return nil, status.Error(codes.FailedPrecondition, "sample injection requires the fake sensor kind")
	}

	sample, err := SampleFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return wrapperspb.Bool(s.injector.Emit(sample)), nil
}

// toStatusError maps lifecycle errors to gRPC codes.
func toStatusError(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTarget):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, lifecycle.ErrArmFailed):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "unable to start the alarm session")
	}
}
