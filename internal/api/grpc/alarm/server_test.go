package alarm

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/step-alarm/internal/detection"
	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
	"github.com/oshokin/step-alarm/internal/domain/motion"
	"github.com/oshokin/step-alarm/internal/lifecycle"
	"github.com/oshokin/step-alarm/internal/notify"
	"github.com/oshokin/step-alarm/internal/sensor"
)

// fakeService implements the Service interface for unit testing the transport.
type fakeService struct {
	// triggerErr is returned from Trigger when set.
	triggerErr error
	// stopped records the actor of the last stop.
	stopped *domain.Actor
	// status is returned from Status.
	status lifecycle.Status
}

func (f *fakeService) Trigger(target uint64, alarmID string) (lifecycle.TriggerResult, error) {
	if f.triggerErr != nil {
		return "", f.triggerErr
	}

	f.status = lifecycle.Status{
		State:     domain.StateCounting,
		Remaining: target,
		Session:   &domain.Session{ID: "s-1", AlarmID: alarmID, TargetSteps: target},
	}

	return lifecycle.TriggerArmed, nil
}

func (f *fakeService) ExternalStop(actor *domain.Actor) bool {
	f.stopped = actor

	return f.status.State == domain.StateCounting
}

func (f *fakeService) Status() lifecycle.Status { return f.status }

func (f *fakeService) StepCount() uint64 { return f.status.Steps }

// TestServer_Trigger_Validation ensures malformed requests return InvalidArgument.
func TestServer_Trigger_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeService), nil)

	_, err := s.Trigger(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	bad, err := structpb.NewStruct(map[string]any{"target_steps": -3})
	require.NoError(t, err)

	_, err = s.Trigger(context.Background(), bad)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	fractional, err := structpb.NewStruct(map[string]any{"target_steps": 2.5})
	require.NoError(t, err)

	_, err = s.Trigger(context.Background(), fractional)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_Trigger_ErrorMapping checks lifecycle errors map to gRPC codes.
func TestServer_Trigger_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{name: "invalid target", err: lifecycle.ErrInvalidTarget, code: codes.InvalidArgument},
		{name: "arm failed", err: errors.Join(lifecycle.ErrArmFailed, detection.ErrNoSensorAvailable), code: codes.FailedPrecondition},
		{name: "other", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := NewServer(&fakeService{triggerErr: tc.err}, nil)

			_, err := s.Trigger(context.Background(), TriggerRequest{TargetSteps: 5}.ToStruct())
			require.Equal(t, tc.code, status.Code(err))
		})
	}
}

// TestServer_StopPassesActor ensures the actor reaches the service.
func TestServer_StopPassesActor(t *testing.T) {
	t.Parallel()

	service := new(fakeService)
	s := NewServer(service, nil)

	_, err := s.Trigger(context.Background(), TriggerRequest{TargetSteps: 5, AlarmID: "a"}.ToStruct())
	require.NoError(t, err)

	actor := &domain.Actor{Hostname: "test-hostname", Username: "test-user"}

	resp, err := s.Stop(context.Background(), ActorToStruct(actor))
	require.NoError(t, err)
	require.True(t, resp.GetValue())
	require.Equal(t, actor, service.stopped)

	_, err = s.Stop(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, service.stopped)
}

// TestServer_InjectSample checks injection is refused without an injector and validated with one.
func TestServer_InjectSample(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeService), nil)

	_, err := s.InjectSample(context.Background(), SampleRequest{Source: "step_detector", Values: []float64{1}}.ToStruct())
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	fake := sensor.NewFake(motion.SourceStepDetector)
	s = NewServer(new(fakeService), fake)

	_, err = s.InjectSample(context.Background(), SampleRequest{Source: "barometer", Values: []float64{1}}.ToStruct())
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.InjectSample(context.Background(), SampleRequest{Source: "step_detector"}.ToStruct())
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err := s.InjectSample(context.Background(), SampleRequest{Source: "step_detector", Values: []float64{1}}.ToStruct())
	require.NoError(t, err)
	require.False(t, resp.GetValue())
}

// TestStatusResponseRoundtrip checks the status message keeps every field.
func TestStatusResponseRoundtrip(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, time.March, 1, 7, 0, 0, 0, time.UTC)
	want := StatusResponse{
		State:       "counting",
		Steps:       4,
		Remaining:   6,
		TargetSteps: 10,
		Strategy:    detection.StrategyAccelerometerFallback,
		SessionID:   "s-1",
		AlarmID:     "morning",
		StartedAt:   started,
	}

	require.Equal(t, want, StatusResponseFromStruct(want.ToStruct()))
}

// TestServiceOverGRPC drives a real controller through the hand-written
// service descriptor and client over an in-memory listener.
func TestServiceOverGRPC(t *testing.T) {
	t.Parallel()

	sensors := sensor.NewFake(motion.SourceStepDetector)
	engine := detection.NewEngine(sensors, detection.DefaultParams(), nil)
	notifier := notify.NewFake()
	controller := lifecycle.New(engine, notifier)

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterAlarmServiceServer(server, NewServer(controller, sensors))

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	client := NewAlarmServiceClient(conn)
	ctx := context.Background()

	raw, err := client.Trigger(ctx, TriggerRequest{TargetSteps: 3, AlarmID: "morning"}.ToStruct())
	require.NoError(t, err)

	triggered := TriggerResponseFromStruct(raw)
	require.Equal(t, string(lifecycle.TriggerArmed), triggered.Result)
	require.Equal(t, "counting", triggered.Status.State)
	require.Equal(t, uint64(3), triggered.Status.Remaining)
	require.Equal(t, detection.StrategyStepDetectorPulse, triggered.Status.Strategy)

	raw, err = client.Trigger(ctx, TriggerRequest{TargetSteps: 7, AlarmID: "again"}.ToStruct())
	require.NoError(t, err)
	require.Equal(t, string(lifecycle.TriggerDuplicate), TriggerResponseFromStruct(raw).Result)

	for i := range 2 {
		delivered, injectErr := client.InjectSample(ctx,
			SampleRequest{Source: "step_detector", Timestamp: int64(i * 100), Values: []float64{1}}.ToStruct())
		require.NoError(t, injectErr)
		require.True(t, delivered.GetValue())
	}

	count, err := client.StepCount(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Equal(t, uint64(2), count.GetValue())

	raw, err = client.Status(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Equal(t, uint64(1), StatusResponseFromStruct(raw).Remaining)

	_, err = client.InjectSample(ctx, SampleRequest{Source: "step_detector", Timestamp: 200, Values: []float64{1}}.ToStruct())
	require.NoError(t, err)
	require.Equal(t, 1, notifier.Count(notify.EventTargetReached))

	raw, err = client.Status(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	final := StatusResponseFromStruct(raw)
	require.Equal(t, "idle", final.State)
	require.Equal(t, string(domain.OutcomeTargetReached), final.Outcome)
	require.Equal(t, "morning", final.AlarmID)

	stopped, err := client.Stop(ctx, ActorToStruct(&domain.Actor{Hostname: "h", Username: "u"}))
	require.NoError(t, err)
	require.False(t, stopped.GetValue())

	_, err = client.Trigger(ctx, TriggerRequest{TargetSteps: lifecycle.MaxTargetSteps + 1}.ToStruct())
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
