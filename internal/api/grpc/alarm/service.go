package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "stepalarm.v1.AlarmService"

// Full method names.
const (
	TriggerMethod      = "/" + ServiceName + "/Trigger"
	StopMethod         = "/" + ServiceName + "/Stop"
	StatusMethod       = "/" + ServiceName + "/Status"
	StepCountMethod    = "/" + ServiceName + "/StepCount"
	InjectSampleMethod = "/" + ServiceName + "/InjectSample"
)

// AlarmServiceServer is the server API for AlarmService.
type AlarmServiceServer interface {
	// Trigger starts counting steps for a new alarm session.
	Trigger(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// Stop ends the active session without reaching the target.
	Stop(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
	// Status reports the controller state and session progress.
	Status(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	// StepCount reports the running step count.
	StepCount(ctx context.Context, req *emptypb.Empty) (*wrapperspb.UInt64Value, error)
	// InjectSample feeds one motion sample to the fake sensor subsystem.
	InjectSample(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
}

// AlarmServiceClient is the client API for AlarmService.
type AlarmServiceClient interface {
	Trigger(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Stop(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	StepCount(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	InjectSample(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

// RegisterAlarmServiceServer registers srv on the gRPC server.
func RegisterAlarmServiceServer(s grpc.ServiceRegistrar, srv AlarmServiceServer) {
	s.RegisterService(&AlarmServiceDesc, srv)
}

// AlarmServiceDesc describes AlarmService for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var AlarmServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlarmServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Trigger",
			Handler:    unary(TriggerMethod, AlarmServiceServer.Trigger),
		},
		{
			MethodName: "Stop",
			Handler:    unary(StopMethod, AlarmServiceServer.Stop),
		},
		{
			MethodName: "Status",
			Handler:    unary(StatusMethod, AlarmServiceServer.Status),
		},
		{
			MethodName: "StepCount",
			Handler:    unary(StepCountMethod, AlarmServiceServer.StepCount),
		},
		{
			MethodName: "InjectSample",
			Handler:    unary(InjectSampleMethod, AlarmServiceServer.InjectSample),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stepalarm/v1/alarm.proto",
}

// unary builds a method handler that decodes Req and dispatches to call,
// running the server interceptor when one is installed.
func unary[Req any, Resp any](
	fullMethod string,
	call func(AlarmServiceServer, context.Context, *Req) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(AlarmServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AlarmServiceServer), ctx, req.(*Req))
		}

		return interceptor(ctx, in, info, handler)
	}
}

// alarmServiceClient invokes AlarmService methods over a connection.
type alarmServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAlarmServiceClient creates a client over cc.
//
//nolint:ireturn // Mirrors generated gRPC client constructors.
func NewAlarmServiceClient(cc grpc.ClientConnInterface) AlarmServiceClient {
	return &alarmServiceClient{cc: cc}
}

func (c *alarmServiceClient) Trigger(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TriggerMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *alarmServiceClient) Stop(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, StopMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *alarmServiceClient) Status(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, StatusMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *alarmServiceClient) StepCount(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*wrapperspb.UInt64Value, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, StepCountMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *alarmServiceClient) InjectSample(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, InjectSampleMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
