// Package alarm implements the gRPC transport for the step alarm.
//
// The AlarmService is described by hand over protobuf well-known types:
// requests and responses are structpb.Struct objects with fixed keys,
// scalar results use wrapperspb and empty requests use emptypb. The package
// provides the service descriptor, a typed client, the message conversions
// and a server that calls into the lifecycle controller.
package alarm
