//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	api "github.com/oshokin/step-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/step-alarm/internal/config"
	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
)

// Client wraps the AlarmService gRPC client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the daemon.
	conn *grpc.ClientConn
	// api is the AlarmService client.
	api api.AlarmServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// dialOptions are passed to grpc.NewClient.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDialOptions appends gRPC dial options, e.g. a custom dialer in tests.
func WithDialOptions(options ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, options...)
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when an actor is not provided but is required for the operation.
	errActorRequired = errors.New("actor must be provided")
)

// Dial establishes a gRPC connection to the step alarm daemon.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
		dialOptions: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}

	for _, opt := range opts {
		opt(client)
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, client.dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial step alarm daemon: %w", err)
	}

	client.conn = conn
	client.api = api.NewAlarmServiceClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Trigger starts a session on the daemon. A zero target uses the daemon default.
func (c *Client) Trigger(ctx context.Context, target uint64, alarmID string) (api.TriggerResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	request := api.TriggerRequest{
		TargetSteps: target,
		AlarmID:     alarmID,
	}

	response, err := c.api.Trigger(callCtx, request.ToStruct())
	if err != nil {
		return api.TriggerResponse{}, fmt.Errorf("trigger alarm: %w", err)
	}

	return api.TriggerResponseFromStruct(response), nil
}

// Stop ends the active session and reports whether one was active.
func (c *Client) Stop(ctx context.Context, actor *domain.Actor) (bool, error) {
	if actor == nil {
		return false, errActorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.Stop(callCtx, api.ActorToStruct(actor))
	if err != nil {
		return false, fmt.Errorf("stop alarm: %w", err)
	}

	return response.GetValue(), nil
}

// Status retrieves the controller state and session progress.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.Status(callCtx, new(emptypb.Empty))
	if err != nil {
		return api.StatusResponse{}, fmt.Errorf("get alarm status: %w", err)
	}

	return api.StatusResponseFromStruct(response), nil
}

// StepCount retrieves the running step count.
func (c *Client) StepCount(ctx context.Context) (uint64, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.StepCount(callCtx, new(emptypb.Empty))
	if err != nil {
		return 0, fmt.Errorf("get step count: %w", err)
	}

	return response.GetValue(), nil
}

// InjectSample pushes a sample to a daemon running the fake sensor kind.
func (c *Client) InjectSample(ctx context.Context, sample api.SampleRequest) (bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.InjectSample(callCtx, sample.ToStruct())
	if err != nil {
		return false, fmt.Errorf("inject sample: %w", err)
	}

	return response.GetValue(), nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
