package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	api "github.com/oshokin/step-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/step-alarm/internal/config"
	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
	"github.com/oshokin/step-alarm/internal/logger"
	"github.com/oshokin/step-alarm/internal/service/common"
)

// DefaultPollInterval matches the refresh rate of the on-screen counter.
const DefaultPollInterval = 100 * time.Millisecond

// Options configures the client actions.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// TargetSteps is the trigger target; zero uses the daemon default.
	TargetSteps uint64
	// AlarmID identifies the alarm on trigger.
	AlarmID string
	// Follow keeps status polling until the session ends.
	Follow bool
	// PollInterval is the status polling period when Follow is set.
	PollInterval time.Duration
	// Out receives status lines; defaults to stdout.
	Out io.Writer
}

// Trigger asks the daemon to start a session.
func Trigger(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "stepalarm-trigger")

	return withClient(ctx, opts, func(client *common.Client) error {
		response, err := client.Trigger(ctx, opts.TargetSteps, opts.AlarmID)
		if err != nil {
			return err
		}

		logger.InfoKV(ctx, "Alarm trigger sent",
			"result", response.Result,
			"session_id", response.Status.SessionID,
			"alarm_id", response.Status.AlarmID,
			"target_steps", response.Status.TargetSteps,
			"strategy", response.Status.Strategy)

		return nil
	})
}

// Stop asks the daemon to end the active session.
func Stop(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "stepalarm-stop")

	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	return withClient(ctx, opts, func(client *common.Client) error {
		stopped, err := client.Stop(ctx, actor)
		if err != nil {
			return err
		}

		if !stopped {
			logger.Info(ctx, "No active alarm to stop")

			return nil
		}

		logger.InfoKV(ctx, "Alarm stopped", "actor", actor.String())

		return nil
	})
}

// Status prints the daemon status. With Follow it polls until the state
// returns to idle or the context is canceled.
func Status(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "stepalarm-status")

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return withClient(ctx, opts, func(client *common.Client) error {
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(out, FormatStatus(status))

		if !opts.Follow || status.State != string(domain.StateCounting) {
			return nil
		}

		interval := opts.PollInterval
		if interval <= 0 {
			interval = DefaultPollInterval
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := status

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				status, err = client.Status(ctx)
				if err != nil {
					return err
				}

				if status != last {
					_, _ = fmt.Fprintln(out, FormatStatus(status))
					last = status
				}

				if status.State != string(domain.StateCounting) {
					return nil
				}
			}
		}
	})
}

// FormatStatus renders a status as a single line.
func FormatStatus(status api.StatusResponse) string {
	switch {
	case status.SessionID == "":
		return fmt.Sprintf("%s, no sessions yet", status.State)
	case status.State == string(domain.StateCounting):
		return fmt.Sprintf("%s: %d/%d steps, %d to go (alarm %q, %s)",
			status.State, status.Steps, status.TargetSteps, status.Remaining, status.AlarmID, status.Strategy)
	case status.Reason != "":
		return fmt.Sprintf("%s, last session %s: %s (alarm %q)",
			status.State, status.Outcome, status.Reason, status.AlarmID)
	default:
		return fmt.Sprintf("%s, last session %s after %d/%d steps (alarm %q, %s)",
			status.State, status.Outcome, status.Steps, status.TargetSteps, status.AlarmID, status.Strategy)
	}
}

// withClient loads settings, connects and runs fn.
func withClient(ctx context.Context, opts *Options, fn func(client *common.Client) error) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	return fn(client)
}
