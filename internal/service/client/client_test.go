package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	api "github.com/oshokin/step-alarm/internal/api/grpc/alarm"
)

// TestFormatStatus covers each status rendering.
func TestFormatStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, "idle, no sessions yet", FormatStatus(api.StatusResponse{State: "idle"}))

	counting := api.StatusResponse{
		State:       "counting",
		Steps:       4,
		Remaining:   6,
		TargetSteps: 10,
		Strategy:    "step_detector_pulse",
		SessionID:   "s-1",
		AlarmID:     "morning",
	}
	require.Equal(t, `counting: 4/10 steps, 6 to go (alarm "morning", step_detector_pulse)`, FormatStatus(counting))

	done := counting
	done.State = "idle"
	done.Steps = 10
	done.Remaining = 0
	done.Outcome = "target_reached"
	require.Equal(t, `idle, last session target_reached after 10/10 steps (alarm "morning", step_detector_pulse)`,
		FormatStatus(done))

	failed := api.StatusResponse{
		State:     "idle",
		SessionID: "s-2",
		AlarmID:   "nap",
		Outcome:   "arm_failed",
		Reason:    "no step sensor available",
	}
	require.Equal(t, `idle, last session arm_failed: no step sensor available (alarm "nap")`, FormatStatus(failed))
}
