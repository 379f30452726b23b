package simulate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/step-alarm/internal/detection"
)

const walkScript = `
target_steps: 2
sources: [accelerometer]
detection:
  accelerometer: {seed_gravity: true}
samples:
  - {t: 0, source: accelerometer, values: [0, 0, 9.8]}
  - {t: 100, source: accelerometer, values: [0, 0, 14.8]}
  - {t: 150, source: accelerometer, values: [0, 0, 9.8]}
  - {t: 200, source: accelerometer, values: [0, 0, 14.8]}
  - {t: 250, source: accelerometer, values: [0, 0, 9.8]}
  - {t: 500, source: accelerometer, values: [0, 0, 14.8]}
  - {t: 550, source: gyroscope, values: [2, 0, 0]}
`

// TestRunReplaysScript replays an accelerometer recording to the target.
func TestRunReplaysScript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "walk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(walkScript), 0o600))

	var out bytes.Buffer

	result, err := Run(context.Background(), &Options{ScriptPath: path, Out: &out})
	require.NoError(t, err)
	require.Equal(t, detection.StrategyAccelerometerFallback, result.Strategy)
	require.True(t, result.Reached)
	require.Equal(t, int64(500), result.ReachedAt)
	require.Equal(t, uint64(2), result.Steps)
	require.Equal(t, 6, result.Delivered)
	require.Equal(t, 1, result.Dropped)
	require.Contains(t, out.String(), "t=100ms step 1")
	require.Contains(t, out.String(), "target reached at t=500ms")
}

// TestRunTargetOverride checks an unreached override target is reported.
func TestRunTargetOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "walk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(walkScript), 0o600))

	var out bytes.Buffer

	result, err := Run(context.Background(), &Options{ScriptPath: path, TargetSteps: 5, Out: &out})
	require.NoError(t, err)
	require.False(t, result.Reached)
	require.Equal(t, uint64(5), result.TargetSteps)
	require.Contains(t, out.String(), "target not reached: 2/5 steps")
}

// TestLoadScriptErrors covers missing and empty scripts.
func TestLoadScriptErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadScript(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_steps: 3\n"), 0o600))

	_, err = LoadScript(path)
	require.ErrorIs(t, err, errEmptyScript)
}

const rebootScript = `
target_steps: 5
sources: [step_counter]
samples:
  - {t: 0, source: step_counter, values: [100]}
  - {t: 1000, source: step_counter, values: [103]}
  - {t: 2000, source: step_counter, values: [2]}
  - {t: 3000, source: step_counter, values: [4]}
`

// TestRunReportsCounterResync shows a counter reboot dropping the count to zero.
func TestRunReportsCounterResync(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reboot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rebootScript), 0o600))

	var out bytes.Buffer

	result, err := Run(context.Background(), &Options{ScriptPath: path, Out: &out})
	require.NoError(t, err)
	require.Equal(t, detection.StrategyStepCounterCumulative, result.Strategy)
	require.False(t, result.Reached)
	require.Equal(t, uint64(2), result.Steps)
	require.Contains(t, out.String(), "t=1000ms step 3")
	require.Contains(t, out.String(), "t=2000ms counter resync, steps 0")
	require.Contains(t, out.String(), "t=3000ms step 2")
}
