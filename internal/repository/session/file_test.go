package session

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
)

func finishedSession(id string, outcome domain.Outcome) *domain.Session {
	started := time.Date(2026, time.March, 1, 7, 0, 0, 0, time.UTC)

	return &domain.Session{
		ID:          id,
		AlarmID:     "alarm-" + id,
		TargetSteps: 10,
		Steps:       10,
		Strategy:    "step_detector_pulse",
		StartedAt:   started,
		EndedAt:     started.Add(90 * time.Second),
		Outcome:     outcome,
	}
}

// TestFileRepository_NotFound verifies reads on a missing file return ErrNotFound.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"), 0)

	sessions, err := repo.List(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, sessions)

	last, err := repo.Last(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, last)
}

// TestFileRepository_AppendList ensures appended sessions come back in order with all fields.
func TestFileRepository_AppendList(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "history.json")
	repo := NewFileRepository(file, 0)

	reached := finishedSession("1", domain.OutcomeTargetReached)
	stopped := finishedSession("2", domain.OutcomeStopped)
	stopped.Steps = 4
	stopped.StoppedBy = &domain.Actor{Hostname: "kitchen", Username: "o.shokin"}

	failed := finishedSession("3", domain.OutcomeArmFailed)
	failed.Steps = 0
	failed.Strategy = ""
	failed.Reason = "no step sensor available"

	for _, s := range []*domain.Session{reached, stopped, failed} {
		require.NoError(t, repo.Append(context.Background(), s))
	}

	sessions, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []*domain.Session{reached, stopped, failed}, sessions)

	last, err := repo.Last(context.Background())
	require.NoError(t, err)
	require.Equal(t, failed, last)

	_, err = os.Stat(file)
	require.NoError(t, err)
}

// TestFileRepository_Cap checks the oldest sessions are dropped past the cap.
func TestFileRepository_Cap(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "history.json"), 3)

	for i := range 5 {
		require.NoError(t, repo.Append(context.Background(), finishedSession(strconv.Itoa(i), domain.OutcomeTargetReached)))
	}

	sessions, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	require.Equal(t, "2", sessions[0].ID)
	require.Equal(t, "4", sessions[2].ID)
}

// TestFileRepository_Corrupt checks a damaged file is reported, not silently replaced.
func TestFileRepository_Corrupt(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o600))

	repo := NewFileRepository(file, 0)

	_, err := repo.List(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Error(t, repo.Append(context.Background(), finishedSession("1", domain.OutcomeStopped)))
}
