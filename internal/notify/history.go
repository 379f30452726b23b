package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
	"github.com/oshokin/step-alarm/internal/repository/session"
)

// historyTimeout bounds a single history write.
const historyTimeout = 2 * time.Second

// History appends every finished session to the session repository.
type History struct {
	repo session.Repository
	log  *zap.SugaredLogger
}

// NewHistory creates a history notifier over repo.
func NewHistory(repo session.Repository, log *zap.SugaredLogger) *History {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &History{
		repo: repo,
		log:  log,
	}
}

// TargetReached records the session.
func (h *History) TargetReached(s *domain.Session) {
	h.append(s)
}

// Stopped records the session.
func (h *History) Stopped(s *domain.Session) {
	h.append(s)
}

// ArmFailed records the failed session; the reason is already on it.
func (h *History) ArmFailed(s *domain.Session, _ error) {
	h.append(s)
}

func (h *History) append(s *domain.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	if err := h.repo.Append(ctx, s); err != nil {
		h.log.Errorw("Failed to record session history", "session_id", s.ID, "error", err)
	}
}
