package notify

import (
	"go.uber.org/zap"

	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
)

// Log writes session outcomes to the structured log.
type Log struct {
	log *zap.SugaredLogger
}

// NewLog creates a log notifier.
func NewLog(log *zap.SugaredLogger) *Log {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Log{log: log}
}

// TargetReached logs the finished session.
func (l *Log) TargetReached(session *domain.Session) {
	l.log.Infow("Alarm dismissed by walking",
		"session_id", session.ID,
		"alarm_id", session.AlarmID,
		"steps", session.Steps,
		"strategy", session.Strategy,
		"duration", session.EndedAt.Sub(session.StartedAt))
}

// Stopped logs the externally stopped session.
func (l *Log) Stopped(session *domain.Session) {
	l.log.Infow("Alarm stopped",
		"session_id", session.ID,
		"alarm_id", session.AlarmID,
		"steps", session.Steps,
		"target_steps", session.TargetSteps,
		"actor", session.StoppedBy.String())
}

// ArmFailed logs the arm failure.
func (l *Log) ArmFailed(session *domain.Session, err error) {
	l.log.Errorw("Alarm could not start counting", "alarm_id", session.AlarmID, "error", err)
}
