package notify

import (
	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
	"github.com/oshokin/step-alarm/internal/lifecycle"
)

// Multi fans every outcome out to its notifiers in order.
type Multi []lifecycle.Notifier

// TargetReached forwards to every notifier.
func (m Multi) TargetReached(session *domain.Session) {
	for _, n := range m {
		n.TargetReached(session.Clone())
	}
}

// Stopped forwards to every notifier.
func (m Multi) Stopped(session *domain.Session) {
	for _, n := range m {
		n.Stopped(session.Clone())
	}
}

// ArmFailed forwards to every notifier.
func (m Multi) ArmFailed(session *domain.Session, err error) {
	for _, n := range m {
		n.ArmFailed(session.Clone(), err)
	}
}
