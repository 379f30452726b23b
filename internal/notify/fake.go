package notify

import (
	"sync"

	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
)

// Record is one outcome captured by Fake.
type Record struct {
	// Event is one of the Event* names.
	Event string
	// Session is the session passed to the notifier.
	Session *domain.Session
	// Err is the arm failure, if any.
	Err error
}

// Fake records every outcome for inspection in tests.
type Fake struct {
	mu      sync.Mutex
	records []Record
	signal  chan struct{}
}

// NewFake creates an empty recorder.
func NewFake() *Fake {
	return &Fake{signal: make(chan struct{}, 1)}
}

// TargetReached records EventTargetReached.
func (f *Fake) TargetReached(session *domain.Session) {
	f.add(Record{Event: EventTargetReached, Session: session})
}

// Stopped records EventStopped.
func (f *Fake) Stopped(session *domain.Session) {
	f.add(Record{Event: EventStopped, Session: session})
}

// ArmFailed records EventArmFailed.
func (f *Fake) ArmFailed(session *domain.Session, err error) {
	f.add(Record{Event: EventArmFailed, Session: session, Err: err})
}

// Records returns a copy of everything recorded so far.
func (f *Fake) Records() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Record(nil), f.records...)
}

// Count returns how many outcomes of the given event were recorded.
func (f *Fake) Count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, r := range f.records {
		if r.Event == event {
			n++
		}
	}

	return n
}

// Signal is notified, without blocking, after each recorded outcome.
func (f *Fake) Signal() <-chan struct{} {
	return f.signal
}

func (f *Fake) add(record Record) {
	f.mu.Lock()
	f.records = append(f.records, record)
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}
