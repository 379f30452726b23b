package sensor

import (
	"sync"

	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/domain/motion"
)

// Fake is a test double that delivers scripted samples to registered listeners.
type Fake struct {
	// mu guards every field below.
	mu sync.Mutex
	// available is returned from Available.
	available motion.SourceSet
	// listeners maps each registered source to its delivery callback.
	listeners map[motion.Source]func(motion.Sample)
	// rates records the rate requested for each registered source.
	rates map[motion.Source]detection.SamplingRate
	// registerErr, if set, is returned by Register.
	registerErr error
	// registrations counts successful Register calls.
	registrations int
}

// NewFake creates a Fake advertising the given sources.
func NewFake(sources ...motion.Source) *Fake {
	return &Fake{
		available: motion.NewSourceSet(sources...),
		listeners: make(map[motion.Source]func(motion.Sample)),
		rates:     make(map[motion.Source]detection.SamplingRate),
	}
}

// Available returns the advertised sources.
func (f *Fake) Available() motion.SourceSet {
	f.mu.Lock()
	defer f.mu.Unlock()

	return motion.NewSourceSet(f.available.Slice()...)
}

// SetAvailable replaces the advertised sources.
func (f *Fake) SetAvailable(sources ...motion.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.available = motion.NewSourceSet(sources...)
}

// FailRegistration makes later Register calls return err. A nil err clears it.
func (f *Fake) FailRegistration(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.registerErr = err
}

// Register records the listener for the source.
func (f *Fake) Register(source motion.Source, rate detection.SamplingRate, deliver func(motion.Sample)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.registerErr != nil {
		return f.registerErr
	}

	if !f.available.Has(source) {
		return ErrSourceUnavailable
	}

	f.listeners[source] = deliver
	f.rates[source] = rate
	f.registrations++

	return nil
}

// Unregister removes the listener for the source.
func (f *Fake) Unregister(source motion.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.listeners, source)
	delete(f.rates, source)

	return nil
}

// Emit delivers the sample to the listener of its source and reports
// whether a listener was registered. The listener runs outside the lock.
func (f *Fake) Emit(sample motion.Sample) bool {
	f.mu.Lock()
	deliver := f.listeners[sample.Source]
	f.mu.Unlock()

	if deliver == nil {
		return false
	}

	deliver(sample)

	return true
}

// Registered reports whether the source currently has a listener.
func (f *Fake) Registered(source motion.Source) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.listeners[source]

	return ok
}

// Rate returns the rate requested for a registered source.
func (f *Fake) Rate(source motion.Source) (detection.SamplingRate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rate, ok := f.rates[source]

	return rate, ok
}

// Registrations returns the number of successful Register calls.
func (f *Fake) Registrations() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.registrations
}
