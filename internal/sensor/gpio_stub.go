//go:build !linux

package sensor

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/domain/motion"
)

// errGPIOUnsupported is returned on platforms without the GPIO character device.
var errGPIOUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// GPIOPulse is not available on non-Linux platforms and advertises no sources.
type GPIOPulse struct{}

// NewGPIOPulse returns a pulse source that never registers.
func NewGPIOPulse(string, int, time.Duration, *zap.SugaredLogger) *GPIOPulse {
	return &GPIOPulse{}
}

// Available returns an empty set.
func (*GPIOPulse) Available() motion.SourceSet {
	return motion.NewSourceSet()
}

// Register always fails.
func (*GPIOPulse) Register(motion.Source, detection.SamplingRate, func(motion.Sample)) error {
	return errGPIOUnsupported
}

// Unregister does nothing.
func (*GPIOPulse) Unregister(motion.Source) error {
	return nil
}
