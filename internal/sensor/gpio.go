//go:build linux

package sensor

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"

	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/domain/motion"
)

// GPIOPulse reads a pedometer module that raises a GPIO line once per step.
// Each rising edge becomes a step detector sample with value 1.0.
type GPIOPulse struct {
	// chip is the GPIO character device name, e.g. gpiochip0.
	chip string
	// offset is the line offset on the chip.
	offset int
	// debounce is applied by the kernel when non-zero.
	debounce time.Duration
	// log records line failures.
	log *zap.SugaredLogger

	// mu guards line.
	mu sync.Mutex
	// line is the requested line while registered.
	line *gpiocdev.Line
}

// NewGPIOPulse creates a pulse source for the given chip and line offset.
func NewGPIOPulse(chip string, offset int, debounce time.Duration, log *zap.SugaredLogger) *GPIOPulse {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &GPIOPulse{
		chip:     chip,
		offset:   offset,
		debounce: debounce,
		log:      log,
	}
}

// Available reports the step detector source.
func (g *GPIOPulse) Available() motion.SourceSet {
	return motion.NewSourceSet(motion.SourceStepDetector)
}

// Register requests the line with rising edge detection. The rate hint is
// ignored because the line is event driven.
func (g *GPIOPulse) Register(source motion.Source, _ detection.SamplingRate, deliver func(motion.Sample)) error {
	if source != motion.SourceStepDetector {
		return ErrSourceUnavailable
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.line != nil {
		return nil
	}

	options := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			deliver(motion.Sample{
				Timestamp: evt.Timestamp.Milliseconds(),
				Source:    motion.SourceStepDetector,
				Values:    []float64{1},
			})
		}),
	}

	if g.debounce > 0 {
		options = append(options, gpiocdev.WithDebounce(g.debounce))
	}

	line, err := gpiocdev.RequestLine(g.chip, g.offset, options...)
	if err != nil {
		return fmt.Errorf("request line %s:%d: %w", g.chip, g.offset, err)
	}

	g.line = line

	return nil
}

// Unregister releases the line. The release runs in the background because
// Unregister may be called from the line event handler.
func (g *GPIOPulse) Unregister(source motion.Source) error {
	if source != motion.SourceStepDetector {
		return nil
	}

	g.mu.Lock()
	line := g.line
	g.line = nil
	g.mu.Unlock()

	if line == nil {
		return nil
	}

	go func() {
		if err := line.Close(); err != nil {
			g.log.Warnw("Failed to release GPIO line", "chip", g.chip, "offset", g.offset, "error", err)
		}
	}()

	return nil
}
