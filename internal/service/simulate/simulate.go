package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/step-alarm/internal/config"
	"github.com/oshokin/step-alarm/internal/detection"
	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
	"github.com/oshokin/step-alarm/internal/domain/motion"
	"github.com/oshokin/step-alarm/internal/lifecycle"
	"github.com/oshokin/step-alarm/internal/logger"
	"github.com/oshokin/step-alarm/internal/notify"
	"github.com/oshokin/step-alarm/internal/sensor"
)

// Script is a recorded session.
type Script struct {
	// TargetSteps is the trigger target; zero uses the default.
	TargetSteps uint64 `yaml:"target_steps"`
	// Sources lists the sources the device offered.
	Sources []string `yaml:"sources"`
	// SamplingRate is the rate hint that was in effect.
	SamplingRate string `yaml:"sampling_rate"`
	// Detection overrides the detection defaults.
	Detection config.DetectionConfig `yaml:"detection"`
	// Samples are replayed in order.
	Samples []ScriptSample `yaml:"samples"`
}

// ScriptSample is one recorded reading.
type ScriptSample struct {
	// Timestamp is the monotonic time in milliseconds.
	Timestamp int64 `yaml:"t"`
	// Source is the sensor source name.
	Source string `yaml:"source"`
	// Values carries 1 to 3 readings.
	Values []float64 `yaml:"values"`
}

// Options configures a replay.
type Options struct {
	// ScriptPath is the YAML script to replay.
	ScriptPath string
	// TargetSteps overrides the script target when non-zero.
	TargetSteps uint64
	// Out receives the replay report; defaults to stdout.
	Out io.Writer
}

// Result summarizes a replay.
type Result struct {
	// Strategy is the strategy the engine selected.
	Strategy string
	// Steps is the final step count.
	Steps uint64
	// TargetSteps is the target that was armed.
	TargetSteps uint64
	// Reached reports whether the target was reached.
	Reached bool
	// ReachedAt is the sample timestamp that reached the target.
	ReachedAt int64
	// Delivered counts samples routed to the engine.
	Delivered int
	// Dropped counts samples whose source was not registered.
	Dropped int
}

var errEmptyScript = errors.New("script has no samples")

// LoadScript reads and parses a script file.
func LoadScript(path string) (*Script, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var script Script
	if err = yaml.Unmarshal(contents, &script); err != nil {
		return nil, fmt.Errorf("unmarshal script: %w", err)
	}

	if len(script.Samples) == 0 {
		return nil, errEmptyScript
	}

	return &script, nil
}

// Run loads the script at opts.ScriptPath and replays it.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "stepalarm-simulate")

	script, err := LoadScript(opts.ScriptPath)
	if err != nil {
		return nil, err
	}

	if opts.TargetSteps > 0 {
		script.TargetSteps = opts.TargetSteps
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return Replay(ctx, script, out)
}

// Replay runs a parsed script through a fresh engine and controller.
func Replay(ctx context.Context, script *Script, out io.Writer) (*Result, error) {
	settings := config.Config{
		Sensor:    config.SensorConfig{Sources: script.Sources, SamplingRate: script.SamplingRate},
		Detection: script.Detection,
	}

	params, err := settings.DetectionParams()
	if err != nil {
		return nil, err
	}

	sources, err := settings.SensorSources()
	if err != nil {
		return nil, err
	}

	if len(sources) == 0 {
		sources = motion.Sources()
	}

	log := logger.FromContext(ctx)
	sensors := sensor.NewFake(sources...)
	engine := detection.NewEngine(sensors, params, log.Named("detection"))
	recorder := notify.NewFake()
	controller := lifecycle.New(engine, recorder, lifecycle.WithLogger(log.Named("lifecycle")))

	result := &Result{}

	if _, err = controller.Trigger(script.TargetSteps, "simulation"); err != nil {
		return nil, err
	}

	status := controller.Status()
	result.Strategy = status.Strategy
	result.TargetSteps = status.Session.TargetSteps

	_, _ = fmt.Fprintf(out, "strategy %s, target %d steps\n", result.Strategy, result.TargetSteps)

	for _, recorded := range script.Samples {
		if ctx.Err() != nil {
			break
		}

		source, parseErr := motion.ParseSource(recorded.Source)
		if parseErr != nil {
			return nil, parseErr
		}

		before := engine.StepCount()

		if !sensors.Emit(motion.Sample{Timestamp: recorded.Timestamp, Source: source, Values: recorded.Values}) {
			result.Dropped++

			continue
		}

		result.Delivered++

		switch after := engine.StepCount(); {
		case after > before:
			_, _ = fmt.Fprintf(out, "t=%dms step %d\n", recorded.Timestamp, after)
		case after < before:
			_, _ = fmt.Fprintf(out, "t=%dms counter resync, steps %d\n", recorded.Timestamp, after)
		}

		if !result.Reached && recorder.Count(notify.EventTargetReached) > 0 {
			result.Reached = true
			result.ReachedAt = recorded.Timestamp
		}
	}

	controller.ExternalStop(&domain.Actor{Hostname: "simulation", Username: "replay"})

	result.Steps = engine.StepCount()

	if result.Reached {
		_, _ = fmt.Fprintf(out, "target reached at t=%dms\n", result.ReachedAt)
	} else {
		_, _ = fmt.Fprintf(out, "target not reached: %d/%d steps\n", result.Steps, result.TargetSteps)
	}

	return result, nil
}
