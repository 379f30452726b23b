package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/domain/motion"
	"github.com/oshokin/step-alarm/internal/lifecycle"
	"github.com/oshokin/step-alarm/internal/logger"
)

// Config holds the settings shared by the step alarm binaries.
type Config struct {
	// ServerAddress is the gRPC address the daemon listens on and clients dial.
	ServerAddress string `yaml:"server_addr"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// HistoryFile is the path to the JSON file storing finished sessions.
	HistoryFile string `yaml:"history_file"`
	// HistoryLimit caps how many sessions the history keeps.
	HistoryLimit int `yaml:"history_limit"`
	// PIDFile records the running daemon for the single-instance check.
	PIDFile string `yaml:"pid_file"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// DefaultTargetSteps is used when a trigger does not carry a target.
	DefaultTargetSteps uint64 `yaml:"default_target_steps"`
	// Sensor selects and configures the sensor subsystem.
	Sensor SensorConfig `yaml:"sensor"`
	// MQTT configures the broker used for samples and lifecycle events.
	MQTT MQTTConfig `yaml:"mqtt"`
	// Detection tunes strategy selection and the fallback filters.
	Detection DetectionConfig `yaml:"detection"`
}

// SensorConfig describes where motion samples come from.
type SensorConfig struct {
	// Kind is one of mqtt, gpio, fake.
	Kind string `yaml:"kind"`
	// Sources lists the sources the device provides (mqtt and fake kinds).
	Sources []string `yaml:"sources"`
	// SamplingRate is one of fastest, game, ui, normal.
	SamplingRate string `yaml:"sampling_rate"`
	// GPIOChip is the GPIO character device for the gpio kind.
	GPIOChip string `yaml:"gpio_chip"`
	// GPIOLine is the line offset of the pedometer pulse output.
	GPIOLine int `yaml:"gpio_line"`
	// GPIODebounce is the kernel debounce period for the pulse line.
	GPIODebounce time.Duration `yaml:"gpio_debounce"`
}

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	// Broker is the broker URL; empty disables MQTT event publishing.
	Broker string `yaml:"broker"`
	// ClientID identifies the daemon to the broker.
	ClientID string `yaml:"client_id"`
	// SampleTopic is the prefix sample topics live under.
	SampleTopic string `yaml:"sample_topic"`
	// EventTopic is the prefix lifecycle events are published under.
	EventTopic string `yaml:"event_topic"`
}

// FilterConfig tunes one fallback filter. Zero values take the defaults.
type FilterConfig struct {
	// Threshold is the magnitude a step must cross upward.
	Threshold float64 `yaml:"threshold"`
	// Weight is the accelerometer low-pass alpha or the gyroscope smoothing factor.
	Weight float64 `yaml:"weight"`
	// Refractory is the minimum interval between accepted steps.
	Refractory time.Duration `yaml:"refractory"`
	// SeedGravity starts the accelerometer gravity estimate from the first
	// reading instead of zero. Ignored for the gyroscope.
	SeedGravity bool `yaml:"seed_gravity"`
}

// DetectionConfig is the YAML view of detection.Params.
type DetectionConfig struct {
	// Priority lists sources from most to least preferred.
	Priority []string `yaml:"priority"`
	// Resync is reset (default) or carry.
	Resync string `yaml:"resync"`
	// Accelerometer tunes the accelerometer fallback.
	Accelerometer FilterConfig `yaml:"accelerometer"`
	// Gyroscope tunes the gyroscope fallback.
	Gyroscope FilterConfig `yaml:"gyroscope"`
}

// Sensor kinds.
const (
	// SensorKindMQTT reads samples published by an edge device over MQTT.
	SensorKindMQTT = "mqtt"
	// SensorKindGPIO reads step pulses from a GPIO line.
	SensorKindGPIO = "gpio"
	// SensorKindFake accepts samples injected through the control API.
	SensorKindFake = "fake"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "step-alarm-settings.yaml"

	// DefaultHistoryFilename is the default filename for session history.
	DefaultHistoryFilename = "step-alarm-history.json"

	// DefaultPIDFilename is the default filename for the daemon pid file.
	DefaultPIDFilename = "step-alarm.pid"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600

	// DefaultClientID is the MQTT client id used when none is configured.
	DefaultClientID = "stepalarm"

	// DefaultSampleTopic is the default sample topic prefix.
	DefaultSampleTopic = "stepalarm/sensors"

	// DefaultEventTopic is the default lifecycle event topic prefix.
	DefaultEventTopic = "stepalarm/events"

	// DefaultGPIOChip is the GPIO chip used when none is configured.
	DefaultGPIOChip = "gpiochip0"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errBrokerRequired is returned when the mqtt sensor kind has no broker.
	errBrokerRequired = errors.New("mqtt broker must be provided for the mqtt sensor kind")
	// errUnknownLogLevel is returned for an unsupported log level.
	errUnknownLogLevel = errors.New("unknown log level")
	// errUnknownSensorKind is returned for an unsupported sensor kind.
	errUnknownSensorKind = errors.New("unknown sensor kind")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults in place.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.HistoryFile == "" {
		settings.HistoryFile = DefaultHistoryFilename
	}

	if settings.PIDFile == "" {
		settings.PIDFile = DefaultPIDFilename
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	if settings.DefaultTargetSteps == 0 {
		settings.DefaultTargetSteps = lifecycle.DefaultTargetSteps
	}

	if settings.DefaultTargetSteps > lifecycle.MaxTargetSteps {
		return fmt.Errorf("%w: default target %d exceeds %d",
			lifecycle.ErrInvalidTarget, settings.DefaultTargetSteps, lifecycle.MaxTargetSteps)
	}

	if err := validateSensor(settings); err != nil {
		return err
	}

	if _, err := settings.DetectionParams(); err != nil {
		return err
	}

	return nil
}

func validateSensor(settings *Config) error {
	sensor := &settings.Sensor
	if sensor.Kind == "" {
		sensor.Kind = SensorKindMQTT
	}

	switch sensor.Kind {
	case SensorKindMQTT:
		if settings.MQTT.Broker == "" {
			return errBrokerRequired
		}
	case SensorKindGPIO:
		if sensor.GPIOChip == "" {
			sensor.GPIOChip = DefaultGPIOChip
		}
	case SensorKindFake:
	default:
		return fmt.Errorf("%w: %q", errUnknownSensorKind, sensor.Kind)
	}

	if len(sensor.Sources) == 0 && sensor.Kind != SensorKindGPIO {
		for _, source := range motion.Sources() {
			sensor.Sources = append(sensor.Sources, string(source))
		}
	}

	if _, err := settings.SensorSources(); err != nil {
		return err
	}

	if settings.MQTT.ClientID == "" {
		settings.MQTT.ClientID = DefaultClientID
	}

	if settings.MQTT.SampleTopic == "" {
		settings.MQTT.SampleTopic = DefaultSampleTopic
	}

	if settings.MQTT.EventTopic == "" {
		settings.MQTT.EventTopic = DefaultEventTopic
	}

	return nil
}

// SensorSources parses the configured sensor sources.
func (c *Config) SensorSources() ([]motion.Source, error) {
	return parseSources(c.Sensor.Sources)
}

// DetectionParams converts the detection section into engine parameters,
// starting from the defaults and overriding every non-zero field.
func (c *Config) DetectionParams() (detection.Params, error) {
	params := detection.DefaultParams()

	if len(c.Detection.Priority) > 0 {
		priority, err := parseSources(c.Detection.Priority)
		if err != nil {
			return detection.Params{}, err
		}

		params.Priority = priority
	}

	rate, err := detection.ParseSamplingRate(c.Sensor.SamplingRate)
	if err != nil {
		return detection.Params{}, err
	}

	params.SamplingRate = rate

	if c.Detection.Resync != "" {
		params.Resync = detection.ResyncPolicy(c.Detection.Resync)
	}

	overrideFilter(&params.Accelerometer.Threshold, &params.Accelerometer.Alpha,
		&params.Accelerometer.Refractory, c.Detection.Accelerometer)
	params.Accelerometer.SeedGravity = c.Detection.Accelerometer.SeedGravity

	overrideFilter(&params.Gyroscope.Threshold, &params.Gyroscope.Smoothing,
		&params.Gyroscope.Refractory, c.Detection.Gyroscope)

	if err = params.Validate(); err != nil {
		return detection.Params{}, err
	}

	return params, nil
}

func overrideFilter(threshold, weight *float64, refractory *time.Duration, filter FilterConfig) {
	if filter.Threshold != 0 {
		*threshold = filter.Threshold
	}

	if filter.Weight != 0 {
		*weight = filter.Weight
	}

	if filter.Refractory != 0 {
		*refractory = filter.Refractory
	}
}

func parseSources(values []string) ([]motion.Source, error) {
	sources := make([]motion.Source, 0, len(values))

	for _, value := range values {
		source, err := motion.ParseSource(value)
		if err != nil {
			return nil, err
		}

		sources = append(sources, source)
	}

	return sources, nil
}
