package daemon

import (
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/oshokin/step-alarm/internal/config"
	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/sensor"
)

// buildSensors creates the sensor subsystem for the configured kind. The
// returned fake is non-nil only for the fake kind and backs InjectSample.
func buildSensors(
	cfg *config.Config,
	client paho.Client,
	log *zap.SugaredLogger,
) (detection.SensorSubsystem, *sensor.Fake, error) {
	sources, err := cfg.SensorSources()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Sensor.Kind {
	case config.SensorKindFake:
		fake := sensor.NewFake(sources...)

		return fake, fake, nil
	case config.SensorKindGPIO:
		pulse := sensor.NewGPIOPulse(cfg.Sensor.GPIOChip, cfg.Sensor.GPIOLine, cfg.Sensor.GPIODebounce, log)

		return pulse, nil, nil
	case config.SensorKindMQTT:
		if client == nil {
			return nil, nil, fmt.Errorf("sensor kind %q requires an MQTT connection", cfg.Sensor.Kind)
		}

		return sensor.NewMQTTSubsystem(client, cfg.MQTT.SampleTopic, sources, log), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown sensor kind %q", cfg.Sensor.Kind)
	}
}
