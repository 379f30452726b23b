package sensor

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/domain/motion"
	"github.com/oshokin/step-alarm/internal/mqtt"
)

const (
	// sampleQoS delivers samples at least once; the engine drops regressions.
	sampleQoS = 1
	// DefaultSubscribeTimeout bounds subscription at arm time.
	DefaultSubscribeTimeout = 2 * time.Second
)

// MQTTSubsystem receives samples that an edge device publishes per source
// under a topic prefix and announces the requested rate on a retained
// control topic.
type MQTTSubsystem struct {
	// client is the connected broker client.
	client paho.Client
	// prefix is the sample topic prefix.
	prefix string
	// available lists the sources the edge device provides.
	available motion.SourceSet
	// timeout bounds subscription at arm time.
	timeout time.Duration
	// log records malformed payloads and broker failures.
	log *zap.SugaredLogger
}

// NewMQTTSubsystem creates a subsystem over an already connected client.
func NewMQTTSubsystem(
	client paho.Client,
	prefix string,
	sources []motion.Source,
	log *zap.SugaredLogger,
) *MQTTSubsystem {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &MQTTSubsystem{
		client:    client,
		prefix:    prefix,
		available: motion.NewSourceSet(sources...),
		timeout:   DefaultSubscribeTimeout,
		log:       log,
	}
}

// SetSubscribeTimeout changes how long Register waits for the broker.
// Non-positive values are ignored.
func (m *MQTTSubsystem) SetSubscribeTimeout(timeout time.Duration) {
	if timeout > 0 {
		m.timeout = timeout
	}
}

// Available returns the sources configured for the edge device.
func (m *MQTTSubsystem) Available() motion.SourceSet {
	return m.available
}

// Register subscribes to the sample topic of the source and waits for the
// broker to acknowledge. The engine and controller locks are held for the
// call, so the wait is bounded by the subscribe timeout and an unanswered
// subscription fails the arm instead of blocking it.
func (m *MQTTSubsystem) Register(source motion.Source, rate detection.SamplingRate, deliver func(motion.Sample)) error {
	if !m.available.Has(source) {
		return ErrSourceUnavailable
	}

	topic := SampleTopic(m.prefix, source)

	token := m.client.Subscribe(topic, sampleQoS, func(_ paho.Client, msg paho.Message) {
		sample, err := DecodeSample(source, msg.Payload())
		if err != nil {
			m.log.Warnw("Dropping malformed sample", "topic", msg.Topic(), "error", err)

			return
		}

		deliver(sample)
	})
	if err := mqtt.Wait(token, m.timeout, "subscribe "+topic); err != nil {
		return err
	}

	m.publishControl(source, true, rate)

	m.log.Infow("Listening for samples", "topic", topic, "rate", rate)

	return nil
}

// Unregister unsubscribes from the sample topic. It does not wait for the
// broker because it may run inside a message handler.
func (m *MQTTSubsystem) Unregister(source motion.Source) error {
	topic := SampleTopic(m.prefix, source)

	m.await(m.client.Unsubscribe(topic), "unsubscribe "+topic)
	m.publishControl(source, false, "")

	return nil
}

// publishControl announces listener state as a retained message.
func (m *MQTTSubsystem) publishControl(source motion.Source, active bool, rate detection.SamplingRate) {
	payload, err := EncodeControl(source, active, rate)
	if err != nil {
		m.log.Warnw("Failed to encode control message", "source", source, "error", err)

		return
	}

	topic := ControlTopic(m.prefix, source)
	m.await(m.client.Publish(topic, sampleQoS, true, payload), "publish "+topic)
}

// await logs the token result from a separate goroutine.
func (m *MQTTSubsystem) await(token paho.Token, action string) {
	go func() {
		if err := mqtt.Wait(token, m.timeout, action); err != nil {
			m.log.Warnw("MQTT operation failed", "error", err)
		}
	}()
}
