package notify

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
	"github.com/oshokin/step-alarm/internal/mqtt"
)

const (
	// eventQoS is at-least-once; consumers key on session_id.
	eventQoS = 1
	// publishTimeout bounds the background wait for a publish acknowledgement.
	publishTimeout = 5 * time.Second
)

// MQTTPublisher publishes session outcomes as JSON events.
type MQTTPublisher struct {
	// client is the connected broker client.
	client paho.Client
	// prefix is the event topic prefix.
	prefix string
	// log records failed publishes.
	log *zap.SugaredLogger
}

// NewMQTTPublisher creates a publisher over an already connected client.
func NewMQTTPublisher(client paho.Client, prefix string, log *zap.SugaredLogger) *MQTTPublisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &MQTTPublisher{
		client: client,
		prefix: prefix,
		log:    log,
	}
}

// TargetReached publishes EventTargetReached.
func (p *MQTTPublisher) TargetReached(session *domain.Session) {
	p.publish(EventTargetReached, session, nil)
}

// Stopped publishes EventStopped.
func (p *MQTTPublisher) Stopped(session *domain.Session) {
	p.publish(EventStopped, session, nil)
}

// ArmFailed publishes EventArmFailed with the failure text.
func (p *MQTTPublisher) ArmFailed(session *domain.Session, err error) {
	p.publish(EventArmFailed, session, err)
}

// publish sends the event without waiting for the broker, since outcomes
// can be reported from inside an MQTT message handler.
func (p *MQTTPublisher) publish(event string, session *domain.Session, cause error) {
	payload, err := FormatPayload(event, session, cause)
	if err != nil {
		p.log.Errorw("Failed to format event payload", "event", event, "error", err)

		return
	}

	topic := EventTopic(p.prefix, event)
	token := p.client.Publish(topic, eventQoS, false, payload)

	go func() {
		if waitErr := mqtt.Wait(token, publishTimeout, "publish "+topic); waitErr != nil {
			p.log.Warnw("Failed to publish alarm event", "session_id", session.ID, "error", waitErr)
		}
	}()
}
