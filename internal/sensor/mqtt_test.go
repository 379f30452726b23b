package sensor

import (
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/step-alarm/internal/detection"
	"github.com/oshokin/step-alarm/internal/domain/motion"
)

// brokerToken is a paho token that completes when done is closed.
type brokerToken struct {
	done chan struct{}
}

func completedToken() *brokerToken {
	token := &brokerToken{done: make(chan struct{})}
	close(token.done)

	return token
}

func pendingToken() *brokerToken {
	return &brokerToken{done: make(chan struct{})}
}

func (t *brokerToken) Wait() bool {
	<-t.done

	return true
}

func (t *brokerToken) WaitTimeout(timeout time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (t *brokerToken) Done() <-chan struct{} { return t.done }
func (t *brokerToken) Error() error          { return nil }

// sampleMessage is an inbound broker message.
type sampleMessage struct {
	paho.Message

	topic   string
	payload []byte
}

func (m *sampleMessage) Topic() string   { return m.topic }
func (m *sampleMessage) Payload() []byte { return m.payload }

// brokerClient answers subscriptions with a configurable token; every other
// client method panics.
type brokerClient struct {
	paho.Client

	mu        sync.Mutex
	subscribe *brokerToken
	handlers  map[string]paho.MessageHandler
	published []string
}

func (b *brokerClient) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers == nil {
		b.handlers = make(map[string]paho.MessageHandler)
	}

	b.handlers[topic] = callback

	return b.subscribe
}

func (b *brokerClient) Unsubscribe(topics ...string) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, topic := range topics {
		delete(b.handlers, topic)
	}

	return completedToken()
}

func (b *brokerClient) Publish(topic string, _ byte, _ bool, _ any) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, topic)

	return completedToken()
}

func (b *brokerClient) handler(topic string) paho.MessageHandler {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.handlers[topic]
}

func (b *brokerClient) publishedTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.published...)
}

// TestMQTTSubsystemDeliversSamples subscribes, announces the rate and decodes samples.
func TestMQTTSubsystemDeliversSamples(t *testing.T) {
	t.Parallel()

	client := &brokerClient{subscribe: completedToken()}
	subsystem := NewMQTTSubsystem(client, "home", []motion.Source{motion.SourceStepDetector}, nil)

	require.ErrorIs(t,
		subsystem.Register(motion.SourceGyroscope, detection.RateGame, func(motion.Sample) {}),
		ErrSourceUnavailable)

	var got []motion.Sample

	require.NoError(t, subsystem.Register(motion.SourceStepDetector, detection.RateGame, func(s motion.Sample) {
		got = append(got, s)
	}))

	topic := SampleTopic("home", motion.SourceStepDetector)
	handler := client.handler(topic)
	require.NotNil(t, handler)

	handler(client, &sampleMessage{topic: topic, payload: []byte(`{"timestamp":5,"values":[1]}`)})
	handler(client, &sampleMessage{topic: topic, payload: []byte(`not json`)})

	require.Equal(t, []motion.Sample{
		{Timestamp: 5, Source: motion.SourceStepDetector, Values: []float64{1}},
	}, got)
	require.Equal(t, []string{ControlTopic("home", motion.SourceStepDetector)}, client.publishedTopics())

	require.NoError(t, subsystem.Unregister(motion.SourceStepDetector))
	require.Nil(t, client.handler(topic))
}

// TestMQTTSubsystemRegisterIsBounded fails the registration when the broker
// never acknowledges, within the subscribe timeout.
func TestMQTTSubsystemRegisterIsBounded(t *testing.T) {
	t.Parallel()

	client := &brokerClient{subscribe: pendingToken()}
	subsystem := NewMQTTSubsystem(client, "home", []motion.Source{motion.SourceStepCounter}, nil)
	subsystem.SetSubscribeTimeout(20 * time.Millisecond)
	subsystem.SetSubscribeTimeout(0)

	started := time.Now()
	err := subsystem.Register(motion.SourceStepCounter, detection.RateGame, func(motion.Sample) {})

	require.ErrorContains(t, err, "timeout")
	require.Less(t, time.Since(started), DefaultSubscribeTimeout)
	require.Empty(t, client.publishedTopics(), "no control message for a failed registration")

	// The engine reports the stalled subscription as an arm failure.
	engine := detection.NewEngine(subsystem, detection.DefaultParams(), nil)
	require.ErrorIs(t, engine.Arm(nil), detection.ErrRegistrationFailed)
	require.False(t, engine.Armed())
}
