package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bft-labs/fieldsync/internal/ports"
)

const (
	DefaultTopicPrefix = "fieldsync"

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	qosAtLeastOnce = byte(1)
)

// Event names, used as the last topic segment.
const (
	EventQueued      = "queued"
	EventReconnected = "reconnected"
	EventDrain       = "drain"
	EventAbandoned   = "abandoned"
)

// MQTTClient is the subset of the paho client the sink needs.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	// Broker is a URL such as tcp://localhost:1883.
	Broker   string
	ClientID string
	Username string
	Password string
	// TopicPrefix defaults to DefaultTopicPrefix.
	TopicPrefix string
}

// Event is the JSON body of every published notice.
type Event struct {
	Event       string    `json:"event"`
	Description string    `json:"description,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Pending     int       `json:"pending"`
	Succeeded   int       `json:"succeeded,omitempty"`
	Abandoned   int       `json:"abandoned,omitempty"`
	At          time.Time `json:"at"`
}

// MQTTSink publishes notices to {prefix}/{event} at QoS 1. Abandoned
// notices are retained so a dashboard that connects later still sees them.
// Publishing never blocks the caller; delivery failures are logged.
type MQTTSink struct {
	client MQTTClient
	prefix string
	logger ports.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// ConnectMQTT dials the broker and returns a sink on it.
func ConnectMQTT(cfg MQTTConfig, logger ports.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(30 * time.Second)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", ports.Err(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to mqtt %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt %s: %w", cfg.Broker, err)
	}

	logger.Info("mqtt notifications enabled", ports.String("broker", cfg.Broker))
	return NewMQTTSink(client, cfg.TopicPrefix, logger), nil
}

// NewMQTTSink wraps an already connected client.
func NewMQTTSink(client MQTTClient, prefix string, logger ports.Logger) *MQTTSink {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTSink{
		client: client,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

func (s *MQTTSink) NotifyQueued(description string) {
	s.publish(Event{Event: EventQueued, Description: description}, false)
}

func (s *MQTTSink) NotifyReconnected(pending int) {
	s.publish(Event{Event: EventReconnected, Pending: pending}, false)
}

func (s *MQTTSink) NotifyDrainResult(succeeded, pending, abandoned int) {
	s.publish(Event{Event: EventDrain, Succeeded: succeeded, Pending: pending, Abandoned: abandoned}, false)
}

func (s *MQTTSink) NotifyAbandoned(description, reason string) {
	s.publish(Event{Event: EventAbandoned, Description: description, Reason: reason}, true)
}

// Close waits for in-flight publishes and disconnects.
func (s *MQTTSink) Close() error {
	s.wg.Wait()
	s.client.Disconnect(250)
	return nil
}

func (s *MQTTSink) publish(ev Event, retained bool) {
	ev.At = s.now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encode notification", ports.Err(err))
		return
	}

	topic := s.prefix + "/" + ev.Event
	token := s.client.Publish(topic, qosAtLeastOnce, retained, body)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if !token.WaitTimeout(publishTimeout) {
			s.logger.Warn("mqtt publish timed out", ports.String("topic", topic))
			return
		}
		if err := token.Error(); err != nil {
			s.logger.Warn("mqtt publish failed", ports.String("topic", topic), ports.Err(err))
		}
	}()
}
