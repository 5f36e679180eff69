package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// MQTT defaults.
const (
	mqttConnectTimeout       = 10 * time.Second
	mqttKeepAlive            = 30 * time.Second
	mqttMaxReconnectInterval = time.Minute
	mqttQoS                  = 1
)

// MQTT subscribes to a broker topic. Topics map to keys and payloads to
// serialized values; an empty payload expires the key.
type MQTT struct {
	broker   string
	clientID string
	topic    string
	logger   *slog.Logger
	now      func() time.Time
	connect  func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTT creates an MQTT source. An empty topic subscribes to everything
// below prefix.
func NewMQTT(broker, clientID, topic, prefix string, logger *slog.Logger) (*MQTT, error) {
	if broker == "" {
		return nil, fmt.Errorf("mqtt source requires a broker")
	}
	if clientID == "" {
		clientID = "tripwire-watchdog"
	}
	if topic == "" {
		topic = strings.TrimSuffix(prefix, "/") + "/#"
	}
	return &MQTT{
		broker:   broker,
		clientID: clientID,
		topic:    topic,
		logger:   logger,
		now:      time.Now,
		connect:  mqtt.NewClient,
	}, nil
}

// Run connects, subscribes and forwards messages until ctx is cancelled.
// The client reconnects and resubscribes on its own.
func (m *MQTT) Run(ctx context.Context, out chan<- types.Update) error {
	opts := mqtt.NewClientOptions().
		AddBroker(m.broker).
		SetClientID(m.clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetResumeSubs(true).
		SetKeepAlive(mqttKeepAlive).
		SetMaxReconnectInterval(mqttMaxReconnectInterval).
		SetConnectTimeout(mqttConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.logger.Warn("watchdog: mqtt connection lost", "broker", m.broker, "error", err)
		})

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case out <- m.update(msg):
		case <-ctx.Done():
		}
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		m.logger.Info("watchdog: connected to mqtt broker", "broker", m.broker, "topic", m.topic)
		if tok := c.Subscribe(m.topic, mqttQoS, handler); tok.Wait() && tok.Error() != nil {
			m.logger.Error("watchdog: mqtt subscribe failed", "topic", m.topic, "error", tok.Error())
		}
	})

	client := m.connect(opts)
	tok := client.Connect()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt connect to %s: %w", m.broker, err)
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	client.Disconnect(250)
	return nil
}

func (m *MQTT) update(msg mqtt.Message) types.Update {
	u := types.Update{
		Time:  m.now(),
		Key:   msg.Topic(),
		Op:    types.OpTell,
		Value: string(msg.Payload()),
	}
	if u.Value == "" {
		u.Op = types.OpTellOld
	}
	return u
}
