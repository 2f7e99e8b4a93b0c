package publisher

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"irrigation_monitor/internal/logger"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	onlineTopic       = "monitor/online"
	connectRetryDelay = 5 * time.Second
	disconnectQuiesce = 250 // ms
)

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Server      string
	TopicPrefix string
	QOS         byte
	Retained    bool
	Username    string
	Password    string
}

// MQTT publishes through a paho client. Publish is a no-op while disconnected.
type MQTT struct {
	opts   MQTTOptions
	log    *logger.Logger
	client pahomqtt.Client

	mu        sync.RWMutex
	connected bool
}

// NewMQTT prepares a client; Connect starts it.
func NewMQTT(opts MQTTOptions, log *logger.Logger) (*MQTT, error) {
	server, err := url.Parse(opts.Server)
	if err != nil {
		return nil, fmt.Errorf("parse mqtt server %q: %w", opts.Server, err)
	}
	clientID, err := randomClientID()
	if err != nil {
		return nil, fmt.Errorf("generate mqtt client id: %w", err)
	}

	m := &MQTT{opts: opts, log: log}
	will := m.topic(onlineTopic)

	co := pahomqtt.NewClientOptions()
	co.ClientID = clientID
	co.Servers = []*url.URL{server}
	co.AutoReconnect = true
	co.ConnectRetry = true
	co.ConnectRetryInterval = connectRetryDelay
	co.SetWill(will, "false", opts.QOS, true)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.OnConnect = func(c pahomqtt.Client) {
		m.setConnected(true)
		c.Publish(will, opts.QOS, true, "true")
		log.Infow("mqtt_connected", "server", opts.Server, "client_id", clientID)
	}
	co.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		m.setConnected(false)
		log.Warnw("mqtt_connection_lost", "server", opts.Server, "err", err)
	}

	m.client = pahomqtt.NewClient(co)
	return m, nil
}

// Connect starts connecting in the background; paho keeps retrying until Close.
func (m *MQTT) Connect() {
	m.client.Connect()
}

// Publish implements Publisher.
func (m *MQTT) Publish(ctx context.Context, topic string, payload []byte) error {
	if !m.isConnected() {
		return nil
	}
	token := m.client.Publish(m.topic(topic), m.opts.QOS, m.opts.Retained, payload)
	return awaitToken(ctx, token)
}

// Close announces offline and disconnects.
func (m *MQTT) Close() {
	if m.isConnected() {
		m.client.Publish(m.topic(onlineTopic), m.opts.QOS, true, "false").WaitTimeout(time.Second)
	}
	m.client.Disconnect(disconnectQuiesce)
}

func (m *MQTT) topic(t string) string {
	prefix := strings.TrimSuffix(m.opts.TopicPrefix, "/")
	if prefix == "" {
		return t
	}
	return prefix + "/" + t
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MQTT) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func awaitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomClientID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "irrigation-monitor-" + hex.EncodeToString(b), nil
}
