package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

type (
	// Publisher is the part of an MQTT client the progress publisher needs
	Publisher interface {
		Publish(topic string, payload []byte) error
	}

	// MQTTClient is a connected paho client
	MQTTClient struct {
		cli mqtt.Client
	}

	// MQTTSubscriber republishes progress messages to one topic per device
	MQTTSubscriber struct {
		pub    Publisher
		prefix string
	}
)

const (
	mqttQoS            = 0
	mqttConnectTimeout = 10 * time.Second
	mqttDisconnectWait = 250
	unknownDevice      = "unknown"
)

var (
	ErrBrokerURL     = errors.New("invalid MQTT broker URL")
	ErrBrokerConnect = errors.New("MQTT broker connection failed")
	ErrPublish       = errors.New("MQTT publish failed")
)

var _ Subscriber = (*MQTTSubscriber)(nil)

// NewMQTTClient connects to a broker given as mqtt://, tcp://, ssl://,
// tls://, ws:// or wss:// URL, with optional user:password credentials
func NewMQTTClient(brokerURL, clientID string) (*MQTTClient, error) {
	u, err := url.Parse(brokerURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrBrokerURL, brokerURL)
	}

	opts := mqtt.NewClientOptions()
	switch u.Scheme {
	case "mqtt", "tcp":
		opts.AddBroker("tcp://" + u.Host)
	case "ssl", "tls":
		opts.AddBroker("ssl://" + u.Host)
	case "ws", "wss":
		opts.AddBroker(u.Scheme + "://" + u.Host + u.Path)
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrBrokerURL, u.Scheme)
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		slog.Info("MQTT connected",
			slog.String("broker", u.Host))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Error("MQTT connection lost",
			log.Error(err))
	}
	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}

	cli := mqtt.NewClient(opts)
	t := cli.Connect()
	if !t.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: timed out", ErrBrokerConnect)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerConnect, err)
	}
	return &MQTTClient{cli: cli}, nil
}

// Publish sends a non-retained message and waits for the broker
func (c *MQTTClient) Publish(topic string, payload []byte) error {
	t := c.cli.Publish(topic, mqttQoS, false, payload)
	if t.Wait() && t.Error() != nil {
		return fmt.Errorf("%w: %w", ErrPublish, t.Error())
	}
	return nil
}

// Close disconnects from the broker
func (c *MQTTClient) Close() {
	c.cli.Disconnect(mqttDisconnectWait)
}

// NewMQTTSubscriber publishes to <prefix>/<deviceId>/progress
func NewMQTTSubscriber(pub Publisher, prefix string) *MQTTSubscriber {
	return &MQTTSubscriber{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

// ID identifies the subscriber by its topic prefix
func (s *MQTTSubscriber) ID() string {
	return "mqtt:" + s.prefix
}

// Send publishes the message to its device topic
func (s *MQTTSubscriber) Send(msg *api.ProgressMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.Topic(msg.DeviceID), data)
}

// Topic returns the progress topic for a device
func (s *MQTTSubscriber) Topic(device api.Serial) string {
	id := string(device)
	if id == "" {
		id = unknownDevice
	}
	return s.prefix + "/" + id + "/progress"
}
