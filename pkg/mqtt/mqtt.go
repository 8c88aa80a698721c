package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// ErrTimeout is returned when a token does not complete in time.
var ErrTimeout = errors.New("mqtt operation timed out")

// ClientConfig describes one broker connection.
type ClientConfig struct {
	Broker   string // Full broker URL, see BrokerURL
	ClientID string
	Username string
	Password string

	// OnConnect runs after every successful (re)connect.
	OnConnect func(client mqtt.Client)
}

// NewClient builds an auto-reconnecting paho client. It does not connect.
func NewClient(cfg ClientConfig, logger zerolog.Logger) MQTTClient {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if strings.HasPrefix(cfg.Broker, "ssl://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetOrderMatters(false)

	log := logger.With().Str("broker", cfg.Broker).Str("client_id", cfg.ClientID).Logger()
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info().Msg("Connected to MQTT broker")
		if cfg.OnConnect != nil {
			cfg.OnConnect(c)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	return mqtt.NewClient(opts)
}

// Connect connects client and waits at most timeout for the broker to accept.
func Connect(client MQTTClient, timeout time.Duration) error {
	return wait(client.Connect(), timeout, "connect")
}

// Publish publishes payload and waits at most timeout for the handoff.
func Publish(client MQTTClient, topic string, qos byte, payload []byte, timeout time.Duration) error {
	return wait(client.Publish(topic, qos, false, payload), timeout, "publish to "+topic)
}

func wait(token mqtt.Token, timeout time.Duration, op string) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// BrokerURL turns a broker setting as users type it ("host", "mqtt://host",
// "host:1884") into a paho broker URL, applying port when none is given.
func BrokerURL(broker string, port int) (string, error) {
	broker = strings.TrimSpace(broker)
	if broker == "" {
		return "", errors.New("broker host is empty")
	}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	u, err := url.Parse(broker)
	if err != nil {
		return "", fmt.Errorf("invalid broker %q: %w", broker, err)
	}
	switch u.Scheme {
	case "mqtt", "tcp":
		u.Scheme = "tcp"
	case "mqtts", "ssl", "tls":
		u.Scheme = "ssl"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid broker %q: missing host", broker)
	}
	if u.Port() == "" && port > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	return u.Scheme + "://" + u.Host + u.Path, nil
}
