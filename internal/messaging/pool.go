package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	"github.com/taubenschiesser/hardware-monitor/pkg/mqtt"
)

// SettingsSource fetches a tenant's messaging settings.
type SettingsSource interface {
	GetTenantSettings(ctx context.Context, tenant string) (*models.MQTTSettings, error)
}

// Credentials are the broker settings of one tenant.
type Credentials struct {
	Broker   string
	Port     int
	Username string
	Password string
}

// ClientFactory builds an unconnected client. Tests replace it.
type ClientFactory func(cfg mqtt.ClientConfig, logger zerolog.Logger) mqtt.MQTTClient

// Options tune the pool.
type Options struct {
	ClientIDPrefix    string
	QOS               byte
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectQuiesce uint
}

// Pool owns at most one MQTT client per tenant. Clients are created lazily
// from cached credentials and subscribe to device telemetry on every connect.
type Pool struct {
	clients     cmap.ConcurrentMap[string, mqtt.MQTTClient]
	credentials cmap.ConcurrentMap[string, Credentials]
	locks       cmap.ConcurrentMap[string, *sync.Mutex]

	settings  SettingsSource
	telemetry paho.MessageHandler
	newClient ClientFactory
	opts      Options
	logger    zerolog.Logger
}

// NewPool creates an empty pool. telemetry receives messages from both
// telemetry subscriptions of every client.
func NewPool(settings SettingsSource, telemetry paho.MessageHandler, opts Options, logger zerolog.Logger) *Pool {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = constants.DefaultConnectTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = constants.DefaultPublishTimeout
	}
	if opts.DisconnectQuiesce == 0 {
		opts.DisconnectQuiesce = constants.DefaultDisconnectQuiesce
	}
	return &Pool{
		clients:     cmap.New[mqtt.MQTTClient](),
		credentials: cmap.New[Credentials](),
		locks:       cmap.New[*sync.Mutex](),
		settings:    settings,
		telemetry:   telemetry,
		newClient:   mqtt.NewClient,
		opts:        opts,
		logger:      logger.With().Str("component", "messaging_pool").Logger(),
	}
}

// SetClientFactory replaces the paho client constructor.
func (p *Pool) SetClientFactory(factory ClientFactory) {
	p.newClient = factory
}

func (p *Pool) tenantLock(tenant string) *sync.Mutex {
	p.locks.SetIfAbsent(tenant, &sync.Mutex{})
	mu, _ := p.locks.Get(tenant)
	return mu
}

// HasCredentials reports whether credentials for tenant are cached.
func (p *Pool) HasCredentials(tenant string) bool {
	return p.credentials.Has(tenant)
}

// SetCredentials caches credentials for tenant, replacing any previous ones.
func (p *Pool) SetCredentials(tenant string, creds Credentials) {
	p.credentials.Set(tenant, creds)
}

// EnsureCredentials fetches and caches the tenant's broker settings unless
// they are already cached. Tenants with messaging disabled are not cached and
// are asked again on the next call.
func (p *Pool) EnsureCredentials(ctx context.Context, tenant string) error {
	if tenant == "" || p.credentials.Has(tenant) {
		return nil
	}
	settings, err := p.settings.GetTenantSettings(ctx, tenant)
	if err != nil {
		return fmt.Errorf("failed to load messaging settings for tenant %s: %w", tenant, err)
	}
	if settings == nil || !settings.Enabled {
		p.logger.Info().Str("tenant", tenant).Msg("Tenant has MQTT disabled")
		return nil
	}

	creds := Credentials{
		Broker:   settings.Broker,
		Port:     settings.Port,
		Username: settings.Username,
		Password: settings.Password,
	}
	if creds.Broker == "" {
		creds.Broker = constants.DefaultBrokerHost
	}
	if creds.Port == 0 {
		creds.Port = constants.DefaultBrokerPort
	}
	p.credentials.Set(tenant, creds)
	p.logger.Info().Str("tenant", tenant).Str("broker", creds.Broker).Int("port", creds.Port).Msg("Loaded MQTT settings")
	return nil
}

// Get returns the tenant's client, creating and connecting it on first use.
// It returns nil when the tenant has no credentials or the connection fails;
// callers skip the device in that case.
func (p *Pool) Get(ctx context.Context, tenant string) mqtt.MQTTClient {
	if client, ok := p.clients.Get(tenant); ok {
		return client
	}

	mu := p.tenantLock(tenant)
	mu.Lock()
	defer mu.Unlock()

	if client, ok := p.clients.Get(tenant); ok {
		return client
	}
	creds, ok := p.credentials.Get(tenant)
	if !ok {
		p.logger.Warn().Str("tenant", tenant).Msg("No MQTT settings for tenant, skipping commands")
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	broker, err := mqtt.BrokerURL(creds.Broker, creds.Port)
	if err != nil {
		p.logger.Error().Err(err).Str("tenant", tenant).Msg("Invalid MQTT broker settings")
		p.credentials.Remove(tenant)
		return nil
	}

	client := p.newClient(mqtt.ClientConfig{
		Broker:    broker,
		ClientID:  fmt.Sprintf("%s-%s", p.opts.ClientIDPrefix, uuid.NewString()),
		Username:  creds.Username,
		Password:  creds.Password,
		OnConnect: p.subscribeTelemetry,
	}, p.logger)

	if err := mqtt.Connect(client, p.opts.ConnectTimeout); err != nil {
		p.logger.Error().Err(err).Str("tenant", tenant).Str("broker", broker).Msg("Failed to connect MQTT client")
		client.Disconnect(0)
		// Settings are refetched on the next poll.
		p.credentials.Remove(tenant)
		return nil
	}

	p.clients.Set(tenant, client)
	p.logger.Info().Str("tenant", tenant).Str("broker", broker).Msg("Created MQTT client")
	return client
}

// subscribeTelemetry runs on every (re)connect so subscriptions survive
// broker restarts.
func (p *Pool) subscribeTelemetry(client paho.Client) {
	for _, topic := range []string{constants.DeviceTelemetryTopic, constants.FleetTelemetryTopic} {
		token := client.Subscribe(topic, p.opts.QOS, p.telemetry)
		if !token.WaitTimeout(p.opts.ConnectTimeout) {
			p.logger.Error().Str("topic", topic).Msg("Timed out subscribing to telemetry")
			continue
		}
		if err := token.Error(); err != nil {
			p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to telemetry")
			continue
		}
		p.logger.Debug().Str("topic", topic).Msg("Subscribed to telemetry")
	}
}

// Invalidate drops the tenant's client and credentials. The next
// EnsureCredentials call fetches fresh settings.
func (p *Pool) Invalidate(tenant string) {
	mu := p.tenantLock(tenant)
	mu.Lock()
	defer mu.Unlock()

	if client, ok := p.clients.Pop(tenant); ok {
		client.Disconnect(p.opts.DisconnectQuiesce)
	}
	p.credentials.Remove(tenant)
	p.logger.Info().Str("tenant", tenant).Msg("Invalidated MQTT client and settings")
}

// HandleSettingsChanged is the hook for tenant settings updates.
func (p *Pool) HandleSettingsChanged(tenant string) {
	p.Invalidate(tenant)
}

// Publish sends cmd to the device at address through the tenant's client.
// A failed publish invalidates the tenant so the next cycle reconnects.
func (p *Pool) Publish(tenant string, client mqtt.MQTTClient, address string, cmd models.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to serialize %s command: %w", cmd.Type, err)
	}

	topic := fmt.Sprintf(constants.CommandTopicFormat, address)
	if err := mqtt.Publish(client, topic, p.opts.QOS, payload, p.opts.PublishTimeout); err != nil {
		p.logger.Error().Err(err).Str("tenant", tenant).Str("topic", topic).Msg("Failed to publish command")
		p.Invalidate(tenant)
		return err
	}

	p.logger.Info().Str("topic", topic).RawJSON("command", payload).Msg("Sent MQTT command")
	return nil
}

// Close disconnects every client.
func (p *Pool) Close() {
	for item := range p.clients.IterBuffered() {
		item.Val.Disconnect(p.opts.DisconnectQuiesce)
		p.clients.Remove(item.Key)
	}
}
