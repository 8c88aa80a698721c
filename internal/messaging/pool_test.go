package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taubenschiesser/hardware-monitor/internal/mocks"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	"github.com/taubenschiesser/hardware-monitor/pkg/mqtt"
)

type mockSettingsSource struct {
	mock.Mock
}

func (m *mockSettingsSource) GetTenantSettings(ctx context.Context, tenant string) (*models.MQTTSettings, error) {
	args := m.Called(ctx, tenant)
	settings, _ := args.Get(0).(*models.MQTTSettings)
	return settings, args.Error(1)
}

type subscribeRecorder struct {
	paho.Client
	mu     sync.Mutex
	topics []string
}

func (s *subscribeRecorder) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	return mocks.DoneToken{}
}

func newTestPool(settings SettingsSource) *Pool {
	return NewPool(settings, func(paho.Client, paho.Message) {}, Options{
		ClientIDPrefix: "test",
		QOS:            1,
		ConnectTimeout: time.Second,
		PublishTimeout: time.Second,
	}, zerolog.Nop())
}

func connectedClient() *mocks.MockMQTTClient {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.DoneToken{})
	client.On("Disconnect", mock.Anything).Return()
	return client
}

func TestPool_Get_NoCredentials(t *testing.T) {
	pool := newTestPool(new(mockSettingsSource))
	pool.SetClientFactory(func(mqtt.ClientConfig, zerolog.Logger) mqtt.MQTTClient {
		t.Fatal("client must not be created without credentials")
		return nil
	})

	assert.Nil(t, pool.Get(context.Background(), "tenant-1"))
}

func TestPool_EnsureCredentials_CachesEnabledSettings(t *testing.T) {
	// Setup
	settings := new(mockSettingsSource)
	settings.On("GetTenantSettings", mock.Anything, "tenant-1").
		Return(&models.MQTTSettings{Enabled: true, Broker: "broker.local", Username: "u", Password: "p"}, nil).Once()
	pool := newTestPool(settings)

	// Execute
	require.NoError(t, pool.EnsureCredentials(context.Background(), "tenant-1"))
	require.NoError(t, pool.EnsureCredentials(context.Background(), "tenant-1"))

	// Assert
	assert.True(t, pool.HasCredentials("tenant-1"))
	creds, _ := pool.credentials.Get("tenant-1")
	assert.Equal(t, Credentials{Broker: "broker.local", Port: 1883, Username: "u", Password: "p"}, creds)
	settings.AssertExpectations(t)
}

func TestPool_EnsureCredentials_DisabledNotCached(t *testing.T) {
	settings := new(mockSettingsSource)
	settings.On("GetTenantSettings", mock.Anything, "tenant-1").
		Return(&models.MQTTSettings{Enabled: false}, nil).Twice()
	pool := newTestPool(settings)

	require.NoError(t, pool.EnsureCredentials(context.Background(), "tenant-1"))
	require.NoError(t, pool.EnsureCredentials(context.Background(), "tenant-1"))

	assert.False(t, pool.HasCredentials("tenant-1"))
	settings.AssertExpectations(t)
}

func TestPool_EnsureCredentials_Error(t *testing.T) {
	settings := new(mockSettingsSource)
	settings.On("GetTenantSettings", mock.Anything, "tenant-1").Return(nil, errors.New("status 500"))
	pool := newTestPool(settings)

	err := pool.EnsureCredentials(context.Background(), "tenant-1")

	assert.ErrorContains(t, err, "status 500")
	assert.False(t, pool.HasCredentials("tenant-1"))
}

func TestPool_Get_CreatesOnceAndSubscribesOnConnect(t *testing.T) {
	// Setup
	pool := newTestPool(new(mockSettingsSource))
	pool.SetCredentials("tenant-1", Credentials{Broker: "mqtt://broker.local", Port: 1884, Username: "u", Password: "p"})

	var created atomic.Int32
	var cfgSeen mqtt.ClientConfig
	client := connectedClient()
	pool.SetClientFactory(func(cfg mqtt.ClientConfig, _ zerolog.Logger) mqtt.MQTTClient {
		created.Add(1)
		cfgSeen = cfg
		return client
	})

	// Execute
	first := pool.Get(context.Background(), "tenant-1")
	second := pool.Get(context.Background(), "tenant-1")

	// Assert
	assert.Same(t, client, first)
	assert.Same(t, client, second)
	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, "tcp://broker.local:1884", cfgSeen.Broker)
	assert.Equal(t, "u", cfgSeen.Username)
	assert.Contains(t, cfgSeen.ClientID, "test-")

	recorder := &subscribeRecorder{}
	cfgSeen.OnConnect(recorder)
	assert.ElementsMatch(t, []string{"taubenschiesser/+/info", "taubenschiesser/info"}, recorder.topics)
}

func TestPool_Get_ConcurrentCallersShareOneClient(t *testing.T) {
	pool := newTestPool(new(mockSettingsSource))
	pool.SetCredentials("tenant-1", Credentials{Broker: "broker.local", Port: 1883})
	var created atomic.Int32
	pool.SetClientFactory(func(mqtt.ClientConfig, zerolog.Logger) mqtt.MQTTClient {
		created.Add(1)
		return connectedClient()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, pool.Get(context.Background(), "tenant-1"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}

func TestPool_Get_ConnectFailureNotCached(t *testing.T) {
	// Setup
	settings := new(mockSettingsSource)
	settings.On("GetTenantSettings", mock.Anything, "tenant-1").
		Return(&models.MQTTSettings{Enabled: true, Broker: "broker.local", Username: "u", Password: "new"}, nil).Once()
	pool := newTestPool(settings)
	pool.SetCredentials("tenant-1", Credentials{Broker: "broker.local", Port: 1883, Username: "u", Password: "old"})
	failing := new(mocks.MockMQTTClient)
	failing.On("Connect").Return(mocks.DoneToken{Err: errors.New("not authorized")})
	failing.On("Disconnect", uint(0)).Return()
	healthy := connectedClient()

	clients := []mqtt.MQTTClient{failing, healthy}
	var passwords []string
	pool.SetClientFactory(func(cfg mqtt.ClientConfig, _ zerolog.Logger) mqtt.MQTTClient {
		passwords = append(passwords, cfg.Password)
		next := clients[0]
		clients = clients[1:]
		return next
	})

	// Execute & Assert
	assert.Nil(t, pool.Get(context.Background(), "tenant-1"))
	assert.False(t, pool.HasCredentials("tenant-1"))

	require.NoError(t, pool.EnsureCredentials(context.Background(), "tenant-1"))
	assert.Same(t, healthy, pool.Get(context.Background(), "tenant-1"))
	assert.Equal(t, []string{"old", "new"}, passwords)
	failing.AssertExpectations(t)
	settings.AssertExpectations(t)
}

func TestPool_Publish(t *testing.T) {
	// Setup
	pool := newTestPool(new(mockSettingsSource))
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "taubenschiesser/10.0.0.5", byte(1), false,
		[]byte(`{"type":"impulse","position":{"rot":40,"tilt":0},"speed":0,"bounce":false}`)).
		Return(mocks.DoneToken{})
	speed, bounce := 0, false

	// Execute
	err := pool.Publish("tenant-1", client, "10.0.0.5", models.Command{
		Type:     "impulse",
		Position: &models.CommandVector{Rot: 40, Tilt: 0},
		Speed:    &speed,
		Bounce:   &bounce,
	})

	// Assert
	assert.NoError(t, err)
	client.AssertExpectations(t)
}

func TestPool_Publish_FailureInvalidatesTenant(t *testing.T) {
	// Setup
	pool := newTestPool(new(mockSettingsSource))
	pool.SetCredentials("tenant-1", Credentials{Broker: "broker.local", Port: 1883})
	client := connectedClient()
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.DoneToken{Err: errors.New("not connected")})
	pool.SetClientFactory(func(mqtt.ClientConfig, zerolog.Logger) mqtt.MQTTClient { return client })
	require.NotNil(t, pool.Get(context.Background(), "tenant-1"))

	// Execute
	err := pool.Publish("tenant-1", client, "10.0.0.5", models.Command{Type: "shoot"})

	// Assert
	assert.Error(t, err)
	assert.False(t, pool.HasCredentials("tenant-1"))
	assert.Nil(t, pool.Get(context.Background(), "tenant-1"))
	client.AssertCalled(t, "Disconnect", uint(250))
}

func TestPool_HandleSettingsChanged(t *testing.T) {
	pool := newTestPool(new(mockSettingsSource))
	pool.SetCredentials("tenant-1", Credentials{Broker: "broker.local", Port: 1883})

	pool.HandleSettingsChanged("tenant-1")

	assert.False(t, pool.HasCredentials("tenant-1"))
}

func TestPool_Close(t *testing.T) {
	pool := newTestPool(new(mockSettingsSource))
	pool.SetCredentials("tenant-1", Credentials{Broker: "broker.local", Port: 1883})
	client := connectedClient()
	pool.SetClientFactory(func(mqtt.ClientConfig, zerolog.Logger) mqtt.MQTTClient { return client })
	require.NotNil(t, pool.Get(context.Background(), "tenant-1"))

	pool.Close()

	client.AssertCalled(t, "Disconnect", uint(250))
	assert.Equal(t, 0, pool.clients.Count())
}
