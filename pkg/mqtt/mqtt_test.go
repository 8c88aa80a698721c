package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/taubenschiesser/hardware-monitor/internal/mocks"
)

func TestBrokerURL(t *testing.T) {
	cases := []struct {
		broker string
		port   int
		want   string
	}{
		{"localhost", 1883, "tcp://localhost:1883"},
		{"mqtt://broker.local", 1884, "tcp://broker.local:1884"},
		{"mqtts://broker.local", 8883, "ssl://broker.local:8883"},
		{"broker.local:1999", 1883, "tcp://broker.local:1999"},
		{"tcp://10.0.0.2:1883", 1, "tcp://10.0.0.2:1883"},
		{"ws://broker.local/mqtt", 9001, "ws://broker.local:9001/mqtt"},
	}
	for _, tc := range cases {
		got, err := BrokerURL(tc.broker, tc.port)
		assert.NoError(t, err, tc.broker)
		assert.Equal(t, tc.want, got, tc.broker)
	}
}

func TestBrokerURL_Invalid(t *testing.T) {
	for _, broker := range []string{"", "   ", "http://broker", "tcp://"} {
		_, err := BrokerURL(broker, 1883)
		assert.Error(t, err, broker)
	}
}

func TestPublish_Timeout(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	token := new(mocks.MockToken)
	token.On("WaitTimeout", time.Second).Return(false)
	client.On("Publish", "taubenschiesser/10.0.0.5", byte(1), false, mock.Anything).Return(token)

	// Execute
	err := Publish(client, "taubenschiesser/10.0.0.5", 1, []byte("{}"), time.Second)

	// Assert
	assert.ErrorIs(t, err, ErrTimeout)
	client.AssertExpectations(t)
}

func TestConnect_Error(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	token := new(mocks.MockToken)
	token.On("WaitTimeout", time.Second).Return(true)
	token.On("Error").Return(errors.New("not authorized"))
	client.On("Connect").Return(token)

	// Execute
	err := Connect(client, time.Second)

	// Assert
	assert.EqualError(t, err, "connect: not authorized")
}
