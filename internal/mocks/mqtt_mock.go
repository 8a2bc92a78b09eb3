package mocks

import (
	"time"

	"github.com/benmeehan/signal-agent/pkg/mqtt"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"
)

// MockMQTTClient is a mock implementation of the mqtt.MQTTClient interface
type MockMQTTClient struct {
	mock.Mock
}

func (m *MockMQTTClient) Connect() mqttLib.Token {
	args := m.Called()
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqttLib.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockMQTTClient) IsConnectionOpen() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

// MockBrokerClient is a mock implementation of services.BrokerClient
type MockBrokerClient struct {
	mock.Mock
}

func (m *MockBrokerClient) Initialize(o mqtt.Options) error {
	args := m.Called(o)
	return args.Error(0)
}

func (m *MockBrokerClient) Publish(topic string, qos byte, retained bool, payload []byte, timeout time.Duration) error {
	args := m.Called(topic, qos, retained, payload, timeout)
	return args.Error(0)
}

func (m *MockBrokerClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}
