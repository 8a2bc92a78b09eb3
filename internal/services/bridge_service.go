package services

import (
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/signal-agent/internal/utils"
	"github.com/benmeehan/signal-agent/pkg/mqtt"
	"github.com/rs/zerolog"
)

// BrokerClient is the MQTT connection owned by the bridge.
type BrokerClient interface {
	Initialize(o mqtt.Options) error
	Publish(topic string, qos byte, retained bool, payload []byte, timeout time.Duration) error
	Disconnect(quiesce uint)
}

// BridgeService owns the broker connection and the publishing workers used
// by the MQTT presenter. Tasks submitted while it is stopped are refused.
type BridgeService struct {
	options   mqtt.Options
	workers   int
	queueSize int

	client BrokerClient
	logger zerolog.Logger

	pool *utils.WorkerPool
	mu   sync.RWMutex
}

// NewBridgeService creates a BridgeService.
func NewBridgeService(options mqtt.Options, workers, queueSize int, client BrokerClient, logger zerolog.Logger) *BridgeService {
	return &BridgeService{
		options:   options,
		workers:   workers,
		queueSize: queueSize,
		client:    client,
		logger:    logger,
	}
}

// Start connects to the broker and starts the workers.
func (bs *BridgeService) Start() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.pool != nil {
		return errors.New("bridge service is already running")
	}
	if err := bs.client.Initialize(bs.options); err != nil {
		return err
	}
	bs.pool = utils.NewWorkerPool(bs.workers, bs.queueSize)

	bs.logger.Info().Str("broker", bs.options.Broker).Str("client_id", bs.options.ClientID).Msg("Bridge service started")
	return nil
}

// Stop drains queued publishes, then disconnects.
func (bs *BridgeService) Stop() error {
	bs.mu.Lock()
	pool := bs.pool
	bs.pool = nil
	bs.mu.Unlock()

	if pool == nil {
		return errors.New("bridge service is not running")
	}
	pool.Shutdown()
	bs.client.Disconnect(250)

	bs.logger.Info().Msg("Bridge service stopped")
	return nil
}

// TrySubmitKeyed queues task behind earlier tasks with the same key,
// without blocking.
func (bs *BridgeService) TrySubmitKeyed(key int, task func()) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	if bs.pool == nil {
		return false
	}
	return bs.pool.TrySubmitKeyed(key, task)
}

// TrySubmitBarrier queues task behind every earlier task, without blocking.
func (bs *BridgeService) TrySubmitBarrier(task func()) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	if bs.pool == nil {
		return false
	}
	return bs.pool.TrySubmitBarrier(task)
}

// Publish forwards to the broker client.
func (bs *BridgeService) Publish(topic string, qos byte, retained bool, payload []byte, timeout time.Duration) error {
	return bs.client.Publish(topic, qos, retained, payload, timeout)
}
