package presenter

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/benmeehan/signal-agent/internal/metrics"
	"github.com/benmeehan/signal-agent/internal/models"
	"github.com/rs/zerolog"
)

// Publisher sends one payload to the broker.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte, timeout time.Duration) error
}

// Submitter runs tasks off the caller's goroutine without blocking. Tasks
// sharing a key run in submission order; a barrier task runs after every
// earlier task and before every later one.
type Submitter interface {
	TrySubmitKeyed(key int, task func()) bool
	TrySubmitBarrier(task func()) bool
}

// MQTTPresenter republishes store events on MQTT. Full refreshes go to
// <topic>/replaced and are retained; record updates go to <topic>/<index>.
type MQTTPresenter struct {
	topic   string
	qos     byte
	timeout time.Duration

	publisher Publisher
	pool      Submitter
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewMQTTPresenter creates an MQTTPresenter. m may be nil.
func NewMQTTPresenter(
	topic string,
	qos int,
	timeout time.Duration,
	publisher Publisher,
	pool Submitter,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *MQTTPresenter {
	return &MQTTPresenter{
		topic:     topic,
		qos:       byte(qos),
		timeout:   timeout,
		publisher: publisher,
		pool:      pool,
		metrics:   m,
		logger:    logger.With().Str("presenter", "mqtt").Logger(),
	}
}

// Topic returns the topic an event is published on.
func (p *MQTTPresenter) Topic(event models.StoreEvent) string {
	if event.Kind == models.EventReplaced {
		return p.topic + "/replaced"
	}
	return p.topic + "/" + strconv.Itoa(event.Update.Index)
}

// OnStoreEvent implements store.Observer. Publishing happens on the pool
// in store order: updates of one index never overtake each other, and a
// full refresh is published between the updates before and after it.
// Events are dropped when the pool is saturated.
func (p *MQTTPresenter) OnStoreEvent(event models.StoreEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.fail(err, "Failed to serialize store event")
		return
	}
	topic := p.Topic(event)
	retained := event.Kind == models.EventReplaced

	publish := func() {
		if err := p.publisher.Publish(topic, p.qos, retained, payload, p.timeout); err != nil {
			p.fail(err, "Failed to publish store event")
		}
	}
	var ok bool
	if event.Kind == models.EventReplaced {
		ok = p.pool.TrySubmitBarrier(publish)
	} else {
		ok = p.pool.TrySubmitKeyed(event.Update.Index, publish)
	}
	if !ok {
		p.logger.Warn().Str("topic", topic).Msg("Bridge queue full, dropping store event")
		p.count()
	}
}

func (p *MQTTPresenter) fail(err error, msg string) {
	p.logger.Error().Err(err).Msg(msg)
	p.count()
}

func (p *MQTTPresenter) count() {
	if p.metrics != nil {
		p.metrics.BridgePublishErr.Inc()
	}
}
