// Package tuneevents publishes tuner remediations to Kafka. Publishing never
// blocks the engine loop: when the queue is full the event is dropped.
package tuneevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/internal/tuner"
)

const DefaultQueue = 256

var ErrNoBrokers = errors.New("tuneevents: no brokers configured")

// Event is the wire form of one remediation.
type Event struct {
	ID     string    `json:"id"`
	RunID  string    `json:"run_id,omitempty"`
	Action string    `json:"action"`
	Reason string    `json:"reason"`
	Detail string    `json:"detail,omitempty"`
	TS     time.Time `json:"ts"`
}

type Config struct {
	Brokers []string
	Topic   string
	Queue   int
	RunID   string
}

// ProducerConfig is the sarama configuration the publisher expects.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	return cfg
}

type Publisher struct {
	topic  string
	runID  string
	events chan tuner.Remediation
	prod   sarama.AsyncProducer

	mu     sync.RWMutex
	closed bool

	pump  chan struct{}
	drain sync.WaitGroup

	log     *slog.Logger
	metrics *observability.IOMetrics
}

// New connects an async producer to cfg.Brokers.
func New(cfg Config, log *slog.Logger, m *observability.IOMetrics) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	prod, err := sarama.NewAsyncProducer(cfg.Brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("tuneevents: create async producer: %w", err)
	}
	return NewWithProducer(prod, cfg, log, m), nil
}

// NewWithProducer wraps an existing producer, which must return both
// successes and errors.
func NewWithProducer(prod sarama.AsyncProducer, cfg Config, log *slog.Logger, m *observability.IOMetrics) *Publisher {
	if cfg.Queue <= 0 {
		cfg.Queue = DefaultQueue
	}
	p := &Publisher{
		topic:   cfg.Topic,
		runID:   cfg.RunID,
		events:  make(chan tuner.Remediation, cfg.Queue),
		prod:    prod,
		pump:    make(chan struct{}),
		log:     logger.OrNop(log),
		metrics: m,
	}

	go func() {
		defer close(p.pump)
		for r := range p.events {
			b, err := json.Marshal(p.event(r))
			if err != nil {
				p.metrics.IncEvent("failed")
				p.log.LogAttrs(context.Background(), slog.LevelError, "tuning event marshal failed", slog.Any("err", err))
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(r.Action),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	p.drain.Add(2)
	go func() {
		defer p.drain.Done()
		for range p.prod.Successes() {
			p.metrics.IncEvent("sent")
		}
	}()
	go func() {
		defer p.drain.Done()
		for err := range p.prod.Errors() {
			p.metrics.IncEvent("failed")
			p.log.LogAttrs(context.Background(), slog.LevelWarn, "tuning event not delivered",
				slog.String("topic", p.topic),
				slog.Any("err", err.Err),
			)
		}
	}()
	return p
}

func (p *Publisher) event(r tuner.Remediation) Event {
	return Event{
		ID:     r.ID,
		RunID:  p.runID,
		Action: string(r.Action),
		Reason: string(r.Reason),
		Detail: r.Detail,
		TS:     r.At.UTC(),
	}
}

// Publish queues r. It drops r when the queue is full or the publisher is
// closed.
func (p *Publisher) Publish(r tuner.Remediation) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.IncEvent("dropped")
		return
	}
	select {
	case p.events <- r:
	default:
		p.metrics.IncEvent("dropped")
	}
}

// Close flushes queued events and shuts the producer down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.pump
	p.prod.AsyncClose()
	p.drain.Wait()
	return nil
}

var _ tuner.Sink = (*Publisher)(nil)
