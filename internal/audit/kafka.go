package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rickgao/polymarket-mirror/internal/buffer"
	"github.com/rickgao/polymarket-mirror/internal/config"
)

// messageWriter is the subset of kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMetrics counts publisher activity.
type KafkaMetrics struct {
	Published int64
	Failed    int64
	Flushes   int64
	Dropped   int64
}

// KafkaPublisher queues events in memory and writes them to Kafka in batches.
type KafkaPublisher struct {
	cfg    config.AuditConfig
	writer messageWriter
	logger *slog.Logger

	queue *buffer.Growable[Event]

	mu      sync.Mutex // serializes flushes
	metrics KafkaMetrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaPublisher creates a publisher for cfg.Topic on cfg.Brokers.
func NewKafkaPublisher(cfg config.AuditConfig, logger *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(cfg, w, logger)
}

func newKafkaPublisher(cfg config.AuditConfig, w messageWriter, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		cfg:    cfg,
		writer: w,
		logger: logger,
		queue:  buffer.New[Event](cfg.BatchSize, cfg.BufferSize),
	}
}

// Publish queues ev. It never blocks; when the queue is full the oldest
// event is dropped.
func (p *KafkaPublisher) Publish(ev Event) {
	if !p.queue.Send(ev) {
		p.logger.Debug("audit publisher closed, event discarded", "event_id", ev.ID)
	}
}

// Start begins the background flush loop.
func (p *KafkaPublisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.flushLoop(ctx)
	}()

	p.logger.Info("audit publisher started",
		"topic", p.cfg.Topic,
		"batch_size", p.cfg.BatchSize,
		"flush_interval", p.cfg.FlushInterval,
	)
}

// Stop drains the queue with a final flush and closes the writer.
func (p *KafkaPublisher) Stop(ctx context.Context) error {
	p.queue.Close()
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("audit publisher stop timed out")
	}

	// Final flush
	for p.queue.Len() > 0 && ctx.Err() == nil {
		if !p.flush(ctx) {
			break
		}
	}

	p.logger.Info("audit publisher stopped", "published", p.Stats().Published)
	return p.writer.Close()
}

// Stats returns current metrics.
func (p *KafkaPublisher) Stats() KafkaMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.metrics
	m.Dropped = p.queue.Stats().Dropped
	return m
}

func (p *KafkaPublisher) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flush(ctx)
		case <-p.queue.Ready():
			if p.queue.Len() >= p.cfg.BatchSize {
				p.flush(ctx)
			}
		}
	}
}

// flush writes one batch. It reports false when the write failed.
func (p *KafkaPublisher) flush(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := p.queue.Drain(p.cfg.BatchSize)
	if len(events) == 0 {
		return true
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			p.logger.Error("marshal audit event", "event_id", ev.ID, "err", err)
			p.metrics.Failed++
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.Decision.MarketID),
			Value: value,
			Time:  ev.Time,
		})
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("kafka write failed", "err", err, "count", len(msgs))
		p.metrics.Failed += int64(len(msgs))
		return false
	}

	p.metrics.Published += int64(len(msgs))
	p.metrics.Flushes++
	p.logger.Debug("flushed audit events",
		"count", len(msgs),
		"duration", time.Since(start),
	)
	return true
}
