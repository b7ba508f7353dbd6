// Package broadcaster drains the fill outbox to Kafka. Delivery is
// at-least-once: an entry is marked SENT before the produce call, so a
// crash between send and ack resends it on the next pass, and consumers
// dedupe on the fill sequence carried in the payload.
package broadcaster

import (
	"context"
	"time"

	"github.com/IBM/sarama"

	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
)

type Broadcaster struct {
	out      *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	every    time.Duration
	log      logging.Logger
}

// New wires the drain loop to an already-connected producer. The caller
// owns the producer's lifecycle; tests hand in a mock.
func New(out *outbox.Outbox, producer sarama.SyncProducer, topic string, every time.Duration, log logging.Logger) *Broadcaster {
	if every <= 0 {
		every = 250 * time.Millisecond
	}
	return &Broadcaster{
		out:      out,
		producer: producer,
		topic:    topic,
		every:    every,
		log:      log.With().Str("job", "broadcaster").Logger(),
	}
}

// NewProducer builds the production sarama client: acks from all
// in-sync replicas, bounded retries.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	return sarama.NewSyncProducer(brokers, cfg)
}

// Run drains until ctx is cancelled. One final pass on shutdown flushes
// what it can.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.drain()
			return
		case <-ticker.C:
			b.drain()
		}
	}
}

func (b *Broadcaster) drain() {
	err := b.out.ScanUndelivered(func(e *outbox.Entry) error {
		if err := b.publish(e); err != nil {
			// Leave the entry for the next pass; later fills for the
			// same symbol stay behind it, so per-symbol order holds.
			b.log.Warn().Err(err).
				Str("symbol", e.Symbol).
				Uint64("seq", e.Seq).
				Uint32("retries", e.Retries).
				Msg("fill publish failed")
			metrics.OutboxPublishTotal.WithLabelValues("error").Inc()
			return err
		}
		metrics.OutboxPublishTotal.WithLabelValues("ok").Inc()
		return nil
	})
	if err != nil {
		b.log.Debug().Err(err).Msg("drain pass ended early")
	}
}

func (b *Broadcaster) publish(e *outbox.Entry) error {
	if err := b.out.MarkSent(e.Symbol, e.Seq); err != nil {
		return err
	}
	_, _, err := b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(e.Symbol),
		Value: sarama.ByteEncoder(e.Payload),
	})
	if err != nil {
		return err
	}
	return b.out.MarkAcked(e.Symbol, e.Seq)
}
