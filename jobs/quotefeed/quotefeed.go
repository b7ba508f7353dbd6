// Package quotefeed pushes best-price updates to the market-data topic.
// Quotes are fire-and-forget: Publish runs on the matching path and must
// never block, so a full buffer drops the update and the next best-price
// change supersedes it anyway.
package quotefeed

import (
	"context"
	"encoding/json"

	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/service"
)

// Sender is the transport edge; production wires infra/kafka.Producer.
type Sender interface {
	Send(ctx context.Context, key, value []byte) error
}

type Feed struct {
	ch  chan service.Quote
	tx  Sender
	log logging.Logger
}

func New(tx Sender, buffer int, log logging.Logger) *Feed {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Feed{
		ch:  make(chan service.Quote, buffer),
		tx:  tx,
		log: log.With().Str("job", "quotefeed").Logger(),
	}
}

// Publish hands a quote to the feed without blocking the caller.
func (f *Feed) Publish(q service.Quote) {
	select {
	case f.ch <- q:
	default:
		metrics.QuoteDropsTotal.WithLabelValues(q.Symbol).Inc()
	}
}

// Run forwards buffered quotes until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-f.ch:
			payload, err := json.Marshal(q)
			if err != nil {
				f.log.Error().Err(err).Msg("quote encode failed")
				continue
			}
			if err := f.tx.Send(ctx, []byte(q.Symbol), payload); err != nil {
				f.log.Warn().Err(err).Str("symbol", q.Symbol).Msg("quote send failed")
			}
		}
	}
}
