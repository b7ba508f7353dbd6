package quotefeed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"matchbook/service"
)

type captureSender struct {
	ch chan []byte
}

func (c *captureSender) Send(_ context.Context, _, value []byte) error {
	c.ch <- value
	return nil
}

func TestPublishForwardsQuote(t *testing.T) {
	tx := &captureSender{ch: make(chan []byte, 1)}
	f := New(tx, 8, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	f.Publish(service.Quote{Symbol: "BTCUSDT", Bid: 100, HasBid: true, Seq: 7})

	select {
	case payload := <-tx.ch:
		var q service.Quote
		if err := json.Unmarshal(payload, &q); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if q.Symbol != "BTCUSDT" || q.Bid != 100 || !q.HasBid || q.Seq != 7 {
			t.Fatalf("quote = %+v", q)
		}
	case <-time.After(time.Second):
		t.Fatal("quote never forwarded")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	// No Run loop draining: the buffer fills and the surplus is dropped.
	f := New(&captureSender{ch: make(chan []byte)}, 2, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := range 10 {
			f.Publish(service.Quote{Symbol: "BTCUSDT", Seq: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}
}
