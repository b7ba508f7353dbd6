// Package service orchestrates one symbol's matching core: the book,
// the sequencer, the event log, the fill outbox and the quote feed.
// It is the only write entry point into the system.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"matchbook/domain/book"
	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
	"matchbook/infra/sequence"
	"matchbook/infra/wal"
)

// Quote is a best-price change notification for the market-data feed.
type Quote struct {
	Symbol string `json:"symbol"`
	Bid    int64  `json:"bid"`
	HasBid bool   `json:"has_bid"`
	Ask    int64  `json:"ask"`
	HasAsk bool   `json:"has_ask"`
	Seq    uint64 `json:"seq"`
	Time   int64  `json:"ts"`
}

// QuoteSink receives quote updates. Publish must never block; the
// matching path calls it while holding the write lock.
type QuoteSink interface {
	Publish(Quote)
}

// FillEvent is the JSON payload handed to the fee/ledger and market-data
// consumers through the outbox. Seq doubles as the idempotency key.
type FillEvent struct {
	V          int    `json:"v"`
	Symbol     string `json:"symbol"`
	Seq        uint64 `json:"seq"`
	TakerID    uint64 `json:"taker_id"`
	TakerOwner uint64 `json:"taker_owner"`
	MakerID    uint64 `json:"maker_id"`
	MakerOwner uint64 `json:"maker_owner"`
	Price      int64  `json:"price"`
	Qty        int64  `json:"qty"`
	TakerSide  string `json:"taker_side"`
	Time       int64  `json:"ts"`
}

// PlaceResult is what the caller is told once everything the operation
// changed is durable.
type PlaceResult struct {
	Outcome book.Outcome
	Reason  string
	Fills   []book.Fill
	Rested  int64
	Seq     uint64
}

// Engine runs one symbol. Mutations are strictly serial under mu;
// reads share it. Symbols never share an Engine or any of its parts.
type Engine struct {
	symbol string

	mu     sync.RWMutex
	book   *book.Book
	seq    *sequence.Sequencer
	wal    *wal.WAL
	out    *outbox.Outbox
	quotes QuoteSink

	lastBid, lastAsk int64
	hadBid, hadAsk   bool

	log logging.Logger
}

func NewEngine(
	b *book.Book,
	seq *sequence.Sequencer,
	w *wal.WAL,
	out *outbox.Outbox,
	quotes QuoteSink,
	log logging.Logger,
) *Engine {
	e := &Engine{
		symbol: b.Symbol(),
		book:   b,
		seq:    seq,
		wal:    w,
		out:    out,
		quotes: quotes,
		log:    log.With().Str("symbol", b.Symbol()).Logger(),
	}
	e.lastBid, e.hadBid = b.BestBid()
	e.lastAsk, e.hadAsk = b.BestAsk()
	return e
}

func (e *Engine) Symbol() string { return e.symbol }

// Place runs an incoming order to completion: validate, match against a
// read-only view, persist every resulting event, then apply. A log
// failure surfaces before anything mutates, so "failed" always means
// "did not happen".
func (e *Engine) Place(in book.Incoming) (PlaceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, err := e.book.PlanPlace(in)
	if err != nil {
		metrics.OrdersRejectedTotal.WithLabelValues(e.symbol, rejectReason(err)).Inc()
		return PlaceResult{}, err
	}

	if err := e.commit(plan.Events); err != nil {
		metrics.DurabilityFailuresTotal.WithLabelValues(e.symbol).Inc()
		e.log.Error().Err(err).Uint64("order_id", in.ID).Msg("place not applied")
		return PlaceResult{}, fmt.Errorf("place order %d: %w", in.ID, err)
	}

	// One maker event per fill, in fill order; the fill inherits its
	// maker event's sequence.
	for i := range plan.Fills {
		plan.Fills[i].Seq = plan.Events[i].Seq
	}
	e.enqueueFills(plan.Fills)
	e.noteBookChanged()

	metrics.OrdersAcceptedTotal.WithLabelValues(e.symbol, plan.Outcome.String()).Inc()
	metrics.FillsTotal.WithLabelValues(e.symbol).Add(float64(len(plan.Fills)))

	res := PlaceResult{
		Outcome: plan.Outcome,
		Reason:  plan.Reason,
		Fills:   plan.Fills,
		Rested:  plan.Rested,
	}
	if n := len(plan.Events); n > 0 {
		res.Seq = plan.Events[n-1].Seq
	}
	return res, nil
}

// Cancel removes a resting order. Durable before acknowledged, like
// every other mutation.
func (e *Engine) Cancel(id uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, err := e.book.Cancel(id)
	if err != nil {
		metrics.OrdersRejectedTotal.WithLabelValues(e.symbol, rejectReason(err)).Inc()
		return 0, err
	}

	evs := []book.Event{ev}
	if err := e.commit(evs); err != nil {
		metrics.DurabilityFailuresTotal.WithLabelValues(e.symbol).Inc()
		e.log.Error().Err(err).Uint64("order_id", id).Msg("cancel not applied")
		return 0, fmt.Errorf("cancel order %d: %w", id, err)
	}
	e.noteBookChanged()

	metrics.OrdersCancelledTotal.WithLabelValues(e.symbol).Inc()
	return evs[0].Seq, nil
}

// commit numbers the events, makes them durable as one atomic batch,
// then applies them. Mutation strictly follows durability.
func (e *Engine) commit(events []book.Event) error {
	if len(events) == 0 {
		return nil
	}
	recs := make([]*wal.Record, len(events))
	for i := range events {
		events[i].Seq = e.seq.Next()
		if events[i].Kind == book.EventCreated {
			events[i].Order.Seq = events[i].Seq
		}
		recs[i] = encodeEvent(&events[i])
	}

	start := time.Now()
	if err := e.wal.AppendBatch(recs); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	metrics.WALAppendSeconds.Observe(time.Since(start).Seconds())

	for i := range events {
		if err := e.book.ApplyEvent(&events[i]); err != nil {
			// Logged but not applied: the book has poisoned itself
			// and will refuse mutation until rebuilt from the log.
			e.log.Error().Err(err).Msg("book rejected committed event")
			return err
		}
	}
	return nil
}

func (e *Engine) enqueueFills(fills []book.Fill) {
	if e.out == nil {
		return
	}
	for _, f := range fills {
		payload, err := json.Marshal(FillEvent{
			V:          1,
			Symbol:     e.symbol,
			Seq:        f.Seq,
			TakerID:    f.TakerID,
			TakerOwner: f.TakerOwner,
			MakerID:    f.MakerID,
			MakerOwner: f.MakerOwner,
			Price:      f.Price,
			Qty:        f.Qty,
			TakerSide:  f.TakerSide.String(),
			Time:       time.Now().UnixNano(),
		})
		if err != nil {
			e.log.Error().Err(err).Uint64("seq", f.Seq).Msg("fill encode failed")
			continue
		}
		if err := e.out.Put(e.symbol, f.Seq, payload); err != nil {
			e.log.Error().Err(err).Uint64("seq", f.Seq).Msg("fill outbox write failed")
		}
	}
}

func (e *Engine) noteBookChanged() {
	metrics.RestingOrders.WithLabelValues(e.symbol).Set(float64(e.book.Len()))

	bid, hasBid := e.book.BestBid()
	ask, hasAsk := e.book.BestAsk()
	metrics.BestPrice.WithLabelValues(e.symbol, "bid").Set(float64(gaugePrice(bid, hasBid)))
	metrics.BestPrice.WithLabelValues(e.symbol, "ask").Set(float64(gaugePrice(ask, hasAsk)))

	if bid == e.lastBid && hasBid == e.hadBid && ask == e.lastAsk && hasAsk == e.hadAsk {
		return
	}
	e.lastBid, e.hadBid = bid, hasBid
	e.lastAsk, e.hadAsk = ask, hasAsk

	if e.quotes != nil {
		e.quotes.Publish(Quote{
			Symbol: e.symbol,
			Bid:    bid,
			HasBid: hasBid,
			Ask:    ask,
			HasAsk: hasAsk,
			Seq:    e.seq.Current(),
			Time:   time.Now().UnixNano(),
		})
	}
}

func gaugePrice(p int64, ok bool) int64 {
	if !ok {
		return 0
	}
	return p
}

// Depth returns up to n levels per side for display; it runs
// concurrently with other reads and never observes a torn mutation.
func (e *Engine) Depth(n int) (bids, asks []book.LevelDepth) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Depth(n)
}

// Best returns the current best bid and ask.
func (e *Engine) Best() (bid int64, hasBid bool, ask int64, hasAsk bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bid, hasBid = e.book.BestBid()
	ask, hasAsk = e.book.BestAsk()
	return
}

// LastSeq returns the sequence of the last durable event.
func (e *Engine) LastSeq() uint64 {
	return e.seq.Current()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, book.ErrInvalidPriceGranularity):
		return "price_granularity"
	case errors.Is(err, book.ErrPriceOutOfRange):
		return "price_out_of_range"
	case errors.Is(err, book.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, book.ErrDuplicateOrderID):
		return "duplicate_id"
	case errors.Is(err, book.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, book.ErrBookPoisoned):
		return "poisoned"
	default:
		return "other"
	}
}
