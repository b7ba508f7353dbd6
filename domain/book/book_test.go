package book

import (
	"errors"
	"testing"
)

// env drives a book the way the engine does: plan, assign sequence
// numbers, apply every event.
type env struct {
	t   *testing.T
	b   *Book
	seq uint64
}

func newEnv(t *testing.T) *env {
	return &env{
		t: t,
		b: New(Config{Symbol: "BTCUSDT", TickSize: 1, MinPrice: 1, MaxPrice: 1_000_000}),
	}
}

func (e *env) apply(plan *Plan) {
	e.t.Helper()
	for i := range plan.Events {
		e.seq++
		plan.Events[i].Seq = e.seq
		if plan.Events[i].Kind == EventCreated {
			plan.Events[i].Order.Seq = e.seq
		}
		if err := e.b.ApplyEvent(&plan.Events[i]); err != nil {
			e.t.Fatalf("apply event %d: %v", i, err)
		}
	}
	if err := e.b.Validate(); err != nil {
		e.t.Fatalf("invariants after apply: %v", err)
	}
}

func (e *env) place(in Incoming) *Plan {
	e.t.Helper()
	plan, err := e.b.PlanPlace(in)
	if err != nil {
		e.t.Fatalf("place %d: %v", in.ID, err)
	}
	e.apply(plan)
	return plan
}

func (e *env) limit(id uint64, side Side, price, qty int64) *Plan {
	e.t.Helper()
	return e.place(Incoming{ID: id, Owner: id, Side: side, Type: Limit, Price: price, Qty: qty})
}

func (e *env) cancel(id uint64) error {
	e.t.Helper()
	ev, err := e.b.Cancel(id)
	if err != nil {
		return err
	}
	e.seq++
	ev.Seq = e.seq
	if err := e.b.ApplyEvent(&ev); err != nil {
		e.t.Fatalf("apply cancel %d: %v", id, err)
	}
	if err := e.b.Validate(); err != nil {
		e.t.Fatalf("invariants after cancel: %v", err)
	}
	return nil
}

func TestPartialFillRestsRemainder(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Bid, 100, 10)
	if best, ok := e.b.BestBid(); !ok || best != 100 {
		t.Fatalf("best bid = %d/%v, want 100", best, ok)
	}

	plan := e.limit(2, Ask, 100, 5)
	if len(plan.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(plan.Fills))
	}
	f := plan.Fills[0]
	if f.Qty != 5 || f.Price != 100 || f.MakerID != 1 || f.TakerID != 2 {
		t.Fatalf("unexpected fill %+v", f)
	}
	if plan.Outcome != Filled {
		t.Fatalf("outcome = %v, want filled", plan.Outcome)
	}

	rest, ok := e.b.Lookup(1)
	if !ok || rest.Qty != 5 || rest.Price != 100 {
		t.Fatalf("remainder = %+v/%v, want qty 5 at 100", rest, ok)
	}
}

func TestFIFOWithinLevel(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Ask, 100, 3)
	e.limit(2, Ask, 100, 4)

	plan := e.limit(3, Bid, 100, 5)
	if len(plan.Fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(plan.Fills))
	}
	if plan.Fills[0].MakerID != 1 || plan.Fills[0].Qty != 3 {
		t.Fatalf("first fill %+v, want maker 1 qty 3", plan.Fills[0])
	}
	if plan.Fills[1].MakerID != 2 || plan.Fills[1].Qty != 2 {
		t.Fatalf("second fill %+v, want maker 2 qty 2", plan.Fills[1])
	}

	rest, ok := e.b.Lookup(2)
	if !ok || rest.Qty != 2 {
		t.Fatalf("maker 2 remainder = %+v/%v, want qty 2", rest, ok)
	}
	if best, ok := e.b.BestAsk(); !ok || best != 100 {
		t.Fatalf("best ask = %d/%v, want 100", best, ok)
	}
}

func TestPricePriorityAcrossLevels(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Ask, 101, 5)
	e.limit(2, Ask, 100, 5)

	plan := e.limit(3, Bid, 101, 7)
	if len(plan.Fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(plan.Fills))
	}
	if plan.Fills[0].MakerID != 2 || plan.Fills[0].Price != 100 || plan.Fills[0].Qty != 5 {
		t.Fatalf("first fill %+v, want all of level 100", plan.Fills[0])
	}
	if plan.Fills[1].MakerID != 1 || plan.Fills[1].Price != 101 || plan.Fills[1].Qty != 2 {
		t.Fatalf("second fill %+v, want 2 at 101", plan.Fills[1])
	}
}

func TestBestAdvancesWhenLevelEmpties(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Ask, 100, 2)
	e.limit(2, Ask, 105, 1)

	e.limit(3, Bid, 100, 2)
	if best, ok := e.b.BestAsk(); !ok || best != 105 {
		t.Fatalf("best ask = %d/%v, want 105", best, ok)
	}

	e.limit(4, Bid, 105, 1)
	if _, ok := e.b.BestAsk(); ok {
		t.Fatal("best ask should be empty")
	}
	if e.b.Len() != 0 {
		t.Fatalf("resting orders = %d, want 0", e.b.Len())
	}
}

func TestCancelInteriorOrderKeepsChain(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Ask, 100, 1)
	e.limit(2, Ask, 100, 1)
	e.limit(3, Ask, 100, 1)

	if err := e.cancel(2); err != nil {
		t.Fatalf("cancel interior: %v", err)
	}

	plan := e.limit(4, Bid, 100, 2)
	if len(plan.Fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(plan.Fills))
	}
	if plan.Fills[0].MakerID != 1 || plan.Fills[1].MakerID != 3 {
		t.Fatalf("fill order %d,%d, want 1,3", plan.Fills[0].MakerID, plan.Fills[1].MakerID)
	}
}

func TestSlotReuseAfterCancel(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Bid, 100, 1)
	e.limit(2, Bid, 100, 1)
	before := len(e.b.arena.slots)

	if err := e.cancel(1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	e.limit(3, Bid, 99, 1)

	if got := len(e.b.arena.slots); got != before {
		t.Fatalf("arena grew to %d slots, want %d (freed slot reused)", got, before)
	}
	if _, ok := e.b.Lookup(3); !ok {
		t.Fatal("order 3 not reachable after slot reuse")
	}
}

func TestMarketOrderUnboundedAndProtected(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Ask, 100, 1)
	e.limit(2, Ask, 110, 1)

	plan := e.place(Incoming{ID: 3, Owner: 3, Side: Bid, Type: Market, Qty: 3, Protect: 105})
	if len(plan.Fills) != 1 || plan.Fills[0].Price != 100 {
		t.Fatalf("protected market fills %+v, want only level 100", plan.Fills)
	}
	if plan.Outcome != Killed {
		t.Fatalf("outcome = %v, want killed remainder", plan.Outcome)
	}

	plan = e.place(Incoming{ID: 4, Owner: 4, Side: Bid, Type: Market, Qty: 1})
	if len(plan.Fills) != 1 || plan.Fills[0].Price != 110 {
		t.Fatalf("unbounded market fills %+v, want level 110", plan.Fills)
	}
	if e.b.Len() != 0 {
		t.Fatalf("market orders must not rest, %d left", e.b.Len())
	}
}

func TestIOCDiscardsRemainder(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Ask, 100, 2)
	plan := e.place(Incoming{ID: 2, Owner: 2, Side: Bid, Type: IOC, Price: 100, Qty: 5})
	if len(plan.Fills) != 1 || plan.Fills[0].Qty != 2 {
		t.Fatalf("fills %+v, want single fill of 2", plan.Fills)
	}
	if plan.Outcome != Killed {
		t.Fatalf("outcome = %v, want killed", plan.Outcome)
	}
	if _, ok := e.b.Lookup(2); ok {
		t.Fatal("IOC remainder must not rest")
	}
}

func TestFOKAllOrNothing(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Ask, 100, 2)

	plan := e.place(Incoming{ID: 2, Owner: 2, Side: Bid, Type: FOK, Price: 100, Qty: 5})
	if plan.Outcome != Killed || len(plan.Fills) != 0 || len(plan.Events) != 0 {
		t.Fatalf("short FOK must kill with no effect, got %+v", plan)
	}
	if rest, _ := e.b.Lookup(1); rest.Qty != 2 {
		t.Fatalf("maker touched by killed FOK: %+v", rest)
	}

	plan = e.place(Incoming{ID: 3, Owner: 3, Side: Bid, Type: FOK, Price: 100, Qty: 2})
	if plan.Outcome != Filled || len(plan.Fills) != 1 {
		t.Fatalf("exact FOK should fill, got %+v", plan)
	}
}

func TestPostOnlyRejectsCrossing(t *testing.T) {
	e := newEnv(t)

	e.limit(1, Ask, 100, 1)

	plan := e.place(Incoming{ID: 2, Owner: 2, Side: Bid, Type: PostOnly, Price: 100, Qty: 1})
	if plan.Outcome != Killed || len(plan.Events) != 0 {
		t.Fatalf("crossing post-only must be killed, got %+v", plan)
	}

	plan = e.place(Incoming{ID: 3, Owner: 3, Side: Bid, Type: PostOnly, Price: 99, Qty: 1})
	if plan.Outcome != Rested {
		t.Fatalf("passive post-only should rest, got %+v", plan)
	}
}

func TestValidationErrors(t *testing.T) {
	e := newEnv(t)
	e.limit(1, Bid, 100, 1)

	cases := []struct {
		name string
		in   Incoming
		want error
	}{
		{"zero qty", Incoming{ID: 9, Side: Bid, Type: Limit, Price: 100, Qty: 0}, ErrInvalidQuantity},
		{"negative qty", Incoming{ID: 9, Side: Bid, Type: Limit, Price: 100, Qty: -2}, ErrInvalidQuantity},
		{"below bounds", Incoming{ID: 9, Side: Bid, Type: Limit, Price: 0, Qty: 1}, ErrPriceOutOfRange},
		{"above bounds", Incoming{ID: 9, Side: Bid, Type: Limit, Price: 2_000_000, Qty: 1}, ErrPriceOutOfRange},
		{"duplicate id", Incoming{ID: 1, Side: Bid, Type: Limit, Price: 100, Qty: 1}, ErrDuplicateOrderID},
		{"bad protect", Incoming{ID: 9, Side: Bid, Type: Market, Qty: 1, Protect: -5}, ErrPriceOutOfRange},
	}
	for _, tc := range cases {
		if _, err := e.b.PlanPlace(tc.in); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
	if e.b.Len() != 1 {
		t.Fatalf("rejected orders must be side-effect free, book has %d orders", e.b.Len())
	}
}

func TestTickGranularity(t *testing.T) {
	b := New(Config{Symbol: "ETHUSDT", TickSize: 5, MinPrice: 5, MaxPrice: 0})
	if _, err := b.PlanPlace(Incoming{ID: 1, Side: Bid, Type: Limit, Price: 102, Qty: 1}); !errors.Is(err, ErrInvalidPriceGranularity) {
		t.Fatalf("err = %v, want granularity", err)
	}
	if _, err := b.PlanPlace(Incoming{ID: 1, Side: Bid, Type: Limit, Price: 105, Qty: 1}); err != nil {
		t.Fatalf("on-tick price rejected: %v", err)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	e := newEnv(t)
	if err := e.cancel(42); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	e.limit(1, Ask, 100, 1)
	e.limit(2, Bid, 100, 1) // fills order 1
	if err := e.cancel(1); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("cancel of filled order: err = %v, want not found", err)
	}
}

func TestPoisonedBookRefusesMutation(t *testing.T) {
	e := newEnv(t)
	e.limit(1, Bid, 100, 1)

	// Deleted event for an id the book never saw: desync, poisons.
	ev := Event{Kind: EventDeleted, ID: 999, Seq: 77}
	if err := e.b.ApplyEvent(&ev); err == nil {
		t.Fatal("expected desync error")
	}
	if !e.b.Poisoned() {
		t.Fatal("book should be poisoned")
	}
	if _, err := e.b.PlanPlace(Incoming{ID: 2, Side: Bid, Type: Limit, Price: 100, Qty: 1}); !errors.Is(err, ErrBookPoisoned) {
		t.Fatalf("err = %v, want poisoned", err)
	}
	if _, err := e.b.Cancel(1); !errors.Is(err, ErrBookPoisoned) {
		t.Fatalf("cancel err = %v, want poisoned", err)
	}
}

func TestDepth(t *testing.T) {
	e := newEnv(t)
	e.limit(1, Bid, 100, 3)
	e.limit(2, Bid, 100, 2)
	e.limit(3, Bid, 99, 1)
	e.limit(4, Ask, 101, 4)

	bids, asks := e.b.Depth(1)
	if len(bids) != 1 || bids[0].Price != 100 || bids[0].Qty != 5 || bids[0].Orders != 2 {
		t.Fatalf("bids depth %+v", bids)
	}
	if len(asks) != 1 || asks[0].Price != 101 || asks[0].Qty != 4 {
		t.Fatalf("asks depth %+v", asks)
	}

	bids, _ = e.b.Depth(0)
	if len(bids) != 2 || bids[1].Price != 99 {
		t.Fatalf("full bids depth %+v", bids)
	}
}
