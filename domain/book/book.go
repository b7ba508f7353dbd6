// Package book implements a single-symbol central limit order book:
// price-time-priority matching over intrusive per-level FIFO chains, an
// ordered ladder of occupied price levels per side, and literal event
// application so a replayed log reproduces the exact live state.
//
// A Book is single-writer and does no locking of its own. All mutating
// calls, and any reads that must see a coherent view, are serialized by
// the caller.
package book

import "fmt"

type Config struct {
	Symbol   string
	TickSize int64
	MinPrice int64
	MaxPrice int64 // 0 means unbounded above
}

type Book struct {
	symbol   string
	tick     int64
	minPrice int64
	maxPrice int64

	bids *ladder
	asks *ladder

	arena *arena
	index map[uint64]int32

	poisoned bool
}

func New(cfg Config) *Book {
	tick := cfg.TickSize
	if tick <= 0 {
		tick = 1
	}
	return &Book{
		symbol:   cfg.Symbol,
		tick:     tick,
		minPrice: cfg.MinPrice,
		maxPrice: cfg.MaxPrice,
		bids:     newLadder(Bid),
		asks:     newLadder(Ask),
		arena:    newArena(1024),
		index:    make(map[uint64]int32, 1024),
	}
}

func (b *Book) Symbol() string { return b.symbol }

func (b *Book) side(s Side) *ladder {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

func (b *Book) BestBid() (int64, bool) { return b.bids.bestPrice() }
func (b *Book) BestAsk() (int64, bool) { return b.asks.bestPrice() }

// Len is the number of resting orders.
func (b *Book) Len() int { return len(b.index) }

// Poisoned reports whether an invariant violation has halted mutation.
func (b *Book) Poisoned() bool { return b.poisoned }

func (b *Book) poison() { b.poisoned = true }

func (b *Book) checkPrice(price int64) error {
	if price%b.tick != 0 {
		return ErrInvalidPriceGranularity
	}
	if price < b.minPrice || (b.maxPrice > 0 && price > b.maxPrice) {
		return ErrPriceOutOfRange
	}
	return nil
}

// Cancel validates a cancel and returns its Deleted event without
// mutating. The caller logs the event durably, then applies it.
func (b *Book) Cancel(id uint64) (Event, error) {
	if b.poisoned {
		return Event{}, ErrBookPoisoned
	}
	if _, ok := b.index[id]; !ok {
		return Event{}, ErrOrderNotFound
	}
	return Event{Kind: EventDeleted, ID: id}, nil
}

// ApplyEvent applies one logged event. Live mutation and recovery replay
// share this path. Any failure here means the event stream and the book
// disagree, which poisons the book.
func (b *Book) ApplyEvent(ev *Event) error {
	if b.poisoned {
		return ErrBookPoisoned
	}
	switch ev.Kind {
	case EventCreated:
		return b.applyCreated(ev)
	case EventUpdated:
		return b.applyUpdated(ev)
	case EventDeleted:
		return b.applyDeleted(ev)
	default:
		b.poison()
		return fmt.Errorf("book: unknown event kind %d", ev.Kind)
	}
}

func (b *Book) applyCreated(ev *Event) error {
	o := ev.Order
	if _, dup := b.index[o.ID]; dup {
		b.poison()
		return fmt.Errorf("%w: created event for live id %d", errDesync, o.ID)
	}
	s := b.arena.alloc()
	*b.arena.at(s) = slotRecord{
		id:    o.ID,
		owner: o.Owner,
		price: o.Price,
		qty:   o.Qty,
		seq:   o.Seq,
		side:  o.Side,
		typ:   o.Type,
		prev:  nilSlot,
		next:  nilSlot,
	}
	b.side(o.Side).getOrCreate(o.Price).appendSlot(b.arena, s)
	b.index[o.ID] = s
	return nil
}

func (b *Book) applyUpdated(ev *Event) error {
	s, ok := b.index[ev.ID]
	if !ok {
		b.poison()
		return fmt.Errorf("%w: updated event for unknown id %d", errDesync, ev.ID)
	}
	rec := b.arena.at(s)
	if ev.Remaining <= 0 || ev.Remaining >= rec.qty {
		b.poison()
		return fmt.Errorf("%w: update of id %d from %d to %d", errDesync, ev.ID, rec.qty, ev.Remaining)
	}
	lvl := b.side(rec.side).find(rec.price)
	if lvl == nil {
		b.poison()
		return fmt.Errorf("%w: id %d has no level at %d", errDesync, ev.ID, rec.price)
	}
	lvl.totalQty -= rec.qty - ev.Remaining
	rec.qty = ev.Remaining
	return nil
}

func (b *Book) applyDeleted(ev *Event) error {
	s, ok := b.index[ev.ID]
	if !ok {
		b.poison()
		return fmt.Errorf("%w: deleted event for unknown id %d", errDesync, ev.ID)
	}
	rec := b.arena.at(s)
	side := b.side(rec.side)
	lvl := side.find(rec.price)
	if lvl == nil {
		b.poison()
		return fmt.Errorf("%w: id %d has no level at %d", errDesync, ev.ID, rec.price)
	}
	lvl.unlinkSlot(b.arena, s)
	b.arena.release(s)
	delete(b.index, ev.ID)
	side.removeIfEmpty(lvl)
	return nil
}
