package book

// LevelDepth summarizes one occupied price level.
type LevelDepth struct {
	Price  int64
	Qty    int64
	Orders int
}

// Depth returns up to n levels per side, best first. n <= 0 means all.
func (b *Book) Depth(n int) (bids, asks []LevelDepth) {
	collect := func(l *ladder) []LevelDepth {
		hint := l.size()
		if n > 0 && n < hint {
			hint = n
		}
		out := make([]LevelDepth, 0, hint)
		l.walk(func(lvl *priceLevel) bool {
			out = append(out, LevelDepth{Price: lvl.price, Qty: lvl.totalQty, Orders: lvl.count})
			return n <= 0 || len(out) < n
		})
		return out
	}
	return collect(b.bids), collect(b.asks)
}

// Lookup returns the resting order with the given id.
func (b *Book) Lookup(id uint64) (Order, bool) {
	s, ok := b.index[id]
	if !ok {
		return Order{}, false
	}
	return b.orderAt(s), true
}

// Resting returns every resting order: bids best-to-worst, then asks
// best-to-worst, FIFO within each level. The order is deterministic, so
// two books holding the same state yield identical slices.
func (b *Book) Resting() []Order {
	out := make([]Order, 0, len(b.index))
	for _, l := range []*ladder{b.bids, b.asks} {
		l.walk(func(lvl *priceLevel) bool {
			for s := lvl.head; s != nilSlot; s = b.arena.at(s).next {
				out = append(out, b.orderAt(s))
			}
			return true
		})
	}
	return out
}

func (b *Book) orderAt(s int32) Order {
	rec := b.arena.at(s)
	return Order{
		ID:    rec.id,
		Owner: rec.owner,
		Price: rec.price,
		Qty:   rec.qty,
		Seq:   rec.seq,
		Side:  rec.side,
		Type:  rec.typ,
	}
}
