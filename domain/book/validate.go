package book

import "fmt"

// Validate walks the full structure and checks the cross-component
// invariants: every chained order has exactly one index entry and vice
// versa, level totals match their chains, links are symmetric, and each
// best-price cache equals the true best occupied level. Recovery runs it
// before an engine goes live; tests run it after every scenario.
func (b *Book) Validate() error {
	chained := 0
	for _, l := range []*ladder{b.bids, b.asks} {
		var walkErr error
		l.walk(func(lvl *priceLevel) bool {
			var qty int64
			count := 0
			prev := nilSlot
			for s := lvl.head; s != nilSlot; s = b.arena.at(s).next {
				rec := b.arena.at(s)
				if rec.prev != prev {
					walkErr = fmt.Errorf("level %d: slot %d prev link broken", lvl.price, s)
					return false
				}
				if rec.side != l.side || rec.price != lvl.price {
					walkErr = fmt.Errorf("level %d: slot %d on wrong chain", lvl.price, s)
					return false
				}
				idx, ok := b.index[rec.id]
				if !ok || idx != s {
					walkErr = fmt.Errorf("level %d: id %d missing from index", lvl.price, rec.id)
					return false
				}
				qty += rec.qty
				count++
				chained++
				prev = s
			}
			if lvl.tail != prev {
				walkErr = fmt.Errorf("level %d: tail link broken", lvl.price)
				return false
			}
			if qty != lvl.totalQty || count != lvl.count {
				walkErr = fmt.Errorf("level %d: totals diverged (qty %d/%d, count %d/%d)",
					lvl.price, qty, lvl.totalQty, count, lvl.count)
				return false
			}
			if count == 0 {
				walkErr = fmt.Errorf("level %d: empty level still indexed", lvl.price)
				return false
			}
			return true
		})
		if walkErr != nil {
			return walkErr
		}
		if err := b.validateBest(l); err != nil {
			return err
		}
	}
	if chained != len(b.index) {
		return fmt.Errorf("index holds %d entries, chains hold %d orders", len(b.index), chained)
	}
	return nil
}

func (b *Book) validateBest(l *ladder) error {
	var want int64
	var occupied bool
	if l.side == Bid {
		want, _, occupied = l.levels.Max()
	} else {
		want, _, occupied = l.levels.Min()
	}
	got, cached := l.bestPrice()
	if occupied != cached || (occupied && got != want) {
		return fmt.Errorf("%s best cache %d/%v, true best %d/%v", l.side, got, cached, want, occupied)
	}
	return nil
}
