package book

import "github.com/tidwall/btree"

// ladder indexes the occupied price levels of one side in price order
// and caches the best occupied price. A dense tick-indexed array would
// waste memory proportional to the instrument's price range and make
// "next occupied level" a linear scan; the btree keeps both lookup and
// best-advance near-logarithmic in active levels.
type ladder struct {
	side    Side
	levels  *btree.Map[int64, *priceLevel]
	best    int64
	hasBest bool
}

func newLadder(side Side) *ladder {
	return &ladder{
		side:   side,
		levels: btree.NewMap[int64, *priceLevel](32),
	}
}

func (l *ladder) getOrCreate(price int64) *priceLevel {
	if lvl, ok := l.levels.Get(price); ok {
		return lvl
	}
	lvl := newPriceLevel(price)
	l.levels.Set(price, lvl)
	if !l.hasBest || l.moreAggressive(price, l.best) {
		l.best, l.hasBest = price, true
	}
	return lvl
}

func (l *ladder) find(price int64) *priceLevel {
	lvl, _ := l.levels.Get(price)
	return lvl
}

// moreAggressive reports whether price a outranks b on this side.
func (l *ladder) moreAggressive(a, b int64) bool {
	if l.side == Bid {
		return a > b
	}
	return a < b
}

// removeIfEmpty drops an emptied level and, if it held the cached best,
// advances the cache to the next occupied level.
func (l *ladder) removeIfEmpty(lvl *priceLevel) {
	if !lvl.empty() {
		return
	}
	l.levels.Delete(lvl.price)
	if l.hasBest && lvl.price == l.best {
		l.advanceBest()
	}
}

func (l *ladder) advanceBest() {
	if l.side == Bid {
		k, _, ok := l.levels.Max()
		l.best, l.hasBest = k, ok
		return
	}
	k, _, ok := l.levels.Min()
	l.best, l.hasBest = k, ok
}

func (l *ladder) bestPrice() (int64, bool) {
	return l.best, l.hasBest
}

func (l *ladder) size() int {
	return l.levels.Len()
}

// walk visits occupied levels best to worst until fn returns false.
func (l *ladder) walk(fn func(*priceLevel) bool) {
	if l.side == Bid {
		l.levels.Reverse(func(_ int64, lvl *priceLevel) bool { return fn(lvl) })
		return
	}
	l.levels.Scan(func(_ int64, lvl *priceLevel) bool { return fn(lvl) })
}
