package book

// priceLevel is a FIFO chain of resting orders at a single price. Orders
// are linked by arena slot; head is the oldest order at the level.
type priceLevel struct {
	price    int64
	head     int32
	tail     int32
	totalQty int64
	count    int
}

func newPriceLevel(price int64) *priceLevel {
	return &priceLevel{price: price, head: nilSlot, tail: nilSlot}
}

func (p *priceLevel) empty() bool {
	return p.head == nilSlot
}

// appendSlot links s at the tail.
func (p *priceLevel) appendSlot(a *arena, s int32) {
	rec := a.at(s)
	rec.prev = p.tail
	rec.next = nilSlot
	if p.tail == nilSlot {
		p.head = s
	} else {
		a.at(p.tail).next = s
	}
	p.tail = s
	p.totalQty += rec.qty
	p.count++
}

// unlinkSlot removes s from any chain position by relinking its
// neighbors through the slot's own prev/next.
func (p *priceLevel) unlinkSlot(a *arena, s int32) {
	rec := a.at(s)
	if rec.prev != nilSlot {
		a.at(rec.prev).next = rec.next
	} else {
		p.head = rec.next
	}
	if rec.next != nilSlot {
		a.at(rec.next).prev = rec.prev
	} else {
		p.tail = rec.prev
	}
	rec.prev, rec.next = nilSlot, nilSlot
	p.totalQty -= rec.qty
	p.count--
}
