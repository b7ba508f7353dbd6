package book

const nilSlot int32 = -1

// slotRecord owns one order's data plus the prev/next slot links for its
// price level chain. Both links are required: with a forward link alone,
// removing an interior order would orphan everything behind it.
type slotRecord struct {
	id    uint64
	owner uint64
	price int64
	qty   int64
	seq   uint64
	side  Side
	typ   OrderType
	prev  int32
	next  int32
}

// arena is a pooled slot store for order records. Released slots go on a
// free list threaded through the next link, so steady cancel/insert churn
// reuses slots instead of growing the backing slice.
type arena struct {
	slots []slotRecord
	free  int32
	live  int
}

func newArena(capacity int) *arena {
	return &arena{
		slots: make([]slotRecord, 0, capacity),
		free:  nilSlot,
	}
}

func (a *arena) alloc() int32 {
	a.live++
	if a.free != nilSlot {
		s := a.free
		a.free = a.slots[s].next
		a.slots[s] = slotRecord{prev: nilSlot, next: nilSlot}
		return s
	}
	a.slots = append(a.slots, slotRecord{prev: nilSlot, next: nilSlot})
	return int32(len(a.slots) - 1)
}

func (a *arena) release(s int32) {
	a.slots[s] = slotRecord{prev: nilSlot, next: a.free}
	a.free = s
	a.live--
}

func (a *arena) at(s int32) *slotRecord {
	return &a.slots[s]
}
