// Package snapshot persists point-in-time captures of a book so recovery
// replays only the log tail instead of the full history. A snapshot file
// is superseded atomically: the new blob is written beside the old one
// and renamed over it only once fully durable.
package snapshot

import (
	"time"

	"matchbook/domain/book"
)

// Snapshot is an immutable capture of one symbol's full resting state.
// Seq is the last event sequence the capture reflects.
type Snapshot struct {
	Symbol  string
	Seq     uint64
	Created time.Time
	Orders  []book.Order
}

// Capture copies the book's resting orders. The caller holds whatever
// lock makes the book coherent; the copy is the only work done under it.
func Capture(b *book.Book, seq uint64) *Snapshot {
	return &Snapshot{
		Symbol:  b.Symbol(),
		Seq:     seq,
		Created: time.Now(),
		Orders:  b.Resting(),
	}
}

// Restore inserts the captured orders into an empty book.
func Restore(b *book.Book, s *Snapshot) error {
	for i := range s.Orders {
		ev := book.Event{Kind: book.EventCreated, Seq: s.Orders[i].Seq, Order: s.Orders[i]}
		if err := b.ApplyEvent(&ev); err != nil {
			return err
		}
	}
	return nil
}
