// Package sequence issues the strictly monotonic sequence numbers that
// order every durable event.
package sequence

import "sync/atomic"

type Sequencer struct {
	next atomic.Uint64
}

// New starts a sequencer at start: zero on a fresh book, the last
// replayed sequence after recovery.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset jumps the sequencer; only recovery calls this.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
