// Package outbox is the durable hand-off between the matching path and
// downstream consumers. Fills land here, synced, in the same call that
// acknowledges the order; the broadcaster drains them to Kafka with
// at-least-once delivery keyed by fill sequence.
package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StatePending State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// Entry is one fill awaiting (or past) publication.
type Entry struct {
	Symbol      string
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// value layout: [state:1][retries:4][lastAttempt:8][payload...]
func encodeValue(e *Entry) []byte {
	buf := make([]byte, 1+4+8+len(e.Payload))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	copy(buf[13:], e.Payload)
	return buf
}

func decodeValue(b []byte, e *Entry) error {
	if len(b) < 13 {
		return errors.New("outbox: truncated entry")
	}
	e.State = State(b[0])
	e.Retries = binary.BigEndian.Uint32(b[1:5])
	e.LastAttempt = int64(binary.BigEndian.Uint64(b[5:13]))
	e.Payload = append([]byte(nil), b[13:]...)
	return nil
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // durability is the whole point
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put stores a pending fill durably.
func (o *Outbox) Put(symbol string, seq uint64, payload []byte) error {
	e := Entry{Symbol: symbol, Seq: seq, State: StatePending, Payload: payload}
	return o.db.Set(keyFor(symbol, seq), encodeValue(&e), pebble.Sync)
}

// Get returns the entry for one fill.
func (o *Outbox) Get(symbol string, seq uint64) (Entry, error) {
	val, closer, err := o.db.Get(keyFor(symbol, seq))
	if err != nil {
		return Entry{}, err
	}
	defer closer.Close()

	e := Entry{Symbol: symbol, Seq: seq}
	if err := decodeValue(val, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// MarkSent records a publish attempt before it happens, so a crash
// between send and ack re-sends rather than drops.
func (o *Outbox) MarkSent(symbol string, seq uint64) error {
	return o.transition(symbol, seq, StateSent)
}

// MarkAcked records broker acknowledgement.
func (o *Outbox) MarkAcked(symbol string, seq uint64) error {
	return o.transition(symbol, seq, StateAcked)
}

func (o *Outbox) transition(symbol string, seq uint64, to State) error {
	e, err := o.Get(symbol, seq)
	if err != nil {
		return err
	}
	e.State = to
	if to == StateSent {
		e.Retries++
	}
	e.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(symbol, seq), encodeValue(&e), pebble.Sync)
}

// ScanUndelivered visits every entry not yet acked, in key order.
// Entries marked SENT are included: a SENT entry after restart means the
// broker ack was never observed, so it is resent.
func (o *Outbox) ScanUndelivered(fn func(*Entry) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("fill/"),
		UpperBound: []byte("fill/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var e Entry
		if err := decodeValue(iter.Value(), &e); err != nil {
			return err
		}
		if e.State == StateAcked {
			continue
		}
		symbol, seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		e.Symbol, e.Seq = symbol, seq
		if err := fn(&e); err != nil {
			return err
		}
	}
	return iter.Error()
}

// DeleteAckedUpTo garbage-collects acked fills for symbol at or below seq.
func (o *Outbox) DeleteAckedUpTo(symbol string, seq uint64) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("fill/" + symbol + "/"),
		UpperBound: keyFor(symbol, seq+1),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if len(iter.Value()) > 0 && State(iter.Value()[0]) == StateAcked {
			key := append([]byte(nil), iter.Key()...)
			if err := o.db.Delete(key, pebble.Sync); err != nil {
				return err
			}
		}
	}
	return iter.Error()
}

func keyFor(symbol string, seq uint64) []byte {
	return []byte(fmt.Sprintf("fill/%s/%020d", symbol, seq))
}

func parseKey(key []byte) (string, uint64, error) {
	rest, ok := bytes.CutPrefix(key, []byte("fill/"))
	if !ok {
		return "", 0, fmt.Errorf("outbox: bad key %q", key)
	}
	i := bytes.LastIndexByte(rest, '/')
	if i < 0 {
		return "", 0, fmt.Errorf("outbox: bad key %q", key)
	}
	var seq uint64
	if _, err := fmt.Sscanf(string(rest[i+1:]), "%d", &seq); err != nil {
		return "", 0, err
	}
	return string(rest[:i]), seq, nil
}
