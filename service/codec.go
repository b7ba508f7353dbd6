package service

import (
	"encoding/binary"
	"fmt"

	"matchbook/domain/book"
	"matchbook/infra/wal"
)

// Event payloads are fixed binary; the frame already carries kind, seq
// and time.
//
//	created: [id:8][owner:8][price:8][qty:8][side:1][type:1]
//	updated: [id:8][remaining:8]
//	deleted: [id:8]
//
// A created order's FIFO seq equals its event seq, so it is not repeated
// in the payload.
const (
	createdLen = 8 + 8 + 8 + 8 + 1 + 1
	updatedLen = 8 + 8
	deletedLen = 8
)

func encodeEvent(ev *book.Event) *wal.Record {
	switch ev.Kind {
	case book.EventCreated:
		buf := make([]byte, createdLen)
		o := ev.Order
		binary.BigEndian.PutUint64(buf[0:8], o.ID)
		binary.BigEndian.PutUint64(buf[8:16], o.Owner)
		binary.BigEndian.PutUint64(buf[16:24], uint64(o.Price))
		binary.BigEndian.PutUint64(buf[24:32], uint64(o.Qty))
		buf[32] = byte(o.Side)
		buf[33] = byte(o.Type)
		return wal.NewRecord(wal.RecordCreated, ev.Seq, buf)
	case book.EventUpdated:
		buf := make([]byte, updatedLen)
		binary.BigEndian.PutUint64(buf[0:8], ev.ID)
		binary.BigEndian.PutUint64(buf[8:16], uint64(ev.Remaining))
		return wal.NewRecord(wal.RecordUpdated, ev.Seq, buf)
	default:
		buf := make([]byte, deletedLen)
		binary.BigEndian.PutUint64(buf[0:8], ev.ID)
		return wal.NewRecord(wal.RecordDeleted, ev.Seq, buf)
	}
}

func decodeEvent(rec *wal.Record) (book.Event, error) {
	switch rec.Type {
	case wal.RecordCreated:
		if len(rec.Data) != createdLen {
			return book.Event{}, fmt.Errorf("service: created payload is %d bytes", len(rec.Data))
		}
		return book.Event{
			Kind: book.EventCreated,
			Seq:  rec.Seq,
			Order: book.Order{
				ID:    binary.BigEndian.Uint64(rec.Data[0:8]),
				Owner: binary.BigEndian.Uint64(rec.Data[8:16]),
				Price: int64(binary.BigEndian.Uint64(rec.Data[16:24])),
				Qty:   int64(binary.BigEndian.Uint64(rec.Data[24:32])),
				Seq:   rec.Seq,
				Side:  book.Side(rec.Data[32]),
				Type:  book.OrderType(rec.Data[33]),
			},
		}, nil
	case wal.RecordUpdated:
		if len(rec.Data) != updatedLen {
			return book.Event{}, fmt.Errorf("service: updated payload is %d bytes", len(rec.Data))
		}
		return book.Event{
			Kind:      book.EventUpdated,
			Seq:       rec.Seq,
			ID:        binary.BigEndian.Uint64(rec.Data[0:8]),
			Remaining: int64(binary.BigEndian.Uint64(rec.Data[8:16])),
		}, nil
	case wal.RecordDeleted:
		if len(rec.Data) != deletedLen {
			return book.Event{}, fmt.Errorf("service: deleted payload is %d bytes", len(rec.Data))
		}
		return book.Event{
			Kind: book.EventDeleted,
			Seq:  rec.Seq,
			ID:   binary.BigEndian.Uint64(rec.Data[0:8]),
		}, nil
	default:
		return book.Event{}, fmt.Errorf("service: unknown record type %d", rec.Type)
	}
}
