package wal

import "time"

// RecordType mirrors the book event kinds.
type RecordType uint8

const (
	RecordCreated RecordType = iota
	RecordUpdated
	RecordDeleted
)

// Record is an immutable log entry. Seq is strictly increasing across
// the whole log; Data is the payload encoded by the caller.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
