// Package wal is the append-only event log behind the matching engine.
// Every record is framed as
//
//	[type:1][seq:8][time:8][len:4][payload][crc:4]
//
// with the CRC covering header and payload, and is fsynced before Append
// returns: nothing gets acknowledged upstream that could still be lost.
// Multi-event operations go through AppendBatch, which nests the event
// frames inside a single outer frame so an operation replays all or not
// at all after a crash mid-write.
package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// recordBatch is the outer frame type for AppendBatch. Its seq is the
// last (highest) inner event seq, so segment scans see the true maximum.
const recordBatch RecordType = 0xff

const headerSize = 1 + 8 + 8 + 4

type Config struct {
	Dir         string
	SegmentSize int64
	SegmentAge  time.Duration
}

// mu serializes appends, rotation and truncation: the snapshot job
// truncates concurrently with the matching path's appends, and rotation
// swaps the current segment under both.
type WAL struct {
	mu         sync.Mutex
	dir        string
	segSize    int64
	segAge     time.Duration
	current    *segment
	segIndex   int
	lastRotate time.Time
}

func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	idx, err := lastSegmentIndex(cfg.Dir)
	if err != nil {
		return nil, err
	}
	seg, err := openSegment(cfg.Dir, idx)
	if err != nil {
		return nil, err
	}
	segSize := cfg.SegmentSize
	if segSize <= 0 {
		segSize = 64 << 20
	}
	return &WAL{
		dir:        cfg.Dir,
		segSize:    segSize,
		segAge:     cfg.SegmentAge,
		current:    seg,
		segIndex:   idx,
		lastRotate: time.Now(),
	}, nil
}

// Append writes one record durably.
func (w *WAL) Append(r *Record) error {
	return w.write(frame(r))
}

// AppendBatch writes a group of records as one atomic unit: a torn tail
// after a crash drops the whole group, never a prefix of it.
func (w *WAL) AppendBatch(recs []*Record) error {
	switch len(recs) {
	case 0:
		return nil
	case 1:
		return w.Append(recs[0])
	}
	var inner bytes.Buffer
	for _, r := range recs {
		inner.Write(frame(r))
	}
	outer := frame(&Record{
		Type: recordBatch,
		Seq:  recs[len(recs)-1].Seq,
		Time: recs[len(recs)-1].Time,
		Data: inner.Bytes(),
	})
	return w.write(outer)
}

func (w *WAL) write(buf []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.current.append(buf); err != nil {
		return err
	}
	if err := w.current.sync(); err != nil {
		return err
	}
	if w.shouldRotate() {
		return w.rotate()
	}
	return nil
}

func frame(r *Record) []byte {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+4)
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[21:], r.Data)
	crc := CRC32(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)
	return buf
}

func (w *WAL) shouldRotate() bool {
	if w.current.offset >= w.segSize {
		return true
	}
	return w.segAge > 0 && time.Since(w.lastRotate) >= w.segAge
}

func (w *WAL) rotate() error {
	_ = w.current.close()
	w.segIndex++
	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.current.sync(); err != nil {
		return err
	}
	return w.current.close()
}

// TruncateBefore removes whole segments whose highest sequence is at or
// below seq. Called after a snapshot covering seq is durable; the open
// segment is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths, err := segmentPaths(w.dir)
	if err != nil {
		return err
	}
	currentPath := w.current.file.Name()
	for _, path := range paths {
		if path == currentPath {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}

func segmentPaths(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func lastSegmentIndex(dir string) (int, error) {
	paths, err := segmentPaths(dir)
	if err != nil || len(paths) == 0 {
		return 0, err
	}
	var idx int
	_, err = fmt.Sscanf(filepath.Base(paths[len(paths)-1]), "segment-%06d.wal", &idx)
	return idx, err
}
