package service

import (
	"fmt"

	"matchbook/domain/book"
	"matchbook/infra/logging"
	"matchbook/infra/wal"
	"matchbook/snapshot"
)

// Recover rebuilds a symbol's state before it takes traffic: latest
// snapshot first, then every logged event past it, in order. With no
// snapshot the whole log replays from sequence zero. Returns the last
// applied sequence; the caller seeds the sequencer with it.
func Recover(b *book.Book, walDir, snapDir string, log logging.Logger) (uint64, error) {
	snap, err := snapshot.Load(snapDir, b.Symbol())
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	if err := snapshot.Restore(b, snap); err != nil {
		return 0, fmt.Errorf("restore snapshot: %w", err)
	}

	lastSeq := snap.Seq
	replayed := 0
	walLast, err := wal.Replay(walDir, func(rec *wal.Record) error {
		if rec.Seq <= snap.Seq {
			return nil
		}
		ev, err := decodeEvent(rec)
		if err != nil {
			return err
		}
		if err := b.ApplyEvent(&ev); err != nil {
			return err
		}
		replayed++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replay log: %w", err)
	}
	if walLast > lastSeq {
		lastSeq = walLast
	}

	if err := b.Validate(); err != nil {
		return 0, fmt.Errorf("recovered state invalid: %w", err)
	}

	log.Info().
		Str("symbol", b.Symbol()).
		Uint64("snapshot_seq", snap.Seq).
		Int("replayed_events", replayed).
		Uint64("last_seq", lastSeq).
		Int("resting_orders", b.Len()).
		Msg("recovery complete")
	return lastSeq, nil
}
