package service

import (
	"context"
	"time"

	"matchbook/infra/metrics"
	"matchbook/snapshot"
)

// RunSnapshotJob periodically captures the book and prunes log segments
// the snapshot has made redundant. A capture fires when interval has
// elapsed since the last one, or sooner once everyEvents new events have
// accumulated. A failed capture is logged and retried on the next tick;
// the log keeps growing in the meantime, so nothing is lost.
func (e *Engine) RunSnapshotJob(ctx context.Context, w *snapshot.Writer, interval time.Duration, everyEvents uint64) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastSeq := e.seq.Current()
	lastAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			// Final capture shrinks the replay tail for the next start.
			e.snapshotOnce(w)
			return
		case now := <-ticker.C:
			cur := e.seq.Current()
			due := now.Sub(lastAt) >= interval ||
				(everyEvents > 0 && cur-lastSeq >= everyEvents)
			if !due || cur == lastSeq {
				continue
			}
			if seq, ok := e.snapshotOnce(w); ok {
				lastSeq = seq
				lastAt = now
			}
		}
	}
}

// snapshotOnce captures under the read lock, writes off-lock, and only
// then prunes the log. Matching keeps running while the blob is encoded.
func (e *Engine) snapshotOnce(w *snapshot.Writer) (uint64, bool) {
	e.mu.RLock()
	seq := e.seq.Current()
	snap := snapshot.Capture(e.book, seq)
	e.mu.RUnlock()

	if err := w.Write(snap); err != nil {
		metrics.SnapshotsTotal.WithLabelValues(e.symbol, "error").Inc()
		e.log.Error().Err(err).Uint64("seq", seq).Msg("snapshot write failed")
		return 0, false
	}
	if err := e.wal.TruncateBefore(seq); err != nil {
		e.log.Warn().Err(err).Uint64("seq", seq).Msg("log truncation failed")
	}

	metrics.SnapshotsTotal.WithLabelValues(e.symbol, "ok").Inc()
	e.log.Info().Uint64("seq", seq).Int("orders", len(snap.Orders)).Msg("snapshot written")
	return seq, true
}
