package broadcaster

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"

	"matchbook/infra/outbox"
)

func newTestOutbox(t *testing.T) *outbox.Outbox {
	t.Helper()
	out, err := outbox.Open(filepath.Join(t.TempDir(), "outbox"))
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { _ = out.Close() })
	return out
}

func TestDrainAcksDeliveredFills(t *testing.T) {
	out := newTestOutbox(t)
	for seq := uint64(1); seq <= 3; seq++ {
		if err := out.Put("BTCUSDT", seq, []byte(`{"v":1}`)); err != nil {
			t.Fatal(err)
		}
	}

	producer := mocks.NewSyncProducer(t, nil)
	for range 3 {
		producer.ExpectSendMessageAndSucceed()
	}

	b := New(out, producer, "fills", time.Second, zerolog.Nop())
	b.drain()

	if err := producer.Close(); err != nil {
		t.Fatalf("unmet producer expectations: %v", err)
	}
	for seq := uint64(1); seq <= 3; seq++ {
		e, err := out.Get("BTCUSDT", seq)
		if err != nil {
			t.Fatal(err)
		}
		if e.State != outbox.StateAcked {
			t.Fatalf("seq %d state = %v, want ACKED", seq, e.State)
		}
	}
}

func TestFailedSendStaysUndelivered(t *testing.T) {
	out := newTestOutbox(t)
	if err := out.Put("BTCUSDT", 1, []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := out.Put("BTCUSDT", 2, []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrBrokerNotAvailable)

	b := New(out, producer, "fills", time.Second, zerolog.Nop())
	b.drain()

	// The failed fill is SENT (attempted, unacked) and the one behind it
	// was never attempted: per-symbol order is preserved.
	e1, err := out.Get("BTCUSDT", 1)
	if err != nil {
		t.Fatal(err)
	}
	if e1.State != outbox.StateSent || e1.Retries != 1 {
		t.Fatalf("seq 1 = %v retries %d, want SENT/1", e1.State, e1.Retries)
	}
	e2, err := out.Get("BTCUSDT", 2)
	if err != nil {
		t.Fatal(err)
	}
	if e2.State != outbox.StatePending {
		t.Fatalf("seq 2 = %v, want PENDING", e2.State)
	}

	// Next pass succeeds and acks both.
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()
	b.drain()
	if err := producer.Close(); err != nil {
		t.Fatalf("unmet producer expectations: %v", err)
	}

	for seq := uint64(1); seq <= 2; seq++ {
		e, err := out.Get("BTCUSDT", seq)
		if err != nil {
			t.Fatal(err)
		}
		if e.State != outbox.StateAcked {
			t.Fatalf("seq %d state = %v, want ACKED", seq, e.State)
		}
	}
}
