package link

import (
	"testing"
	"time"
)

// fakeLink canned-replies a fixed reply buffer regardless of what was
// written, letting tests exercise the verify/retry path deterministically.
type fakeLink struct {
	reply   []byte
	txErr   error
	calls   int
	failFor int // fail the first N calls with txErr before succeeding
}

func (f *fakeLink) Tx(w, r []byte) error {
	f.calls++
	if f.calls <= f.failFor && f.txErr != nil {
		return f.txErr
	}
	copy(r, f.reply)
	return nil
}

type fakeIRQ struct{ status Status }

func (f *fakeIRQ) Wait(timeout time.Duration) Status { return f.status }

func TestHelloAllHappyPath(t *testing.T) {
	reply := make([]byte, 2)
	reply[0] = CRC8(reply[:0])
	reply[1] = 3
	l := &fakeLink{reply: reply}
	tr := New(l, &fakeIRQ{status: StatusSuccess}, 0)

	n, err := tr.HelloAll()
	if err != nil {
		t.Fatalf("HelloAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("got %d BMBs, want 3", n)
	}
	if tr.Health().Filled() {
		t.Fatal("bucket should not be filled after success")
	}
}

func TestWriteAllVerifiesAliveCounter(t *testing.T) {
	reg, value := byte(0x10), uint16(0x0001)
	frame := BuildWriteAllFrame(reg, value)
	frame[5] = 2 // alive counter: 2 BMBs responded
	l := &fakeLink{reply: frame}
	tr := New(l, &fakeIRQ{status: StatusSuccess}, 2)

	if err := tr.WriteAll(reg, value, 2); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
}

func TestWriteAllRejectsWrongAliveCounter(t *testing.T) {
	reg, value := byte(0x10), uint16(0x0001)
	frame := BuildWriteAllFrame(reg, value)
	frame[5] = 1 // only 1 responded, but we expect 2
	l := &fakeLink{reply: frame}
	tr := New(l, &fakeIRQ{status: StatusSuccess}, 2)

	if err := tr.WriteAll(reg, value, 2); err == nil {
		t.Fatal("expected alive-counter mismatch error")
	}
	if !tr.Health().Filled() && tr.Health().Level() == 0 {
		t.Fatal("expected bucket to register the failure")
	}
}

func TestReadAllDecodesPerDeviceWords(t *testing.T) {
	reg := byte(0x20)
	payload := []byte{0x34, 0x12, 0x78, 0x56} // two devices, little-endian words
	reply := append(append([]byte{}, payload...), 0, 2)
	reply[len(reply)-2] = CRC8(reply[:len(reply)-2])
	l := &fakeLink{reply: reply}
	tr := New(l, &fakeIRQ{status: StatusSuccess}, 2)

	words, err := tr.ReadAll(reg, 2)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if words[0] != 0x1234 || words[1] != 0x5678 {
		t.Fatalf("got %#v", words)
	}
}

func TestTransactionRetriesOnTransientFailureThenSucceeds(t *testing.T) {
	reply := make([]byte, 2)
	reply[1] = 1
	reply[0] = CRC8(reply[:0])
	l := &fakeLink{reply: reply, failFor: 2, txErr: errShortReply}
	tr := New(l, &fakeIRQ{status: StatusSuccess}, 0)

	n, err := tr.HelloAll()
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d", n)
	}
	if l.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", l.calls)
	}
}

func TestTransactionTerminalFailureFillsBucketHealth(t *testing.T) {
	l := &fakeLink{reply: make([]byte, 2), failFor: 1000, txErr: errShortReply}
	tr := New(l, &fakeIRQ{status: StatusSuccess}, 0)

	for i := 0; i < 25; i++ {
		_, _ = tr.HelloAll()
	}
	if !tr.Health().Filled() {
		t.Fatalf("expected bucket filled after repeated terminal failures (level=%d)", tr.Health().Level())
	}
}

func TestInterruptTimeoutCountsAsFailedAttempt(t *testing.T) {
	reply := make([]byte, 2)
	l := &fakeLink{reply: reply}
	tr := New(l, &fakeIRQ{status: StatusTimeout}, 0)

	_, err := tr.HelloAll()
	if err == nil {
		t.Fatal("expected failure when interrupt always times out")
	}
	if l.calls != MaxRetries {
		t.Fatalf("expected %d attempts, got %d", MaxRetries, l.calls)
	}
}
