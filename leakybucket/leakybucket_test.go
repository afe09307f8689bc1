package leakybucket

import "testing"

func TestBucketLatchesAndClearsWithHysteresis(t *testing.T) {
	b := New(Reference)
	for i := 0; i < 20; i++ {
		b.Failure()
	}
	if !b.Filled() {
		t.Fatalf("expected filled after 20 failures (level=%d)", b.Level())
	}
	// A handful of successes drains below FillThreshold but should stay
	// filled until ClearThreshold is crossed.
	for i := 0; i < 50; i++ {
		b.Success()
	}
	if !b.Filled() {
		t.Fatalf("should remain filled above clear threshold (level=%d)", b.Level())
	}
	for i := 0; i < 60; i++ {
		b.Success()
	}
	if b.Filled() {
		t.Fatalf("should have cleared below clear threshold (level=%d)", b.Level())
	}
}

func TestBucketSustainedOneInFiveFailureRateFills(t *testing.T) {
	// spec.md scenario 3: 1:5 failure rate over 400 transactions with the
	// reference config should latch filled.
	b := New(Reference)
	for i := 0; i < 400; i++ {
		if i%5 == 0 {
			b.Failure()
		} else {
			b.Success()
		}
	}
	if !b.Filled() {
		t.Fatalf("expected bucket filled under sustained 1:5 failure rate")
	}
}

func TestBucketNeverUnderflows(t *testing.T) {
	b := New(Reference)
	for i := 0; i < 10; i++ {
		b.Success()
	}
	if b.Level() != 0 {
		t.Fatalf("level should clamp at 0, got %d", b.Level())
	}
}
