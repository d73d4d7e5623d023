package snowflake

import (
	"testing"
)

// stubClock lets tests pin and advance the generator's notion of time.
type stubClock struct {
	ms int64
}

func (c *stubClock) now() int64 { return c.ms }

func newTestGenerator(t *testing.T, machineID int, clock *stubClock) *Generator {
	t.Helper()
	g, err := NewGenerator(machineID)
	if err != nil {
		t.Fatalf("NewGenerator(%d): %v", machineID, err)
	}
	g.now = clock.now
	return g
}

func TestNewGeneratorRejectsBadMachineID(t *testing.T) {
	for _, id := range []int{-1, 1024, 5000} {
		if _, err := NewGenerator(id); err == nil {
			t.Fatalf("NewGenerator(%d) succeeded, want error", id)
		}
	}
	if _, err := NewGenerator(1023); err != nil {
		t.Fatalf("NewGenerator(1023): %v", err)
	}
}

func TestGenerateFirstCallScenario(t *testing.T) {
	clock := &stubClock{ms: 500}
	g := newTestGenerator(t, 7, clock)

	id := g.Generate()
	if id.Timestamp() != 500 {
		t.Fatalf("timestamp = %d, want 500", id.Timestamp())
	}
	if id.MachineID() != 7 {
		t.Fatalf("machine = %d, want 7", id.MachineID())
	}
	if id.Sequence() != 1 {
		t.Fatalf("sequence = %d, want 1", id.Sequence())
	}
}

func TestGenerateBurstUniqueness(t *testing.T) {
	clock := &stubClock{ms: 1000}
	g := newTestGenerator(t, 3, clock)

	const n = 5000
	seen := make(map[ID]struct{}, n)
	for i := 0; i < n; i++ {
		id := g.Generate()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d at call %d", id, i+1)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateMonotonic(t *testing.T) {
	clock := &stubClock{ms: 1000}
	g := newTestGenerator(t, 3, clock)

	var last ID
	for i := 0; i < 5000; i++ {
		// Advance time unevenly to cross both overflow and repayment paths.
		if i%700 == 0 {
			clock.ms++
		}
		id := g.Generate()
		if id < last {
			t.Fatalf("call %d went backwards: %d after %d", i+1, id, last)
		}
		last = id
	}
}

func TestGenerateOverflowBorrowsNextMillisecond(t *testing.T) {
	clock := &stubClock{ms: 2000}
	g := newTestGenerator(t, 7, clock)

	// Sequences 1..2046 fit in the current millisecond.
	var id ID
	for i := 0; i < 2046; i++ {
		id = g.Generate()
	}
	if id.Timestamp() != 2000 || id.Sequence() != 2046 {
		t.Fatalf("last in-budget id = (%d, %d), want (2000, 2046)", id.Timestamp(), id.Sequence())
	}

	// The overflowing call is emitted in the borrowed millisecond.
	id = g.Generate()
	if id.Timestamp() != 2001 || id.Sequence() != 0 {
		t.Fatalf("overflow id = (%d, %d), want (2001, 0)", id.Timestamp(), id.Sequence())
	}

	// Subsequent calls keep filling the borrowed millisecond.
	id = g.Generate()
	if id.Timestamp() != 2001 || id.Sequence() != 1 {
		t.Fatalf("post-overflow id = (%d, %d), want (2001, 1)", id.Timestamp(), id.Sequence())
	}
}

func TestGenerateDebtSpansSeveralMilliseconds(t *testing.T) {
	clock := &stubClock{ms: 3000}
	g := newTestGenerator(t, 1, clock)

	timestamps := make(map[int64]int)
	for i := 0; i < 5000; i++ {
		timestamps[g.Generate().Timestamp()]++
	}
	for _, want := range []int64{3000, 3001, 3002} {
		if timestamps[want] == 0 {
			t.Fatalf("no identifiers at timestamp %d, distribution %v", want, timestamps)
		}
	}
}

func TestGenerateDebtUnwinds(t *testing.T) {
	clock := &stubClock{ms: 4000}
	g := newTestGenerator(t, 1, clock)

	// Overflow once: debt becomes 1, ids now minted in virtual ms 4001.
	for i := 0; i < 2047; i++ {
		g.Generate()
	}
	inVirtual := g.Generate()
	if inVirtual.Timestamp() != 4001 {
		t.Fatalf("expected virtual timestamp 4001, got %d", inVirtual.Timestamp())
	}

	// Real time reaches the borrowed millisecond: the sequence must keep
	// counting, not restart over already-issued pairs.
	clock.ms = 4001
	caught := g.Generate()
	if caught.Timestamp() != 4001 {
		t.Fatalf("timestamp = %d, want 4001", caught.Timestamp())
	}
	if caught.Sequence() != inVirtual.Sequence()+1 {
		t.Fatalf("sequence = %d, want continuation from %d", caught.Sequence(), inVirtual.Sequence())
	}

	// Once wall time passes the borrowed range the sequence resets.
	clock.ms = 4002
	fresh := g.Generate()
	if fresh.Timestamp() != 4002 || fresh.Sequence() != 1 {
		t.Fatalf("fresh id = (%d, %d), want (4002, 1)", fresh.Timestamp(), fresh.Sequence())
	}
}

func TestGenerateConcurrentUniqueness(t *testing.T) {
	g, err := NewGenerator(9)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	const workers = 8
	const perWorker = 2000
	results := make(chan ID, workers*perWorker)
	for w := 0; w < workers; w++ {
		go func() {
			for i := 0; i < perWorker; i++ {
				results <- g.Generate()
			}
		}()
	}

	seen := make(map[ID]struct{}, workers*perWorker)
	for i := 0; i < workers*perWorker; i++ {
		id := <-results
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
}
