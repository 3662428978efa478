package ringbuf

import "testing"

func TestWriteReadRoundTrip(t *testing.T) {
	r := New(8)
	in := []int16{1, 2, 3, 4}
	if n := r.Write(in); n != 4 {
		t.Fatalf("expected 4 written, got %d", n)
	}

	out := make([]int16, 4)
	if n := r.ReadInto(out); n != 4 {
		t.Fatalf("expected 4 read, got %d", n)
	}
	for i, v := range in {
		if out[i] != v {
			t.Errorf("sample %d: expected %d, got %d", i, v, out[i])
		}
	}
}

func TestWriteOverflowDropsAndAccounts(t *testing.T) {
	r := New(4) // rounds to 4
	r.Write([]int16{1, 2, 3, 4})
	n := r.Write([]int16{5, 6})
	if n != 0 {
		t.Fatalf("expected 0 written into a full ring, got %d", n)
	}
	if r.Dropped() != 2 {
		t.Fatalf("expected 2 dropped, got %d", r.Dropped())
	}
}

func TestReadFromEmptyReturnsZero(t *testing.T) {
	r := New(16)
	out := make([]int16, 4)
	if n := r.ReadInto(out); n != 0 {
		t.Fatalf("expected 0 read from empty ring, got %d", n)
	}
}

func TestCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := New(10)
	if r.Capacity() != 16 {
		t.Fatalf("expected capacity 16, got %d", r.Capacity())
	}
}

func TestPartialWriteWhenNearlyFull(t *testing.T) {
	r := New(4)
	r.Write([]int16{1, 2, 3})
	n := r.Write([]int16{4, 5, 6})
	if n != 1 {
		t.Fatalf("expected 1 written (only 1 slot free), got %d", n)
	}
	if r.Dropped() != 2 {
		t.Fatalf("expected 2 dropped, got %d", r.Dropped())
	}
	if r.Available() != 4 {
		t.Fatalf("expected 4 available, got %d", r.Available())
	}
}

func TestInterleavedWriteReadWraps(t *testing.T) {
	r := New(4)
	out := make([]int16, 2)
	for round := 0; round < 10; round++ {
		r.Write([]int16{int16(round), int16(round + 1)})
		n := r.ReadInto(out)
		if n != 2 {
			t.Fatalf("round %d: expected 2 read, got %d", round, n)
		}
		if out[0] != int16(round) || out[1] != int16(round+1) {
			t.Errorf("round %d: unexpected samples %v", round, out)
		}
	}
}
