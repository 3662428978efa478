package frame

import (
	"testing"
	"time"
)

func TestDownmixMono(t *testing.T) {
	in := []int16{10, 20, 30}
	out := downmix(in, 1)
	if len(out) != 3 || out[0] != 10 || out[2] != 30 {
		t.Fatalf("unexpected mono passthrough: %v", out)
	}
}

func TestDownmixStereo(t *testing.T) {
	in := []int16{10, 20, 30, 40} // two stereo frames: (10,20) (30,40)
	out := downmix(in, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out))
	}
	if out[0] != 15 || out[1] != 35 {
		t.Fatalf("unexpected downmix: %v", out)
	}
}

func TestChunkerAssemblesExactFrames(t *testing.T) {
	b := NewBroadcast()
	ch := b.Subscribe("test", 8)
	c := NewChunker(Low, b)
	c.Reconfigure(TargetSampleRate, 1) // same rate: resampler is a passthrough

	samples := make([]int16, FrameSize*2+100)
	for i := range samples {
		samples[i] = int16(i % 100)
	}
	c.Feed(samples, time.Now())

	got := 0
	for got < 2 {
		select {
		case f := <-ch:
			if len(f.Samples) != FrameSize {
				t.Fatalf("unexpected frame size: %d", len(f.Samples))
			}
			got++
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
}

func TestChunkerFrameIndexIsStrictlyIncreasingAndResets(t *testing.T) {
	b := NewBroadcast()
	ch := b.Subscribe("test", 8)
	c := NewChunker(Low, b)
	c.Reconfigure(TargetSampleRate, 1)

	samples := make([]int16, FrameSize*3)
	c.Feed(samples, time.Now())

	var indices []uint64
	for i := 0; i < 3; i++ {
		select {
		case f := <-ch:
			indices = append(indices, f.FrameIndex)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[i-1]+1 {
			t.Fatalf("frame_index not strictly increasing: %v", indices)
		}
	}

	// A reconfigure (simulating a capture restart) must reset frame_index.
	c.Reconfigure(TargetSampleRate, 1)
	c.Feed(samples[:FrameSize], time.Now())
	select {
	case f := <-ch:
		if f.FrameIndex != 0 {
			t.Fatalf("expected frame_index to reset to 0, got %d", f.FrameIndex)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestChunkerDoesNotEmitPartialFrameAcrossReconfigure(t *testing.T) {
	b := NewBroadcast()
	ch := b.Subscribe("test", 8)
	c := NewChunker(Low, b)
	c.Reconfigure(TargetSampleRate, 1)

	c.Feed(make([]int16, FrameSize/2), time.Now())
	c.Reconfigure(TargetSampleRate, 1) // drops the partial accumulation
	c.Feed(make([]int16, FrameSize), time.Now())

	select {
	case f := <-ch:
		if f.FrameIndex != 0 {
			t.Fatalf("expected single fresh frame at index 0, got %d", f.FrameIndex)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	select {
	case f := <-ch:
		t.Fatalf("expected no second frame, got %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResamplerPassthroughWhenRatesMatch(t *testing.T) {
	r := newResampler(Low, 16000, 16000)
	in := []int16{1, 2, 3, 4}
	out := r.Process(in)
	if len(out) != len(in) {
		t.Fatalf("expected passthrough length %d, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("index %d: expected %d, got %d", i, in[i], out[i])
		}
	}
}

func TestResamplerDownsamplesProducesFewerSamples(t *testing.T) {
	r := newResampler(Low, 48000, 16000)
	in := make([]int16, 4800) // 100ms @ 48kHz
	for i := range in {
		in[i] = int16(1000)
	}
	var total int
	for i := 0; i < 10; i++ {
		out := r.Process(in[:480])
		total += len(out)
	}
	// 4800 input samples at 3:1 ratio should yield roughly 1600 output
	// samples; allow slack for warm-up/edge effects.
	if total < 1400 || total > 1700 {
		t.Fatalf("expected ~1600 output samples, got %d", total)
	}
}

func TestBroadcastDropsOldestOnFullSubscriber(t *testing.T) {
	b := NewBroadcast()
	ch := b.Subscribe("slow", 1)

	b.Publish(AudioFrame{FrameIndex: 1})
	b.Publish(AudioFrame{FrameIndex: 2}) // should drop frame 1

	f := <-ch
	if f.FrameIndex != 2 {
		t.Fatalf("expected frame 2 (oldest dropped), got %d", f.FrameIndex)
	}
	if b.Dropped("slow") != 1 {
		t.Fatalf("expected 1 dropped frame recorded, got %d", b.Dropped("slow"))
	}
}

func TestBroadcastMultipleSubscribersIndependent(t *testing.T) {
	b := NewBroadcast()
	a := b.Subscribe("a", 4)
	c := b.Subscribe("b", 4)

	b.Publish(AudioFrame{FrameIndex: 42})

	fa := <-a
	fc := <-c
	if fa.FrameIndex != 42 || fc.FrameIndex != 42 {
		t.Fatalf("expected both subscribers to see frame 42, got %d and %d", fa.FrameIndex, fc.FrameIndex)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcast()
	ch := b.Subscribe("temp", 1)
	b.Unsubscribe("temp")
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}
}
