// Package frame resamples raw capture audio to a fixed 16kHz/512-sample
// cadence and broadcasts it to multiple in-process subscribers (spec §4.4).
package frame

import (
	"sync"
	"time"
)

const (
	// TargetSampleRate is the pipeline's only internal sample rate.
	TargetSampleRate = 16000
	// FrameSize is the fixed frame length, in samples, of every AudioFrame.
	FrameSize = 512
)

// AudioFrame is the fixed-size, fixed-rate unit the rest of the pipeline
// consumes (spec §3). Samples is an array, so every AudioFrame value,
// including each subscriber's copy sent by Broadcast, carries its own
// samples; no sample storage is shared or reused between frames.
type AudioFrame struct {
	Samples           [FrameSize]int16
	CaptureTimestamp  time.Time
	FrameIndex        uint64
	SampleRateNative  uint32
}

// Quality selects the resampler's accuracy/cost tradeoff (spec §4.4).
type Quality int

const (
	Low Quality = iota
	Balanced
	High
)

// Chunker downmixes, resamples, and assembles fixed frames from whatever
// the capture thread delivers. It is a single-owner actor: Feed is called
// only from one goroutine (pkg/runtime's ring-buffer reader).
type Chunker struct {
	quality Quality

	nativeRate uint32
	channels   uint16

	resampler *resampler

	assembling []int16 // partial frame accumulator, len < FrameSize
	frameIndex uint64

	broadcast *Broadcast
}

func NewChunker(quality Quality, broadcast *Broadcast) *Chunker {
	return &Chunker{
		quality:    quality,
		broadcast:  broadcast,
		assembling: make([]int16, 0, FrameSize),
	}
}

// Reconfigure resets the resampler state and the partial-frame accumulator
// without emitting a partial frame, and resets frame_index to 0 — spec §4.4
// "On DeviceConfig update, reset the resampler and continue without
// emitting partial frames" and §I2 "resets on every capture (re)start".
func (c *Chunker) Reconfigure(nativeRate uint32, channels uint16) {
	c.nativeRate = nativeRate
	c.channels = channels
	c.resampler = newResampler(c.quality, nativeRate, TargetSampleRate)
	c.assembling = c.assembling[:0]
	c.frameIndex = 0
}

// Feed consumes interleaved native-rate samples, downmixes to mono,
// resamples to 16kHz, and emits every complete 512-sample frame it can
// assemble on the broadcast channel.
func (c *Chunker) Feed(interleaved []int16, capturedAt time.Time) {
	if c.resampler == nil {
		return
	}
	mono := downmix(interleaved, c.channels)
	resampled := c.resampler.Process(mono)

	c.assembling = append(c.assembling, resampled...)
	for len(c.assembling) >= FrameSize {
		var f AudioFrame
		copy(f.Samples[:], c.assembling[:FrameSize])
		f.CaptureTimestamp = capturedAt
		f.FrameIndex = c.frameIndex
		f.SampleRateNative = c.nativeRate
		c.frameIndex++

		c.assembling = c.assembling[FrameSize:]
		c.broadcast.Publish(f)
	}
}

// downmix averages interleaved channels down to mono. channels == 0 or 1
// is treated as already-mono (a no-op copy).
func downmix(interleaved []int16, channels uint16) []int16 {
	if channels <= 1 {
		out := make([]int16, len(interleaved))
		copy(out, interleaved)
		return out
	}
	n := len(interleaved) / int(channels)
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var sum int32
		for ch := 0; ch < int(channels); ch++ {
			sum += int32(interleaved[i*int(channels)+ch])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// Broadcast fans one AudioFrame stream out to multiple subscribers. Each
// subscriber has its own bounded channel; a slow subscriber has its oldest
// unread frame dropped rather than blocking the producer (spec §4.4).
type Broadcast struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
}

type subscriber struct {
	ch      chan AudioFrame
	dropped uint64
}

func NewBroadcast() *Broadcast {
	return &Broadcast{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers a named consumer (e.g. "vad", "stt_tap", "meter")
// with a bounded buffer of depth. Re-subscribing with the same name
// replaces the previous subscription.
func (b *Broadcast) Subscribe(name string, depth int) <-chan AudioFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscriber{ch: make(chan AudioFrame, depth)}
	b.subscribers[name] = sub
	return sub.ch
}

// Unsubscribe removes a named consumer and closes its channel.
func (b *Broadcast) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[name]; ok {
		close(sub.ch)
		delete(b.subscribers, name)
	}
}

// Dropped reports the drop-oldest count for a named subscriber.
func (b *Broadcast) Dropped(name string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[name]; ok {
		return sub.dropped
	}
	return 0
}

// Publish fans f out to every subscriber without blocking: a full channel
// has its oldest frame dropped to make room (spec §4.4 backpressure).
func (b *Broadcast) Publish(f AudioFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- f:
		default:
			select {
			case <-sub.ch:
				sub.dropped++
			default:
			}
			select {
			case sub.ch <- f:
			default:
				sub.dropped++
			}
		}
	}
}
