package frame

import "math"

// resampler converts a stream of mono int16 samples from one rate to
// another, maintaining phase and a short lookback window across calls so
// there is no discontinuity at call boundaries. Low uses linear
// interpolation (cheap, some aliasing); Balanced and High use
// Hann-windowed sinc interpolation with increasing kernel half-width, per
// spec §4.4's Low/Balanced/Quality presets.
type resampler struct {
	quality  Quality
	fromRate uint32
	toRate   uint32
	ratio    float64 // input samples per output sample

	halfWidth int

	// buf holds halfWidth+1 samples of lookback followed by all input
	// samples not yet fully consumed. phase is the fractional position of
	// the next output sample within buf.
	buf   []float64
	phase float64
}

const sincHalfWidthBalanced = 4
const sincHalfWidthHigh = 16

func newResampler(q Quality, fromRate, toRate uint32) *resampler {
	if fromRate == 0 {
		fromRate = toRate
	}
	halfWidth := 1
	switch q {
	case Balanced:
		halfWidth = sincHalfWidthBalanced
	case High:
		halfWidth = sincHalfWidthHigh
	}
	return &resampler{
		quality:   q,
		fromRate:  fromRate,
		toRate:    toRate,
		ratio:     float64(fromRate) / float64(toRate),
		halfWidth: halfWidth,
		// Seed with halfWidth+1 zeros so the first real samples already
		// have a full lookback window; phase starts at that offset.
		buf:   make([]float64, halfWidth+1),
		phase: float64(halfWidth + 1),
	}
}

// Process appends in to the internal buffer and returns every output
// sample whose interpolation window is now fully available.
func (r *resampler) Process(in []int16) []int16 {
	if r.fromRate == r.toRate {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}

	for _, s := range in {
		r.buf = append(r.buf, float64(s))
	}

	var out []int16
	for {
		hi := int(math.Ceil(r.phase)) + r.halfWidth
		if hi >= len(r.buf) {
			break
		}
		lo := int(math.Floor(r.phase)) - r.halfWidth
		if lo < 0 {
			break
		}

		var v float64
		if r.quality == Low {
			v = linearInterp(r.buf, r.phase)
		} else {
			v = sincInterp(r.buf, r.phase, r.halfWidth)
		}
		out = append(out, clampI16(v))
		r.phase += r.ratio
	}

	// Slide the buffer forward, keeping halfWidth+1 samples of lookback
	// before the next unconsumed position.
	keepFrom := int(math.Floor(r.phase)) - r.halfWidth - 1
	if keepFrom > 0 {
		if keepFrom > len(r.buf) {
			keepFrom = len(r.buf)
		}
		r.buf = append([]float64(nil), r.buf[keepFrom:]...)
		r.phase -= float64(keepFrom)
	}

	return out
}

func linearInterp(buf []float64, pos float64) float64 {
	i := int(math.Floor(pos))
	frac := pos - float64(i)
	if i+1 >= len(buf) {
		return buf[len(buf)-1]
	}
	return buf[i]*(1-frac) + buf[i+1]*frac
}

func sincInterp(buf []float64, pos float64, halfWidth int) float64 {
	center := int(math.Floor(pos))
	var sum float64
	for k := center - halfWidth; k <= center+halfWidth+1; k++ {
		if k < 0 || k >= len(buf) {
			continue
		}
		x := pos - float64(k)
		sum += buf[k] * sincWindowed(x, float64(halfWidth+1))
	}
	return sum
}

// sincWindowed is a Hann-windowed sinc kernel.
func sincWindowed(x float64, width float64) float64 {
	if x == 0 {
		return 1
	}
	if math.Abs(x) >= width {
		return 0
	}
	sinc := math.Sin(math.Pi*x) / (math.Pi * x)
	window := 0.5 * (1 + math.Cos(math.Pi*x/width))
	return sinc * window
}

func clampI16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(math.Round(v))
}
