package capture

import "math"

// SampleFormat enumerates the native sample encodings the capture thread
// knows how to fold down to i16. Anything else is FormatUnsupported.
type SampleFormat int

const (
	FormatI16 SampleFormat = iota
	FormatF32
	FormatF64
	FormatU16
	FormatU32
	FormatUnsupported
)

// convertToI16 implements the per-format conversion table from spec §4.3.
// dst must already be sized for len(samples); it is reused across calls by
// the caller so the hot path never allocates.
func convertToI16(format SampleFormat, raw []byte, dst []int16) (int, error) {
	switch format {
	case FormatI16:
		n := len(raw) / 2
		for i := 0; i < n; i++ {
			dst[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		}
		return n, nil

	case FormatF32:
		n := len(raw) / 4
		for i := 0; i < n; i++ {
			bits := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
			f := math.Float32frombits(bits)
			dst[i] = f32ToI16(float64(f))
		}
		return n, nil

	case FormatF64:
		n := len(raw) / 8
		for i := 0; i < n; i++ {
			bits := uint64(0)
			for b := 0; b < 8; b++ {
				bits |= uint64(raw[8*i+b]) << (8 * b)
			}
			f := math.Float64frombits(bits)
			dst[i] = f32ToI16(f)
		}
		return n, nil

	case FormatU16:
		n := len(raw) / 2
		for i := 0; i < n; i++ {
			u := uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
			dst[i] = int16(int32(u) - 32768)
		}
		return n, nil

	case FormatU32:
		n := len(raw) / 4
		for i := 0; i < n; i++ {
			u := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
			dst[i] = int16((int64(u) - (1 << 31)) >> 16)
		}
		return n, nil

	default:
		return 0, ErrFormatNotSupported
	}
}

func f32ToI16(x float64) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(math.Round(x * 32767))
}
