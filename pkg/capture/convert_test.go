package capture

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestConvertI16Passthrough(t *testing.T) {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint16(raw[0:2], uint16(int16(-100)))
	binary.LittleEndian.PutUint16(raw[2:4], uint16(int16(200)))
	dst := make([]int16, 2)
	n, err := convertToI16(FormatI16, raw, dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 || dst[0] != -100 || dst[1] != 200 {
		t.Fatalf("unexpected result: n=%d dst=%v", n, dst)
	}
}

func TestConvertF32ClampsAndScales(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:4], math.Float32bits(1.5)) // clamps to 1.0
	binary.LittleEndian.PutUint32(raw[4:8], math.Float32bits(-0.5))
	dst := make([]int16, 2)
	n, err := convertToI16(FormatF32, raw, dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 samples, got %d", n)
	}
	if dst[0] != 32767 {
		t.Errorf("expected clamp to 32767, got %d", dst[0])
	}
	want := int16(math.Round(-0.5 * 32767))
	if dst[1] != want {
		t.Errorf("expected %d, got %d", want, dst[1])
	}
}

func TestConvertU16Midpoint(t *testing.T) {
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, 32768) // midpoint -> 0
	dst := make([]int16, 1)
	n, err := convertToI16(FormatU16, raw, dst)
	if err != nil || n != 1 {
		t.Fatalf("unexpected result: n=%d err=%v", n, err)
	}
	if dst[0] != 0 {
		t.Errorf("expected 0, got %d", dst[0])
	}
}

func TestConvertU32Midpoint(t *testing.T) {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, 1<<31) // midpoint -> 0
	dst := make([]int16, 1)
	n, err := convertToI16(FormatU32, raw, dst)
	if err != nil || n != 1 {
		t.Fatalf("unexpected result: n=%d err=%v", n, err)
	}
	if dst[0] != 0 {
		t.Errorf("expected 0, got %d", dst[0])
	}
}

func TestConvertUnsupportedFormat(t *testing.T) {
	_, err := convertToI16(FormatUnsupported, nil, nil)
	if err != ErrFormatNotSupported {
		t.Fatalf("expected ErrFormatNotSupported, got %v", err)
	}
}
