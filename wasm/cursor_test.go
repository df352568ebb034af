package wasm_test

import (
	"errors"
	"testing"

	werr "github.com/streamwasm/streamwasm/errors"
	"github.com/streamwasm/streamwasm/wasm"
)

func encodeULEB(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func encodeSLEB(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func TestCursor_ULEBRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 256, 16383, 16384, 624485, 0xFFFFFFFF}
	for _, v := range values {
		c := wasm.NewCursor()
		c.Push(encodeULEB(v))
		got, err := c.ReadULEB32()
		if err != nil {
			t.Fatalf("ReadULEB32(%d): %v", v, err)
		}
		if uint64(got) != v {
			t.Errorf("got %d, want %d", got, v)
		}
	}
}

func TestCursor_SLEBRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 63, 64, -64, -65, 127, -128, 128, -129}
	for _, v := range values {
		c := wasm.NewCursor()
		c.Push(encodeSLEB(v))
		got, err := c.ReadSLEB32()
		if err != nil {
			t.Fatalf("ReadSLEB32(%d): %v", v, err)
		}
		if int64(got) != v {
			t.Errorf("got %d, want %d", got, v)
		}
	}
}

func TestCursor_ULEB64RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 0xFFFFFFFF, 0xFFFFFFFFFFFFFFFF}
	for _, v := range values {
		c := wasm.NewCursor()
		c.Push(encodeULEB(v))
		got, err := c.ReadULEB64()
		if err != nil {
			t.Fatalf("ReadULEB64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("got %d, want %d", got, v)
		}
	}
}

func TestCursor_SLEB64RoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 0x7FFFFFFFFFFFFFFF, -0x8000000000000000}
	for _, v := range values {
		c := wasm.NewCursor()
		c.Push(encodeSLEB(v))
		got, err := c.ReadSLEB64()
		if err != nil {
			t.Fatalf("ReadSLEB64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("got %d, want %d", got, v)
		}
	}
}

func TestCursor_ULEB32Overflow(t *testing.T) {
	c := wasm.NewCursor()
	c.Push([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	_, err := c.ReadULEB32()
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindLeb128TooLarge {
		t.Fatalf("got %v, want Leb128TooLarge", err)
	}
}

func TestCursor_ULEB32NonCanonical(t *testing.T) {
	// fifth byte carries bits beyond the 32-bit width
	c := wasm.NewCursor()
	c.Push([]byte{0xff, 0xff, 0xff, 0xff, 0x7f})
	_, err := c.ReadULEB32()
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindLeb128TooLong {
		t.Fatalf("got %v, want Leb128TooLong", err)
	}
}

func TestCursor_RewindOnShortRead(t *testing.T) {
	c := wasm.NewCursor()
	c.Push([]byte{0x80}) // continuation bit set, no terminating byte yet
	before := c.Pos()
	_, err := c.ReadULEB32()
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindUnexpectedEof {
		t.Fatalf("got %v, want UnexpectedEof", err)
	}
	if c.Pos() != before {
		t.Fatalf("position advanced on short read: %d != %d", c.Pos(), before)
	}

	c.Push([]byte{0x01})
	got, err := c.ReadULEB32()
	if err != nil {
		t.Fatalf("retry after push: %v", err)
	}
	if got != 128 {
		t.Fatalf("got %d, want 128", got)
	}
}

func TestCursor_ChunkSizeInvariance(t *testing.T) {
	whole := append(encodeULEB(624485), encodeULEB(1)...)

	readAll := func(chunks [][]byte) (uint32, uint32, error) {
		c := wasm.NewCursor()
		var a, b uint32
		var gotA, gotB bool
		for _, chunk := range chunks {
			c.Push(chunk)
			for {
				before := c.Pos()
				if !gotA {
					v, err := c.ReadULEB32()
					if err != nil {
						c.SeekTo(before)
						break
					}
					a, gotA = v, true
					continue
				}
				if !gotB {
					v, err := c.ReadULEB32()
					if err != nil {
						c.SeekTo(before)
						break
					}
					b, gotB = v, true
					continue
				}
				break
			}
		}
		if !gotA || !gotB {
			return 0, 0, werr.UnexpectedEof()
		}
		return a, b, nil
	}

	whole1, whole2, err := readAll([][]byte{whole})
	if err != nil {
		t.Fatalf("whole read: %v", err)
	}

	var byteChunks [][]byte
	for _, b := range whole {
		byteChunks = append(byteChunks, []byte{b})
	}
	chunked1, chunked2, err := readAll(byteChunks)
	if err != nil {
		t.Fatalf("byte-chunked read: %v", err)
	}

	if whole1 != chunked1 || whole2 != chunked2 {
		t.Fatalf("chunking changed result: whole=(%d,%d) chunked=(%d,%d)", whole1, whole2, chunked1, chunked2)
	}
}

func TestCursor_ReadExactShort(t *testing.T) {
	c := wasm.NewCursor()
	c.Push([]byte{1, 2})
	_, err := c.ReadExact(3)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindUnexpectedEof {
		t.Fatalf("got %v, want UnexpectedEof", err)
	}
	if c.Pos() != 0 {
		t.Fatalf("position advanced on short ReadExact")
	}
}

func TestCursor_FloatRoundTrip(t *testing.T) {
	c := wasm.NewCursor()
	c.Push([]byte{0, 0, 0x20, 0x41}) // 10.0f little-endian
	v, err := c.ReadFloat32()
	if err != nil {
		t.Fatalf("ReadFloat32: %v", err)
	}
	if v != 10.0 {
		t.Fatalf("got %v, want 10.0", v)
	}
}
