package wasm

import (
	"encoding/binary"
	"math"

	werr "github.com/streamwasm/streamwasm/errors"
)

// Cursor is a growable byte buffer with a read position. Bytes may be
// appended after reads have occurred; every read method fails with
// UnexpectedEof, rather than mutating the position, when the buffer does
// not yet hold enough bytes — this is what lets a streaming parser restart
// a read once more bytes are pushed, without any other bookkeeping.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor creates an empty cursor.
func NewCursor() *Cursor {
	return &Cursor{}
}

// Push appends bytes to the buffer. The read position is unaffected.
func (c *Cursor) Push(b []byte) {
	c.buf = append(c.buf, b...)
}

// Pos returns the current read position.
func (c *Cursor) Pos() int { return c.pos }

// SeekTo restores a previously observed position, the rewind half of the
// chunk-boundary protocol used by callers composing multiple reads.
func (c *Cursor) SeekTo(pos int) { c.pos = pos }

// Len returns the number of bytes buffered so far (read or unread).
func (c *Cursor) Len() int { return len(c.buf) }

// AtEOF reports whether every buffered byte has been consumed.
func (c *Cursor) AtEOF() bool { return c.pos >= len(c.buf) }

// Rest returns the unread suffix of the buffer as a zero-copy view.
func (c *Cursor) Rest() []byte { return c.buf[c.pos:] }

// Slice returns a zero-copy view of buffered bytes [start, end), used to
// capture exactly the span an inline validation pass consumed.
func (c *Cursor) Slice(start, end int) []byte { return c.buf[start:end] }

// ReadByte returns the next byte and advances the position by one.
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, werr.UnexpectedEof()
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// ReadExact returns a zero-copy view of the next n bytes and advances the
// position by n.
func (c *Cursor) ReadExact(n int) ([]byte, error) {
	if c.pos+n > len(c.buf) {
		return nil, werr.UnexpectedEof()
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// maxLebBytes returns the number of 7-bit groups a LEB128 value of the
// given bit width can span, i.e. ceil(width/7).
func maxLebBytes(width int) int {
	return (width + 6) / 7
}

// ReadULEB32 decodes an unsigned LEB128 value into a 32-bit integer.
func (c *Cursor) ReadULEB32() (uint32, error) {
	v, err := c.readULEB(32)
	return uint32(v), err
}

// ReadULEB64 decodes an unsigned LEB128 value into a 64-bit integer.
func (c *Cursor) ReadULEB64() (uint64, error) {
	return c.readULEB(64)
}

func (c *Cursor) readULEB(width int) (uint64, error) {
	pos := c.pos
	maxBytes := maxLebBytes(width)

	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if pos >= len(c.buf) {
			return 0, werr.UnexpectedEof()
		}
		b := c.buf[pos]
		pos++

		if i == maxBytes-1 {
			// Final permissible byte: continuation bit set is an overflow;
			// any data bit beyond width is a non-canonical encoding.
			if b&0x80 != 0 {
				return 0, werr.Leb128TooLarge(width)
			}
			usable := width - i*7
			if usable < 7 && (b&^((1<<uint(usable))-1)) != 0 {
				return 0, werr.Leb128TooLong()
			}
			result |= uint64(b&0x7f) << shift
			c.pos = pos
			return result, nil
		}

		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			c.pos = pos
			return result, nil
		}
		shift += 7
	}
}

// ReadSLEB32 decodes a signed LEB128 value into a 32-bit integer.
func (c *Cursor) ReadSLEB32() (int32, error) {
	v, err := c.readSLEB(32)
	return int32(v), err
}

// ReadSLEB64 decodes a signed LEB128 value into a 64-bit integer.
func (c *Cursor) ReadSLEB64() (int64, error) {
	return c.readSLEB(64)
}

func (c *Cursor) readSLEB(width int) (int64, error) {
	pos := c.pos
	maxBytes := maxLebBytes(width)

	var result int64
	var shift uint
	var b byte
	for i := 0; ; i++ {
		if pos >= len(c.buf) {
			return 0, werr.UnexpectedEof()
		}
		b = c.buf[pos]
		pos++

		if i == maxBytes-1 {
			if b&0x80 != 0 {
				return 0, werr.Leb128TooLarge(width)
			}
			usable := width - i*7
			if usable < 7 {
				mask := byte(1<<uint(usable)) - 1
				signBit := byte(1 << uint(usable-1))
				low := b & mask
				high := b &^ mask
				// Every discarded high bit must equal the value's sign bit.
				if low&signBit != 0 {
					if high != ^mask&0x7f {
						return 0, werr.Leb128TooLong()
					}
				} else if high != 0 {
					return 0, werr.Leb128TooLong()
				}
			}
			result |= int64(b&0x7f) << shift
			shift += 7
			c.pos = pos
			if shift < 64 && b&0x40 != 0 {
				result |= ^int64(0) << shift
			}
			return result, nil
		}

		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			c.pos = pos
			if shift < 64 && b&0x40 != 0 {
				result |= ^int64(0) << shift
			}
			return result, nil
		}
	}
}

// ReadFloat32 reads a little-endian 32-bit float.
func (c *Cursor) ReadFloat32() (float32, error) {
	b, err := c.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// ReadFloat64 reads a little-endian 64-bit float.
func (c *Cursor) ReadFloat64() (float64, error) {
	b, err := c.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}
