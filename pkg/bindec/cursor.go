// Package bindec is a generic decoding engine for binary container files.
// It provides a position-tracking byte cursor with endianness control,
// length-bounded sub-readers for safe recursive descent into nested regions,
// and a structural sink abstraction that records decoded fields as an
// indented text report or an in-memory ordered tree. Format knowledge lives
// in external drivers that consume these primitives.
package bindec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Cursor reads fixed-width scalars from a byte source under a selectable
// byte order and tracks how many bytes it has consumed from that source.
type Cursor struct {
	r     io.Reader
	order binary.ByteOrder
	pos   int64
	stack []frame
}

// frame is a suspended (source, position) pair, one per open sub-reader.
type frame struct {
	r   io.Reader
	pos int64
}

// NewCursor returns a cursor over r decoding under the given byte order.
func NewCursor(r io.Reader, order binary.ByteOrder) *Cursor {
	return &Cursor{r: r, order: order}
}

// Pos returns the number of bytes consumed from the cursor's current source.
// Entering a sub-reader resets the count to zero for the nested region.
func (c *Cursor) Pos() int64 { return c.pos }

// Order returns the byte order currently in effect.
func (c *Cursor) Order() binary.ByteOrder { return c.order }

// Depth returns the number of sub-readers currently open.
func (c *Cursor) Depth() int { return len(c.stack) }

// Read returns exactly n bytes, advancing the position by n. It fails with
// ErrEndOfData if fewer than n bytes remain in the current source; the
// position is not advanced on failure.
func (c *Cursor) Read(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid read length %d", n)
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(c.r, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: tried to read %d bytes, only %d available", ErrEndOfData, n, got)
	}
	c.pos += int64(n)
	return buf, nil
}

// ReadAll returns all bytes remaining in the current source.
func (c *Cursor) ReadAll() ([]byte, error) {
	buf, err := io.ReadAll(c.r)
	if err != nil {
		return nil, err
	}
	c.pos += int64(len(buf))
	return buf, nil
}

// Skip consumes and discards n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.Read(n)
	return err
}

// Seek repositions the current source directly and resets the position
// counter to the absolute offset. It does not respect an enclosing
// sub-reader's bound: inside a sub-reader the offset is relative to the
// start of that bounded region, not to the file.
func (c *Cursor) Seek(offset int64) error {
	s, ok := c.r.(io.Seeker)
	if !ok {
		return fmt.Errorf("cursor source does not support seeking")
	}
	if _, err := s.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	c.pos = offset
	return nil
}

// WithOrder decodes under the given byte order for the duration of fn and
// restores the previous order on exit. Overrides do not nest.
func (c *Cursor) WithOrder(order binary.ByteOrder, fn func() error) error {
	prev := c.order
	c.order = order
	defer func() { c.order = prev }()
	return fn()
}

// U8 reads an unsigned 8-bit integer.
func (c *Cursor) U8() (uint8, error) {
	b, err := c.Read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// I8 reads a signed 8-bit integer.
func (c *Cursor) I8() (int8, error) {
	v, err := c.U8()
	return int8(v), err
}

// U16 reads an unsigned 16-bit integer.
func (c *Cursor) U16() (uint16, error) {
	b, err := c.Read(2)
	if err != nil {
		return 0, err
	}
	return c.order.Uint16(b), nil
}

// I16 reads a signed 16-bit integer.
func (c *Cursor) I16() (int16, error) {
	v, err := c.U16()
	return int16(v), err
}

// U32 reads an unsigned 32-bit integer.
func (c *Cursor) U32() (uint32, error) {
	b, err := c.Read(4)
	if err != nil {
		return 0, err
	}
	return c.order.Uint32(b), nil
}

// I32 reads a signed 32-bit integer.
func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

// U64 reads an unsigned 64-bit integer.
func (c *Cursor) U64() (uint64, error) {
	b, err := c.Read(8)
	if err != nil {
		return 0, err
	}
	return c.order.Uint64(b), nil
}

// I64 reads a signed 64-bit integer.
func (c *Cursor) I64() (int64, error) {
	v, err := c.U64()
	return int64(v), err
}

// F32 reads a 32-bit IEEE 754 float.
func (c *Cursor) F32() (float32, error) {
	u, err := c.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

// F64 reads a 64-bit IEEE 754 float.
func (c *Cursor) F64() (float64, error) {
	u, err := c.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// FourCC reads a 4-byte type tag and returns it as a string, mapping each
// byte to the corresponding Latin-1 code point so arbitrary tag bytes stay
// printable.
func (c *Cursor) FourCC() (string, error) {
	b, err := c.Read(4)
	if err != nil {
		return "", err
	}
	runes := []rune{rune(b[0]), rune(b[1]), rune(b[2]), rune(b[3])}
	return string(runes), nil
}
