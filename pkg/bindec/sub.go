package bindec

import (
	"bytes"
	"fmt"
)

// Sub carves a bounded sub-reader over exactly size bytes of the current
// source and runs fn against it. The declared span is read eagerly, so a
// truncated region fails with ErrEndOfData here instead of deep inside fn.
// While fn runs, the cursor reads from the carved region with the position
// counter reset to zero; on exit the previous source and position are
// restored unconditionally. The parent position therefore advances by
// exactly size no matter how much of the region fn consumed.
func (c *Cursor) Sub(size int64, fn func() error) error {
	if size < 0 {
		return fmt.Errorf("%w: negative region length %d", ErrInvalidFormat, size)
	}
	data, err := c.Read(int(size))
	if err != nil {
		return err
	}
	c.stack = append(c.stack, frame{r: c.r, pos: c.pos})
	c.r = bytes.NewReader(data)
	c.pos = 0
	defer func() {
		top := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		c.r = top.r
		c.pos = top.pos
	}()
	return fn()
}
