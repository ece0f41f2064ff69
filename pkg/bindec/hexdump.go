package bindec

import (
	"fmt"
	"iter"
	"strings"
)

// DefaultDumpLimit is the number of bytes a dump renders before capping.
const DefaultDumpLimit = 256

// dumpWidth is the number of bytes per rendered line.
const dumpWidth = 16

// HexLines yields one fixed-width line per dumpWidth bytes of data, keyed by
// the cumulative offset of the line's first byte. The sequence is finite and
// single-use.
func HexLines(data []byte) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for off := 0; off < len(data); off += dumpWidth {
			end := off + dumpWidth
			if end > len(data) {
				end = len(data)
			}
			parts := make([]string, end-off)
			for i, b := range data[off:end] {
				parts[i] = fmt.Sprintf("%02x", b)
			}
			if !yield(off, strings.Join(parts, " ")) {
				return
			}
		}
	}
}

// Dump renders data into s as offset-addressed hex line leaves. At most
// limit bytes are rendered (DefaultDumpLimit if limit is zero or negative);
// when data is longer than that, a final dump_size leaf records the original
// total length so truncation stays visible in the output tree.
func Dump(s Sink, data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultDumpLimit
	}
	capped := data
	if len(capped) > limit {
		capped = capped[:limit]
	}
	for off, line := range HexLines(capped) {
		if err := s.Set(fmt.Sprintf("%04x", off), line); err != nil {
			return err
		}
	}
	if len(data) > limit {
		return s.Set("dump_size", len(data))
	}
	return nil
}
