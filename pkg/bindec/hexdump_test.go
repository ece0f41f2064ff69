package bindec

import (
	"strings"
	"testing"
)

func TestHexLines(t *testing.T) {
	t.Parallel()

	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	var offsets []int
	var lines []string
	for off, line := range HexLines(data) {
		offsets = append(offsets, off)
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("lines: got %d", len(lines))
	}
	if offsets[0] != 0 || offsets[1] != 16 {
		t.Fatalf("offsets: got %v", offsets)
	}
	if lines[0] != "00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f" {
		t.Fatalf("first line: got %q", lines[0])
	}
	if lines[1] != "10 11 12 13" {
		t.Fatalf("last line: got %q", lines[1])
	}
}

func TestDumpCapsAndRecordsTotalSize(t *testing.T) {
	t.Parallel()

	data := make([]byte, 300)
	s := NewTreeSink()
	if err := Dump(s, data, 0); err != nil {
		t.Fatalf("dump: %v", err)
	}
	root := s.Root()

	rendered := 0
	for _, k := range root.Keys() {
		if k == "dump_size" {
			continue
		}
		v, _ := root.Get(k)
		rendered += len(strings.Fields(v.(string)))
	}
	if rendered != DefaultDumpLimit {
		t.Fatalf("rendered bytes: got %d, want %d", rendered, DefaultDumpLimit)
	}
	v, ok := root.Get("dump_size")
	if !ok {
		t.Fatalf("missing dump_size leaf")
	}
	if v != 300 {
		t.Fatalf("dump_size: got %v", v)
	}
}

func TestDumpUnderLimitHasNoSizeLeaf(t *testing.T) {
	t.Parallel()

	s := NewTreeSink()
	if err := Dump(s, []byte{0xab, 0xcd}, 0); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if _, ok := s.Root().Get("dump_size"); ok {
		t.Fatalf("unexpected dump_size leaf")
	}
	v, ok := s.Root().Get("0000")
	if !ok {
		t.Fatalf("missing offset line")
	}
	if v != "ab cd" {
		t.Fatalf("line: got %q", v)
	}
}

func TestDumpCustomLimit(t *testing.T) {
	t.Parallel()

	s := NewTreeSink()
	data := make([]byte, 64)
	if err := Dump(s, data, 32); err != nil {
		t.Fatalf("dump: %v", err)
	}
	v, ok := s.Root().Get("dump_size")
	if !ok {
		t.Fatalf("missing dump_size leaf")
	}
	if v != 64 {
		t.Fatalf("dump_size: got %v", v)
	}
	if _, ok := s.Root().Get("0020"); ok {
		t.Fatalf("line beyond limit rendered")
	}
}
