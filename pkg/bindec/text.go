package bindec

import (
	"fmt"
	"io"
	"strings"
)

// textPreview is the number of bytes a blob leaf shows inline.
const textPreview = 16

// TextSink renders decoded fields as an indented plain-text report, one line
// per leaf or scope.
type TextSink struct {
	w     io.Writer
	level int
}

// NewTextSink returns a text sink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (t *TextSink) EnterMap(name any) error   { return t.enter(name) }
func (t *TextSink) EnterArray(name any) error { return t.enter(name) }

func (t *TextSink) enter(name any) error {
	if err := t.show(fmt.Sprintf("%v:", name)); err != nil {
		return err
	}
	t.level++
	return nil
}

func (t *TextSink) Exit() error {
	t.level--
	return nil
}

func (t *TextSink) Set(name any, value any) error {
	return t.show(fmt.Sprintf("%v = %s", name, formatValue(value)))
}

func (t *TextSink) Blob(name any, data []byte) error {
	preview := data
	tail := ""
	if len(preview) > textPreview {
		preview = preview[:textPreview]
		tail = "..."
	}
	parts := make([]string, len(preview))
	for i, b := range preview {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return t.show(fmt.Sprintf("%v[%d]: %s%s", name, len(data), strings.Join(parts, " "), tail))
}

func (t *TextSink) show(line string) error {
	_, err := fmt.Fprintf(t.w, "%s%s\n", strings.Repeat("  ", t.level), line)
	return err
}

func formatValue(value any) string {
	if s, ok := value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", value)
}
