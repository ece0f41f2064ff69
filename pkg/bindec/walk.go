package bindec

import (
	"encoding/binary"
	"io"
)

// Decoder couples a cursor with the sink receiving decoded fields. Format
// drivers operate exclusively through it.
type Decoder struct {
	*Cursor

	// View receives every decoded field.
	View Sink

	// DumpLimit caps how many bytes Dump renders per region. Zero selects
	// DefaultDumpLimit.
	DumpLimit int
}

// NewDecoder returns a decoder reading from r under the given byte order and
// writing decoded fields to view.
func NewDecoder(r io.Reader, order binary.ByteOrder, view Sink) *Decoder {
	return &Decoder{Cursor: NewCursor(r, order), View: view}
}

// Put records a single leaf value.
func (d *Decoder) Put(name any, value any) error {
	return d.View.Set(name, value)
}

// Dump renders data as a capped hexdump into the current sink scope.
func (d *Decoder) Dump(data []byte) error {
	return Dump(d.View, data, d.DumpLimit)
}

// Field is a header field reported inside a record's map before its body is
// decoded.
type Field struct {
	Name  any
	Value any
}

// Record describes one length-prefixed, typed unit of a container format.
type Record struct {
	// Type is the handler lookup key.
	Type string
	// Name is the display name of the record's map scope. Known types
	// carry a human-readable name; unknown types use the identifier's
	// literal form. Ignored when the walker is Indexed.
	Name any
	// Length is the body length in bytes, header excluded.
	Length int64
	// Fields are header values recorded before the body is decoded.
	Fields []Field
}

// Handler decodes a record body. It runs against a cursor bounded to exactly
// the record's declared length and may itself run a Walker to descend into a
// nested sequence of child records.
type Handler func(d *Decoder) error

// Walker is the generalized record loop: read a length+type header, carve a
// bounded sub-reader over the body, open a map scope, dispatch to the
// handler registered for the type, then dump whatever the handler left
// unconsumed. No input byte is silently dropped, and a handler that
// under-consumes never corrupts the traversal of its siblings.
type Walker struct {
	// Next reads the next record header. ok=false terminates the loop
	// without error: end of input and a format's "no more records"
	// sentinel are the success terminals.
	Next func(d *Decoder) (rec Record, ok bool, err error)

	// Handlers maps record types to body handlers. A missing entry
	// selects Fallback, or a plain raw dump if that is nil too.
	Handlers map[string]Handler

	// Fallback, if set, runs for record types with no Handlers entry.
	Fallback Handler

	// Indexed names record scopes by their sequential position instead of
	// Record.Name, for walking inside an array scope.
	Indexed bool
}

// Run decodes records until Next reports the terminal or a decode fails.
func (w *Walker) Run(d *Decoder) error {
	for i := 0; ; i++ {
		rec, ok, err := w.Next(d)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		name := rec.Name
		if w.Indexed {
			name = i
		}
		h := w.Handlers[rec.Type]
		if h == nil {
			h = w.Fallback
		}
		err = d.Sub(rec.Length, func() error {
			return InMap(d.View, name, func() error {
				for _, f := range rec.Fields {
					if err := d.Put(f.Name, f.Value); err != nil {
						return err
					}
				}
				if h != nil {
					if err := h(d); err != nil {
						return err
					}
				}
				rest, err := d.ReadAll()
				if err != nil {
					return err
				}
				if len(rest) > 0 {
					return d.Dump(rest)
				}
				return nil
			})
		})
		if err != nil {
			return err
		}
	}
}
