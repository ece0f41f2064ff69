// Package jpeg decodes the marker/segment structure of JPEG (JFIF) files,
// including the entropy-coded scan data that follows an SOS segment.
//
// https://en.wikipedia.org/wiki/JPEG
package jpeg

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/samcharles93/binspect/pkg/bindec"
)

var markerName = map[uint8]string{
	0xC0: "SOF0",
	0xC2: "SOF2",
	0xC4: "DHT",
	0xD0: "RST0",
	0xD1: "RST1",
	0xD2: "RST2",
	0xD3: "RST3",
	0xD4: "RST4",
	0xD5: "RST5",
	0xD6: "RST6",
	0xD7: "RST7",
	0xD8: "SOI",
	0xD9: "EOI",
	0xDA: "SOS",
	0xDB: "DQT",
	0xDD: "DRI",
	0xE0: "APP0",
	0xE1: "APP1",
	0xE2: "APP2",
	0xE3: "APP3",
	0xE4: "APP4",
	0xE5: "APP5",
	0xE6: "APP6",
	0xE7: "APP7",
	0xE8: "APP8",
	0xE9: "APP9",
	0xEA: "APP10",
	0xEB: "APP11",
	0xEC: "APP12",
	0xED: "APP13",
	0xEE: "APP14",
	0xEF: "APP15",
	0xFE: "COM",
}

var componentName = map[uint8]string{
	1: "Y",
	2: "Cb",
	3: "Cr",
	4: "I",
	5: "Q",
}

// Detect reports whether sig starts with the SOI marker.
func Detect(sig []byte) bool {
	return bytes.HasPrefix(sig, []byte{0xff, 0xd8})
}

type decoder struct {
	*bindec.Decoder
	walk *bindec.Walker

	// scan is set after an SOS segment: the next header read must first
	// consume the entropy-coded data that follows it.
	scan bool
	// pending holds a marker code already consumed by the entropy scan.
	pending *uint8
}

// Decode walks the marker stream from SOI to end of input.
func Decode(d *bindec.Decoder) error {
	q := &decoder{Decoder: d}
	q.walk = &bindec.Walker{
		Next: q.next,
		Handlers: map[string]bindec.Handler{
			"APP0": q.app0,
			"DQT":  q.dqt,
			"SOF0": q.sof0,
			"DHT":  q.dht,
			"SOS":  q.sos,
		},
	}
	return q.walk.Run(d)
}

func (q *decoder) next(d *bindec.Decoder) (bindec.Record, bool, error) {
	if q.scan {
		q.scan = false
		done, err := q.entropyCoded()
		if err != nil {
			return bindec.Record{}, false, err
		}
		if done {
			return bindec.Record{}, false, nil
		}
	}

	var marker uint8
	if q.pending != nil {
		marker = *q.pending
		q.pending = nil
	} else {
		ff, err := q.U8()
		if err != nil {
			if errors.Is(err, bindec.ErrEndOfData) {
				return bindec.Record{}, false, nil
			}
			return bindec.Record{}, false, err
		}
		if ff != 0xff {
			return bindec.Record{}, false, fmt.Errorf("%w: expected marker byte 0xff, found %#02x", bindec.ErrInvalidFormat, ff)
		}
		var mErr error
		marker, mErr = q.U8()
		if mErr != nil {
			if errors.Is(mErr, bindec.ErrEndOfData) {
				return bindec.Record{}, false, nil
			}
			return bindec.Record{}, false, mErr
		}
	}

	name, known := markerName[marker]
	if !known {
		name = fmt.Sprintf("%#02X", marker)
	}

	// RST0-RST7, SOI, and EOI are bare markers with no length field.
	if marker >= 0xd0 && marker <= 0xd9 {
		return bindec.Record{Type: name, Name: name}, true, nil
	}

	size, err := q.U16()
	if err != nil {
		return bindec.Record{}, false, err
	}
	if size < 2 {
		return bindec.Record{}, false, fmt.Errorf("%w: segment length %d shorter than its own length field", bindec.ErrInvalidFormat, size)
	}
	if name == "SOS" {
		q.scan = true
	}
	return bindec.Record{
		Type:   name,
		Name:   name,
		Length: int64(size) - 2,
		Fields: []bindec.Field{{Name: "_size", Value: fmt.Sprintf("%#x", size)}},
	}, true, nil
}

// entropyCoded consumes the scan data after an SOS segment, honoring 0xFF00
// byte stuffing and embedded restart markers, and reports it as a capped
// dump. It stops at the first real marker, which is stashed for the next
// header read. done is true when the input ended inside the scan.
func (q *decoder) entropyCoded() (done bool, err error) {
	var data []byte
	for {
		b, err := q.U8()
		if err != nil {
			if errors.Is(err, bindec.ErrEndOfData) {
				return true, q.dumpScan(data)
			}
			return false, err
		}
		if b != 0xff {
			data = append(data, b)
			continue
		}
		m, err := q.U8()
		if err != nil {
			if errors.Is(err, bindec.ErrEndOfData) {
				return true, q.dumpScan(append(data, 0xff))
			}
			return false, err
		}
		switch {
		case m == 0x00:
			data = append(data, 0xff)
		case m >= 0xd0 && m <= 0xd7:
			data = append(data, 0xff, m)
		default:
			q.pending = &m
			return false, q.dumpScan(data)
		}
	}
}

func (q *decoder) dumpScan(data []byte) error {
	return bindec.InMap(q.View, "entropy_coded", func() error {
		return q.Dump(data)
	})
}

func (q *decoder) app0(d *bindec.Decoder) error {
	ident, err := q.stringz()
	if err != nil {
		return err
	}
	if err := q.Put("identifier", ident); err != nil {
		return err
	}
	if ident != "JFIF" {
		return nil
	}
	vh, err := q.U8()
	if err != nil {
		return err
	}
	vl, err := q.U8()
	if err != nil {
		return err
	}
	if err := q.Put("version", fmt.Sprintf("%d.%02d", vh, vl)); err != nil {
		return err
	}
	units, err := q.U8()
	if err != nil {
		return err
	}
	if err := q.Put("units", units); err != nil {
		return err
	}
	xdensity, err := q.U16()
	if err != nil {
		return err
	}
	if err := q.Put("xdensity", xdensity); err != nil {
		return err
	}
	ydensity, err := q.U16()
	if err != nil {
		return err
	}
	if err := q.Put("ydensity", ydensity); err != nil {
		return err
	}
	xthumb, err := q.U8()
	if err != nil {
		return err
	}
	ythumb, err := q.U8()
	if err != nil {
		return err
	}
	if err := q.Put("xthumbnail", xthumb); err != nil {
		return err
	}
	if err := q.Put("ythumbnail", ythumb); err != nil {
		return err
	}
	if pixels := int(xthumb) * int(ythumb); pixels > 0 {
		rgb, err := q.Read(3 * pixels)
		if err != nil {
			return err
		}
		return bindec.InMap(q.View, "thumbnail_rgb", func() error {
			return q.Dump(rgb)
		})
	}
	return nil
}

func (q *decoder) dqt(d *bindec.Decoder) error {
	qt, err := q.U8()
	if err != nil {
		return err
	}
	if err := q.Put("qt_number", qt&0x0f); err != nil {
		return err
	}
	return q.Put("precision", 8<<(qt>>4))
}

func (q *decoder) sof0(d *bindec.Decoder) error {
	bpp, err := q.U8()
	if err != nil {
		return err
	}
	if err := q.Put("bpp", bpp); err != nil {
		return err
	}
	width, err := q.U16()
	if err != nil {
		return err
	}
	if err := q.Put("width", width); err != nil {
		return err
	}
	height, err := q.U16()
	if err != nil {
		return err
	}
	if err := q.Put("height", height); err != nil {
		return err
	}
	ncc, err := q.U8()
	if err != nil {
		return err
	}
	return bindec.InArray(q.View, "colour_component", func() error {
		for i := range int(ncc) {
			err := bindec.InMap(q.View, i, func() error {
				id, err := q.U8()
				if err != nil {
					return err
				}
				if err := q.Put("id", id); err != nil {
					return err
				}
				vh, err := q.U8()
				if err != nil {
					return err
				}
				if err := q.Put("vert_factor", vh&0xf); err != nil {
					return err
				}
				if err := q.Put("horz_factor", vh>>4); err != nil {
					return err
				}
				quant, err := q.U8()
				if err != nil {
					return err
				}
				return q.Put("quant_table", quant)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (q *decoder) dht(d *bindec.Decoder) error {
	ht, err := q.U8()
	if err != nil {
		return err
	}
	if err := q.Put("nht", ht&0xf); err != nil {
		return err
	}
	tableType := "DC"
	if ht&0x10 != 0 {
		tableType = "AC"
	}
	if err := q.Put("type", tableType); err != nil {
		return err
	}
	total := 0
	err = bindec.InArray(q.View, "nsym", func() error {
		for i := range 16 {
			nsym, err := q.U8()
			if err != nil {
				return err
			}
			if err := q.Put(i, nsym); err != nil {
				return err
			}
			total += int(nsym)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// The symbol bytes themselves land in the remainder dump.
	return q.Put("_totsym", total)
}

func (q *decoder) sos(d *bindec.Decoder) error {
	ncomp, err := q.U8()
	if err != nil {
		return err
	}
	if err := q.Put("ncomp", ncomp); err != nil {
		return err
	}
	return bindec.InArray(q.View, "components", func() error {
		for i := range int(ncomp) {
			err := bindec.InMap(q.View, i, func() error {
				cid, err := q.U8()
				if err != nil {
					return err
				}
				name := any(cid)
				if n, ok := componentName[cid]; ok {
					name = n
				}
				if err := q.Put("cid", name); err != nil {
					return err
				}
				huff, err := q.U8()
				if err != nil {
					return err
				}
				if err := q.Put("AC_table", huff&0x0f); err != nil {
					return err
				}
				return q.Put("DC_table", huff>>4)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// stringz reads a NUL-terminated string.
func (q *decoder) stringz() (string, error) {
	var out []byte
	for {
		b, err := q.U8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
}
