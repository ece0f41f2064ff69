// Package qt decodes the atom structure of QuickTime (.mov) and ISO media
// files: size+fourcc headers, recursive container atoms, and the field
// layouts of the common movie/track/sample-table atoms.
//
// https://developer.apple.com/library/archive/documentation/QuickTime/QTFF/QTFFPreface/qtffPreface.html
package qt

import (
	"errors"
	"fmt"

	"github.com/samcharles93/binspect/pkg/bindec"
)

// atomHeaderSize is the fixed size+fourcc prefix of every atom.
const atomHeaderSize = 8

// topLevelAtoms are fourcc tags that legally open a file; used for
// signature detection since the format has no magic of its own.
var topLevelAtoms = map[string]bool{
	"ftyp": true,
	"moov": true,
	"mdat": true,
	"free": true,
	"skip": true,
	"wide": true,
	"pnot": true,
}

// Detect reports whether sig opens with a plausible top-level atom header.
func Detect(sig []byte) bool {
	if len(sig) < atomHeaderSize {
		return false
	}
	return topLevelAtoms[string(sig[4:8])]
}

type decoder struct {
	*bindec.Decoder
	walk *bindec.Walker
}

// Decode walks top-level atoms until end of input or a zero-size sentinel.
func Decode(d *bindec.Decoder) error {
	q := &decoder{Decoder: d}
	q.walk = &bindec.Walker{Next: q.next}
	q.walk.Handlers = map[string]bindec.Handler{
		"moov": q.container,
		"trak": q.container,
		"mdia": q.container,
		"minf": q.container,
		"stbl": q.container,
		"udta": q.container,
		"dinf": q.container,
		"tkhd": q.tkhd,
		"hdlr": q.hdlr,
		"mdhd": q.mdhd,
		"mvhd": q.mvhd,
		"vmhd": q.vmhd,
		"dref": q.dref,
		"stsd": q.stsd,
		"stts": q.stts,
		"stss": q.stss,
		"stsc": q.stsc,
		"stsz": q.stsz,
		"stco": q.stco,
	}
	return q.walk.Run(d)
}

func (q *decoder) next(d *bindec.Decoder) (bindec.Record, bool, error) {
	size, err := q.U32()
	if err != nil {
		if errors.Is(err, bindec.ErrEndOfData) {
			return bindec.Record{}, false, nil
		}
		return bindec.Record{}, false, err
	}
	if size == 0 {
		return bindec.Record{}, false, nil
	}
	atype, err := q.FourCC()
	if err != nil {
		if errors.Is(err, bindec.ErrEndOfData) {
			return bindec.Record{}, false, nil
		}
		return bindec.Record{}, false, err
	}
	if size < atomHeaderSize {
		return bindec.Record{}, false, fmt.Errorf("%w: atom %q size %d smaller than its header", bindec.ErrInvalidFormat, atype, size)
	}
	return bindec.Record{
		Type:   atype,
		Name:   fmt.Sprintf("'%s'", atype),
		Length: int64(size) - atomHeaderSize,
		Fields: []bindec.Field{{Name: "_size", Value: size}},
	}, true, nil
}

// container reruns the atom loop over the bounded body.
func (q *decoder) container(d *bindec.Decoder) error {
	return q.walk.Run(d)
}

// versionFlags reads the packed version/flags word common to full atoms.
func (q *decoder) versionFlags() error {
	vf, err := q.U32()
	if err != nil {
		return err
	}
	if err := q.Put("version", vf>>24); err != nil {
		return err
	}
	return q.Put("flags", vf&0xffffff)
}

func (q *decoder) tkhd(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	if err := q.putU32("creation_time"); err != nil {
		return err
	}
	if err := q.putU32("modification_time"); err != nil {
		return err
	}
	if err := q.putU32("track_id"); err != nil {
		return err
	}
	if err := q.Skip(4); err != nil { // reserved
		return err
	}
	if err := q.putU32("duration"); err != nil {
		return err
	}
	if err := q.Skip(8); err != nil { // reserved
		return err
	}
	if err := q.putU16("layer"); err != nil {
		return err
	}
	if err := q.putU16("alternate_group"); err != nil {
		return err
	}
	if err := q.putU16("volume"); err != nil {
		return err
	}
	if err := q.Skip(2); err != nil { // reserved
		return err
	}
	if err := q.matrix("matrix"); err != nil {
		return err
	}
	width, err := q.ufix32()
	if err != nil {
		return err
	}
	if err := q.Put("track_width", width); err != nil {
		return err
	}
	height, err := q.ufix32()
	if err != nil {
		return err
	}
	return q.Put("track_height", height)
}

func (q *decoder) hdlr(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	ctype, err := q.FourCC()
	if err != nil {
		return err
	}
	if err := q.Put("component_type", ctype); err != nil {
		return err
	}
	csub, err := q.FourCC()
	if err != nil {
		return err
	}
	if err := q.Put("component_subtype", csub); err != nil {
		return err
	}
	// Manufacturer, flags, and flags mask carry no structure.
	return q.Skip(12)
}

func (q *decoder) mdhd(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	for _, name := range []string{"creation_time", "modification_time", "timescale", "duration"} {
		if err := q.putU32(name); err != nil {
			return err
		}
	}
	if err := q.putU16("language"); err != nil {
		return err
	}
	return q.putU16("quality")
}

func (q *decoder) mvhd(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	for _, name := range []string{"creation_time", "modification_time", "timescale", "duration"} {
		if err := q.putU32(name); err != nil {
			return err
		}
	}
	rate, err := q.fix32(16)
	if err != nil {
		return err
	}
	if err := q.Put("preferred_rate", rate); err != nil {
		return err
	}
	// Stored as 8.8 fixed point; reported raw pending a driver that needs it.
	if err := q.putU16("preferred_volume"); err != nil {
		return err
	}
	if err := q.Skip(10); err != nil { // reserved
		return err
	}
	if err := q.matrix("matrix"); err != nil {
		return err
	}
	for _, name := range []string{
		"preview_time", "poster_time", "poster_duration",
		"selection_time", "selection_duration", "current_time", "next_track_id",
	} {
		if err := q.putU32(name); err != nil {
			return err
		}
	}
	return nil
}

func (q *decoder) vmhd(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	if err := q.putU16("graphics_mode"); err != nil {
		return err
	}
	var rgb [3]uint16
	for i := range rgb {
		v, err := q.U16()
		if err != nil {
			return err
		}
		rgb[i] = v
	}
	return q.Put("opcolor", fmt.Sprintf("(%d, %d, %d)", rgb[0], rgb[1], rgb[2]))
}

func (q *decoder) dref(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	nent, err := q.U32()
	if err != nil {
		return err
	}
	return bindec.InArray(q.View, "entries", func() error {
		for i := range int(nent) {
			err := bindec.InMap(q.View, i, func() error {
				esize, err := q.U32()
				if err != nil {
					return err
				}
				etype, err := q.FourCC()
				if err != nil {
					return err
				}
				if err := q.Put("type", etype); err != nil {
					return err
				}
				if err := q.versionFlags(); err != nil {
					return err
				}
				if esize < 12 {
					return fmt.Errorf("%w: dref entry size %d", bindec.ErrInvalidFormat, esize)
				}
				edata, err := q.Read(int(esize) - 12)
				if err != nil {
					return err
				}
				if len(edata) > 0 {
					return q.Dump(edata)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (q *decoder) stsd(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	nent, err := q.U32()
	if err != nil {
		return err
	}
	for i := range int(nent) {
		err := bindec.InMap(q.View, fmt.Sprintf("entry[%d]", i), func() error {
			esize, err := q.U32()
			if err != nil {
				return err
			}
			if err := q.Put("size", esize); err != nil {
				return err
			}
			format, err := q.FourCC()
			if err != nil {
				return err
			}
			if err := q.Put("format", format); err != nil {
				return err
			}
			if err := q.Skip(6); err != nil { // reserved
				return err
			}
			if err := q.putU16("data_reference_index"); err != nil {
				return err
			}
			if esize < 16 {
				return fmt.Errorf("%w: sample description size %d", bindec.ErrInvalidFormat, esize)
			}
			data, err := q.Read(int(esize) - 16)
			if err != nil {
				return err
			}
			return q.Dump(data)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *decoder) stts(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	nent, err := q.U32()
	if err != nil {
		return err
	}
	for i := range int(nent) {
		err := bindec.InMap(q.View, fmt.Sprintf("entry[%d]", i), func() error {
			if err := q.putU32("sample_count"); err != nil {
				return err
			}
			return q.putU32("sample_duration")
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *decoder) stss(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	nent, err := q.U32()
	if err != nil {
		return err
	}
	for i := range int(nent) {
		if err := q.putU32(fmt.Sprintf("sample[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (q *decoder) stsc(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	nent, err := q.U32()
	if err != nil {
		return err
	}
	for i := range int(nent) {
		if err := q.putU32(fmt.Sprintf("sample[%d].first", i)); err != nil {
			return err
		}
		if err := q.putU32(fmt.Sprintf("sample[%d].samples", i)); err != nil {
			return err
		}
		if err := q.putU32(fmt.Sprintf("sample[%d].descID", i)); err != nil {
			return err
		}
	}
	return nil
}

func (q *decoder) stsz(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	sampSize, err := q.U32()
	if err != nil {
		return err
	}
	if err := q.Put("sample_size", sampSize); err != nil {
		return err
	}
	if sampSize != 0 {
		// Fixed sample size; any trailing bytes land in the remainder dump.
		return nil
	}
	nent, err := q.U32()
	if err != nil {
		return err
	}
	if err := q.Put("nent", nent); err != nil {
		return err
	}
	for i := range int(nent) {
		if err := q.putU32(fmt.Sprintf("size[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (q *decoder) stco(d *bindec.Decoder) error {
	if err := q.versionFlags(); err != nil {
		return err
	}
	nent, err := q.U32()
	if err != nil {
		return err
	}
	for i := range int(nent) {
		if err := q.putU32(fmt.Sprintf("offset[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// matrix reads the 3x3 transformation matrix: rows of two 16.16 values and
// one 2.30 value.
func (q *decoder) matrix(name string) error {
	for row := range 3 {
		v0, err := q.fix32(16)
		if err != nil {
			return err
		}
		v1, err := q.fix32(16)
		if err != nil {
			return err
		}
		v2, err := q.fix32(30)
		if err != nil {
			return err
		}
		if err := q.Put(fmt.Sprintf("%s_%d", name, row), fmt.Sprintf("( %8g %8g %8g )", v0, v1, v2)); err != nil {
			return err
		}
	}
	return nil
}

// fix32 reads a signed fixed-point value with the given fraction bits.
func (q *decoder) fix32(fracBits uint) (float64, error) {
	v, err := q.I32()
	if err != nil {
		return 0, err
	}
	return float64(v) / float64(int64(1)<<fracBits), nil
}

// ufix32 reads an unsigned 16.16 fixed-point value.
func (q *decoder) ufix32() (float64, error) {
	v, err := q.U32()
	if err != nil {
		return 0, err
	}
	return float64(v) / 65536, nil
}

func (q *decoder) putU32(name string) error {
	v, err := q.U32()
	if err != nil {
		return err
	}
	return q.Put(name, v)
}

func (q *decoder) putU16(name string) error {
	v, err := q.U16()
	if err != nil {
		return err
	}
	return q.Put(name, v)
}
