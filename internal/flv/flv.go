// Package flv decodes the structure of Flash Video (FLV) files: the file
// header, the back-pointer/tag stream, and script-data (AMF0 subset) values.
//
// https://www.adobe.com/content/dam/acom/en/devnet/flv/video_file_format_spec_v10.pdf
package flv

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/samcharles93/binspect/pkg/bindec"
)

// Tag type codes.
const (
	tagAudio  = 8
	tagVideo  = 9
	tagScript = 18
)

// Script-data value type codes.
const (
	scriptNumber    = 0
	scriptBoolean   = 1
	scriptString    = 2
	scriptECMAArray = 8
	scriptObjectEnd = 9
)

var frameTypeName = map[uint8]string{
	1: "keyframe",
	2: "inter frame",
	3: "disposable inter frame",
	4: "generated keyframe",
	5: "video info/command frame",
}

var codecIDName = map[uint8]string{
	1: "JPEG",
	2: "Sorenson H.263",
	3: "Screen video",
	4: "On2 VP6",
	5: "On2 VP6 with alpha channel",
	6: "Screen video version 2",
	7: "AVC",
}

// Detect reports whether sig starts with the FLV signature.
func Detect(sig []byte) bool {
	return bytes.HasPrefix(sig, []byte("FLV"))
}

type decoder struct {
	*bindec.Decoder
	walk *bindec.Walker
}

// Decode walks an FLV stream: signature, header flags, then the tag loop.
func Decode(d *bindec.Decoder) error {
	q := &decoder{Decoder: d}
	q.walk = &bindec.Walker{
		Next:    q.next,
		Indexed: true,
		Handlers: map[string]bindec.Handler{
			"video":       q.videoData,
			"script data": q.scriptData,
		},
	}
	if err := q.header(); err != nil {
		return err
	}
	return bindec.InArray(q.View, "Tag", func() error {
		return q.walk.Run(q.Decoder)
	})
}

func (q *decoder) header() error {
	sig, err := q.Read(3)
	if err != nil {
		return err
	}
	if string(sig) != "FLV" {
		return fmt.Errorf("%w: not an FLV file", bindec.ErrInvalidFormat)
	}
	version, err := q.U8()
	if err != nil {
		return err
	}
	if err := q.Put("Version", version); err != nil {
		return err
	}
	tf, err := q.U8()
	if err != nil {
		return err
	}
	if tf&0b11111010 != 0 {
		return fmt.Errorf("%w: reserved type flags set: %#02x", bindec.ErrInvalidFormat, tf)
	}
	if err := q.Put("AudioTags", tf&4 != 0); err != nil {
		return err
	}
	if err := q.Put("VideoTags", tf&1 != 0); err != nil {
		return err
	}
	doff, err := q.U32()
	if err != nil {
		return err
	}
	if err := q.Put("DataOffset", doff); err != nil {
		return err
	}
	if int64(doff) < q.Pos() {
		return fmt.Errorf("%w: data offset %d inside header", bindec.ErrInvalidFormat, doff)
	}
	return q.Skip(int(int64(doff) - q.Pos()))
}

// next reads one back-pointer plus tag header. A stream ends with a final
// back-pointer after the last tag, so end of input on the back-pointer read
// or on the tag-type byte right after it is the clean terminal.
func (q *decoder) next(d *bindec.Decoder) (bindec.Record, bool, error) {
	prev, err := q.U32()
	if err != nil {
		if errors.Is(err, bindec.ErrEndOfData) {
			return bindec.Record{}, false, nil
		}
		return bindec.Record{}, false, err
	}
	tagType, err := q.U8()
	if err != nil {
		if errors.Is(err, bindec.ErrEndOfData) {
			return bindec.Record{}, false, nil
		}
		return bindec.Record{}, false, err
	}
	var typeName any
	var key string
	switch tagType {
	case tagAudio:
		key = "audio"
	case tagVideo:
		key = "video"
	case tagScript:
		key = "script data"
	default:
		key = strconv.Itoa(int(tagType))
		typeName = tagType
	}
	if typeName == nil {
		typeName = key
	}
	dataSize, err := q.ui24()
	if err != nil {
		return bindec.Record{}, false, err
	}
	timestamp, err := q.ui24()
	if err != nil {
		return bindec.Record{}, false, err
	}
	tsExt, err := q.U8()
	if err != nil {
		return bindec.Record{}, false, err
	}
	streamID, err := q.ui24()
	if err != nil {
		return bindec.Record{}, false, err
	}
	return bindec.Record{
		Type:   key,
		Length: int64(dataSize),
		Fields: []bindec.Field{
			{Name: "PreviousTagSize", Value: prev},
			{Name: "TagType", Value: typeName},
			{Name: "DataSize", Value: dataSize},
			{Name: "Timestamp", Value: timestamp},
			{Name: "TimestampExtended", Value: tsExt},
			{Name: "StreamID", Value: streamID},
		},
	}, true, nil
}

func (q *decoder) videoData(d *bindec.Decoder) error {
	return bindec.InMap(q.View, "VideoData", func() error {
		tid, err := q.U8()
		if err != nil {
			return err
		}
		frameType := tid >> 4
		codecID := tid & 0xf
		if err := q.Put("FrameType", lookup(frameTypeName, frameType)); err != nil {
			return err
		}
		return q.Put("CodecID", lookup(codecIDName, codecID))
	})
}

func (q *decoder) scriptData(d *bindec.Decoder) error {
	return bindec.InArray(q.View, "ScriptData", func() error {
		for i := 0; ; i++ {
			nt, err := q.U8()
			if err != nil {
				return err
			}
			if nt == 0 {
				endVal, err := q.U16()
				if err != nil {
					return err
				}
				if endVal != scriptObjectEnd {
					return fmt.Errorf("%w: script data end marker %d", bindec.ErrInvalidFormat, endVal)
				}
				return nil
			}
			if nt != scriptString {
				return fmt.Errorf("%w: expected string-typed script data name, got type %d", bindec.ErrInvalidFormat, nt)
			}
			name, err := q.shortString()
			if err != nil {
				return err
			}
			err = bindec.InMap(q.View, i, func() error {
				if err := q.Put("Name", name); err != nil {
					return err
				}
				vt, value, err := q.scriptValue()
				if err != nil {
					return err
				}
				if vt == scriptECMAArray {
					count := value.(uint32)
					return bindec.InMap(q.View, "Value", func() error {
						for range count {
							key, err := q.shortString()
							if err != nil {
								return err
							}
							_, ev, err := q.scriptValue()
							if err != nil {
								return err
							}
							if err := q.Put(key, ev); err != nil {
								return err
							}
						}
						return nil
					})
				}
				return q.Put("Value", value)
			})
			if err != nil {
				return err
			}
		}
	})
}

// scriptValue reads one typed AMF0 value. ECMA arrays return their element
// count; the caller reads the elements.
func (q *decoder) scriptValue() (uint8, any, error) {
	vt, err := q.U8()
	if err != nil {
		return 0, nil, err
	}
	switch vt {
	case scriptNumber:
		v, err := q.F64()
		if err != nil {
			return 0, nil, err
		}
		// Durations and sizes are stored as doubles; collapse integral
		// values for a cleaner report.
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return vt, int64(v), nil
		}
		return vt, v, nil
	case scriptBoolean:
		v, err := q.U8()
		return vt, v, err
	case scriptString:
		v, err := q.shortString()
		return vt, v, err
	case scriptECMAArray:
		v, err := q.U32()
		return vt, v, err
	default:
		return 0, nil, fmt.Errorf("%w: unsupported script value type %d", bindec.ErrInvalidFormat, vt)
	}
}

// shortString reads a u16-length-prefixed string.
func (q *decoder) shortString() (string, error) {
	n, err := q.U16()
	if err != nil {
		return "", err
	}
	b, err := q.Read(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ui24 reads a 24-bit big-endian unsigned integer.
func (q *decoder) ui24() (uint32, error) {
	hi, err := q.U8()
	if err != nil {
		return 0, err
	}
	lo, err := q.U16()
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

func lookup(names map[uint8]string, code uint8) any {
	if name, ok := names[code]; ok {
		return name
	}
	return code
}
