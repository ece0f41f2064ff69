// Package gguf decodes the header, metadata key/value table, and tensor
// descriptors of GGUF model files. Tensor data itself is not interpreted;
// its aligned start offset is reported so the payload region stays visible.
package gguf

import (
	"fmt"

	"github.com/samcharles93/binspect/pkg/bindec"
)

const magicGGUF = "GGUF"

// maxStringLen bounds metadata string and key lengths. A length beyond this
// is a corrupt or hostile file, not a plausible model name.
const maxStringLen = 1 << 24

// arrayPreviewLimit is the element count above which metadata arrays are
// summarized instead of listed. Token vocabularies run to six figures.
const arrayPreviewLimit = 16

// ValueType identifies the wire type of a metadata value.
type ValueType uint32

const (
	TypeUint8   ValueType = 0
	TypeInt8    ValueType = 1
	TypeUint16  ValueType = 2
	TypeInt16   ValueType = 3
	TypeUint32  ValueType = 4
	TypeInt32   ValueType = 5
	TypeFloat32 ValueType = 6
	TypeBool    ValueType = 7
	TypeString  ValueType = 8
	TypeArray   ValueType = 9
	TypeUint64  ValueType = 10
	TypeInt64   ValueType = 11
	TypeFloat64 ValueType = 12
)

var valueTypeNames = map[ValueType]string{
	TypeUint8:   "u8",
	TypeInt8:    "i8",
	TypeUint16:  "u16",
	TypeInt16:   "i16",
	TypeUint32:  "u32",
	TypeInt32:   "i32",
	TypeFloat32: "f32",
	TypeBool:    "bool",
	TypeString:  "string",
	TypeArray:   "array",
	TypeUint64:  "u64",
	TypeInt64:   "i64",
	TypeFloat64: "f64",
}

func (t ValueType) String() string {
	if s, ok := valueTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

// TensorType identifies the element encoding of a tensor.
type TensorType uint32

var tensorTypeNames = map[TensorType]string{
	0: "F32", 1: "F16",
	2: "Q4_0", 3: "Q4_1", 4: "Q4_2", 5: "Q4_3",
	6: "Q5_0", 7: "Q5_1", 8: "Q8_0", 9: "Q8_1",
	10: "Q2_K", 11: "Q3_K", 12: "Q4_K", 13: "Q5_K", 14: "Q6_K", 15: "Q8_K",
	16: "I8", 17: "I16", 18: "I32", 19: "I64", 20: "F64",
	30: "BF16",
}

func (t TensorType) String() string {
	if s, ok := tensorTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

// Detect reports whether sig opens with the GGUF magic.
func Detect(sig []byte) bool {
	return len(sig) >= 4 && string(sig[:4]) == magicGGUF
}

type decoder struct {
	*bindec.Decoder
	alignment uint64
}

// Decode reads the GGUF header, metadata, and tensor descriptors. All
// multi-byte values are little-endian.
func Decode(d *bindec.Decoder) error {
	q := &decoder{Decoder: d, alignment: 32}

	magic, err := q.Read(4)
	if err != nil {
		return err
	}
	if string(magic) != magicGGUF {
		return fmt.Errorf("%w: magic %q", bindec.ErrInvalidFormat, magic)
	}
	version, err := q.U32()
	if err != nil {
		return err
	}
	if err := q.Put("version", version); err != nil {
		return err
	}
	tensorCount, err := q.U64()
	if err != nil {
		return err
	}
	if err := q.Put("tensor_count", tensorCount); err != nil {
		return err
	}
	kvCount, err := q.U64()
	if err != nil {
		return err
	}
	if err := q.Put("kv_count", kvCount); err != nil {
		return err
	}

	if err := q.metadata(kvCount); err != nil {
		return err
	}
	if err := q.tensors(tensorCount); err != nil {
		return err
	}

	if err := q.Put("alignment", q.alignment); err != nil {
		return err
	}
	return q.Put("data_offset", align(uint64(q.Pos()), q.alignment))
}

func (q *decoder) metadata(kvCount uint64) error {
	return bindec.InMap(q.View, "metadata", func() error {
		for i := uint64(0); i < kvCount; i++ {
			key, err := q.string()
			if err != nil {
				return fmt.Errorf("metadata key %d: %w", i, err)
			}
			vtype, err := q.U32()
			if err != nil {
				return err
			}
			val, err := q.value(ValueType(vtype))
			if err != nil {
				return fmt.Errorf("metadata %q: %w", key, err)
			}
			if key == "general.alignment" {
				if u, ok := asUint64(val); ok && u > 0 {
					q.alignment = u
				}
			}
			if err := q.Put(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (q *decoder) tensors(tensorCount uint64) error {
	return bindec.InArray(q.View, "tensors", func() error {
		for i := uint64(0); i < tensorCount; i++ {
			err := bindec.InMap(q.View, int(i), func() error {
				name, err := q.string()
				if err != nil {
					return err
				}
				if err := q.Put("name", name); err != nil {
					return err
				}
				nDims, err := q.U32()
				if err != nil {
					return err
				}
				dims := make([]uint64, nDims)
				for d := range dims {
					if dims[d], err = q.U64(); err != nil {
						return err
					}
				}
				if err := q.Put("dims", fmt.Sprint(dims)); err != nil {
					return err
				}
				ttype, err := q.U32()
				if err != nil {
					return err
				}
				if err := q.Put("type", TensorType(ttype).String()); err != nil {
					return err
				}
				offset, err := q.U64()
				if err != nil {
					return err
				}
				return q.Put("offset", offset)
			})
			if err != nil {
				return fmt.Errorf("tensor %d: %w", i, err)
			}
		}
		return nil
	})
}

// value reads one metadata value of the given type. Arrays longer than
// arrayPreviewLimit are fully consumed but reported as a summary.
func (q *decoder) value(vtype ValueType) (any, error) {
	switch vtype {
	case TypeUint8:
		return q.U8()
	case TypeInt8:
		return q.I8()
	case TypeUint16:
		return q.U16()
	case TypeInt16:
		return q.I16()
	case TypeUint32:
		return q.U32()
	case TypeInt32:
		return q.I32()
	case TypeUint64:
		return q.U64()
	case TypeInt64:
		return q.I64()
	case TypeFloat32:
		return q.F32()
	case TypeFloat64:
		return q.F64()
	case TypeBool:
		v, err := q.U8()
		if err != nil {
			return nil, err
		}
		return v != 0, nil
	case TypeString:
		return q.string()
	case TypeArray:
		elem, err := q.U32()
		if err != nil {
			return nil, err
		}
		count, err := q.U64()
		if err != nil {
			return nil, err
		}
		values := make([]any, 0, min(count, arrayPreviewLimit))
		for i := uint64(0); i < count; i++ {
			v, err := q.value(ValueType(elem))
			if err != nil {
				return nil, err
			}
			if i < arrayPreviewLimit {
				values = append(values, v)
			}
		}
		if count > arrayPreviewLimit {
			return fmt.Sprintf("[%d %s values]", count, ValueType(elem)), nil
		}
		return values, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %d", bindec.ErrInvalidFormat, uint32(vtype))
	}
}

// string reads a u64 length-prefixed string.
func (q *decoder) string() (string, error) {
	n, err := q.U64()
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("%w: string length %d", bindec.ErrInvalidFormat, n)
	}
	b, err := q.Read(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func align(offset, alignment uint64) uint64 {
	if alignment == 0 {
		return offset
	}
	if rem := offset % alignment; rem != 0 {
		return offset + (alignment - rem)
	}
	return offset
}

func asUint64(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint8:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	default:
		return 0, false
	}
}
