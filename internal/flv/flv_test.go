package flv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/samcharles93/binspect/pkg/bindec"
)

type builder struct {
	bytes.Buffer
}

func (b *builder) u8(v uint8)   { b.WriteByte(v) }
func (b *builder) u16(v uint16) { _ = binary.Write(b, binary.BigEndian, v) }
func (b *builder) u32(v uint32) { _ = binary.Write(b, binary.BigEndian, v) }
func (b *builder) ui24(v uint32) {
	b.u8(uint8(v >> 16))
	b.u16(uint16(v))
}
func (b *builder) str(s string) {
	b.u16(uint16(len(s)))
	b.WriteString(s)
}

func (b *builder) tag(tagType uint8, prev uint32, body []byte) {
	b.u32(prev)
	b.u8(tagType)
	b.ui24(uint32(len(body)))
	b.ui24(0) // timestamp
	b.u8(0)   // timestamp extended
	b.ui24(0) // stream id
	b.Write(body)
}

func scriptBody() []byte {
	var b builder
	b.u8(scriptString)
	b.str("onMetaData")
	b.u8(scriptECMAArray)
	b.u32(1)
	b.str("duration")
	b.u8(scriptNumber)
	_ = binary.Write(&b, binary.BigEndian, float64(12))
	b.u8(0) // empty name: end of script data
	b.u16(scriptObjectEnd)
	return b.Bytes()
}

func sampleFLV(t *testing.T) []byte {
	t.Helper()
	var b builder
	b.WriteString("FLV")
	b.u8(1)          // version
	b.u8(0b00000101) // audio + video
	b.u32(9)         // data offset
	b.tag(tagScript, 0, scriptBody())
	b.tag(tagVideo, 0, []byte{0x17, 0xee}) // keyframe/AVC + 1 trailing byte
	b.u32(11 + 2)                          // final back-pointer closing the stream
	return b.Bytes()
}

func decodeTree(t *testing.T, input []byte) (*bindec.Map, error) {
	t.Helper()
	sink := bindec.NewTreeSink()
	d := bindec.NewDecoder(bytes.NewReader(input), binary.BigEndian, sink)
	err := Decode(d)
	return sink.Root(), err
}

func TestDecodeSample(t *testing.T) {
	t.Parallel()

	root, err := decodeTree(t, sampleFLV(t))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if v, _ := root.Get("Version"); v != uint8(1) {
		t.Fatalf("Version: got %v", v)
	}
	if v, _ := root.Get("AudioTags"); v != true {
		t.Fatalf("AudioTags: got %v", v)
	}

	tagsv, ok := root.Get("Tag")
	if !ok {
		t.Fatalf("missing Tag array")
	}
	tags := tagsv.(*bindec.Array)
	if tags.Len() != 2 {
		t.Fatalf("tags: got %d", tags.Len())
	}

	script := tags.Index(0).(*bindec.Map)
	if v, _ := script.Get("TagType"); v != "script data" {
		t.Fatalf("script TagType: got %v", v)
	}
	sdv, ok := script.Get("ScriptData")
	if !ok {
		t.Fatalf("missing ScriptData, keys %v", script.Keys())
	}
	entry := sdv.(*bindec.Array).Index(0).(*bindec.Map)
	if v, _ := entry.Get("Name"); v != "onMetaData" {
		t.Fatalf("script name: got %v", v)
	}
	ecma := mustMap(t, entry, "Value")
	if v, _ := ecma.Get("duration"); v != int64(12) {
		t.Fatalf("duration not collapsed to integer: got %v (%T)", v, v)
	}

	video := tags.Index(1).(*bindec.Map)
	if v, _ := video.Get("TagType"); v != "video" {
		t.Fatalf("video TagType: got %v", v)
	}
	vd := mustMap(t, video, "VideoData")
	if v, _ := vd.Get("FrameType"); v != "keyframe" {
		t.Fatalf("FrameType: got %v", v)
	}
	if v, _ := vd.Get("CodecID"); v != "AVC" {
		t.Fatalf("CodecID: got %v", v)
	}
	// The byte the video handler did not consume is dumped.
	if v, _ := video.Get("0000"); v != "ee" {
		t.Fatalf("remainder dump: got %v", v)
	}
}

func TestDecodeBadSignature(t *testing.T) {
	t.Parallel()

	_, err := decodeTree(t, []byte("MKV\x01\x05\x00\x00\x00\x09"))
	if !errors.Is(err, bindec.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestDecodeReservedFlags(t *testing.T) {
	t.Parallel()

	_, err := decodeTree(t, []byte("FLV\x01\xff\x00\x00\x00\x09"))
	if !errors.Is(err, bindec.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestDecodeHeaderOnly(t *testing.T) {
	t.Parallel()

	root, err := decodeTree(t, []byte("FLV\x01\x05\x00\x00\x00\x09"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tags, _ := root.Get("Tag")
	if tags.(*bindec.Array).Len() != 0 {
		t.Fatalf("expected empty tag array")
	}
}

func TestDecodeTrailingBackPointer(t *testing.T) {
	t.Parallel()

	// A conformant stream ends with one last PreviousTagSize after the
	// final tag. Decoding must stop there without reporting an error.
	var b builder
	b.WriteString("FLV")
	b.u8(1)
	b.u8(0b00000001) // video only
	b.u32(9)
	body := []byte{0x17}
	b.tag(tagVideo, 0, body)
	b.u32(uint32(11 + len(body)))

	root, err := decodeTree(t, b.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tags, _ := root.Get("Tag")
	if tags.(*bindec.Array).Len() != 1 {
		t.Fatalf("tags: got %d", tags.(*bindec.Array).Len())
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	if !Detect([]byte("FLV\x01")) {
		t.Fatalf("FLV signature not detected")
	}
	if Detect([]byte("GIF89a")) {
		t.Fatalf("false positive")
	}
}

func mustMap(t *testing.T, m *bindec.Map, key string) *bindec.Map {
	t.Helper()
	v, ok := m.Get(key)
	if !ok {
		t.Fatalf("missing %q, keys %v", key, m.Keys())
	}
	sub, ok := v.(*bindec.Map)
	if !ok {
		t.Fatalf("%q is %T, not a map", key, v)
	}
	return sub
}
