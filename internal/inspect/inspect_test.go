package inspect

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/binspect/pkg/bindec"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		sig  []byte
		want string
	}{
		{"flv", []byte("FLV\x01\x05\x00\x00\x00\x09"), "flv"},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, "jpeg"},
		{"quicktime", []byte("\x00\x00\x00\x14ftypisom"), "quicktime"},
		{"gguf", []byte("GGUF\x03\x00\x00\x00"), "gguf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			drv, err := Detect(tc.sig)
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if drv.Name != tc.want {
				t.Fatalf("got driver %q, want %q", drv.Name, tc.want)
			}
		})
	}
}

func TestDetectUnknown(t *testing.T) {
	t.Parallel()

	_, err := Detect([]byte("not a known container"))
	if !errors.Is(err, bindec.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	drv, err := Lookup("gguf")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if drv.Name != "gguf" {
		t.Fatalf("got %q", drv.Name)
	}
	if _, err := Lookup("elf"); err == nil {
		t.Fatalf("expected error for unregistered format")
	}
}

func TestRunAutoDetect(t *testing.T) {
	t.Parallel()

	// Header-only FLV: version 1, video flag, data offset 9.
	input := []byte("FLV\x01\x01\x00\x00\x00\x09")
	sink := bindec.NewTreeSink()
	drv, err := Run(input, "", sink, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if drv.Name != "flv" {
		t.Fatalf("driver: got %q", drv.Name)
	}
	if v, _ := sink.Root().Get("Version"); v != uint8(1) {
		t.Fatalf("Version: got %v", v)
	}
}

func TestRunExplicitDriverOverridesDetection(t *testing.T) {
	t.Parallel()

	// GGUF bytes forced through the FLV driver must fail cleanly.
	input := []byte("GGUF\x03\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
	sink := bindec.NewTreeSink()
	drv, err := Run(input, "flv", sink, 0)
	if drv.Name != "flv" {
		t.Fatalf("driver: got %q", drv.Name)
	}
	if !errors.Is(err, bindec.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestOpenSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sample.bin")
	content := []byte("GGUF\x03\x00\x00\x00")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(src.Bytes(), content) {
		t.Fatalf("contents differ: %q", src.Bytes())
	}
	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if src.Bytes() != nil {
		t.Fatalf("bytes still available after close")
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestOpenSourceEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()
	if len(src.Bytes()) != 0 {
		t.Fatalf("expected empty contents")
	}
}

func TestOpenSourceMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := OpenSource(filepath.Join(t.TempDir(), "nope.bin")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
