package inspect

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ErrFileTooLarge rejects inputs that cannot be indexed as a []byte on this
// architecture.
var ErrFileTooLarge = errors.New("inspect: file too large to map")

// Source is an input file held in memory, mmapped read-only where the
// platform allows it. Close releases any mapping.
type Source struct {
	Path    string
	data    []byte
	mmapped bool
}

// OpenSource maps path read-only. If mmap is unavailable it falls back to
// reading the whole file.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 > int64(int(^uint(0)>>1)) {
		return nil, ErrFileTooLarge
	}
	size := int(size64)
	if size == 0 {
		return &Source{Path: path, data: []byte{}}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return &Source{Path: path, data: data, mmapped: true}, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return &Source{Path: path, data: data}, nil
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

// Bytes returns the file contents. The slice is invalid after Close.
func (s *Source) Bytes() []byte { return s.data }

// Close releases the mapping, if any.
func (s *Source) Close() error {
	if s == nil || s.data == nil {
		return nil
	}
	var err error
	if s.mmapped {
		err = unix.Munmap(s.data)
	}
	s.data = nil
	s.mmapped = false
	return err
}
