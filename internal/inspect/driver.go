// Package inspect selects a format driver for an input and runs the decode
// against a chosen sink. Drivers are registered here; everything below a
// driver's Decode goes through pkg/bindec.
package inspect

import (
	"encoding/binary"
	"fmt"

	"github.com/samcharles93/binspect/internal/flv"
	"github.com/samcharles93/binspect/internal/gguf"
	"github.com/samcharles93/binspect/internal/jpeg"
	"github.com/samcharles93/binspect/internal/qt"
	"github.com/samcharles93/binspect/pkg/bindec"
)

// sigLen is how many leading bytes a Detect function may examine.
const sigLen = 16

// Driver couples a format's signature check with its decode entry point and
// the byte order its fields are stored in.
type Driver struct {
	Name   string
	Order  binary.ByteOrder
	Detect func(sig []byte) bool
	Decode func(d *bindec.Decoder) error
}

var drivers = []Driver{
	{Name: "flv", Order: binary.BigEndian, Detect: flv.Detect, Decode: flv.Decode},
	{Name: "jpeg", Order: binary.BigEndian, Detect: jpeg.Detect, Decode: jpeg.Decode},
	{Name: "quicktime", Order: binary.BigEndian, Detect: qt.Detect, Decode: qt.Decode},
	{Name: "gguf", Order: binary.LittleEndian, Detect: gguf.Detect, Decode: gguf.Decode},
}

// Drivers returns the registered drivers in registration order.
func Drivers() []Driver {
	out := make([]Driver, len(drivers))
	copy(out, drivers)
	return out
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, error) {
	for _, d := range drivers {
		if d.Name == name {
			return d, nil
		}
	}
	return Driver{}, fmt.Errorf("unknown format %q", name)
}

// Detect returns the first driver whose signature check accepts data.
func Detect(data []byte) (Driver, error) {
	sig := data
	if len(sig) > sigLen {
		sig = sig[:sigLen]
	}
	for _, d := range drivers {
		if d.Detect(sig) {
			return d, nil
		}
	}
	return Driver{}, fmt.Errorf("%w: no driver recognises the input signature", bindec.ErrInvalidFormat)
}
