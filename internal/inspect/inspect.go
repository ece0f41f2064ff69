package inspect

import (
	"bytes"

	"github.com/samcharles93/binspect/pkg/bindec"
)

// Run decodes data into sink. An empty driverName selects a driver by
// signature detection. The chosen driver is returned even when the decode
// fails partway, so callers can report what was attempted alongside any
// partial output the sink already holds.
func Run(data []byte, driverName string, sink bindec.Sink, dumpLimit int) (Driver, error) {
	var drv Driver
	var err error
	if driverName != "" {
		drv, err = Lookup(driverName)
	} else {
		drv, err = Detect(data)
	}
	if err != nil {
		return Driver{}, err
	}

	d := bindec.NewDecoder(bytes.NewReader(data), drv.Order, sink)
	d.DumpLimit = dumpLimit
	return drv, drv.Decode(d)
}
