package bindec

// Sink is the destination for decoded fields, organized as nested named maps
// and indexed arrays. Names are strings for map slots and ints for array
// slots; a map opened inside an array takes the array's next index as its
// name. Every EnterMap/EnterArray must be paired with exactly one Exit;
// InMap and InArray take care of the pairing on all exit paths.
type Sink interface {
	EnterMap(name any) error
	EnterArray(name any) error
	Exit() error
	Set(name any, value any) error
	Blob(name any, data []byte) error
}

// InMap opens a map scope named name, runs fn inside it, and closes the
// scope again whether or not fn fails.
func InMap(s Sink, name any, fn func() error) (err error) {
	if err = s.EnterMap(name); err != nil {
		return err
	}
	defer func() {
		if cerr := s.Exit(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn()
}

// InArray opens an array scope named name, runs fn inside it, and closes the
// scope again whether or not fn fails.
func InArray(s Sink, name any, fn func() error) (err error) {
	if err = s.EnterArray(name); err != nil {
		return err
	}
	defer func() {
		if cerr := s.Exit(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn()
}
