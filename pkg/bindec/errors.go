package bindec

import "errors"

var (
	// ErrEndOfData reports that fewer bytes were available than a read or a
	// declared region length required.
	ErrEndOfData = errors.New("unexpected end of data")

	// ErrInvalidFormat reports a signature mismatch or an unsupported
	// discriminant value in the input.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrDuplicateKey reports a repeated key within one map scope.
	ErrDuplicateKey = errors.New("duplicate map key")

	// ErrOutOfSequence reports an array entry recorded under anything other
	// than the next sequential index.
	ErrOutOfSequence = errors.New("array index out of sequence")
)
