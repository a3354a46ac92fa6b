package ampframe

import "errors"

var (
	// ErrKeyTooLong reports a box key longer than 255 bytes.
	ErrKeyTooLong = errors.New("ampframe: key exceeds 255 bytes")

	// ErrEmptyKey reports an attempt to encode a zero-length key; the
	// empty key segment is reserved to terminate a frame.
	ErrEmptyKey = errors.New("ampframe: key must not be empty")

	// ErrValueTooLong reports a value over 65535 bytes under the V1
	// variant, which has no continuation mechanism.
	ErrValueTooLong = errors.New("ampframe: value exceeds 65535 bytes in V1")
)
