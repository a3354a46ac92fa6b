package ampframe

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Version selects the wire variant: V1 bounds a value at 65535 bytes; V2
// chains 65535-byte segments to carry unbounded values.
type Version int

const (
	// V1 is the original bounded-value wire variant.
	V1 Version = iota
	// V2 allows values of any length via continuation segments.
	V2
)

const maxSegment = 0xffff

// Decoder reads successive Boxes off a byte stream. It holds no internal
// buffering beyond a bufio.Reader, so a Decoder is naturally resumable:
// a short read simply blocks in the underlying reader rather than
// corrupting in-progress state.
type Decoder struct {
	r       *bufio.Reader
	version Version
}

// NewDecoder wraps r for frame-at-a-time decoding under the given wire
// version.
func NewDecoder(r io.Reader, version Version) *Decoder {
	return &Decoder{r: bufio.NewReader(r), version: version}
}

// Next blocks until it has read one complete Box, or returns io.EOF if
// the stream ended cleanly between frames. Any other error (including
// io.ErrUnexpectedEOF on a truncated frame) is fatal to the stream.
func (d *Decoder) Next() (*Box, error) {
	box := NewBox()
	var key string
	haveKey := false
	var cont []byte
	inCont := false

	for {
		length, err := d.readLength()
		if err != nil {
			if !haveKey && !inCont && box.Len() == 0 && err == io.EOF {
				return nil, io.EOF
			}
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		if !haveKey {
			if length == 0 {
				return box, nil
			}
			if length > 255 {
				return nil, ErrKeyTooLong
			}
			k, err := d.readExactly(int(length))
			if err != nil {
				return nil, err
			}
			key = string(k)
			haveKey = true
			continue
		}

		seg, err := d.readExactly(int(length))
		if err != nil {
			return nil, err
		}

		if inCont {
			cont = append(cont, seg...)
			if d.version == V2 && length == maxSegment {
				continue
			}
			box.Set(key, cont)
			haveKey, inCont = false, false
			cont = nil
			continue
		}

		if d.version == V2 && length == maxSegment {
			cont = append(cont[:0], seg...)
			inCont = true
			continue
		}

		box.Set(key, seg)
		haveKey = false
	}
}

func (d *Decoder) readLength() (int, error) {
	var buf [2]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(buf[:])), nil
}

func (d *Decoder) readExactly(n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// Encode writes box to w as one complete AMP frame under the given wire
// version, ending in the zero-length terminator segment.
func Encode(w io.Writer, box *Box, version Version) error {
	var encErr error
	box.Range(func(key string, value []byte) bool {
		encErr = encodeEntry(w, key, value, version)
		return encErr == nil
	})
	if encErr != nil {
		return encErr
	}
	return writeSegment(w, nil)
}

func encodeEntry(w io.Writer, key string, value []byte, version Version) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > 255 {
		return ErrKeyTooLong
	}
	if err := writeSegment(w, []byte(key)); err != nil {
		return err
	}

	if version == V1 {
		if len(value) > maxSegment {
			return ErrValueTooLong
		}
		return writeSegment(w, value)
	}

	// V2: split into exactly-65535-byte chunks for as long as the
	// remainder reaches that threshold, then always emit a shorter
	// (possibly empty) terminator chunk.
	for len(value) >= maxSegment {
		if err := writeSegment(w, value[:maxSegment]); err != nil {
			return err
		}
		value = value[maxSegment:]
	}
	return writeSegment(w, value)
}

// DecodeOne decodes exactly one Box from the front of raw and reports
// how many bytes it consumed. Decoder exists for a streaming connection
// and is free to read ahead into its own bufio buffer; DecodeOne is for
// callers holding an in-memory byte slice that may hold more than one
// frame back-to-back (a nested struct/map field, an AmpList) and that
// need to know precisely where this frame ends and the next begins —
// something a bufio-wrapped Decoder can't report, since a single fill
// can drain the whole slice into its buffer regardless of frame
// boundaries.
func DecodeOne(raw []byte, version Version) (*Box, int, error) {
	box := NewBox()
	pos := 0
	var key string
	haveKey := false
	var cont []byte
	inCont := false

	readLen := func() (int, error) {
		if pos+2 > len(raw) {
			return 0, io.ErrUnexpectedEOF
		}
		n := int(binary.BigEndian.Uint16(raw[pos : pos+2]))
		pos += 2
		return n, nil
	}
	readExactly := func(n int) ([]byte, error) {
		if n == 0 {
			return []byte{}, nil
		}
		if pos+n > len(raw) {
			return nil, io.ErrUnexpectedEOF
		}
		b := raw[pos : pos+n]
		pos += n
		return b, nil
	}

	for {
		length, err := readLen()
		if err != nil {
			if !haveKey && !inCont && box.Len() == 0 {
				return nil, 0, io.EOF
			}
			return nil, 0, err
		}

		if !haveKey {
			if length == 0 {
				return box, pos, nil
			}
			if length > 255 {
				return nil, 0, ErrKeyTooLong
			}
			k, err := readExactly(length)
			if err != nil {
				return nil, 0, err
			}
			key = string(k)
			haveKey = true
			continue
		}

		seg, err := readExactly(length)
		if err != nil {
			return nil, 0, err
		}

		if inCont {
			cont = append(cont, seg...)
			if version == V2 && length == maxSegment {
				continue
			}
			box.Set(key, cont)
			haveKey, inCont = false, false
			cont = nil
			continue
		}

		if version == V2 && length == maxSegment {
			cont = append(cont[:0], seg...)
			inCont = true
			continue
		}

		box.Set(key, seg)
		haveKey = false
	}
}

func writeSegment(w io.Writer, b []byte) error {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}
