package ampserde

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/wirerpc/amp/pkg/ampframe"
)

var (
	charType  = reflect.TypeOf(Char(0))
	bytesType = reflect.TypeOf([]byte(nil))
	ampListIf = reflect.TypeOf((*ampList)(nil)).Elem()
)

// Marshal encodes v (a struct or a map[string]V) into a fresh Box under
// the given wire version.
func Marshal(v interface{}, version ampframe.Version) (*ampframe.Box, error) {
	box := ampframe.NewBox()
	if err := MarshalInto(box, v, version); err != nil {
		return nil, err
	}
	return box, nil
}

// MarshalInto encodes v's fields directly into box, overwriting any keys
// they name. This is how request/response envelopes merge reserved keys
// (_command, _ask, ...) with the caller's payload fields into one frame.
func MarshalInto(box *ampframe.Box, v interface{}, version ampframe.Version) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue // unexported
			}
			name, omit := fieldTag(field)
			if omit && isEmptyValue(rv.Field(i)) {
				continue
			}
			if len(name) > KeyLimit {
				return fieldErr(name, ErrKeyTooLong)
			}
			if name == "" {
				return ErrEmptyKey
			}
			val, err := encodeValue(rv.Field(i), version)
			if err != nil {
				return fieldErr(name, err)
			}
			if version == ampframe.V1 && len(val) > ValueLimit {
				return fieldErr(name, ErrValueTooLong)
			}
			box.Set(name, val)
		}
		return nil

	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			name := fmt.Sprint(iter.Key().Interface())
			val, err := encodeValue(iter.Value(), version)
			if err != nil {
				return fieldErr(name, err)
			}
			box.Set(name, val)
		}
		return nil

	default:
		return ErrUnsupported
	}
}

func fieldTag(f reflect.StructField) (name string, omitempty bool) {
	tag := f.Tag.Get("amp")
	if tag == "" {
		return f.Name, false
	}
	name = tag
	if i := indexByte(tag, ','); i >= 0 {
		name = tag[:i]
		omitempty = tag[i+1:] == "omitempty"
	}
	if name == "" {
		name = f.Name
	}
	return name, omitempty
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func isEmptyValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map:
		return rv.IsNil()
	}
	return false
}

func encodeValue(rv reflect.Value, version ampframe.Version) ([]byte, error) {
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return []byte{}, nil
		}
		return encodeValue(rv.Elem(), version)
	}

	switch {
	case rv.Type() == charType:
		r := rune(rv.Int())
		buf := make([]byte, utf8.RuneLen(r))
		utf8.EncodeRune(buf, r)
		return buf, nil

	case rv.Type() == bytesType:
		return rv.Bytes(), nil

	case rv.Type().Implements(ampListIf):
		return encodeAmpList(rv, version)
	}

	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return []byte("True"), nil
		}
		return []byte("False"), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []byte(strconv.FormatInt(rv.Int(), 10)), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return []byte(strconv.FormatUint(rv.Uint(), 10)), nil

	case reflect.Float32, reflect.Float64:
		return []byte(formatFloat(rv.Float())), nil

	case reflect.String:
		return []byte(rv.String()), nil

	case reflect.Struct, reflect.Map:
		return encodeNested(rv, version)

	case reflect.Slice, reflect.Array:
		return encodeSequence(rv, version)

	default:
		return nil, ErrUnsupported
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// encodeNested serializes a struct/map field as a complete inner AMP
// frame, the bytes of which become the enclosing field's value.
func encodeNested(rv reflect.Value, version ampframe.Version) ([]byte, error) {
	box := ampframe.NewBox()
	if err := MarshalInto(box, rv.Interface(), version); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := ampframe.Encode(&buf, box, version); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeSequence implements the plain-slice "sequence" encoding: each
// element preceded by its own u16be length, concatenated.
func encodeSequence(rv reflect.Value, version ampframe.Version) ([]byte, error) {
	var buf bytes.Buffer
	n := rv.Len()
	for i := 0; i < n; i++ {
		elem, err := encodeValue(rv.Index(i), version)
		if err != nil {
			return nil, err
		}
		if len(elem) > ValueLimit {
			return nil, ErrValueTooLong
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(elem)))
		buf.Write(lenBuf[:])
		buf.Write(elem)
	}
	return buf.Bytes(), nil
}

// encodeAmpList implements AmpList: each element is a complete inner
// frame, concatenated with no outer length prefix at all.
func encodeAmpList(rv reflect.Value, version ampframe.Version) ([]byte, error) {
	var buf bytes.Buffer
	n := rv.Len()
	for i := 0; i < n; i++ {
		elem := rv.Index(i)
		box := ampframe.NewBox()
		if err := MarshalInto(box, elem.Interface(), version); err != nil {
			return nil, err
		}
		if err := ampframe.Encode(&buf, box, version); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
