package ampserde

import (
	"encoding/binary"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wirerpc/amp/pkg/ampframe"
)

// Unmarshal decodes box into v, a pointer to a struct or to a
// map[string]V. Each key's raw bytes are scoped to that field/entry;
// residual bytes left over after decoding a nested value are reported
// as ErrRemainingBytes.
func Unmarshal(box *ampframe.Box, v interface{}, version ampframe.Version) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return ErrUnsupported
	}
	elem := rv.Elem()

	switch elem.Kind() {
	case reflect.Struct:
		return unmarshalStruct(box, elem, version)
	case reflect.Map:
		return unmarshalMap(box, elem, version)
	default:
		return ErrUnsupported
	}
}

func unmarshalStruct(box *ampframe.Box, rv reflect.Value, version ampframe.Version) error {
	t := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name, _ := fieldTag(field)
		raw, _ := box.Get(name)
		if err := decodeValue(raw, rv.Field(i), version); err != nil {
			return fieldErr(name, err)
		}
	}
	return nil
}

func unmarshalMap(box *ampframe.Box, rv reflect.Value, version ampframe.Version) error {
	if rv.Type().Key().Kind() != reflect.String {
		return ErrUnsupported
	}
	m := reflect.MakeMap(rv.Type())
	elemType := rv.Type().Elem()

	var outerErr error
	box.Range(func(key string, value []byte) bool {
		elem := reflect.New(elemType).Elem()
		if err := decodeValue(value, elem, version); err != nil {
			outerErr = fieldErr(key, err)
			return false
		}
		m.SetMapIndex(reflect.ValueOf(key), elem)
		return true
	})
	if outerErr != nil {
		return outerErr
	}
	rv.Set(m)
	return nil
}

func decodeValue(raw []byte, rv reflect.Value, version ampframe.Version) error {
	if rv.Kind() == reflect.Ptr {
		if len(raw) == 0 {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		ptr := reflect.New(rv.Type().Elem())
		if err := decodeValue(raw, ptr.Elem(), version); err != nil {
			return err
		}
		rv.Set(ptr)
		return nil
	}

	switch {
	case rv.Type() == charType:
		if len(raw) == 0 {
			return ErrExpectedChar
		}
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError || size != len(raw) {
			return ErrExpectedChar
		}
		rv.SetInt(int64(r))
		return nil

	case rv.Type() == bytesType:
		cp := make([]byte, len(raw))
		copy(cp, raw)
		rv.SetBytes(cp)
		return nil

	case rv.Type().Implements(ampListIf) || reflect.PtrTo(rv.Type()).Implements(ampListIf):
		return decodeAmpList(raw, rv, version)
	}

	switch rv.Kind() {
	case reflect.Bool:
		switch strings.ToLower(string(raw)) {
		case "true":
			rv.SetBool(true)
		case "false":
			rv.SetBool(false)
		default:
			return ErrExpectedBool
		}
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if len(raw) == 0 {
			return ErrExpectedInteger
		}
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return ErrExpectedInteger
		}
		rv.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if len(raw) == 0 {
			return ErrExpectedInteger
		}
		n, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return ErrExpectedInteger
		}
		rv.SetUint(n)
		return nil

	case reflect.Float32, reflect.Float64:
		if len(raw) == 0 {
			return ErrExpectedFloat
		}
		f, err := parseFloat(string(raw))
		if err != nil {
			return ErrExpectedFloat
		}
		rv.SetFloat(f)
		return nil

	case reflect.String:
		if !utf8.Valid(raw) {
			return ErrExpectedUTF8
		}
		rv.SetString(string(raw))
		return nil

	case reflect.Struct, reflect.Map:
		if len(raw) == 0 {
			return nil
		}
		return decodeNested(raw, rv, version)

	case reflect.Slice, reflect.Array:
		if len(raw) == 0 {
			return nil
		}
		return decodeSequence(raw, rv, version)

	default:
		return ErrUnsupported
	}
}

func parseFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "nan":
		return math.NaN(), nil
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

func decodeNested(raw []byte, rv reflect.Value, version ampframe.Version) error {
	box, rest, err := decodeOneFrame(raw, version)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return ErrRemainingBytes
	}
	target := reflect.New(rv.Type())
	if err := Unmarshal(box, target.Interface(), version); err != nil {
		return err
	}
	rv.Set(target.Elem())
	return nil
}

func decodeSequence(raw []byte, rv reflect.Value, version ampframe.Version) error {
	elemType := rv.Type().Elem()
	out := reflect.MakeSlice(rv.Type(), 0, 0)
	for len(raw) > 0 {
		if len(raw) < 2 {
			return ErrExpectedSeqLength
		}
		n := int(binary.BigEndian.Uint16(raw[:2]))
		raw = raw[2:]
		if len(raw) < n {
			return ErrExpectedSeqValue
		}
		elemRaw := raw[:n]
		raw = raw[n:]

		elem := reflect.New(elemType).Elem()
		if err := decodeValue(elemRaw, elem, version); err != nil {
			return err
		}
		out = reflect.Append(out, elem)
	}
	rv.Set(out)
	return nil
}

func decodeAmpList(raw []byte, rv reflect.Value, version ampframe.Version) error {
	elemType := rv.Type().Elem()
	out := reflect.MakeSlice(rv.Type(), 0, 0)
	for len(raw) > 0 {
		box, rest, err := decodeOneFrame(raw, version)
		if err != nil {
			return err
		}
		raw = rest

		elem := reflect.New(elemType)
		if err := Unmarshal(box, elem.Interface(), version); err != nil {
			return err
		}
		out = reflect.Append(out, elem.Elem())
	}
	rv.Set(out)
	return nil
}

// decodeOneFrame decodes exactly one AMP frame prefix of raw and returns
// the leftover bytes, so callers (nested records, AmpList elements) can
// tell whether the whole scope was consumed. It uses ampframe.DecodeOne
// rather than a bufio-wrapped Decoder: a bufio.Reader's first fill would
// drain all of raw into its own buffer on the first read, making it
// impossible to tell where this one frame ended and the next began.
func decodeOneFrame(raw []byte, version ampframe.Version) (*ampframe.Box, []byte, error) {
	box, n, err := ampframe.DecodeOne(raw, version)
	if err != nil {
		if err == io.EOF {
			return ampframe.NewBox(), nil, nil
		}
		return nil, nil, err
	}
	return box, raw[n:], nil
}
