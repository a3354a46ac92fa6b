package ampserde

import (
	"testing"

	"github.com/wirerpc/amp/pkg/ampframe"
)

func TestUnmarshalRoundTrip(t *testing.T) {
	type s struct {
		A    int     `amp:"a"`
		Name string  `amp:"name"`
		Flag bool    `amp:"flag"`
		F    float64 `amp:"f"`
	}
	in := s{A: -7, Name: "hello", Flag: true, F: 2.5}
	box, err := Marshal(in, ampframe.V1)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var out s
	if err := Unmarshal(box, &out, ampframe.V1); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestUnmarshalFloatSpecials(t *testing.T) {
	box := ampframe.NewBox()
	box.Set("f", []byte("nan"))
	type s struct {
		F float64 `amp:"f"`
	}
	var out s
	if err := Unmarshal(box, &out, ampframe.V1); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if out.F == out.F {
		t.Fatalf("expected NaN, got %v", out.F)
	}
}

func TestUnmarshalBoolCaseInsensitive(t *testing.T) {
	box := ampframe.NewBox()
	box.Set("flag", []byte("TRUE"))
	type s struct {
		Flag bool `amp:"flag"`
	}
	var out s
	if err := Unmarshal(box, &out, ampframe.V1); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if !out.Flag {
		t.Fatalf("expected true")
	}
}

func TestUnmarshalMissingScalarFails(t *testing.T) {
	box := ampframe.NewBox()
	type s struct {
		A int `amp:"a"`
	}
	var out s
	if err := Unmarshal(box, &out, ampframe.V1); err == nil {
		t.Fatalf("expected error for missing required integer field")
	}
}

func TestUnmarshalOptionalPointerAbsent(t *testing.T) {
	box := ampframe.NewBox()
	box.Set("name", []byte{})
	type s struct {
		Name *string `amp:"name"`
	}
	var out s
	if err := Unmarshal(box, &out, ampframe.V1); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if out.Name != nil {
		t.Fatalf("expected nil pointer for empty value, got %q", *out.Name)
	}
}

func TestUnmarshalMap(t *testing.T) {
	box := ampframe.NewBox()
	box.Set("a", []byte("1"))
	box.Set("b", []byte("2"))
	var out map[string]int
	if err := Unmarshal(box, &out, ampframe.V1); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Fatalf("got %v, want map[a:1 b:2]", out)
	}
}
