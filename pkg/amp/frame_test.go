package amp

import (
	"testing"

	"github.com/wirerpc/amp/pkg/ampframe"
)

func TestClassifyRequest(t *testing.T) {
	box := ampframe.NewBox()
	box.Set("_ask", []byte("23"))
	box.Set("_command", []byte("Sum"))
	box.Set("a", []byte("13"))
	box.Set("b", []byte("81"))

	frame, err := Classify(box)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	req, ok := frame.(Request)
	if !ok {
		t.Fatalf("Classify() = %T, want Request", frame)
	}
	if req.Command != "Sum" || string(req.Tag) != "23" {
		t.Fatalf("got command=%q tag=%q, want Sum/23", req.Command, req.Tag)
	}
	if v, _ := req.Fields.Get("a"); string(v) != "13" {
		t.Fatalf("fields[a] = %q, want 13", v)
	}
	if _, ok := req.Fields.Get("_ask"); ok {
		t.Fatalf("reserved key _ask leaked into Fields")
	}
}

func TestClassifyFireAndForgetRequest(t *testing.T) {
	box := ampframe.NewBox()
	box.Set("_command", []byte("Ping"))

	frame, err := Classify(box)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	req := frame.(Request)
	if req.Tag != nil {
		t.Fatalf("got tag %q, want nil for a fire-and-forget request", req.Tag)
	}
}

func TestClassifyOKResponse(t *testing.T) {
	box := ampframe.NewBox()
	box.Set("_answer", []byte("1"))
	box.Set("total", []byte("444"))

	frame, err := Classify(box)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	resp, ok := frame.(OKResponse)
	if !ok {
		t.Fatalf("Classify() = %T, want OKResponse", frame)
	}
	if string(resp.Tag) != "1" {
		t.Fatalf("tag = %q, want 1", resp.Tag)
	}
}

func TestClassifyErrorResponse(t *testing.T) {
	box := ampframe.NewBox()
	box.Set("_error", []byte("1"))
	box.Set("_error_code", []byte("OVERFLOW"))
	box.Set("_error_description", []byte("too big"))

	frame, err := Classify(box)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	resp, ok := frame.(ErrorResponse)
	if !ok {
		t.Fatalf("Classify() = %T, want ErrorResponse", frame)
	}
	if resp.Code != "OVERFLOW" || resp.Description != "too big" {
		t.Fatalf("got code=%q description=%q", resp.Code, resp.Description)
	}
}

func TestClassifyIncompleteErrorFrame(t *testing.T) {
	box := ampframe.NewBox()
	box.Set("_error", []byte("1"))
	box.Set("_error_code", []byte("OVERFLOW"))
	// missing _error_description

	if _, err := Classify(box); err != ErrIncompleteErrorFrame {
		t.Fatalf("Classify() error = %v, want ErrIncompleteErrorFrame", err)
	}
}

func TestClassifyConfusedFrame(t *testing.T) {
	cases := []*ampframe.Box{
		func() *ampframe.Box {
			b := ampframe.NewBox()
			b.Set("_command", []byte("x"))
			b.Set("_answer", []byte("1"))
			return b
		}(),
		func() *ampframe.Box {
			b := ampframe.NewBox()
			b.Set("x", []byte("y"))
			return b
		}(),
	}
	for i, box := range cases {
		if _, err := Classify(box); err != ErrConfusedFrame {
			t.Fatalf("case %d: Classify() error = %v, want ErrConfusedFrame", i, err)
		}
	}
}
