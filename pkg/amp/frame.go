package amp

import (
	"unicode/utf8"

	"github.com/wirerpc/amp/pkg/ampframe"
)

// Reserved box keys that drive frame classification. No user payload
// field may use one of these names.
const (
	keyCommand         = "_command"
	keyAsk             = "_ask"
	keyAnswer          = "_answer"
	keyError           = "_error"
	keyErrorCode       = "_error_code"
	keyErrorDescription = "_error_description"
)

// Frame is the classified shape of a decoded Box: exactly one of
// Request, OKResponse, or ErrorResponse.
type Frame interface {
	isFrame()
}

// Request is an inbound or outbound command invocation. Tag is nil for
// a fire-and-forget request (no reply expected).
type Request struct {
	Command string
	Tag     []byte
	Fields  *ampframe.Box
}

// OKResponse is a successful reply, correlated to its request by Tag.
type OKResponse struct {
	Tag    []byte
	Fields *ampframe.Box
}

// ErrorResponse is a failed reply, correlated to its request by Tag.
type ErrorResponse struct {
	Tag         []byte
	Code        string
	Description string
}

func (Request) isFrame()       {}
func (OKResponse) isFrame()    {}
func (ErrorResponse) isFrame() {}

// Classify inspects box's reserved keys and returns the Frame it
// represents, per the classification rules:
//
//   - _command present, _answer and _error absent  -> Request
//   - _answer present, _command and _error absent   -> OKResponse
//   - _error present, _command and _answer absent   -> ErrorResponse
//     (_error_code and _error_description both required)
//   - any other combination                         -> ErrConfusedFrame
//
// Classification is total: every Box maps to a Frame or to a non-nil
// error, never to a panic.
func Classify(box *ampframe.Box) (Frame, error) {
	_, hasCommand := box.Get(keyCommand)
	_, hasAnswer := box.Get(keyAnswer)
	_, hasError := box.Get(keyError)

	switch {
	case hasCommand && !hasAnswer && !hasError:
		return classifyRequest(box)
	case hasAnswer && !hasCommand && !hasError:
		return classifyOKResponse(box)
	case hasError && !hasCommand && !hasAnswer:
		return classifyErrorResponse(box)
	default:
		return nil, ErrConfusedFrame
	}
}

func classifyRequest(box *ampframe.Box) (Frame, error) {
	command, _ := box.Get(keyCommand)
	if !utf8.Valid(command) {
		return nil, ErrInvalidUTF8
	}
	var tag []byte
	if t, ok := box.Get(keyAsk); ok {
		if !utf8.Valid(t) {
			return nil, ErrInvalidUTF8
		}
		tag = t
	}
	return Request{Command: string(command), Tag: tag, Fields: stripReserved(box)}, nil
}

func classifyOKResponse(box *ampframe.Box) (Frame, error) {
	tag, _ := box.Get(keyAnswer)
	if !utf8.Valid(tag) {
		return nil, ErrInvalidUTF8
	}
	return OKResponse{Tag: tag, Fields: stripReserved(box)}, nil
}

func classifyErrorResponse(box *ampframe.Box) (Frame, error) {
	tag, _ := box.Get(keyError)
	if !utf8.Valid(tag) {
		return nil, ErrInvalidUTF8
	}
	code, hasCode := box.Get(keyErrorCode)
	description, hasDescription := box.Get(keyErrorDescription)
	if !hasCode || !hasDescription {
		return nil, ErrIncompleteErrorFrame
	}
	return ErrorResponse{Tag: tag, Code: string(code), Description: string(description)}, nil
}

// stripReserved returns a copy of box with every reserved key removed,
// leaving only the application's own fields.
func stripReserved(box *ampframe.Box) *ampframe.Box {
	out := ampframe.NewBox()
	box.Range(func(key string, value []byte) bool {
		switch key {
		case keyCommand, keyAsk, keyAnswer, keyError, keyErrorCode, keyErrorDescription:
		default:
			out.Set(key, value)
		}
		return true
	})
	return out
}
