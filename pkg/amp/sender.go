package amp

import (
	"context"

	"github.com/wirerpc/amp/pkg/ampframe"
	"github.com/wirerpc/amp/pkg/ampserde"
)

// RequestSender is the public surface for originating outbound requests
// on a connection. Multiple RequestSenders (from repeated calls to
// Handle.RequestSender) may be used concurrently; all of them serialize
// through the same write loop.
type RequestSender struct {
	writeCh chan<- writeCmd
	version ampframe.Version
}

// CallRemote sends a Request for command with request marshaled as its
// fields, and blocks until the peer's response arrives (or ctx is
// canceled, or the connection closes first). A peer ErrorResponse comes
// back as a *RemoteError.
func (s *RequestSender) CallRemote(ctx context.Context, command string, request interface{}) (*ampframe.Box, error) {
	slot := make(chan pendingResponse, 1)
	cmd := writeCmd{
		kind:      cmdRequest,
		frameFn:   requestFrameFn(command, request, s.version, true),
		replySlot: slot,
	}

	if err := sendWriteCmd(ctx, s.writeCh, cmd); err != nil {
		return nil, err
	}

	select {
	case resp := <-slot:
		if resp.err != nil {
			return nil, resp.err
		}
		switch f := resp.frame.(type) {
		case OKResponse:
			return f.Fields, nil
		case ErrorResponse:
			return nil, &RemoteError{Code: f.Code, Description: f.Description}
		default:
			return nil, ErrConfusedFrame
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CallRemoteNoReply sends a fire-and-forget Request: no tag, no reply
// channel, no reply-map entry.
func (s *RequestSender) CallRemoteNoReply(ctx context.Context, command string, request interface{}) error {
	cmd := writeCmd{
		kind:    cmdRequest,
		frameFn: requestFrameFn(command, request, s.version, false),
	}
	return sendWriteCmd(ctx, s.writeCh, cmd)
}

// requestFrameFn builds _command before _ask, the reverse of the
// specification's canonical wire example. Key order carries no meaning
// on the wire, so this produces an equivalent frame, not an identical
// one, to a hand-ordered box.
func requestFrameFn(command string, request interface{}, version ampframe.Version, expectReply bool) func([]byte) ([]byte, error) {
	return func(tag []byte) ([]byte, error) {
		box := ampframe.NewBox()
		box.Set(keyCommand, []byte(command))
		if expectReply && tag != nil {
			box.Set(keyAsk, tag)
		}
		if request != nil {
			if err := ampserde.MarshalInto(box, request, version); err != nil {
				return nil, err
			}
		}
		return encodeBox(box, version)
	}
}
