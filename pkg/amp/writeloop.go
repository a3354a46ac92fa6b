package amp

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/wirerpc/amp/pkg/ampframe"
)

type cmdKind int

const (
	cmdReply cmdKind = iota
	cmdRequest
	cmdExit
)

// writeCmd is a unit of work for the write loop. cmdReply carries an
// already wire-encoded frame (a reply-ticket's Reply/Error, or a
// ticket's auto-error). cmdRequest carries a frameFn that is only
// invoked once the tag (if any) is known, so the reply-map entry can be
// installed before the bytes are built.
type writeCmd struct {
	kind      cmdKind
	reply     []byte
	frameFn   func(tag []byte) ([]byte, error)
	replySlot chan pendingResponse
}

// pendingResponse is delivered to a reply-slot exactly once: either the
// classified response Frame, or an error that ends the wait (a local
// failure, a remote error is carried inside the Frame itself as
// ErrorResponse, not here).
type pendingResponse struct {
	frame Frame
	err   error
}

// expectReply is the write loop's request to the read loop to install a
// reply-map entry before the corresponding request bytes are emitted.
// confirm is closed once the entry exists.
type expectReply struct {
	tag     uint64
	slot    chan pendingResponse
	confirm chan struct{}
}

// writeLoop is the single consumer of cmds; it is the only goroutine
// that writes to w, and the only place outbound reply tags are
// allocated. It returns when it receives a cmdExit, when w.Write fails,
// or when cmds is closed.
func writeLoop(w io.Writer, cmds <-chan writeCmd, expectCh chan<- expectReply, state *loopState) error {
	defer state.writeDone.Store(true)

	var seqno uint64
	for cmd := range cmds {
		switch cmd.kind {
		case cmdExit:
			return nil

		case cmdReply:
			if _, err := w.Write(cmd.reply); err != nil {
				return fmt.Errorf("amp: write loop: %w", err)
			}

		case cmdRequest:
			var tag []byte
			if cmd.replySlot != nil {
				seqno++
				tag = []byte(strconv.FormatUint(seqno, 16))

				confirm := make(chan struct{})
				expectCh <- expectReply{tag: seqno, slot: cmd.replySlot, confirm: confirm}
				// The confirm handshake orders "reply-map entry
				// exists" strictly before "bytes hit the wire": a
				// peer replying as fast as it can read must never
				// race ahead of this registration.
				<-confirm
			}

			frame, err := cmd.frameFn(tag)
			if err != nil {
				if cmd.replySlot != nil {
					cmd.replySlot <- pendingResponse{err: err}
				}
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return fmt.Errorf("amp: write loop: %w", err)
			}
		}
	}
	return nil
}

func encodeReplyFrame(key string, tag []byte, fields *ampframe.Box, version ampframe.Version) ([]byte, error) {
	box := ampframe.NewBox()
	box.Set(key, tag)
	if fields != nil {
		fields.Range(func(k string, v []byte) bool {
			box.Set(k, v)
			return true
		})
	}
	return encodeBox(box, version)
}

func encodeErrorFrame(tag []byte, code, description string, version ampframe.Version) ([]byte, error) {
	box := ampframe.NewBox()
	box.Set(keyError, tag)
	box.Set(keyErrorCode, []byte(code))
	box.Set(keyErrorDescription, []byte(description))
	return encodeBox(box, version)
}

func encodeBox(box *ampframe.Box, version ampframe.Version) ([]byte, error) {
	var buf bytes.Buffer
	if err := ampframe.Encode(&buf, box, version); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
