package amp

import (
	"context"
	"runtime"
	"sync"

	"github.com/wirerpc/amp/pkg/ampframe"
	"github.com/wirerpc/amp/pkg/ampserde"
)

// ReplyTicket is a one-shot handle given to whatever handles an inbound
// tagged Request. Exactly one of Reply or Error must be called;
// dropping it without either schedules a best-effort automatic
// ErrorResponse with code UNKNOWN and description "Request dropped
// without reply" the next time the garbage collector notices it is
// unreachable.
//
// Go has no deterministic destructor, so the auto-error is modeled with
// runtime.SetFinalizer rather than a guaranteed synchronous drop. The
// specification already tolerates this: the auto-error is explicitly
// best-effort, and may be silently lost during shutdown.
type ReplyTicket struct {
	mu      sync.Mutex
	tag     []byte
	writeCh chan<- writeCmd
	version ampframe.Version
	done    bool
}

func newReplyTicket(tag []byte, writeCh chan<- writeCmd, version ampframe.Version) *ReplyTicket {
	t := &ReplyTicket{tag: tag, writeCh: writeCh, version: version}
	runtime.SetFinalizer(t, (*ReplyTicket).finalize)
	return t
}

// consume marks the ticket used, returning its tag and write endpoint
// if this is the first call.
func (t *ReplyTicket) consume() ([]byte, chan<- writeCmd, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, nil, false
	}
	t.done = true
	runtime.SetFinalizer(t, nil)
	return t.tag, t.writeCh, true
}

// Reply sends a successful response. payload is marshaled into the
// frame's fields with ampserde, unless it is already an *ampframe.Box
// (as produced by a pull-style Dispatcher), in which case its entries
// are copied through unchanged. A nil payload sends an empty reply.
func (t *ReplyTicket) Reply(ctx context.Context, payload interface{}) error {
	tag, ch, ok := t.consume()
	if !ok {
		return ErrTicketConsumed
	}
	var fields *ampframe.Box
	switch p := payload.(type) {
	case nil:
		fields = ampframe.NewBox()
	case *ampframe.Box:
		fields = p
	default:
		fields = ampframe.NewBox()
		if err := ampserde.MarshalInto(fields, payload, t.version); err != nil {
			return err
		}
	}
	frame, err := encodeReplyFrame(keyAnswer, tag, fields, t.version)
	if err != nil {
		return err
	}
	return sendWriteCmd(ctx, ch, writeCmd{kind: cmdReply, reply: frame})
}

// Error sends a failed response. An empty code defaults to "UNKNOWN" per
// the specification's reply-ticket error path.
func (t *ReplyTicket) Error(ctx context.Context, code, description string) error {
	tag, ch, ok := t.consume()
	if !ok {
		return ErrTicketConsumed
	}
	if code == "" {
		code = "UNKNOWN"
	}
	frame, err := encodeErrorFrame(tag, code, description, t.version)
	if err != nil {
		return err
	}
	return sendWriteCmd(ctx, ch, writeCmd{kind: cmdReply, reply: frame})
}

func (t *ReplyTicket) finalize() {
	tag, ch, ok := t.consume()
	if !ok {
		return
	}
	frame, err := encodeErrorFrame(tag, "UNKNOWN", "Request dropped without reply", t.version)
	if err != nil {
		return
	}
	go func() {
		// writeCh is never closed, so this send cannot panic; if the
		// write loop has already stopped by the time a finalizer runs,
		// nothing drains it and this goroutine blocks forever instead.
		// The auto-error is explicitly best-effort, so that leak is
		// accepted rather than closing a channel other goroutines still
		// send on.
		ch <- writeCmd{kind: cmdReply, reply: frame}
	}()
}

func sendWriteCmd(ctx context.Context, ch chan<- writeCmd, cmd writeCmd) error {
	select {
	case ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
