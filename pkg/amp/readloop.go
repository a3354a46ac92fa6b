package amp

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/wirerpc/amp/pkg/ampframe"
)

// decodeResult is what the dedicated decode goroutine feeds to the read
// loop's select. Running the (blocking) decoder on its own goroutine
// and handing results over a channel is what lets a single native Go
// select multiplex "next frame" against "next expect-reply
// registration" against "shutdown", the same three-way wait
// tokio::select! gives the original for free.
type decodeResult struct {
	box *ampframe.Box
	err error
}

// readLoop owns the reply-map exclusively: it is read and written only
// here, crossed by the rest of the system solely via expectCh messages.
// It returns when the input stream ends cleanly (io.EOF), on a fatal
// decode/classification error, or when shutdownCh is closed.
func readLoop(
	ctx context.Context,
	r io.Reader,
	writeCh chan<- writeCmd,
	dispatchCh chan<- DispatchRequest,
	dispatcher Dispatcher,
	expectCh <-chan expectReply,
	shutdownCh <-chan struct{},
	version ampframe.Version,
	state *loopState,
) error {
	defer state.readDone.Store(true)

	decoder := ampframe.NewDecoder(r, version)
	frameCh := make(chan decodeResult)
	decodeDone := make(chan struct{})
	go func() {
		defer close(decodeDone)
		for {
			box, err := decoder.Next()
			select {
			case frameCh <- decodeResult{box: box, err: err}:
			case <-decodeDone:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	replyMap := make(map[uint64]chan pendingResponse)
	defer func() {
		for tag, slot := range replyMap {
			delete(replyMap, tag)
			slot <- pendingResponse{err: ErrConnectionClosed}
		}
	}()

	var loopErr error

loop:
	for {
		select {
		case res := <-frameCh:
			if res.err != nil {
				if res.err != io.EOF {
					loopErr = fmt.Errorf("amp: read loop: %w", res.err)
				}
				break loop
			}
			if err := dispatchFrame(ctx, res.box, replyMap, writeCh, dispatchCh, dispatcher, version); err != nil {
				loopErr = err
				break loop
			}

		case expect, ok := <-expectCh:
			if !ok {
				continue
			}
			replyMap[expect.tag] = expect.slot
			close(expect.confirm)

		case <-shutdownCh:
			break loop
		}
	}

	// The read loop always instructs the write loop to exit before
	// returning, whether it stopped because of EOF, a fatal error, or an
	// explicit shutdown signal: uniform, rather than only on the
	// explicit-shutdown path. This send blocks rather than dropping the
	// signal when writeCh's buffer is momentarily full: the read loop
	// has already left its select above, so it is the last thing it
	// will ever send, and ordering against writeLoop's drain of
	// already-queued commands is safe.
	writeCh <- writeCmd{kind: cmdExit}

	return loopErr
}

func dispatchFrame(
	ctx context.Context,
	box *ampframe.Box,
	replyMap map[uint64]chan pendingResponse,
	writeCh chan<- writeCmd,
	dispatchCh chan<- DispatchRequest,
	dispatcher Dispatcher,
	version ampframe.Version,
) error {
	frame, err := Classify(box)
	if err != nil {
		return err
	}

	switch f := frame.(type) {
	case Request:
		var ticket *ReplyTicket
		if f.Tag != nil {
			ticket = newReplyTicket(f.Tag, writeCh, version)
		}
		if dispatchCh != nil {
			select {
			case dispatchCh <- DispatchRequest{Command: f.Command, Fields: f.Fields, Ticket: ticket}:
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if dispatcher != nil {
			go runDispatcher(ctx, dispatcher, f, ticket)
		}
		return nil

	case OKResponse:
		return deliverResponse(f.Tag, frame, replyMap)

	case ErrorResponse:
		return deliverResponse(f.Tag, frame, replyMap)

	default:
		return ErrConfusedFrame
	}
}

func deliverResponse(tag []byte, frame Frame, replyMap map[uint64]chan pendingResponse) error {
	tagNum, err := strconv.ParseUint(string(tag), 16, 64)
	if err != nil {
		return ErrUnmatchedReply
	}
	slot, ok := replyMap[tagNum]
	if !ok {
		return ErrUnmatchedReply
	}
	delete(replyMap, tagNum)
	slot <- pendingResponse{frame: frame}
	return nil
}

// runDispatcher adapts the pull-dispatch Dispatcher interface onto a
// single inbound request, running as its own goroutine so a slow
// handler never blocks the read loop from servicing other traffic.
func runDispatcher(ctx context.Context, d Dispatcher, req Request, ticket *ReplyTicket) {
	if ticket == nil {
		d.DispatchNoReply(ctx, req.Command, req.Fields)
		return
	}
	result, remoteErr := d.Dispatch(ctx, req.Command, req.Fields)
	if remoteErr != nil {
		ticket.Error(ctx, remoteErr.Code, remoteErr.Description)
		return
	}
	ticket.Reply(ctx, result)
}
