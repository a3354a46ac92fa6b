package amp

import (
	"sync"
	"sync/atomic"

	"github.com/wirerpc/amp/pkg/ampframe"
)

// State is the connection's lifecycle state.
type State int

const (
	// StateConnected means neither loop has stopped.
	StateConnected State = iota
	// StateClosing means exactly one of the read/write loops has
	// stopped.
	StateClosing
	// StateClosed means both loops have stopped.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type loopState struct {
	readDone  atomic.Bool
	writeDone atomic.Bool
}

// Handle is returned when a connection starts. It owns the shutdown
// signal and the write-command channel (for minting RequestSenders);
// neither the reply-map nor any other read-loop state is reachable from
// here, by design (see readLoop).
type Handle struct {
	state        *loopState
	writeCh      chan writeCmd
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	readErrCh    <-chan error
	writeErrCh   <-chan error
	version      ampframe.Version
}

// RequestSender returns a fresh sender for originating outbound
// requests on this connection. Multiple senders may be used
// concurrently; all serialize through the same write loop.
func (h *Handle) RequestSender() *RequestSender {
	return &RequestSender{writeCh: h.writeCh, version: h.version}
}

// Shutdown fires the shutdown signal: the read loop stops accepting new
// input (subsequent wire input is abandoned) and instructs the write
// loop to exit once its already-queued outbound writes complete. Safe
// to call more than once or concurrently with Join.
func (h *Handle) Shutdown() {
	h.shutdownOnce.Do(func() { close(h.shutdownCh) })
}

// Join blocks until both the read and write loops have terminated,
// returning the first error either reported (nil if both ended
// cleanly). It does not itself trigger shutdown; call Shutdown first,
// or rely on the peer ending the stream.
func (h *Handle) Join() error {
	readErr := <-h.readErrCh
	writeErr := <-h.writeErrCh
	if readErr != nil {
		return readErr
	}
	return writeErr
}

// State reports the connection's current lifecycle state.
func (h *Handle) State() State {
	read := h.state.readDone.Load()
	write := h.state.writeDone.Load()
	switch {
	case read && write:
		return StateClosed
	case read || write:
		return StateClosing
	default:
		return StateConnected
	}
}
