package amp

import (
	"context"
	"io"

	"github.com/wirerpc/amp/pkg/ampframe"
)

// DefaultQueueDepth is the bound applied to every internal channel
// (write-commands, expect-reply registrations, dispatch) unless
// overridden with WithQueueDepth. A single unbounded channel would
// silently let a runaway producer degrade the whole connection.
const DefaultQueueDepth = 32

type options struct {
	version    ampframe.Version
	queueDepth int
}

// Option configures a Serve/ServeWithDispatcher call.
type Option func(*options)

// WithVersion selects the wire variant (V1 by default).
func WithVersion(v ampframe.Version) Option {
	return func(o *options) { o.version = v }
}

// WithQueueDepth overrides the bound on internal channels.
func WithQueueDepth(n int) Option {
	return func(o *options) { o.queueDepth = n }
}

func resolveOptions(opts []Option) options {
	o := options{version: ampframe.V1, queueDepth: DefaultQueueDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Serve starts a connection over r/w using the push-dispatch surface: it
// returns a Handle for lifecycle control and a channel that receives
// every inbound request (tagged or not) for the application to drain.
// ctx governs delivery to the dispatch channel (CallRemote and
// ReplyTicket.Reply/Error take their own ctx); it does not by itself
// stop the loops — use Handle.Shutdown for that.
func Serve(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) (*Handle, <-chan DispatchRequest) {
	o := resolveOptions(opts)
	dispatchCh := make(chan DispatchRequest, o.queueDepth)
	h := startEngine(ctx, r, w, o, dispatchCh, nil)
	return h, dispatchCh
}

// ServeWithDispatcher starts a connection using the pull-dispatch
// surface: the engine invokes dispatcher directly for each inbound
// request instead of delivering to a channel.
func ServeWithDispatcher(ctx context.Context, r io.Reader, w io.Writer, dispatcher Dispatcher, opts ...Option) *Handle {
	o := resolveOptions(opts)
	return startEngine(ctx, r, w, o, nil, dispatcher)
}

func startEngine(ctx context.Context, r io.Reader, w io.Writer, o options, dispatchCh chan DispatchRequest, dispatcher Dispatcher) *Handle {
	state := &loopState{}
	writeCh := make(chan writeCmd, o.queueDepth)
	expectCh := make(chan expectReply, o.queueDepth)
	shutdownCh := make(chan struct{})

	readErrCh := make(chan error, 1)
	writeErrCh := make(chan error, 1)

	go func() {
		readErrCh <- readLoop(ctx, r, writeCh, dispatchCh, dispatcher, expectCh, shutdownCh, o.version, state)
	}()
	go func() {
		writeErrCh <- writeLoop(w, writeCh, expectCh, state)
	}()

	return &Handle{
		state:      state,
		writeCh:    writeCh,
		shutdownCh: shutdownCh,
		readErrCh:  readErrCh,
		writeErrCh: writeErrCh,
		version:    o.version,
	}
}
