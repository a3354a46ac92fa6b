// Package amp implements the AMP connection engine: a read loop, a
// write loop, a reply-tag map, a one-shot reply-ticket, and the
// request-sender surface applications use to originate outbound
// requests. Together they guarantee at most one reply per inbound
// request, correct interleaving of self-originated and inbound
// traffic on the same byte stream, and clean, cooperative shutdown.
//
// Serve starts a connection over an already-opened byte stream (a pipe,
// a socket, anything implementing io.Reader/io.Writer) and hands back a
// Handle for lifecycle control plus a channel of inbound requests to
// dispatch. ServeWithDispatcher is the pull-style alternative: instead
// of a channel, the application registers a Dispatcher and the engine
// invokes it directly for each inbound request.
package amp
