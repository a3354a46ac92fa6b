package amp

import (
	"context"

	"github.com/wirerpc/amp/pkg/ampframe"
)

// DispatchRequest is one inbound Request forwarded to the application
// over the push-dispatch channel returned by Serve. Ticket is nil for a
// fire-and-forget request.
type DispatchRequest struct {
	Command string
	Fields  *ampframe.Box
	Ticket  *ReplyTicket
}

// Dispatcher is the pull-dispatch surface: the application registers one
// with ServeWithDispatcher instead of draining a channel. Dispatch
// handles a tagged request and must produce either a reply box or a
// remote error; DispatchNoReply handles a fire-and-forget request.
type Dispatcher interface {
	Dispatch(ctx context.Context, command string, fields *ampframe.Box) (*ampframe.Box, *RemoteError)
	DispatchNoReply(ctx context.Context, command string, fields *ampframe.Box)
}
