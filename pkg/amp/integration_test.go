package amp

import (
	"context"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/wirerpc/amp/pkg/ampframe"
	"github.com/wirerpc/amp/pkg/ampserde"
)

func forceGC() {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
}

type sumArgs struct {
	A int `amp:"a"`
	B int `amp:"b"`
}

type sumResult struct {
	Total int `amp:"total"`
}

// TestEndToEndSumScenario is Testable Property 10: a client issues
// Sum{a:123,b:321} and an application-level handler on the other end of
// the pipe replies with the total.
func TestEndToEndSumScenario(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientHandle, _ := Serve(ctx, clientConn, clientConn)
	serverHandle, dispatchCh := Serve(ctx, serverConn, serverConn)
	defer clientHandle.Shutdown()
	defer serverHandle.Shutdown()

	go func() {
		for req := range dispatchCh {
			if req.Command != "Sum" {
				if req.Ticket != nil {
					req.Ticket.Error(ctx, "UNKNOWN_COMMAND", req.Command)
				}
				continue
			}
			var args sumArgs
			if err := ampserde.Unmarshal(req.Fields, &args, ampframe.V1); err != nil {
				if req.Ticket != nil {
					req.Ticket.Error(ctx, "BAD_ARGS", err.Error())
				}
				continue
			}
			if req.Ticket != nil {
				req.Ticket.Reply(ctx, sumResult{Total: args.A + args.B})
			}
		}
	}()

	sender := clientHandle.RequestSender()
	fields, err := sender.CallRemote(ctx, "Sum", sumArgs{A: 123, B: 321})
	if err != nil {
		t.Fatalf("CallRemote() error: %v", err)
	}
	var result sumResult
	if err := ampserde.Unmarshal(fields, &result, ampframe.V1); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Total != 444 {
		t.Fatalf("got total=%d, want 444", result.Total)
	}
}

// TestRemoteErrorPropagation is Testable Property 11.
func TestRemoteErrorPropagation(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientHandle, _ := Serve(ctx, clientConn, clientConn)
	serverHandle, dispatchCh := Serve(ctx, serverConn, serverConn)
	defer clientHandle.Shutdown()
	defer serverHandle.Shutdown()

	go func() {
		for req := range dispatchCh {
			if req.Ticket != nil {
				req.Ticket.Error(ctx, "OVERFLOW", "too big")
			}
		}
	}()

	sender := clientHandle.RequestSender()
	_, err := sender.CallRemote(ctx, "Sum", sumArgs{A: 1, B: 2})
	remoteErr, ok := err.(*RemoteError)
	if !ok {
		t.Fatalf("CallRemote() error = %v (%T), want *RemoteError", err, err)
	}
	if remoteErr.Code != "OVERFLOW" || remoteErr.Description != "too big" {
		t.Fatalf("got code=%q description=%q", remoteErr.Code, remoteErr.Description)
	}
}

// TestFireAndForgetInstallsNoReplyMapEntry is Testable Property 9: a
// noreply call must not block waiting for a response that will never
// come, and the peer must see a Request with no _ask key.
func TestFireAndForgetInstallsNoReplyMapEntry(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientHandle, _ := Serve(ctx, clientConn, clientConn)
	defer clientHandle.Shutdown()

	decoder := ampframe.NewDecoder(serverConn, ampframe.V1)
	done := make(chan *ampframe.Box, 1)
	go func() {
		box, err := decoder.Next()
		if err != nil {
			close(done)
			return
		}
		done <- box
	}()

	sender := clientHandle.RequestSender()
	if err := sender.CallRemoteNoReply(ctx, "Log", sumArgs{A: 1, B: 2}); err != nil {
		t.Fatalf("CallRemoteNoReply() error: %v", err)
	}

	select {
	case box := <-done:
		if box == nil {
			t.Fatalf("peer did not receive a frame")
		}
		if _, ok := box.Get("_ask"); ok {
			t.Fatalf("fire-and-forget request carried an _ask tag")
		}
		if cmd, _ := box.Get("_command"); string(cmd) != "Log" {
			t.Fatalf("got command %q, want Log", cmd)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for peer to observe the request")
	}
}

// TestTicketAutoErrorOnDrop is Testable Property 8: a ticket dropped
// without Reply/Error emits an UNKNOWN/"Request dropped without reply"
// ErrorResponse.
func TestTicketAutoErrorOnDrop(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, dispatchCh := Serve(ctx, serverConn, serverConn)

	box := ampframe.NewBox()
	box.Set("_ask", []byte("23"))
	box.Set("_command", []byte("Sum"))
	if err := ampframe.Encode(clientConn, box, ampframe.V1); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	req := <-dispatchCh
	if req.Ticket == nil {
		t.Fatalf("expected a ReplyTicket for a tagged request")
	}
	req.Ticket = nil // drop without reply; finalizer fires on next GC

	decoder := ampframe.NewDecoder(clientConn, ampframe.V1)
	resultCh := make(chan *ampframe.Box, 1)
	go func() {
		b, err := decoder.Next()
		if err == nil {
			resultCh <- b
		}
	}()

	forceGC()

	select {
	case got := <-resultCh:
		code, _ := got.Get("_error_code")
		desc, _ := got.Get("_error_description")
		if string(code) != "UNKNOWN" || string(desc) != "Request dropped without reply" {
			t.Fatalf("got code=%q description=%q", code, desc)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for the auto-error")
	}
}
