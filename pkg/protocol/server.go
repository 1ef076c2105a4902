package protocol

import (
	"context"
	"net"

	"github.com/rs/zerolog/log"
	"github.com/sutra-memory/engine/internal/errorsx"
)

// Server is the Protocol Server (C8): a net.Listener driving one goroutine
// per connection, each running a strict read-request, dispatch,
// write-response loop with no pipelining, matching spec §4.8. Connection
// handling style (Accept loop, one goroutine per conn, logged and
// swallowed per-connection errors rather than crashing the listener) is
// grounded on the teacher's StorageEngine request-serving loop, generalized
// from its row-oriented RPCs to this package's Request/Response variants.
type Server struct {
	listener net.Listener
	handler  *Handler
}

// NewServer wraps an already-bound listener (the caller chooses tcp vs
// unix, per spec §6's closed configuration set) with handler.
func NewServer(listener net.Listener, handler *Handler) *Server {
	return &Server{listener: listener, handler: handler}
}

// Serve accepts connections until the listener is closed or ctx is
// cancelled. Each connection is handled on its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go s.serveConn(ctx, conn)
	}
}

// serveConn runs the per-connection loop: read one framed request, dispatch
// it, write one framed response. A decode error or an oversized frame
// produces a single Error response followed by closing the connection
// (spec §4.8); a read that fails because the peer closed or cut a frame
// short just closes the connection.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	for {
		payload, err := ReadMessage(conn)
		if err != nil {
			if errorsx.Is(err, errorsx.InvalidRequest) {
				writeErrorAndClose(conn, err.Error())
			}
			return
		}

		req, err := DecodeRequest(payload)
		if err != nil {
			writeErrorAndClose(conn, err.Error())
			return
		}

		resp := s.handler.Handle(ctx, req)
		if err := WriteMessage(conn, EncodeResponse(resp)); err != nil {
			log.Error().Err(err).Msg("protocol: failed to write response")
			return
		}
	}
}

func writeErrorAndClose(conn net.Conn, msg string) {
	resp := errorResponse(msg)
	_ = WriteMessage(conn, EncodeResponse(resp))
}
