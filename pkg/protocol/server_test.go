package protocol

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sutra-memory/engine/pkg/snapshot"
)

func TestServerRoundTripGetStats(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	rv := snapshot.NewReadView(buildTestSnapshot())
	srv := NewServer(listener, &Handler{ReadView: rv})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := WriteMessage(conn, EncodeRequest(&Request{Kind: ReqGetStats})); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, err := ReadMessage(conn)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := DecodeResponse(payload)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Kind != RespGetStatsOk || resp.GetStats.ConceptCount != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestServerClosesConnectionOnMalformedRequest(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	rv := snapshot.NewReadView(buildTestSnapshot())
	srv := NewServer(listener, &Handler{ReadView: rv})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := WriteMessage(conn, []byte{0xff}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, err := ReadMessage(conn)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := DecodeResponse(payload)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Kind != RespError {
		t.Fatalf("expected an Error response for an unknown request kind, got %+v", resp)
	}

	// the server closes the connection after the Error response; a further
	// read should observe EOF rather than hang.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected the connection to be closed after a protocol error")
	}
}
