package server

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/warpq"
)

// pipeServer starts a push-capable jrpc2 server over an in-memory pipe and
// returns the client end of the pipe.
func pipeServer(t *testing.T) (channel.Channel, *jrpc2.Server) {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	cli := channel.Line(cr, cw)
	srv := jrpc2.NewServer(handler.Map{}, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(channel.Line(sr, sw))
	t.Cleanup(func() {
		cli.Close()
		_ = srv.Wait()
	})
	return cli, srv
}

func TestRPCNotifier_RegisterUnregister(t *testing.T) {
	n := NewRPCNotifier(nil)
	_, srv := pipeServer(t)
	n.Register(srv)
	n.Register(srv)
	if n.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", n.Count())
	}
	n.Unregister(srv)
	n.Unregister(srv)
	if n.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", n.Count())
	}
}

func TestRPCNotifier_ForwardBroadcastsEvents(t *testing.T) {
	n := NewRPCNotifier(nil)
	cli, srv := pipeServer(t)
	n.Register(srv)

	em := warpq.NewEmitter()
	n.Forward(em)

	got := make(chan []byte, 1)
	go func() {
		data, _ := cli.Recv()
		got <- data
	}()
	em.Emit(warpq.Event{Type: warpq.EventRemoved, Key: "gone"})

	var msg struct {
		Method string                   `json:"method"`
		Params common.EventNotification `json:"params"`
	}
	select {
	case data := <-got:
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
	if msg.Method != common.NotifyEvent || msg.Params.Type != "removed" || msg.Params.Key != "gone" {
		t.Fatalf("unexpected notification: %+v", msg)
	}
	if n.Count() != 1 {
		t.Fatal("healthy server dropped")
	}
}

func TestRPCNotifier_BroadcastDropsDisconnected(t *testing.T) {
	n := NewRPCNotifier(nil)
	cli, srv := pipeServer(t)
	n.Register(srv)

	cli.Close()
	_ = srv.Wait()

	n.Broadcast(common.NotifyEvent, &common.EventNotification{Type: "added"})
	if n.Count() != 0 {
		t.Fatalf("Count() = %d after disconnect, want 0", n.Count())
	}
}

func TestRPCNotifier_StopAll(t *testing.T) {
	n := NewRPCNotifier(nil)
	_, a := pipeServer(t)
	_, b := pipeServer(t)
	n.Register(a)
	n.Register(b)

	n.StopAll()
	if n.Count() != 0 {
		t.Fatal("servers still registered")
	}
	for _, srv := range []*jrpc2.Server{a, b} {
		done := make(chan struct{})
		go func() { srv.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("server not stopped")
		}
	}
}

func TestEventNotification(t *testing.T) {
	at := time.Unix(1700000000, 0)
	got := EventNotification(warpq.Event{
		Type:    warpq.EventFailed,
		Key:     "k",
		Attempt: "id",
		Err:     errors.New("boom"),
		At:      at,
	})
	if got.Type != "failed" || got.Key != "k" || got.Attempt != "id" || got.Error != "boom" || !got.At.Equal(at) {
		t.Fatalf("unexpected notification: %+v", got)
	}

	got = EventNotification(warpq.Event{
		Type:    warpq.EventSuccess,
		Key:     "k",
		Payload: []byte("12345"),
		Elapsed: 1500 * time.Millisecond,
	})
	if got.Bytes != 5 || got.ElapsedMs != 1500 || got.Error != "" {
		t.Fatalf("unexpected notification: %+v", got)
	}
}
