// ABOUTME: Tests for the server-side client proxy handshake and dispatch
package serverclient

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roomcast/roomcast-go/pkg/protocol"
)

// fakeConn is an in-memory transport.Conn for tests: Recv drains a
// scripted queue of inbound frames, Send/SendBinary record outbound
// frames.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan fakeFrame
	sent    []fakeFrame
	closed  bool
}

type fakeFrame struct {
	data     []byte
	isBinary bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan fakeFrame, 16)}
}

func (f *fakeConn) pushText(v interface{}) {
	data, _ := json.Marshal(v)
	f.inbound <- fakeFrame{data: data}
}

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	f.sent = append(f.sent, fakeFrame{data: data})
	return nil
}

func (f *fakeConn) SendBinary(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	f.sent = append(f.sent, fakeFrame{data: data, isBinary: true})
	return nil
}

func (f *fakeConn) Recv() ([]byte, bool, error) {
	frame, ok := <-f.inbound
	if !ok {
		return nil, false, errors.New("eof")
	}
	return frame.data, frame.isBinary, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeConn) RemoteAddr() string { return "fake" }

func (f *fakeConn) lastSent() fakeFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return fakeFrame{}
	}
	return f.sent[len(f.sent)-1]
}

func helloMessage() protocol.Message {
	return protocol.Message{Type: protocol.TypePlayerHello, Payload: protocol.PlayerInfo{
		PlayerID: "p1", Name: "Kitchen", BufferCapacity: 4,
	}}
}

func TestMessageBeforeHelloClosesConnection(t *testing.T) {
	conn := newFakeConn()
	p := New(conn)

	conn.pushText(protocol.Message{Type: protocol.TypePlayerState, Payload: protocol.PlayerState{}})

	done := make(chan struct{})
	go func() { p.Run(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after pre-hello message")
	}

	if p.IsReady() {
		t.Error("expected not ready")
	}
}

func TestHelloMakesClientReady(t *testing.T) {
	conn := newFakeConn()
	p := New(conn)
	conn.pushText(helloMessage())

	go p.Run()
	time.Sleep(20 * time.Millisecond)

	if !p.IsReady() {
		t.Error("expected ready after hello")
	}
	if p.PlayerInfo() == nil || p.PlayerInfo().PlayerID != "p1" {
		t.Errorf("expected player info to be cached, got %+v", p.PlayerInfo())
	}
	conn.Close()
}

func TestPlayerTimeHandledLocally(t *testing.T) {
	conn := newFakeConn()
	p := New(conn)
	conn.pushText(helloMessage())
	conn.pushText(protocol.Message{Type: protocol.TypePlayerTime, Payload: protocol.PlayerTime{PlayerTransmitted: 100}})

	var gotTime int
	p.StreamCommand.Subscribe(func(protocol.StreamCommand) { t.Error("unexpected stream-command event") })

	go p.Run()
	time.Sleep(30 * time.Millisecond)

	sent := conn.sent
	for _, frame := range sent {
		var msg protocol.Message
		json.Unmarshal(frame.data, &msg)
		if msg.Type == protocol.TypeSourceTime {
			gotTime++
		}
	}
	if gotTime != 1 {
		t.Errorf("expected exactly one source/time reply, got %d", gotTime)
	}
	conn.Close()
}

func TestGroupCommandDispatch(t *testing.T) {
	conn := newFakeConn()
	p := New(conn)
	conn.pushText(helloMessage())
	conn.pushText(protocol.Message{Type: protocol.TypeGroupJoin, Payload: protocol.GroupJoin{GroupID: "kitchen"}})

	received := make(chan GroupCommand, 1)
	p.GroupCommand.Subscribe(func(cmd GroupCommand) { received <- cmd })

	go p.Run()

	select {
	case cmd := <-received:
		if cmd.Kind != GroupCommandJoin || cmd.GroupID != "kitchen" {
			t.Errorf("unexpected command: %+v", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for group command")
	}
	conn.Close()
}

func TestCloseEmittedOnTransportError(t *testing.T) {
	conn := newFakeConn()
	p := New(conn)
	conn.pushText(helloMessage())

	closed := make(chan CloseEvent, 1)
	p.Close.Subscribe(func(ev CloseEvent) { closed <- ev })

	go p.Run()
	time.Sleep(20 * time.Millisecond)
	conn.Close()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close event")
	}
}

func TestSendFailsAfterClose(t *testing.T) {
	conn := newFakeConn()
	p := New(conn)
	conn.Close()
	p.teardown(nil)

	if err := p.Send(protocol.TypeSourceHello, protocol.ServerInfo{}); !errors.Is(err, ErrClientNotConnected) {
		t.Errorf("expected ErrClientNotConnected, got %v", err)
	}
}
