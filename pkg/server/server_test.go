// ABOUTME: Tests for client acceptance, group command dispatch, and close handling
package server

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/roomcast/roomcast-go/pkg/protocol"
)

type fakeConn struct {
	inbound chan []byte
	sent    [][]byte
}

func newFakeConn() *fakeConn { return &fakeConn{inbound: make(chan []byte, 4)} }

func (c *fakeConn) Send(data []byte) error       { c.sent = append(c.sent, data); return nil }
func (c *fakeConn) SendBinary(data []byte) error { c.sent = append(c.sent, data); return nil }
func (c *fakeConn) Recv() ([]byte, bool, error) {
	data, ok := <-c.inbound
	if !ok {
		return nil, false, errors.New("closed")
	}
	return data, false, nil
}
func (c *fakeConn) Close() error {
	select {
	case <-c.inbound:
	default:
		close(c.inbound)
	}
	return nil
}
func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) pushText(v protocol.Message) {
	data, _ := json.Marshal(v)
	c.inbound <- data
}

func newTestServer() *Server {
	return New(protocol.ServerInfo{ServerID: "srv", Name: "Test Server"}, []string{"kitchen", "office"})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAcceptSendsSourceHello(t *testing.T) {
	s := newTestServer()
	conn := newFakeConn()
	proxy := s.Accept(conn)

	if len(conn.sent) == 0 {
		t.Fatal("expected source/hello to be sent immediately")
	}
	var msg protocol.Message
	json.Unmarshal(conn.sent[0], &msg)
	if msg.Type != protocol.TypeSourceHello {
		t.Errorf("expected source/hello, got %q", msg.Type)
	}
	_ = proxy
}

func TestGroupJoinAddsClient(t *testing.T) {
	s := newTestServer()
	conn := newFakeConn()
	s.Accept(conn)

	conn.pushText(protocol.Message{Type: protocol.TypePlayerHello, Payload: protocol.PlayerInfo{PlayerID: "p1"}})
	conn.pushText(protocol.Message{Type: protocol.TypeGroupJoin, Payload: protocol.GroupJoin{GroupID: "kitchen"}})

	waitFor(t, func() bool { return len(s.Group("kitchen").Members()) == 1 })
}

func TestGroupJoinUnknownGroupIgnored(t *testing.T) {
	s := newTestServer()
	conn := newFakeConn()
	s.Accept(conn)

	conn.pushText(protocol.Message{Type: protocol.TypePlayerHello, Payload: protocol.PlayerInfo{PlayerID: "p1"}})
	conn.pushText(protocol.Message{Type: protocol.TypeGroupJoin, Payload: protocol.GroupJoin{GroupID: "nonexistent"}})

	time.Sleep(30 * time.Millisecond)
	for _, g := range s.Groups() {
		if len(g.Members()) != 0 {
			t.Errorf("expected no group membership, got one in %s", g.ID)
		}
	}
}

func TestGroupUnjoinRemovesFromContainingGroup(t *testing.T) {
	s := newTestServer()
	conn := newFakeConn()
	proxy := s.Accept(conn)

	conn.pushText(protocol.Message{Type: protocol.TypePlayerHello, Payload: protocol.PlayerInfo{PlayerID: "p1"}})
	conn.pushText(protocol.Message{Type: protocol.TypeGroupJoin, Payload: protocol.GroupJoin{GroupID: "kitchen"}})
	waitFor(t, func() bool { return s.Group("kitchen").HasMember(proxy.ID) })

	conn.pushText(protocol.Message{Type: protocol.TypeGroupUnjoin, Payload: struct{}{}})
	waitFor(t, func() bool { return !s.Group("kitchen").HasMember(proxy.ID) })
}

func TestGroupGetListReportsAllGroups(t *testing.T) {
	s := newTestServer()
	conn := newFakeConn()
	s.Accept(conn)

	conn.pushText(protocol.Message{Type: protocol.TypePlayerHello, Payload: protocol.PlayerInfo{PlayerID: "p1"}})
	conn.pushText(protocol.Message{Type: protocol.TypeGroupGetList, Payload: struct{}{}})

	waitFor(t, func() bool { return len(conn.sent) >= 2 })

	var found protocol.GroupList
	for _, frame := range conn.sent {
		var msg protocol.Message
		json.Unmarshal(frame, &msg)
		if msg.Type == protocol.TypeGroupList {
			payload, _ := json.Marshal(msg.Payload)
			json.Unmarshal(payload, &found)
		}
	}
	if len(found.Groups) != 2 {
		t.Fatalf("expected 2 groups listed, got %d", len(found.Groups))
	}
}

func TestGroupJoinLeavesPreviousGroup(t *testing.T) {
	s := newTestServer()
	conn := newFakeConn()
	proxy := s.Accept(conn)

	conn.pushText(protocol.Message{Type: protocol.TypePlayerHello, Payload: protocol.PlayerInfo{PlayerID: "p1"}})
	conn.pushText(protocol.Message{Type: protocol.TypeGroupJoin, Payload: protocol.GroupJoin{GroupID: "kitchen"}})
	waitFor(t, func() bool { return s.Group("kitchen").HasMember(proxy.ID) })

	conn.pushText(protocol.Message{Type: protocol.TypeGroupJoin, Payload: protocol.GroupJoin{GroupID: "office"}})
	waitFor(t, func() bool { return s.Group("office").HasMember(proxy.ID) })

	if s.Group("kitchen").HasMember(proxy.ID) {
		t.Error("expected client to be removed from kitchen after joining office")
	}
}

func TestCloseRemovesClientFromGroups(t *testing.T) {
	s := newTestServer()
	conn := newFakeConn()
	proxy := s.Accept(conn)

	conn.pushText(protocol.Message{Type: protocol.TypePlayerHello, Payload: protocol.PlayerInfo{PlayerID: "p1"}})
	conn.pushText(protocol.Message{Type: protocol.TypeGroupJoin, Payload: protocol.GroupJoin{GroupID: "kitchen"}})
	waitFor(t, func() bool { return s.Group("kitchen").HasMember(proxy.ID) })

	conn.Close()
	waitFor(t, func() bool { return !s.Group("kitchen").HasMember(proxy.ID) })
}

func TestStopEndsAllActiveSessions(t *testing.T) {
	s := newTestServer()
	kitchen := s.Group("kitchen")
	sess, err := kitchen.StartSession("", 44100, 2, 16, 0)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}

	ended := make(chan struct{}, 1)
	sess.SessionEnded.Subscribe(func(struct{}) { ended <- struct{}{} })

	s.Stop()

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session to end on Stop")
	}
}
