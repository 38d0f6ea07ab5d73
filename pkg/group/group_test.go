// ABOUTME: Tests for group membership, session lifecycle, and state reporting
package group

import (
	"testing"
	"time"

	"github.com/roomcast/roomcast-go/pkg/protocol"
)

func TestStartSessionFailsWhenAlreadyActive(t *testing.T) {
	g := New("kitchen")
	if _, err := g.StartSession("", 44100, 2, 16, 0); err != nil {
		t.Fatalf("unexpected error on first start: %v", err)
	}
	if _, err := g.StartSession("", 44100, 2, 16, 0); err == nil {
		t.Error("expected ErrSessionAlreadyActive on second start")
	}
}

func TestSessionEndClearsGroupReference(t *testing.T) {
	g := New("kitchen")
	s, err := g.StartSession("", 44100, 2, 16, 0)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if g.CurrentSession() == nil {
		t.Fatal("expected current session to be set")
	}

	ended := make(chan struct{}, 1)
	g.SessionEnded.Subscribe(func(struct{}) { ended <- struct{}{} })

	s.End()

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for group to re-emit session end")
	}
	if g.CurrentSession() != nil {
		t.Error("expected current session to be cleared after end")
	}

	// A new session can now start.
	if _, err := g.StartSession("", 44100, 2, 16, 0); err != nil {
		t.Errorf("expected to be able to start a new session, got %v", err)
	}
}

func TestGroupStateReflectsSession(t *testing.T) {
	g := New("kitchen")
	if g.State() != protocol.GroupIdle {
		t.Errorf("expected idle with no session, got %v", g.State())
	}

	s, _ := g.StartSession("", 44100, 2, 16, 0)
	if g.State() != protocol.GroupPlaying {
		t.Errorf("expected playing with active session, got %v", g.State())
	}

	s.End()
	time.Sleep(20 * time.Millisecond)
	if g.State() != protocol.GroupIdle {
		t.Errorf("expected idle after session end, got %v", g.State())
	}
}

func TestMembershipAddRemove(t *testing.T) {
	g := New("kitchen")
	added := make(chan ClientEvent, 1)
	removed := make(chan ClientEvent, 1)
	g.ClientAdded.Subscribe(func(e ClientEvent) { added <- e })
	g.ClientRemoved.Subscribe(func(e ClientEvent) { removed <- e })

	proxy, _ := fakeReadyProxy(t)
	g.AddClient(proxy)

	select {
	case e := <-added:
		if e.ClientID != proxy.ID {
			t.Errorf("unexpected client id: %s", e.ClientID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ClientAdded")
	}

	if !g.HasMember(proxy.ID) {
		t.Error("expected HasMember true")
	}
	if len(g.Members()) != 1 {
		t.Errorf("expected 1 member, got %d", len(g.Members()))
	}

	g.RemoveClient(proxy.ID)
	select {
	case e := <-removed:
		if e.ClientID != proxy.ID {
			t.Errorf("unexpected client id: %s", e.ClientID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ClientRemoved")
	}
	if g.HasMember(proxy.ID) {
		t.Error("expected HasMember false after removal")
	}
}
