// ABOUTME: Group membership and at-most-one-active-session tracking
// ABOUTME: Groups own their session; clients are referenced by id through the group
package group

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/roomcast/roomcast-go/pkg/events"
	"github.com/roomcast/roomcast-go/pkg/protocol"
	"github.com/roomcast/roomcast-go/pkg/serverclient"
	"github.com/roomcast/roomcast-go/pkg/session"
)

// ClientEvent names the client a client-added/client-removed event
// concerns.
type ClientEvent struct {
	ClientID string
}

// Group tracks a named set of member clients and, at most, one
// active session.
type Group struct {
	ID string

	mu      sync.RWMutex
	members map[string]*serverclient.Proxy
	current *session.State

	ClientAdded   events.Emitter[ClientEvent]
	ClientRemoved events.Emitter[ClientEvent]
	SessionEnded  events.Emitter[struct{}]
}

// New creates an empty, session-less group.
func New(id string) *Group {
	return &Group{ID: id, members: make(map[string]*serverclient.Proxy)}
}

// AddClient adds proxy to the group and emits ClientAdded.
func (g *Group) AddClient(proxy *serverclient.Proxy) {
	g.mu.Lock()
	g.members[proxy.ID] = proxy
	g.mu.Unlock()
	g.ClientAdded.Emit(ClientEvent{ClientID: proxy.ID})
}

// RemoveClient removes a member by id and emits ClientRemoved. If a
// session is active, the session's group-driven removal path runs
// first so the departing client gets a clean session/end.
func (g *Group) RemoveClient(clientID string) {
	g.mu.Lock()
	_, existed := g.members[clientID]
	delete(g.members, clientID)
	current := g.current
	g.mu.Unlock()

	if !existed {
		return
	}
	if current != nil {
		current.RemoveClient(clientID)
	}
	g.ClientRemoved.Emit(ClientEvent{ClientID: clientID})
}

// Members returns a snapshot of the group's current member proxies.
func (g *Group) Members() []*serverclient.Proxy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*serverclient.Proxy, 0, len(g.members))
	for _, p := range g.members {
		out = append(out, p)
	}
	return out
}

// HasMember reports whether clientID belongs to this group.
func (g *Group) HasMember(clientID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.members[clientID]
	return ok
}

// ErrSessionAlreadyActive is returned by StartSession when the group
// already owns an active session.
var ErrSessionAlreadyActive = fmt.Errorf("group: session already active")

// StartSession allocates a new SessionInfo (unique session id,
// nowUs as the origin) and the owning SessionState, failing if one is
// already active. An empty codec defaults to protocol.CodecPCM, the
// only normative tag. When the returned session fires SessionEnded,
// the group clears its reference and re-emits the event on SessionEnded.
func (g *Group) StartSession(codec string, sampleRate, channels, bitDepth int, nowUs int64) (*session.State, error) {
	if codec == "" {
		codec = protocol.CodecPCM
	}

	g.mu.Lock()
	if g.current != nil {
		g.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}

	info := protocol.SessionInfo{
		SessionID:  uuid.New().String(),
		Codec:      codec,
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
		OriginUs:   nowUs,
	}
	s := session.New(info)
	g.current = s
	g.mu.Unlock()

	s.SessionEnded.Subscribe(func(struct{}) {
		g.mu.Lock()
		if g.current == s {
			g.current = nil
		}
		g.mu.Unlock()
		g.SessionEnded.Emit(struct{}{})
	})

	return s, nil
}

// CurrentSession returns the group's active session, or nil.
func (g *Group) CurrentSession() *session.State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// State reports idle or playing for group/list purposes. paused is
// never produced by this server.
func (g *Group) State() protocol.GroupState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current != nil {
		return protocol.GroupPlaying
	}
	return protocol.GroupIdle
}
