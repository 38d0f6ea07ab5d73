// ABOUTME: Top-level server: accepts client proxies, owns the group list, dispatches group commands
// ABOUTME: Global state is limited to the client map and group list, both reactor-local
package server

import (
	"log"
	"sync"

	"github.com/roomcast/roomcast-go/pkg/group"
	"github.com/roomcast/roomcast-go/pkg/protocol"
	"github.com/roomcast/roomcast-go/pkg/serverclient"
	"github.com/roomcast/roomcast-go/pkg/transport"
)

// Server accepts receiver connections, assigns them to groups on
// request, and routes group commands. It holds the only global,
// mutable state in the system: the client map and the group list.
type Server struct {
	Info protocol.ServerInfo

	mu      sync.RWMutex
	clients map[string]*serverclient.Proxy
	groups  map[string]*group.Group
}

// New creates a server with the given identity and one group per id
// in groupIDs.
func New(info protocol.ServerInfo, groupIDs []string) *Server {
	s := &Server{
		Info:    info,
		clients: make(map[string]*serverclient.Proxy),
		groups:  make(map[string]*group.Group),
	}
	for _, id := range groupIDs {
		s.groups[id] = group.New(id)
	}
	return s
}

// Group returns a known group by id, or nil.
func (s *Server) Group(id string) *group.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups[id]
}

// Groups returns a snapshot of every known group.
func (s *Server) Groups() []*group.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*group.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out
}

// Accept wraps a freshly opened transport in a client proxy, sends
// source/hello, wires its close and group-command events, records it,
// and starts its read loop. Callers typically invoke this once per
// accepted connection from an HTTP upgrade handler.
func (s *Server) Accept(conn transport.Conn) *serverclient.Proxy {
	proxy := serverclient.New(conn)

	if err := proxy.Accept(s.Info); err != nil {
		log.Printf("server: failed to greet client %s: %v", proxy.ID, err)
	}

	proxy.Close.Subscribe(func(serverclient.CloseEvent) {
		s.forgetClient(proxy.ID)
	})
	proxy.GroupCommand.Subscribe(func(cmd serverclient.GroupCommand) {
		s.handleGroupCommand(proxy, cmd)
	})

	s.mu.Lock()
	s.clients[proxy.ID] = proxy
	s.mu.Unlock()

	go proxy.Run()
	return proxy
}

func (s *Server) handleGroupCommand(proxy *serverclient.Proxy, cmd serverclient.GroupCommand) {
	switch cmd.Kind {
	case serverclient.GroupCommandJoin:
		g := s.Group(cmd.GroupID)
		if g == nil {
			log.Printf("server: client %s requested unknown group %q, ignoring", proxy.ID, cmd.GroupID)
			return
		}
		for _, existing := range s.Groups() {
			if existing.ID != g.ID && existing.HasMember(proxy.ID) {
				existing.RemoveClient(proxy.ID)
			}
		}
		g.AddClient(proxy)

	case serverclient.GroupCommandUnjoin:
		for _, g := range s.Groups() {
			if g.HasMember(proxy.ID) {
				g.RemoveClient(proxy.ID)
				return
			}
		}

	case serverclient.GroupCommandList:
		s.sendGroupList(proxy)
	}
}

func (s *Server) sendGroupList(proxy *serverclient.Proxy) {
	groups := s.Groups()
	entries := make([]protocol.GroupListEntry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, protocol.GroupListEntry{GroupID: g.ID, State: g.State()})
	}
	if err := proxy.Send(protocol.TypeGroupList, protocol.GroupList{Groups: entries}); err != nil {
		log.Printf("server: failed to send group/list to %s: %v", proxy.ID, err)
	}
}

// forgetClient removes a closed client from every group, then from
// the client map.
func (s *Server) forgetClient(clientID string) {
	for _, g := range s.Groups() {
		if g.HasMember(clientID) {
			g.RemoveClient(clientID)
		}
	}
	s.mu.Lock()
	delete(s.clients, clientID)
	s.mu.Unlock()
}

// Stop ends every group's active session.
func (s *Server) Stop() {
	for _, g := range s.Groups() {
		if sess := g.CurrentSession(); sess != nil {
			sess.End()
		}
	}
}
