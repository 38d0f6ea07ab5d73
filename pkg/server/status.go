// ABOUTME: Builds a dashboard status snapshot from the server's live group and client state
package server

import (
	"github.com/roomcast/roomcast-go/internal/tui"
	"github.com/roomcast/roomcast-go/pkg/protocol"
)

// Status builds a dashboard snapshot of every group and its members.
func (s *Server) Status() tui.Status {
	groups := s.Groups()
	out := tui.Status{Name: s.Info.Name, Groups: make([]tui.GroupStatus, 0, len(groups))}

	for _, g := range groups {
		gs := tui.GroupStatus{ID: g.ID, State: string(g.State())}

		if sess := g.CurrentSession(); sess != nil {
			if meta := sess.Metadata(); meta != nil {
				gs.Playing = describeMetadata(meta)
			}
		}

		for _, proxy := range g.Members() {
			name := proxy.ID
			state := "connecting"
			if info := proxy.PlayerInfo(); info != nil {
				name = info.Name
				state = "ready"
			}
			gs.Clients = append(gs.Clients, tui.ClientInfo{Name: name, ID: proxy.ID, State: state})
		}

		out.Groups = append(out.Groups, gs)
	}

	return out
}

func describeMetadata(meta *protocol.Metadata) string {
	if meta.Title == nil {
		return ""
	}
	if meta.Artist != nil {
		return *meta.Artist + " - " + *meta.Title
	}
	return *meta.Title
}
