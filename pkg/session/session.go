// ABOUTME: Session engine: fan-out of audio, metadata, and art to a group's ready clients
// ABOUTME: Lazily activates each client on first fan-out and tears down on session end
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/roomcast/roomcast-go/pkg/audio"
	"github.com/roomcast/roomcast-go/pkg/events"
	"github.com/roomcast/roomcast-go/pkg/protocol"
	"github.com/roomcast/roomcast-go/pkg/serverclient"
)

// ClientStreamCommand pairs a stream-command event with the client it
// came from, after re-emission on the session's own event stream.
type ClientStreamCommand struct {
	ClientID string
	Command  protocol.StreamCommand
}

// ClientPlayerState pairs a player-state event with the client it
// came from.
type ClientPlayerState struct {
	ClientID string
	State    protocol.PlayerState
}

type activeClient struct {
	proxy       *serverclient.Proxy
	streamSub   *events.Subscription
	playerSub   *events.Subscription
}

// State is one active session, owned by its group. There is at most
// one State per group at a time.
type State struct {
	Info protocol.SessionInfo

	mu       sync.Mutex
	active   map[string]*activeClient
	metadata *protocol.Metadata
	artFrame []byte

	StreamCommand events.Emitter[ClientStreamCommand]
	PlayerState   events.Emitter[ClientPlayerState]
	SessionEnded  events.Emitter[struct{}]
}

// New creates a fresh session with no activated clients and no cached
// metadata or art.
func New(info protocol.SessionInfo) *State {
	return &State{
		Info:   info,
		active: make(map[string]*activeClient),
	}
}

// ensureActive activates every ready-but-not-yet-active client in
// candidates: it sends session/start, replays cached metadata and art
// if present, binds to the client's stream-command and player-state
// events, and marks it active. Not-ready clients are skipped (and
// dropped from the active set if they were previously active, since
// readiness can only be lost via transport close, which removal
// handles separately — this is a defensive no-op in practice).
func (s *State) ensureActive(candidates []*serverclient.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, proxy := range candidates {
		if ac, already := s.active[proxy.ID]; already {
			if !proxy.IsReady() {
				ac.streamSub.Release()
				ac.playerSub.Release()
				delete(s.active, proxy.ID)
			}
			continue
		}
		if !proxy.IsReady() {
			continue
		}
		s.activateLocked(proxy)
	}
}

func (s *State) activateLocked(proxy *serverclient.Proxy) {
	if err := proxy.Send(protocol.TypeSessionStart, s.Info); err != nil {
		log.Printf("session %s: failed to activate client %s: %v", s.Info.SessionID, proxy.ID, err)
		return
	}
	if s.metadata != nil {
		if err := proxy.Send(protocol.TypeMetadataUpdate, *s.metadata); err != nil {
			log.Printf("session %s: failed to replay metadata to %s: %v", s.Info.SessionID, proxy.ID, err)
		}
	}
	if s.artFrame != nil {
		if err := proxy.SendBinary(s.artFrame); err != nil {
			log.Printf("session %s: failed to replay art to %s: %v", s.Info.SessionID, proxy.ID, err)
		}
	}

	clientID := proxy.ID
	streamSub := proxy.StreamCommand.Subscribe(func(cmd protocol.StreamCommand) {
		s.StreamCommand.Emit(ClientStreamCommand{ClientID: clientID, Command: cmd})
	})
	playerSub := proxy.PlayerState.Subscribe(func(state protocol.PlayerState) {
		s.PlayerState.Emit(ClientPlayerState{ClientID: clientID, State: state})
	})

	s.active[proxy.ID] = &activeClient{proxy: proxy, streamSub: streamSub, playerSub: playerSub}
}

// Metadata returns a copy of the session's cached metadata, or nil if
// none has been sent yet.
func (s *State) Metadata() *protocol.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata == nil {
		return nil
	}
	cloned := cloneMetadata(*s.metadata)
	return &cloned
}

// ActiveClientCount reports how many clients are currently activated.
func (s *State) ActiveClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// SendAudio activates any newly-ready candidates, then encodes and
// fans out a PlayAudioChunk to every active client.
func (s *State) SendAudio(candidates []*serverclient.Proxy, timestampUs int64, samples []int16) {
	s.ensureActive(candidates)

	frame := protocol.EncodePlayAudioChunk(timestampUs, s.Info.Channels, samples)
	s.broadcastBinary(frame)
}

// ErrChannelMismatch is returned by SendAudioPlanes when the number of
// planes differs from the session's channel count.
var ErrChannelMismatch = errors.New("session: channel mismatch")

// SendAudioPlanes is the PCM-from-raw-samples helper for per-channel
// float32 input: it interleaves and validates the channel count
// against the session before delegating to SendAudio.
func (s *State) SendAudioPlanes(candidates []*serverclient.Proxy, timestampUs int64, planes [][]float32) error {
	if len(planes) != s.Info.Channels {
		return fmt.Errorf("session %s: %w: session has %d channels, got %d planes", s.Info.SessionID, ErrChannelMismatch, s.Info.Channels, len(planes))
	}
	samples := audio.InterleavedInt16FromPlanes(planes)
	s.SendAudio(candidates, timestampUs, samples)
	return nil
}

// SendMetadata activates any newly-ready candidates, then computes
// the field-by-field (element-wise for lists) delta against the
// cached metadata and sends it if non-empty. The first call for a
// session always sends (and caches) the full object.
func (s *State) SendMetadata(candidates []*serverclient.Proxy, target protocol.Metadata) {
	s.ensureActive(candidates)

	s.mu.Lock()
	if s.metadata == nil {
		cached := cloneMetadata(target)
		s.metadata = &cached
		s.mu.Unlock()
		s.broadcastText(protocol.TypeMetadataUpdate, target)
		return
	}

	delta, changed := diffMetadata(*s.metadata, target)
	if !changed {
		s.mu.Unlock()
		return
	}
	mergeMetadata(s.metadata, delta)
	s.mu.Unlock()

	s.broadcastText(protocol.TypeMetadataUpdate, delta)
}

// SendArt activates any newly-ready candidates, encodes the art into
// a binary frame, caches the encoded frame verbatim for future
// activations, and fans it out.
func (s *State) SendArt(candidates []*serverclient.Proxy, art protocol.MediaArt) {
	s.ensureActive(candidates)

	frame := protocol.EncodeMediaArt(art)
	s.mu.Lock()
	s.artFrame = frame
	s.mu.Unlock()

	s.broadcastBinary(frame)
}

// End sends session/end directly (bypassing activation, so a
// not-yet-active client is never activated just to be torn down),
// clears all state, and fires SessionEnded.
func (s *State) End() {
	s.mu.Lock()
	clients := s.active
	s.active = make(map[string]*activeClient)
	s.metadata = nil
	s.artFrame = nil
	s.mu.Unlock()

	for _, ac := range clients {
		s.endOne(ac)
	}
	s.SessionEnded.Emit(struct{}{})
}

// RemoveClient implements group-driven removal: if clientID is
// currently active, send it a final session/end, tear down its event
// bindings, and drop it from the active set.
func (s *State) RemoveClient(clientID string) {
	s.mu.Lock()
	ac, ok := s.active[clientID]
	if ok {
		delete(s.active, clientID)
	}
	s.mu.Unlock()

	if ok {
		s.endOne(ac)
	}
}

func (s *State) endOne(ac *activeClient) {
	ac.streamSub.Release()
	ac.playerSub.Release()
	if ac.proxy.IsReady() {
		if err := ac.proxy.Send(protocol.TypeSessionEnd, protocol.SessionEnd{SessionID: s.Info.SessionID}); err != nil {
			log.Printf("session %s: failed to send session/end to %s: %v", s.Info.SessionID, ac.proxy.ID, err)
		}
	}
}

func (s *State) broadcastBinary(frame []byte) {
	s.mu.Lock()
	clients := activeProxies(s.active)
	s.mu.Unlock()

	for _, proxy := range clients {
		if err := proxy.SendBinary(frame); err != nil {
			log.Printf("session %s: binary send to %s failed: %v", s.Info.SessionID, proxy.ID, err)
		}
	}
}

func (s *State) broadcastText(msgType string, payload interface{}) {
	s.mu.Lock()
	clients := activeProxies(s.active)
	s.mu.Unlock()

	for _, proxy := range clients {
		if err := proxy.Send(msgType, payload); err != nil {
			log.Printf("session %s: send to %s failed: %v", s.Info.SessionID, proxy.ID, err)
		}
	}
}

func activeProxies(active map[string]*activeClient) []*serverclient.Proxy {
	out := make([]*serverclient.Proxy, 0, len(active))
	for _, ac := range active {
		out = append(out, ac.proxy)
	}
	return out
}
