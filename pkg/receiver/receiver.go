// ABOUTME: Receiver client: one transport to the server, audio scheduling, event stream
// ABOUTME: State machine among {disconnected, connecting, connected-no-session, connected-session-active}
package receiver

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/roomcast/roomcast-go/pkg/audio"
	"github.com/roomcast/roomcast-go/pkg/clocksync"
	"github.com/roomcast/roomcast-go/pkg/events"
	"github.com/roomcast/roomcast-go/pkg/protocol"
	"github.com/roomcast/roomcast-go/pkg/transport"
)

// State is the receiver's connection/session state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnectedNoSession
	StateConnectedSessionActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnectedNoSession:
		return "connected-no-session"
	case StateConnectedSessionActive:
		return "connected-session-active"
	default:
		return "unknown"
	}
}

// clockSyncRetryInterval is used while the offset window holds fewer
// than clocksync.MinSamplesForSteadyState samples.
const clockSyncRetryInterval = 10 * time.Millisecond

// clockSyncSteadyInterval is the steady-state re-sampling period.
const clockSyncSteadyInterval = time.Second

// CloseEvent distinguishes a caller-initiated close from a
// transport-initiated one.
type CloseEvent struct {
	Expected bool
	Err      error
}

// Receiver maintains one transport to the server, decodes messages,
// schedules audio playback, and exposes a state-change event stream.
type Receiver struct {
	conn transport.Conn
	info protocol.PlayerInfo

	mu         sync.RWMutex
	state      State
	serverInfo *protocol.ServerInfo
	session    *protocol.SessionInfo
	metadata   *protocol.Metadata
	art        *protocol.MediaArt

	Clock     *clocksync.Sync
	Scheduler *Scheduler

	Open           events.Emitter[struct{}]
	ServerUpdate   events.Emitter[protocol.ServerInfo]
	SessionUpdate  events.Emitter[*protocol.SessionInfo]
	MetadataUpdate events.Emitter[*protocol.Metadata]
	ArtUpdate      events.Emitter[*protocol.MediaArt]
	Close          events.Emitter[CloseEvent]

	stopClockSync chan struct{}
}

// New wraps conn with a receiver client that will announce info as
// its capabilities on player/hello.
func New(conn transport.Conn, info protocol.PlayerInfo) *Receiver {
	return &Receiver{
		conn:          conn,
		info:          info,
		state:         StateConnecting,
		Clock:         clocksync.New(),
		Scheduler:     NewScheduler(),
		stopClockSync: make(chan struct{}),
	}
}

// State reports the receiver's current state.
func (r *Receiver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Run sends player/hello, starts the clock-sync loop and the
// scheduler, and reads messages until the transport closes. It
// blocks; callers run it in its own goroutine.
func (r *Receiver) Run() {
	go r.Scheduler.Run()
	defer r.Scheduler.Stop()

	if err := r.sendText(protocol.TypePlayerHello, r.info); err != nil {
		log.Printf("receiver: failed to send player/hello: %v", err)
	}
	r.setState(StateConnectedNoSession)
	r.Open.Emit(struct{}{})

	go r.clockSyncLoop()
	defer close(r.stopClockSync)

	for {
		data, isBinary, err := r.conn.Recv()
		if err != nil {
			r.teardown(CloseEvent{Expected: false, Err: err})
			return
		}
		if isBinary {
			r.handleBinaryFrame(data)
			continue
		}
		r.handleTextFrame(data)
	}
}

// Disconnect closes the transport from the caller's side, producing
// an expected close event.
func (r *Receiver) Disconnect() {
	r.conn.Close()
	r.teardown(CloseEvent{Expected: true})
}

func (r *Receiver) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Receiver) sendText(msgType string, payload interface{}) error {
	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		return err
	}
	return r.conn.Send(data)
}

func (r *Receiver) handleTextFrame(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("receiver: malformed JSON, dropping: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeSourceHello:
		var info protocol.ServerInfo
		if remarshal(msg.Payload, &info) == nil {
			r.mu.Lock()
			r.serverInfo = &info
			r.mu.Unlock()
			r.ServerUpdate.Emit(info)
		}

	case protocol.TypeSessionStart:
		var info protocol.SessionInfo
		if remarshal(msg.Payload, &info) == nil {
			r.mu.Lock()
			r.session = &info
			r.state = StateConnectedSessionActive
			r.mu.Unlock()
			r.SessionUpdate.Emit(&info)
		}

	case protocol.TypeSessionEnd:
		r.mu.Lock()
		r.session = nil
		r.metadata = nil
		r.art = nil
		r.state = StateConnectedNoSession
		r.mu.Unlock()
		r.SessionUpdate.Emit(nil)
		r.MetadataUpdate.Emit(nil)
		r.ArtUpdate.Emit(nil)

	case protocol.TypeMetadataUpdate:
		var delta protocol.Metadata
		if remarshal(msg.Payload, &delta) == nil {
			r.mu.Lock()
			if r.metadata == nil {
				merged := delta
				r.metadata = &merged
			} else {
				mergeMetadataInto(r.metadata, delta)
			}
			snapshot := *r.metadata
			r.mu.Unlock()
			r.MetadataUpdate.Emit(&snapshot)
		}

	case protocol.TypeSourceTime:
		var reply protocol.SourceTime
		if remarshal(msg.Payload, &reply) == nil {
			r.handleSourceTime(reply)
		}

	default:
		log.Printf("receiver: invalid message in state %s: %q, discarding", r.State(), msg.Type)
	}
}

func (r *Receiver) handleSourceTime(reply protocol.SourceTime) {
	r.Clock.AddSample(clocksync.Sample{
		PlayerTransmitted: reply.PlayerTransmitted,
		SourceReceived:    reply.SourceReceived,
		SourceTransmitted: reply.SourceTransmitted,
		PlayerReceived:    localMicros(),
	})
}

func (r *Receiver) handleBinaryFrame(data []byte) {
	r.mu.RLock()
	session := r.session
	r.mu.RUnlock()

	channels := 0
	if session != nil {
		channels = session.Channels
	}

	decoded, err := protocol.DecodeBinaryFrame(data, channels)
	if err != nil {
		log.Printf("receiver: dropping malformed binary frame: %v", err)
		return
	}

	switch v := decoded.(type) {
	case protocol.AudioChunk:
		if session == nil {
			log.Printf("receiver: audio chunk received with no active session, dropping")
			return
		}
		r.handleAudioChunk(v, channels)
	case protocol.MediaArt:
		r.mu.Lock()
		r.art = &v
		r.mu.Unlock()
		r.ArtUpdate.Emit(&v)
	}
}

// handleAudioChunk schedules a decoded PlayAudioChunk for playback.
// channels has already been validated by DecodeBinaryFrame against
// the frame's declared sample_count, per payload_len == sample_count
// × channels × 2.
func (r *Receiver) handleAudioChunk(chunk protocol.AudioChunk, channels int) {
	planes := audio.PlanesFromInterleavedInt16(chunk.Samples, channels)
	startLocal := r.Clock.ServerToLocal(chunk.TimestampUs)
	buf := audio.Buffer{TimestampUs: chunk.TimestampUs, PlayAt: startLocal, Planes: planes}

	now := time.Now()
	if startLocal.Before(now) {
		log.Printf("receiver: audio chunk late by %v, playing immediately", now.Sub(startLocal))
		buf.PlayAt = now
	}
	r.Scheduler.Schedule(buf)
}

func (r *Receiver) teardown(ev CloseEvent) {
	r.mu.Lock()
	r.state = StateDisconnected
	r.session = nil
	r.metadata = nil
	r.art = nil
	r.mu.Unlock()
	r.Close.Emit(ev)
}

func (r *Receiver) clockSyncLoop() {
	for {
		select {
		case <-r.stopClockSync:
			return
		default:
		}

		t0 := localMicros()
		if err := r.sendText(protocol.TypePlayerTime, protocol.PlayerTime{PlayerTransmitted: t0}); err != nil {
			log.Printf("receiver: failed to send player/time: %v", err)
		}

		wait := clockSyncSteadyInterval
		if r.Clock.NeedsMoreSamples() {
			wait = clockSyncRetryInterval
		}

		select {
		case <-time.After(wait):
		case <-r.stopClockSync:
			return
		}
	}
}

func localMicros() int64 {
	return time.Now().UnixNano() / 1000
}

func remarshal(payload interface{}, dst interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func mergeMetadataInto(cached *protocol.Metadata, delta protocol.Metadata) {
	if delta.Title != nil {
		cached.Title = delta.Title
	}
	if delta.Artist != nil {
		cached.Artist = delta.Artist
	}
	if delta.Album != nil {
		cached.Album = delta.Album
	}
	if delta.Year != nil {
		cached.Year = delta.Year
	}
	if delta.Track != nil {
		cached.Track = delta.Track
	}
	if delta.Repeat != nil {
		cached.Repeat = delta.Repeat
	}
	if delta.Shuffle != nil {
		cached.Shuffle = delta.Shuffle
	}
	if delta.GroupMembers != nil {
		cached.GroupMembers = delta.GroupMembers
	}
	if delta.SupportedCommands != nil {
		cached.SupportedCommands = delta.SupportedCommands
	}
}
