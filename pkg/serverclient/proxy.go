// ABOUTME: Server-side representation of one connected receiver
// ABOUTME: Enforces the hello-first handshake and exposes a typed event stream
package serverclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/roomcast/roomcast-go/pkg/events"
	"github.com/roomcast/roomcast-go/pkg/protocol"
	"github.com/roomcast/roomcast-go/pkg/transport"
)

// ErrClientNotConnected is returned by Send/SendBinary once the
// underlying transport has closed.
var ErrClientNotConnected = errors.New("serverclient: client not connected")

// errHelloRequired is the protocol violation logged when a client
// sends anything before player/hello.
var errHelloRequired = errors.New("send message before player hello")

// GroupCommandKind ∈ join|unjoin|list.
type GroupCommandKind string

const (
	GroupCommandJoin   GroupCommandKind = "join"
	GroupCommandUnjoin GroupCommandKind = "unjoin"
	GroupCommandList   GroupCommandKind = "list"
)

// GroupCommand is the decoded payload of a group/join, group/unjoin,
// or group/get-list message.
type GroupCommand struct {
	Kind    GroupCommandKind
	GroupID string
}

// CloseEvent carries the reason a connection went away.
type CloseEvent struct {
	Err error
}

// Proxy represents one connected receiver from the server's
// viewpoint. Construct with New, then call Run in its own goroutine.
type Proxy struct {
	ID   string
	conn transport.Conn

	mu         sync.RWMutex
	playerInfo *protocol.PlayerInfo
	closed     bool

	PlayerState   events.Emitter[protocol.PlayerState]
	StreamCommand events.Emitter[protocol.StreamCommand]
	GroupCommand  events.Emitter[GroupCommand]
	Close         events.Emitter[CloseEvent]
}

// New allocates a stable client_id and wraps conn. The proxy does not
// start reading until Run is called.
func New(conn transport.Conn) *Proxy {
	return &Proxy{
		ID:   uuid.New().String(),
		conn: conn,
	}
}

// Accept sends source/hello, completing the handshake on the server
// side. Callers should call this immediately after New, before Run.
func (p *Proxy) Accept(info protocol.ServerInfo) error {
	return p.Send(protocol.TypeSourceHello, info)
}

// Send serializes payload as a JSON message envelope and enqueues it
// on the transport.
func (p *Proxy) Send(msgType string, payload interface{}) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClientNotConnected
	}

	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("serverclient: marshal %s: %w", msgType, err)
	}
	if err := p.conn.Send(data); err != nil {
		return fmt.Errorf("%w: %v", ErrClientNotConnected, err)
	}
	return nil
}

// SendBinary enqueues a raw binary frame, already encoded by the
// protocol package's codec.
func (p *Proxy) SendBinary(data []byte) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClientNotConnected
	}
	if err := p.conn.SendBinary(data); err != nil {
		return fmt.Errorf("%w: %v", ErrClientNotConnected, err)
	}
	return nil
}

// IsReady reports whether the transport is open and PlayerInfo has
// been received.
func (p *Proxy) IsReady() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.playerInfo != nil
}

// PlayerInfo returns the receiver's announced capabilities, or nil if
// player/hello has not arrived yet.
func (p *Proxy) PlayerInfo() *protocol.PlayerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playerInfo
}

// Run reads messages until the transport closes or a protocol
// violation occurs, dispatching each to the relevant event stream.
// It blocks; callers run it in its own goroutine.
func (p *Proxy) Run() {
	defer p.teardown(nil)

	helloReceived := false
	for {
		data, isBinary, err := p.conn.Recv()
		if err != nil {
			p.teardown(err)
			return
		}

		if isBinary {
			log.Printf("serverclient %s: dropping unexpected binary frame from receiver", p.ID)
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("serverclient %s: malformed JSON, closing: %v", p.ID, err)
			p.conn.Close()
			return
		}

		if !helloReceived {
			if msg.Type != protocol.TypePlayerHello {
				log.Printf("serverclient %s: %v (got %q)", p.ID, errHelloRequired, msg.Type)
				p.conn.Close()
				return
			}
			var info protocol.PlayerInfo
			if err := remarshal(msg.Payload, &info); err != nil {
				log.Printf("serverclient %s: bad player/hello payload: %v", p.ID, err)
				p.conn.Close()
				return
			}
			p.mu.Lock()
			p.playerInfo = &info
			p.mu.Unlock()
			helloReceived = true
			continue
		}

		p.dispatch(msg)
	}
}

func (p *Proxy) dispatch(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypePlayerState:
		var state protocol.PlayerState
		if err := remarshal(msg.Payload, &state); err != nil {
			log.Printf("serverclient %s: bad player/state payload: %v", p.ID, err)
			return
		}
		p.PlayerState.Emit(state)

	case protocol.TypeStreamCommand:
		var cmd protocol.StreamCommand
		if err := remarshal(msg.Payload, &cmd); err != nil {
			log.Printf("serverclient %s: bad stream/command payload: %v", p.ID, err)
			return
		}
		p.StreamCommand.Emit(cmd)

	case protocol.TypeGroupJoin:
		var join protocol.GroupJoin
		if err := remarshal(msg.Payload, &join); err != nil {
			log.Printf("serverclient %s: bad group/join payload: %v", p.ID, err)
			return
		}
		p.GroupCommand.Emit(GroupCommand{Kind: GroupCommandJoin, GroupID: join.GroupID})

	case protocol.TypeGroupUnjoin:
		p.GroupCommand.Emit(GroupCommand{Kind: GroupCommandUnjoin})

	case protocol.TypeGroupGetList:
		p.GroupCommand.Emit(GroupCommand{Kind: GroupCommandList})

	case protocol.TypePlayerTime:
		var pt protocol.PlayerTime
		if err := remarshal(msg.Payload, &pt); err != nil {
			log.Printf("serverclient %s: bad player/time payload: %v", p.ID, err)
			return
		}
		p.handlePlayerTime(pt)

	default:
		log.Printf("serverclient %s: unknown message type %q, dropping", p.ID, msg.Type)
	}
}

// handlePlayerTime is handled locally, never surfaced as an event:
// stamp receive and transmit times and reply immediately.
func (p *Proxy) handlePlayerTime(pt protocol.PlayerTime) {
	sourceReceived := nowMicros()
	reply := protocol.SourceTime{
		PlayerTransmitted: pt.PlayerTransmitted,
		SourceReceived:    sourceReceived,
		SourceTransmitted: nowMicros(),
	}
	if err := p.Send(protocol.TypeSourceTime, reply); err != nil {
		log.Printf("serverclient %s: failed to reply to player/time: %v", p.ID, err)
	}
}

func (p *Proxy) teardown(cause error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.conn.Close()
	p.Close.Emit(CloseEvent{Err: cause})
}

func remarshal(payload interface{}, dst interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func nowMicros() int64 {
	return time.Now().UnixNano() / 1000
}
