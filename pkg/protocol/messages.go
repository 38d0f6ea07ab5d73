// ABOUTME: Roomcast protocol message and data-model type definitions
// ABOUTME: Text message envelope and all payload shapes exchanged over the wire
package protocol

import "encoding/json"

// EncodeMessage wraps payload in a Message envelope and marshals it,
// for callers outside the server/receiver cores that still need to
// speak the wire protocol directly (e.g. cmd/roomcast-receiver).
func EncodeMessage(msgType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Payload: payload})
}

// Message is the top-level wrapper for all text (JSON) messages.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ServerInfo is the identity of a server instance, announced once on
// connect and otherwise immutable for the connection's lifetime.
type ServerInfo struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
}

// PlayerInfo is the capability descriptor a receiver announces as
// player/hello. Immutable for the life of the connection.
type PlayerInfo struct {
	PlayerID             string   `json:"player_id"`
	Name                 string   `json:"name"`
	BufferCapacity       int      `json:"buffer_capacity"`
	SupportedChannels    []int    `json:"supported_channels,omitempty"`
	SupportedSampleRates []int    `json:"supported_sample_rates,omitempty"`
	SupportedBitDepths   []int    `json:"supported_bit_depths,omitempty"`
	SupportedCommands    []string `json:"supported_commands,omitempty"`
}

// CodecPCM is the only normative codec tag; lossy codec support is a
// Non-goal, so this server never produces anything else.
const CodecPCM = "pcm"

// SessionInfo describes the parameters of an active audio session.
// Immutable from creation until session end. The optional codec
// header blob defined alongside the codec tag is omitted: it exists
// to carry lossy-codec setup data (e.g. Opus headers) this server
// never produces.
type SessionInfo struct {
	SessionID  string `json:"session_id"`
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	OriginUs   int64  `json:"origin_us"`
}

// RepeatMode is the session's repeat setting.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatOne RepeatMode = "one"
	RepeatAll RepeatMode = "all"
)

// Metadata is sticky display state. When carried in a metadata/update
// delta, a nil pointer or nil slice means "unchanged since the last
// update this client received"; a non-nil value means "replace with
// this". The session engine's full cached copy has every
// ever-set field populated, never nil.
type Metadata struct {
	Title             *string     `json:"title,omitempty"`
	Artist            *string     `json:"artist,omitempty"`
	Album             *string     `json:"album,omitempty"`
	Year              *int        `json:"year,omitempty"`
	Track             *int        `json:"track,omitempty"`
	GroupMembers      []string    `json:"group_members,omitempty"`
	SupportedCommands []string    `json:"support_commands,omitempty"`
	Repeat            *RepeatMode `json:"repeat,omitempty"`
	Shuffle           *bool       `json:"shuffle,omitempty"`
}

// ArtFormat identifies the encoding of a MediaArt blob.
type ArtFormat byte

const (
	ArtFormatJPEG ArtFormat = 0
	ArtFormatPNG  ArtFormat = 1
)

// MediaArt is an opaque image blob with a format tag. A session holds
// at most one current value; it travels as a binary frame, never as a
// JSON payload.
type MediaArt struct {
	Format ArtFormat
	Data   []byte
}

// PlayerState is the receiver-reported playback state, sent as
// player/state.
type PlayerState struct {
	State  string `json:"state"`
	Volume int    `json:"volume"`
	Muted  bool   `json:"muted"`
}

// StreamCommand ∈ play|pause|stop|seek|volume, sent as stream/command.
type StreamCommand struct {
	Command string `json:"command"`
	Volume  int    `json:"volume,omitempty"`
	SeekMs  int64  `json:"seek_ms,omitempty"`
}

// --- client -> server payloads ---

// PlayerTime is sent as player/time to start a clock-sync exchange.
type PlayerTime struct {
	PlayerTransmitted int64 `json:"player_transmitted"`
}

// GroupJoin is sent as group/join.
type GroupJoin struct {
	GroupID string `json:"group_id"`
}

// --- server -> client payloads ---

// SourceTime is the reply to player/time, sent as source/time.
type SourceTime struct {
	PlayerTransmitted int64 `json:"player_transmitted"`
	SourceReceived    int64 `json:"source_received"`
	SourceTransmitted int64 `json:"source_transmitted"`
}

// SessionEnd is sent as session/end.
type SessionEnd struct {
	SessionID string `json:"session_id"`
}

// GroupState ∈ idle|playing|paused. paused is defined but never
// produced by this server — see DESIGN.md.
type GroupState string

const (
	GroupIdle    GroupState = "idle"
	GroupPlaying GroupState = "playing"
	GroupPaused  GroupState = "paused"
)

// GroupListEntry is one element of a group/list payload.
type GroupListEntry struct {
	GroupID string     `json:"group_id"`
	State   GroupState `json:"state"`
}

// GroupList is sent as group/list, in response to group/get-list. It
// is not pushed when group membership changes.
type GroupList struct {
	Groups []GroupListEntry `json:"groups"`
}

// Message type names, as they appear on the wire in Message.Type.
const (
	TypePlayerHello  = "player/hello"
	TypePlayerTime   = "player/time"
	TypePlayerState  = "player/state"
	TypeStreamCommand = "stream/command"
	TypeGroupJoin    = "group/join"
	TypeGroupUnjoin  = "group/unjoin"
	TypeGroupGetList = "group/get-list"

	TypeSourceHello    = "source/hello"
	TypeSourceTime     = "source/time"
	TypeSessionStart   = "session/start"
	TypeSessionEnd     = "session/end"
	TypeMetadataUpdate = "metadata/update"
	TypeGroupList      = "group/list"
)
