// ABOUTME: Tests for the text message envelope and payload types
// ABOUTME: Covers JSON round-trip and delta-shaped metadata marshaling
package protocol

import (
	"encoding/json"
	"testing"
)

func TestMessageEnvelopeRoundTrip(t *testing.T) {
	msg := Message{
		Type: TypePlayerHello,
		Payload: PlayerInfo{
			PlayerID:       "player-1",
			Name:           "Kitchen",
			BufferCapacity: 8,
		},
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Type != TypePlayerHello {
		t.Errorf("type: got %q, want %q", decoded.Type, TypePlayerHello)
	}

	payloadBytes, err := json.Marshal(decoded.Payload)
	if err != nil {
		t.Fatalf("re-marshal payload failed: %v", err)
	}
	var info PlayerInfo
	if err := json.Unmarshal(payloadBytes, &info); err != nil {
		t.Fatalf("unmarshal payload failed: %v", err)
	}
	if info.PlayerID != "player-1" || info.Name != "Kitchen" || info.BufferCapacity != 8 {
		t.Errorf("payload mismatch: %+v", info)
	}
}

func TestMetadataDeltaOmitsUnsetFields(t *testing.T) {
	title := "Song"
	delta := Metadata{Title: &title}

	raw, err := json.Marshal(delta)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := asMap["artist"]; ok {
		t.Errorf("expected artist to be omitted, got %v", asMap)
	}
	if asMap["title"] != "Song" {
		t.Errorf("expected title=Song, got %v", asMap["title"])
	}
}

func TestGroupListRoundTrip(t *testing.T) {
	list := GroupList{Groups: []GroupListEntry{
		{GroupID: "kitchen", State: GroupPlaying},
		{GroupID: "office", State: GroupIdle},
	}}

	raw, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded GroupList
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(decoded.Groups) != 2 || decoded.Groups[0].State != GroupPlaying {
		t.Errorf("round-trip mismatch: %+v", decoded)
	}
}
