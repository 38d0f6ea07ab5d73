// ABOUTME: Field-by-field metadata delta computation
// ABOUTME: Scalar fields use equality, list fields use element-wise (order-sensitive) equality
package session

import "github.com/roomcast/roomcast-go/pkg/protocol"

// diffMetadata compares target against cached, considering only
// fields target sets (non-nil pointer, non-nil slice). It returns the
// subset of target's fields that differ from cached, and whether any
// field differed.
func diffMetadata(cached, target protocol.Metadata) (protocol.Metadata, bool) {
	var delta protocol.Metadata
	changed := false

	if target.Title != nil && !equalStringPtr(cached.Title, target.Title) {
		delta.Title = target.Title
		changed = true
	}
	if target.Artist != nil && !equalStringPtr(cached.Artist, target.Artist) {
		delta.Artist = target.Artist
		changed = true
	}
	if target.Album != nil && !equalStringPtr(cached.Album, target.Album) {
		delta.Album = target.Album
		changed = true
	}
	if target.Year != nil && !equalIntPtr(cached.Year, target.Year) {
		delta.Year = target.Year
		changed = true
	}
	if target.Track != nil && !equalIntPtr(cached.Track, target.Track) {
		delta.Track = target.Track
		changed = true
	}
	if target.Repeat != nil && !equalRepeatPtr(cached.Repeat, target.Repeat) {
		delta.Repeat = target.Repeat
		changed = true
	}
	if target.Shuffle != nil && !equalBoolPtr(cached.Shuffle, target.Shuffle) {
		delta.Shuffle = target.Shuffle
		changed = true
	}
	if target.GroupMembers != nil && !equalStringSlice(cached.GroupMembers, target.GroupMembers) {
		delta.GroupMembers = target.GroupMembers
		changed = true
	}
	if target.SupportedCommands != nil && !equalStringSlice(cached.SupportedCommands, target.SupportedCommands) {
		delta.SupportedCommands = target.SupportedCommands
		changed = true
	}

	return delta, changed
}

// mergeMetadata copies every non-nil field of delta into cached.
func mergeMetadata(cached *protocol.Metadata, delta protocol.Metadata) {
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

func cloneMetadata(m protocol.Metadata) protocol.Metadata {
	return m
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalRepeatPtr(a, b *protocol.RepeatMode) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalStringSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
