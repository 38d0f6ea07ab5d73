// ABOUTME: Roomcast wire protocol package
// ABOUTME: Defines text message envelopes, the data model, and the binary codec
// Package protocol implements the roomcast wire protocol: the JSON text
// messages that negotiate sessions, deliver metadata, and exchange clock
// samples, and the binary framing for audio chunks and media art.
//
// The codec in this package is pure — no I/O. Callers supply bytes read
// from (or to be written to) a transport.
package protocol
