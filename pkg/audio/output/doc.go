// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the abstract Output interface and an oto-backed implementation
// Package output provides the receiver's local audio output contract.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(44100, 2)
//	err = out.Write(buf.Planes)
package output
