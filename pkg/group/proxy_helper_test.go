// ABOUTME: Shared test helper producing a ready client proxy backed by an in-memory connection
package group

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/roomcast/roomcast-go/pkg/protocol"
	"github.com/roomcast/roomcast-go/pkg/serverclient"
)

type fakeConn struct {
	inbound chan []byte
	sent    [][]byte
}

func (c *fakeConn) Send(data []byte) error       { c.sent = append(c.sent, data); return nil }
func (c *fakeConn) SendBinary(data []byte) error { c.sent = append(c.sent, data); return nil }
func (c *fakeConn) Recv() ([]byte, bool, error) {
	data, ok := <-c.inbound
	if !ok {
		return nil, false, errors.New("closed")
	}
	return data, false, nil
}
func (c *fakeConn) Close() error {
	select {
	case <-c.inbound:
	default:
		close(c.inbound)
	}
	return nil
}
func (c *fakeConn) RemoteAddr() string { return "fake" }

func fakeReadyProxy(t *testing.T) (*serverclient.Proxy, *fakeConn) {
	t.Helper()
	conn := &fakeConn{inbound: make(chan []byte, 1)}
	proxy := serverclient.New(conn)

	hello, _ := json.Marshal(protocol.Message{Type: protocol.TypePlayerHello, Payload: protocol.PlayerInfo{PlayerID: "p", BufferCapacity: 4}})
	conn.inbound <- hello
	go proxy.Run()

	deadline := time.Now().Add(time.Second)
	for !proxy.IsReady() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for proxy readiness")
		}
		time.Sleep(time.Millisecond)
	}
	return proxy, conn
}
