// ABOUTME: WebSocket binding of the abstract transport.Conn contract
// ABOUTME: One writer goroutine per connection, bounded send queue, ping keepalive
package ws

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomcast/roomcast-go/pkg/transport"
)

// sendQueueCapacity bounds a connection's outgoing backlog. Once
// full, the connection is closed with a policy-violation code rather
// than growing unbounded — see spec backpressure rule.
const sendQueueCapacity = 256

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	pongWait      = 60 * time.Second
)

// Upgrader wraps websocket.Upgrader with origin handling appropriate
// for a trusted local-network deployment.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type outboundFrame struct {
	data     []byte
	isBinary bool
}

// Conn is a transport.Conn backed by github.com/gorilla/websocket.
type Conn struct {
	ws   *websocket.Conn
	send chan outboundFrame

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps an already-upgraded websocket connection and starts its
// writer goroutine.
func New(wsConn *websocket.Conn) *Conn {
	c := &Conn{
		ws:     wsConn,
		send:   make(chan outboundFrame, sendQueueCapacity),
		closed: make(chan struct{}),
	}

	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writeLoop()
	return c
}

func (c *Conn) Send(data []byte) error {
	return c.enqueue(outboundFrame{data: data, isBinary: false})
}

func (c *Conn) SendBinary(data []byte) error {
	return c.enqueue(outboundFrame{data: data, isBinary: true})
}

func (c *Conn) enqueue(frame outboundFrame) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		log.Printf("websocket send queue full for %s, closing connection", c.RemoteAddr())
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "send queue full")
		c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeDeadline))
		c.Close()
		return transport.ErrClosed
	}
}

func (c *Conn) Recv() ([]byte, bool, error) {
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, false, fmt.Errorf("websocket read: %w", err)
	}
	return data, msgType == websocket.BinaryMessage, nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.ws.Close()
	})
	return nil
}

func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			msgType := websocket.TextMessage
			if frame.isBinary {
				msgType = websocket.BinaryMessage
			}
			if err := c.ws.WriteMessage(msgType, frame.data); err != nil {
				log.Printf("websocket write error to %s: %v", c.RemoteAddr(), err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

var _ transport.Conn = (*Conn)(nil)
