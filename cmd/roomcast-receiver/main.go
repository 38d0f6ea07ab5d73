// ABOUTME: Entry point for the roomcast receiver client
// ABOUTME: Dials a server, joins a group, and plays scheduled audio through the local output device
package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomcast/roomcast-go/internal/discovery"
	"github.com/roomcast/roomcast-go/pkg/audio/output"
	"github.com/roomcast/roomcast-go/pkg/protocol"
	"github.com/roomcast/roomcast-go/pkg/receiver"
	"github.com/roomcast/roomcast-go/pkg/transport/ws"
)

var (
	serverAddr = flag.String("server", "", "Server address (host:port). If empty, discovers one via mDNS")
	name       = flag.String("name", "", "Player name (default: hostname)")
	group      = flag.String("group", "", "Group id to join on connect")
	bufferMs   = flag.Int("buffer-ms", 500, "Receiver buffer capacity, in milliseconds, advertised on hello")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	playerName := *name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "roomcast-receiver"
		}
		playerName = hostname
	}

	addr := *serverAddr
	if addr == "" {
		discovered, err := discoverServer()
		if err != nil {
			log.Fatalf("no --server given and mDNS discovery failed: %v", err)
		}
		addr = discovered
	}

	u := url.URL{Scheme: "ws", Host: addr, Path: "/roomcast"}
	log.Printf("connecting to %s", u.String())

	wsConn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	conn := ws.New(wsConn)

	info := protocol.PlayerInfo{
		PlayerID:             playerName,
		Name:                 playerName,
		BufferCapacity:       *bufferMs,
		SupportedChannels:    []int{1, 2},
		SupportedSampleRates: []int{44100, 48000},
		SupportedBitDepths:   []int{16},
	}
	r := receiver.New(conn, info)

	out := output.NewOto()
	defer out.Close()

	r.SessionUpdate.Subscribe(func(sess *protocol.SessionInfo) {
		if sess == nil {
			return
		}
		if err := out.Open(sess.SampleRate, sess.Channels); err != nil {
			log.Printf("failed to open audio output: %v", err)
		}
	})
	r.ServerUpdate.Subscribe(func(info protocol.ServerInfo) {
		log.Printf("connected to server %q (%s)", info.Name, info.ServerID)
	})
	r.Close.Subscribe(func(ev receiver.CloseEvent) {
		if ev.Expected {
			log.Printf("disconnected")
		} else {
			log.Printf("connection lost: %v", ev.Err)
		}
	})

	go playbackLoop(r, out)

	go r.Run()
	if *group != "" {
		go joinGroupWhenReady(r, conn, *group)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Printf("shutting down")
	r.Disconnect()
}

func playbackLoop(r *receiver.Receiver, out output.Output) {
	for buf := range r.Scheduler.Output() {
		if err := out.Write(buf.Planes); err != nil {
			log.Printf("playback write failed: %v", err)
		}
	}
}

// joinGroupWhenReady waits for the receiver to report a connected,
// no-session state (meaning player/hello has completed) before sending
// group/join, since the server requires hello as the first message on
// a connection.
func joinGroupWhenReady(r *receiver.Receiver, conn *ws.Conn, groupID string) {
	deadline := time.Now().Add(5 * time.Second)
	for r.State() == receiver.StateConnecting {
		if time.Now().After(deadline) {
			log.Printf("timed out waiting to join group %s", groupID)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	data, err := encodeGroupJoin(groupID)
	if err != nil {
		log.Printf("failed to encode group/join: %v", err)
		return
	}
	if err := conn.Send(data); err != nil {
		log.Printf("failed to send group/join: %v", err)
	}
}

func encodeGroupJoin(groupID string) ([]byte, error) {
	return protocol.EncodeMessage(protocol.TypeGroupJoin, protocol.GroupJoin{GroupID: groupID})
}

func discoverServer() (string, error) {
	manager := discovery.NewManager(discovery.Config{ServiceName: "roomcast-receiver"})
	if err := manager.Browse(); err != nil {
		return "", err
	}
	defer manager.Stop()

	select {
	case srv := <-manager.Servers():
		return fmt.Sprintf("%s:%d", srv.Host, srv.Port), nil
	case <-time.After(5 * time.Second):
		return "", fmt.Errorf("no roomcast server found")
	}
}
