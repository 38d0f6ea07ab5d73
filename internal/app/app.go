// ABOUTME: Server application: HTTP/WebSocket accept loop, mDNS advertisement, dashboard, group feeds
// ABOUTME: Wires pkg/server's domain core to a runnable process, mirroring the teacher's internal/server/server.go lifecycle
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/roomcast/roomcast-go/internal/discovery"
	"github.com/roomcast/roomcast-go/internal/tui"
	"github.com/roomcast/roomcast-go/pkg/group"
	"github.com/roomcast/roomcast-go/pkg/protocol"
	"github.com/roomcast/roomcast-go/pkg/server"
	"github.com/roomcast/roomcast-go/pkg/session"
	"github.com/roomcast/roomcast-go/pkg/transport/ws"
)

// chunkDuration is how much audio each PlayAudioChunk carries. Shorter
// chunks tighten synchronization at the cost of more wire traffic.
const chunkDuration = 20 * time.Millisecond

// Config holds server process configuration.
type Config struct {
	Port       int
	Name       string
	GroupIDs   []string
	EnableMDNS bool
	UseTUI     bool
	Debug      bool
}

// App runs the WebSocket accept loop, optional mDNS advertisement,
// optional dashboard, and a test-tone feed for every configured group.
type App struct {
	config Config
	srv    *server.Server

	mux        *http.ServeMux
	httpServer *http.Server

	mdnsManager *discovery.Manager
	tui         *tui.ServerTUI

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an App around a fresh pkg/server.Server with one group
// per configured group id.
func New(config Config) *App {
	info := protocol.ServerInfo{ServerID: uuid.New().String(), Name: config.Name}
	return &App{
		config:   config,
		srv:      server.New(info, config.GroupIDs),
		mux:      http.NewServeMux(),
		stopChan: make(chan struct{}),
	}
}

// Run starts every subsystem and blocks until stopped, by signal,
// dashboard quit, or HTTP server error.
func (a *App) Run() error {
	if a.config.UseTUI {
		a.tui = tui.New(a.config.Name, a.config.Port)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.tui.Start(a.config.Name, a.config.Port); err != nil {
				log.Printf("app: dashboard exited: %v", err)
			}
		}()
		time.Sleep(100 * time.Millisecond)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.pollStatus()
		}()
	}

	if a.config.EnableMDNS {
		a.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: a.config.Name,
			Port:        a.config.Port,
			ServerMode:  true,
		})
		if err := a.mdnsManager.Advertise(); err != nil {
			log.Printf("app: mDNS advertisement failed: %v", err)
		}
	}

	for _, id := range a.config.GroupIDs {
		g := a.srv.Group(id)
		if g == nil {
			continue
		}
		sess, err := g.StartSession(protocol.CodecPCM, DefaultSampleRate, DefaultChannels, DefaultBitDepth, nowMicros())
		if err != nil {
			log.Printf("app: group %s: failed to start session: %v", id, err)
			continue
		}
		a.wg.Add(1)
		go func(g *group.Group, sess *session.State) {
			defer a.wg.Done()
			a.feedGroup(g, sess)
		}(g, sess)
	}

	a.mux.HandleFunc("/roomcast", a.handleWebSocket)

	addr := fmt.Sprintf(":%d", a.config.Port)
	a.httpServer = &http.Server{Addr: addr, Handler: a.mux}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("app: listening on %s", addr)
		if err := a.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var tuiQuit <-chan struct{}
	if a.tui != nil {
		tuiQuit = a.tui.QuitChan()
	}

	var runErr error
	select {
	case <-a.stopChan:
	case <-tuiQuit:
	case err := <-errChan:
		runErr = err
	}

	if a.tui != nil {
		a.tui.Stop()
	}
	if a.mdnsManager != nil {
		a.mdnsManager.Stop()
	}
	a.srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Printf("app: HTTP shutdown error: %v", err)
	}

	a.wg.Wait()
	return runErr
}

// Stop requests a graceful shutdown.
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })
}

func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("app: upgrade failed: %v", err)
		return
	}
	conn := ws.New(wsConn)
	a.srv.Accept(conn)
}

func (a *App) pollStatus() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			status := a.srv.Status()
			status.Port = a.config.Port
			a.tui.Update(status)
		}
	}
}

// feedGroup streams the built-in test tone into g's session at a fixed
// cadence until the app stops. Real deployments would replace this
// with a stream source selected per group.
func (a *App) feedGroup(g *group.Group, sess *session.State) {
	tone := newToneSource()
	samplesPerChunk := int(DefaultSampleRate * chunkDuration / time.Second)
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	originUs := sess.Info.OriginUs
	var sampleIndex int64

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			planes := tone.next(samplesPerChunk)
			timestampUs := originUs + (sampleIndex*1_000_000)/int64(DefaultSampleRate)
			if err := sess.SendAudioPlanes(g.Members(), timestampUs, planes); err != nil {
				log.Printf("app: group %s: feed failed: %v", g.ID, err)
				return
			}
			sampleIndex += int64(samplesPerChunk)
		}
	}
}

func nowMicros() int64 {
	return time.Now().UnixNano() / 1000
}
