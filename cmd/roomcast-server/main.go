// ABOUTME: Entry point for the roomcast server
// ABOUTME: Parses CLI flags and starts the server application
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/roomcast/roomcast-go/internal/app"
)

var (
	port    = flag.Int("port", 8927, "WebSocket server port")
	name    = flag.String("name", "", "Server friendly name (default: hostname-roomcast-server)")
	groups  = flag.String("groups", "living-room,kitchen", "Comma-separated list of group ids to create")
	logFile = flag.String("log-file", "roomcast-server.log", "Log file path")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	noMDNS  = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI   = flag.Bool("no-tui", false, "Disable the terminal dashboard")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-roomcast-server", hostname)
	}

	groupIDs := splitNonEmpty(*groups)
	if len(groupIDs) == 0 {
		groupIDs = []string{"default"}
	}

	log.Printf("Starting roomcast server: %s on port %d, groups %v", serverName, *port, groupIDs)
	if *debug {
		log.Printf("Debug logging enabled")
	}

	a := app.New(app.Config{
		Port:       *port,
		Name:       serverName,
		GroupIDs:   groupIDs,
		EnableMDNS: !*noMDNS,
		UseTUI:     !*noTUI,
		Debug:      *debug,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received %v, shutting down gracefully...", sig)
		a.Stop()
	}()

	if err := a.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("server stopped")
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
