// sieve/pkg/runtime/dashboard.go

package runtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rgehrsitz/sieve/pkg/logging"
)

// Dashboard exposes engine counters over HTTP: a JSON snapshot at
// /stats and a periodic push stream over the /events websocket.
type Dashboard struct {
	engine         *Engine
	port           int
	clients        map[*websocket.Conn]bool
	clientsMutex   sync.Mutex
	updateInterval time.Duration
	mux            *http.ServeMux
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now. In production, this should be more restrictive.
	},
}

func NewDashboard(engine *Engine, port int, updateInterval time.Duration) *Dashboard {
	d := &Dashboard{
		engine:         engine,
		port:           port,
		clients:        make(map[*websocket.Conn]bool),
		updateInterval: updateInterval,
		mux:            http.NewServeMux(),
	}
	d.mux.HandleFunc("/health", d.handleHealth)
	d.mux.HandleFunc("/stats", d.handleStats)
	d.mux.HandleFunc("/events", d.handleWebSocket)
	return d
}

// Handler returns the dashboard's HTTP handler.
func (d *Dashboard) Handler() http.Handler { return d.mux }

// Start serves the dashboard until the listener fails. It blocks, so
// callers normally run it in its own goroutine.
func (d *Dashboard) Start() error {
	go d.broadcastUpdates()

	addr := fmt.Sprintf(":%d", d.port)
	logging.Logger.Info().Str("addr", addr).Msg("Dashboard starting")
	if err := d.serve(addr); err != nil {
		logging.Logger.Error().Err(err).Msg("Dashboard stopped")
		return err
	}
	return nil
}

func (d *Dashboard) serve(addr string) error {
	server := &http.Server{Addr: addr, Handler: d.mux}
	return server.ListenAndServe()
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Server is running")
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.engine.GetStats()); err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to encode stats")
	}
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Error upgrading to WebSocket")
		return
	}
	defer conn.Close()

	logging.Logger.Debug().Str("client", conn.RemoteAddr().String()).Msg("Client connected")

	d.clientsMutex.Lock()
	d.clients[conn] = true
	d.clientsMutex.Unlock()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}

	d.clientsMutex.Lock()
	delete(d.clients, conn)
	d.clientsMutex.Unlock()

	logging.Logger.Debug().Str("client", conn.RemoteAddr().String()).Msg("Client disconnected")
}

func (d *Dashboard) broadcastUpdates() {
	ticker := time.NewTicker(d.updateInterval)
	defer ticker.Stop()

	for range ticker.C {
		stats := d.engine.GetStats()
		message, err := json.Marshal(stats)
		if err != nil {
			logging.Logger.Error().Err(err).Msg("Error marshaling stats")
			continue
		}

		d.clientsMutex.Lock()
		for client := range d.clients {
			err := client.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				logging.Logger.Debug().Err(err).Msg("Dropping slow or closed client")
				client.Close()
				delete(d.clients, client)
			}
		}
		d.clientsMutex.Unlock()
	}
}
