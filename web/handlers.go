package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/mbocsi/teleop/control"
	"github.com/mbocsi/teleop/proto"
	"github.com/mbocsi/teleop/server"
)

// Monitor serves the operator-facing status API next to the controller
// endpoint: connection state, the address to enter on the robot side,
// the last emitted action, and the rendered view of the latest
// observation. It is also the observation consumer, keeping the most
// recent frame (each receipt overwrites the previous one wholesale).
type Monitor struct {
	transport *server.Transport
	state     *control.State
	httpSrv   *http.Server

	mu       sync.RWMutex
	snapshot Snapshot
	rendered bool
}

func NewMonitor(transport *server.Transport, state *control.State) *Monitor {
	return &Monitor{transport: transport, state: state}
}

// HandleObservation replaces the displayed snapshot. Wire this as the
// transport's observation callback.
func (m *Monitor) HandleObservation(obs proto.Observation) {
	snap := Render(obs)
	m.mu.Lock()
	m.snapshot = snap
	m.rendered = true
	m.mu.Unlock()
}

// Routes returns the HTTP routes for the monitor API.
func (m *Monitor) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", m.HandleStatus)
	r.Get("/action", m.HandleAction)
	r.Get("/observation", m.HandleSnapshot)
	r.Get("/cameras/{channel}", m.HandleCamera)
	r.Post("/stop", m.HandleStop)
	return r
}

// Start serves the monitor API on its own listen address.
func (m *Monitor) Start(addr string) error {
	slog.Info("Starting monitor API", "addr", addr)
	m.httpSrv = &http.Server{Addr: addr, Handler: m.Routes()}
	err := m.httpSrv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (m *Monitor) Shutdown() error {
	if m.httpSrv != nil {
		return m.httpSrv.Close()
	}
	return nil
}

func (m *Monitor) HandleStatus(w http.ResponseWriter, r *http.Request) {
	meta := m.transport.Meta()
	writeJSON(w, map[string]any{
		"connected": meta.PeerID != "",
		"listening": meta.Connected,
		"address":   meta.Address,
		"local_ip":  meta.LocalIP,
		"peer_id":   meta.PeerID,
		"peer_addr": meta.PeerAddr,
	})
}

func (m *Monitor) HandleAction(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, m.state.Snapshot())
}

func (m *Monitor) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	snap := m.snapshot
	rendered := m.rendered
	m.mu.RUnlock()

	if !rendered {
		// No observation yet: render the empty frame so the shape of
		// the response is the same as once data arrives.
		snap = Render(proto.NewObservation())
	}
	writeJSON(w, snap)
}

func (m *Monitor) HandleCamera(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")

	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	// Short camera names map onto the observation channel namespace.
	img, ok := snap.Image("observation.images." + channel)
	if !ok {
		img, ok = snap.Image(channel)
	}
	if !ok {
		http.Error(w, "no frame for camera "+channel, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(img)
}

func (m *Monitor) HandleStop(w http.ResponseWriter, r *http.Request) {
	slog.Info("Emergency stop requested via monitor API", "remote_addr", r.RemoteAddr)
	m.state.EmergencyStop()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err.Error())
	}
}
