package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/teleop/proto"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The protocol has no auth; any reachable peer is accepted
	},
}

// Transport is the controller endpoint's WebSocket server. It accepts
// exactly one active peer at a time: a new connection explicitly
// detaches the previous one before taking the slot. Outbound sends
// with no peer attached are dropped, inbound frames that fail to parse
// are dropped with the connection left open, and a peer disconnect
// just clears the slot. No reconnect is attempted from this side; the
// robot peer owns retry.
type Transport struct {
	Addr   string
	server *http.Server

	onObservation func(proto.Observation)
	onConnect     func(*Peer)
	onDisconnect  func(*Peer)

	name        string
	description string
	announce    bool

	mu        sync.RWMutex
	peer      *Peer
	boundAddr string
	connected bool

	announcer *announcer
}

func NewTransport(addr string) *Transport {
	return &Transport{Addr: addr}
}

// Start binds the listen socket and serves until Shutdown. A bind
// failure is returned once and not retried.
func (t *Transport) Start() error {
	slog.Info("Starting controller endpoint", "addr", t.Addr, "local_ip", LocalIP())

	if t.onObservation == nil {
		return fmt.Errorf("the OnObservation function is not defined, refusing to start without a consumer")
	}

	ln, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", t.Addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleWebSocket)

	t.server = &http.Server{Handler: mux}

	t.mu.Lock()
	t.boundAddr = ln.Addr().String()
	t.connected = true
	t.mu.Unlock()

	if t.announce {
		ann, err := startAnnouncer(ln.Addr())
		if err != nil {
			slog.Warn("Failed to announce service over mDNS", "error", err.Error())
		} else {
			t.announcer = ann
		}
	}

	err = t.server.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		return err
	}

	return nil
}

func (t *Transport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	go t.handleConnection(conn, r.RemoteAddr)
}

func (t *Transport) handleConnection(conn *websocket.Conn, remoteAddr string) {
	peer := newPeer(conn, remoteAddr)
	t.attach(peer)

	defer func() {
		if t.detach(peer) {
			slog.Info("Peer disconnected", "addr", remoteAddr, "id", peer.Id)
		}
		conn.Close()
	}()

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Peer connection error", "addr", remoteAddr, "error", err)
			}
			break
		}

		msgType, err := proto.MessageType(messageBytes)
		if err != nil {
			slog.Warn("Invalid JSON frame received, dropping", "error", err, "size", len(messageBytes))
			continue
		}

		switch msgType {
		case proto.TypeObservation:
			var obs proto.Observation
			if err := json.Unmarshal(messageBytes, &obs); err != nil {
				slog.Warn("Invalid observation frame, dropping", "error", err)
				continue
			}
			slog.Debug("Observation received", "from", peer.Id, "channels", len(obs.Data), "size", len(messageBytes))
			t.onObservation(obs)
		default:
			slog.Debug("Ignoring frame with unexpected type", "type", msgType, "from", peer.Id)
		}
	}
}

// attach installs p as the active peer, explicitly detaching any
// previous one first. Newest connection wins.
func (t *Transport) attach(p *Peer) {
	t.mu.Lock()
	old := t.peer
	t.peer = p
	t.mu.Unlock()

	if old != nil {
		slog.Info("New peer supersedes previous connection", "old", old.Id, "new", p.Id)
		old.close()
		if t.onDisconnect != nil {
			t.onDisconnect(old)
		}
	}

	slog.Info("Peer connected", "addr", p.RemoteAddr, "id", p.Id)
	if t.onConnect != nil {
		t.onConnect(p)
	}
}

// detach clears the slot only if p is still the active peer, so a
// superseded connection's read loop cannot evict its replacement.
func (t *Transport) detach(p *Peer) bool {
	t.mu.Lock()
	current := t.peer == p
	if current {
		t.peer = nil
	}
	t.mu.Unlock()

	if current && t.onDisconnect != nil {
		t.onDisconnect(p)
	}
	return current
}

// Send delivers an action to the attached peer. With no peer attached
// it is a silent no-op: callers must not assume delivery.
func (t *Transport) Send(action proto.Action) error {
	t.mu.RLock()
	peer := t.peer
	t.mu.RUnlock()

	if peer == nil {
		slog.Debug("No peer attached, dropping action")
		return nil
	}
	return peer.Send(action)
}

// Shutdown releases the listen socket and any peer socket. Safe to
// call when already stopped.
func (t *Transport) Shutdown() error {
	slog.Info("Shutting down controller endpoint", "addr", t.Addr)

	t.mu.Lock()
	t.connected = false
	peer := t.peer
	t.peer = nil
	t.mu.Unlock()

	if peer != nil {
		peer.close()
	}
	if t.announcer != nil {
		t.announcer.shutdown()
		t.announcer = nil
	}
	if t.server != nil {
		return t.server.Close()
	}
	return nil
}

func (t *Transport) OnObservation(fn func(proto.Observation)) {
	t.onObservation = fn
}

func (t *Transport) OnConnect(fn func(*Peer)) {
	t.onConnect = fn
}

func (t *Transport) OnDisconnect(fn func(*Peer)) {
	t.onDisconnect = fn
}

func (t *Transport) Meta() TransportMetadata {
	t.mu.RLock()
	defer t.mu.RUnlock()

	meta := TransportMetadata{
		Name:        t.name,
		Description: t.description,
		Protocol:    "websocket",
		Address:     t.Addr,
		LocalIP:     LocalIP(),
		Connected:   t.connected,
	}
	if t.boundAddr != "" {
		meta.Address = t.boundAddr
	}
	if t.peer != nil {
		meta.PeerID = t.peer.Id
		meta.PeerAddr = t.peer.RemoteAddr
	}
	return meta
}

func (t *Transport) SetName(name string) {
	t.name = name
}

func (t *Transport) SetDescription(description string) {
	t.description = description
}

// SetAnnounce enables mDNS advertisement of the endpoint on Start.
func (t *Transport) SetAnnounce(on bool) {
	t.announce = on
}
