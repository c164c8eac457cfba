package peer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbocsi/teleop/proto"
)

// Config holds the robot peer's connection settings. The phone acts as
// the server; this side dials it and owns all retry behavior.
type Config struct {
	URL               string        // e.g. "ws://192.168.1.102:8080/"
	ConnectTimeout    time.Duration // WebSocket handshake timeout
	ReconnectInterval time.Duration // Initial delay between reconnect attempts
	VideoQuality      int           // JPEG quality 0-100 for camera frames
}

func DefaultConfig(addr string) Config {
	return Config{
		URL:               addr,
		ConnectTimeout:    10 * time.Second,
		ReconnectInterval: 2 * time.Second,
		VideoQuality:      80,
	}
}

// Client is the robot-side peer: it connects to the phone's controller
// endpoint, keeps the latest received action, and streams observation
// frames back. The connection is re-dialed with backoff whenever it
// drops; the received action is zeroed on every drop so a stale
// command can never keep driving the robot.
type Client struct {
	cfg Config

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	session   string
	action    proto.Action

	wmu sync.Mutex
}

func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 2 * time.Second
	}
	return &Client{cfg: cfg, action: proto.NewAction()}
}

// Run dials the controller endpoint and keeps the connection alive
// until stop is closed, backing off between attempts.
func (c *Client) Run(stop <-chan struct{}) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid WebSocket URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "ws"
	}

	backoff := c.cfg.ReconnectInterval
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		connected, err := c.runOnce(u.String(), stop)
		if err != nil {
			slog.Warn("Controller connection lost", "error", err.Error())
		}
		if connected {
			backoff = c.cfg.ReconnectInterval
		}

		select {
		case <-stop:
			return nil
		case <-time.After(backoff):
		}
		if backoff < 8*time.Second {
			backoff *= 2
		}
	}
}

func (c *Client) runOnce(wsURL string, stop <-chan struct{}) (bool, error) {
	slog.Info("Connecting to controller endpoint", "url", wsURL)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to connect to controller: %w", err)
	}

	session := "session-" + uuid.NewString()
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.session = session
	c.mu.Unlock()

	slog.Info("Connected to controller endpoint", "url", wsURL, "session", session)

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.connected = false
		c.action = proto.NewAction() // drop to zero on disconnect
		c.mu.Unlock()
		conn.Close()
	}()

	done := make(chan struct{})
	go func() {
		select {
		case <-stop:
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		msgType, err := proto.MessageType(messageBytes)
		if err != nil {
			slog.Warn("Invalid JSON frame from controller, dropping", "error", err)
			continue
		}

		switch msgType {
		case proto.TypeAction:
			var action proto.Action
			if err := json.Unmarshal(messageBytes, &action); err != nil {
				slog.Warn("Invalid action frame, dropping", "error", err)
				continue
			}
			c.mu.Lock()
			c.action = action
			c.mu.Unlock()
			slog.Debug("Action received", "session", session, "size", len(messageBytes))
		default:
			slog.Debug("Ignoring frame with unexpected type", "type", msgType)
		}
	}
}

// Action returns the latest received action. All-zero when no command
// has arrived or after a disconnect.
func (c *Client) Action() proto.Action {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.action
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Session returns the ID of the current connection attempt.
func (c *Client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SendObservation streams one observation frame to the phone. Dropped
// silently when disconnected: feedback is best-effort.
func (c *Client) SendObservation(obs proto.Observation) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		slog.Debug("Not connected, dropping observation")
		return nil
	}

	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}

	c.wmu.Lock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send observation: %w", err)
	}

	slog.Debug("Sent observation", "channels", len(obs.Data), "size", len(data))
	return nil
}
