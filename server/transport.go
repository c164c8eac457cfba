package server

import (
	"net"

	"github.com/google/uuid"
)

// TransportMetadata describes the controller endpoint's socket state
// for display surfaces (monitor API, MCP tools, operator UI).
type TransportMetadata struct {
	Name        string // Human-friendly name, e.g., "Phone Controller"
	Protocol    string // Protocol name, e.g., "websocket"
	Address     string // Bind address, e.g., "0.0.0.0:8080"
	LocalIP     string // Interface address for out-of-band sharing
	Description string // Optional, short purpose/use case

	Connected bool   // Whether the listen socket is currently bound
	PeerID    string // Session ID of the attached peer, empty if none
	PeerAddr  string // Remote address of the attached peer
}

func generatePeerId() string {
	return "peer-" + uuid.NewString()
}

// LocalIP discovers the address of the interface that would route to
// the local network, for the operator to enter on the robot side.
// Falls back to "127.0.0.1" when no route is available.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
