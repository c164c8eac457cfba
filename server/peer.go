package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/teleop/proto"
)

// Peer is the single remote endpoint currently attached to the
// controller's listen socket.
type Peer struct {
	Id         string
	RemoteAddr string

	conn *websocket.Conn
	wmu  sync.Mutex
}

func newPeer(conn *websocket.Conn, remoteAddr string) *Peer {
	return &Peer{
		Id:         generatePeerId(),
		RemoteAddr: remoteAddr,
		conn:       conn,
	}
}

func (p *Peer) Send(action proto.Action) error {
	jsonData, err := json.Marshal(action)
	if err != nil {
		return err
	}

	p.wmu.Lock()
	err = p.conn.WriteMessage(websocket.TextMessage, jsonData)
	p.wmu.Unlock()
	if err != nil {
		return err
	}

	slog.Debug("Sent action", "to", p.Id, "size", len(jsonData))
	return nil
}

func (p *Peer) close() {
	p.conn.Close()
}
