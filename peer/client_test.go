package peer

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/teleop/proto"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeController is a minimal stand-in for the phone's endpoint: it
// captures the attached connection and records inbound frames.
type fakeController struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	received [][]byte
}

func (f *fakeController) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.received = append(f.received, data)
		f.mu.Unlock()
	}
}

func (f *fakeController) send(t *testing.T, frame []byte) {
	t.Helper()
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		t.Fatal("No client attached to fake controller")
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}
}

func startFake(t *testing.T) (*fakeController, string, func()) {
	t.Helper()
	fake := &fakeController{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	closeFake := func() {
		fake.mu.Lock()
		conn := fake.conn
		fake.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		srv.Close()
	}
	return fake, wsURL, closeFake
}

func TestClient_ReceivesActions(t *testing.T) {
	fake, wsURL, closeFake := startFake(t)
	defer closeFake()

	client := NewClient(DefaultConfig(wsURL))
	stop := make(chan struct{})
	defer close(stop)
	go client.Run(stop)
	time.Sleep(200 * time.Millisecond)

	if !client.Connected() {
		t.Fatal("Expected client to be connected")
	}
	if a := client.Action(); !a.IsZero() {
		t.Errorf("Expected zero action before any command, got %+v", a)
	}

	action := proto.NewAction()
	action.XVel = 0.3
	action.ThetaVel = -0.5
	data, _ := json.Marshal(action)
	fake.send(t, data)
	time.Sleep(100 * time.Millisecond)

	got := client.Action()
	if got.XVel != 0.3 || got.ThetaVel != -0.5 {
		t.Errorf("Expected received action, got %+v", got)
	}
}

func TestClient_MalformedFrameIsDropped(t *testing.T) {
	fake, wsURL, closeFake := startFake(t)
	defer closeFake()

	client := NewClient(DefaultConfig(wsURL))
	stop := make(chan struct{})
	defer close(stop)
	go client.Run(stop)
	time.Sleep(200 * time.Millisecond)

	fake.send(t, []byte(`{not json`))
	time.Sleep(50 * time.Millisecond)

	if !client.Connected() {
		t.Error("Expected connection to survive a malformed frame")
	}

	action := proto.NewAction()
	action.Gripper = 1
	data, _ := json.Marshal(action)
	fake.send(t, data)
	time.Sleep(100 * time.Millisecond)

	if got := client.Action(); got.Gripper != 1 {
		t.Errorf("Expected next well-formed frame to be processed, got %+v", got)
	}
}

func TestClient_ZeroesActionOnDisconnect(t *testing.T) {
	fake, wsURL, closeFake := startFake(t)

	client := NewClient(DefaultConfig(wsURL))
	stop := make(chan struct{})
	defer close(stop)
	go client.Run(stop)
	time.Sleep(200 * time.Millisecond)

	action := proto.NewAction()
	action.XVel = 0.3
	data, _ := json.Marshal(action)
	fake.send(t, data)
	time.Sleep(100 * time.Millisecond)

	closeFake()
	time.Sleep(200 * time.Millisecond)

	if client.Connected() {
		t.Error("Expected client to be disconnected")
	}
	if got := client.Action(); !got.IsZero() {
		t.Errorf("Expected action dropped to zero on disconnect, got %+v", got)
	}
}

func TestClient_SendObservation(t *testing.T) {
	fake, wsURL, closeFake := startFake(t)
	defer closeFake()

	client := NewClient(DefaultConfig(wsURL))
	stop := make(chan struct{})
	defer close(stop)
	go client.Run(stop)
	time.Sleep(200 * time.Millisecond)

	obs := proto.NewObservation()
	obs.SetState([]float64{1, 2, 3})
	if err := client.SendObservation(obs); err != nil {
		t.Fatalf("Failed to send observation: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.received) != 1 {
		t.Fatalf("Expected 1 frame at the controller, got %d", len(fake.received))
	}
	typ, err := proto.MessageType(fake.received[0])
	if err != nil || typ != proto.TypeObservation {
		t.Errorf("Expected observation frame, got type %q (err=%v)", typ, err)
	}
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	client := NewClient(DefaultConfig("ws://localhost:1/"))

	obs := proto.NewObservation()
	obs.SetState([]float64{1})
	// Never connected: the observation is dropped, not an error.
	if err := client.SendObservation(obs); err != nil {
		t.Errorf("Expected nil error while disconnected, got %v", err)
	}
}

func TestBuildObservation(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), A: 255})
		}
	}

	vec := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	obs, err := BuildObservation(vec, map[string]image.Image{
		proto.ChannelImageFront: img,
	}, 80)
	if err != nil {
		t.Fatalf("Failed to build observation: %v", err)
	}

	got, ok := obs.StateVector()
	if !ok || len(got) != len(vec) {
		t.Fatalf("Expected state vector of %d values, got %v (ok=%v)", len(vec), got, ok)
	}

	b64, ok := obs.Image(proto.ChannelImageFront)
	if !ok {
		t.Fatal("Expected front image channel")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("Image payload is not valid base64: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Image payload is not a valid JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 8 {
		t.Errorf("Unexpected decoded bounds: %v", decoded.Bounds())
	}
}
