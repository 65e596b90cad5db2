package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/orbit-engine/model"
)

type gaugeRecorder struct {
	mu     sync.Mutex
	values []int
}

func (g *gaugeRecorder) SetStreamClients(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = append(g.values, n)
}

func (g *gaugeRecorder) last() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.values) == 0 {
		return -1
	}
	return g.values[len(g.values)-1]
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw struct {
		Type       string                    `json:"type"`
		Seq        uint64                    `json:"seq"`
		Satellites []model.SatellitePosition `json:"satellites"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return Message{Type: raw.Type, Seq: raw.Seq, Satellites: model.NewPositionMap(raw.Satellites)}
}

func TestHubBroadcastReachesClients(t *testing.T) {
	gauge := &gaugeRecorder{}
	hub := NewHub(Config{Rate: 100, Burst: 10}, WithClientGauge(gauge))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 && gauge.last() == 1 })

	hub.Broadcast(model.NewPositionMap([]model.SatellitePosition{
		{ID: "sat-001", Name: "ALPHA", Position: model.Vec3{X: 1, Y: 2, Z: 3}},
	}))

	msg := readMessage(t, conn)
	if msg.Type != MessageTypePositions || msg.Seq != 1 {
		t.Fatalf("message = %q seq %d", msg.Type, msg.Seq)
	}
	pos, ok := msg.Satellites.Get("ALPHA")
	if !ok || pos != (model.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("position = %+v ok=%v", pos, ok)
	}
}

func TestHubSendsLatestSnapshotOnConnect(t *testing.T) {
	hub := NewHub(Config{Rate: 100, Burst: 10})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.Broadcast(model.NewPositionMap([]model.SatellitePosition{{ID: "a", Name: "a"}}))
	hub.Broadcast(model.NewPositionMap([]model.SatellitePosition{{ID: "b", Name: "b"}}))

	conn := dial(t, srv)
	defer conn.Close()

	msg := readMessage(t, conn)
	if msg.Seq != 2 {
		t.Fatalf("seq = %d, want 2", msg.Seq)
	}
	if _, ok := msg.Satellites.ByID("b"); !ok {
		t.Fatalf("initial snapshot missing latest satellite")
	}
}

func TestHubRateLimitsPerClient(t *testing.T) {
	hub := NewHub(Config{Rate: 0.001, Burst: 1})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 })

	for i := 0; i < 3; i++ {
		hub.Broadcast(model.NewPositionMap(nil))
	}

	msg := readMessage(t, conn)
	if msg.Seq != 1 {
		t.Fatalf("first delivered seq = %d, want 1", msg.Seq)
	}
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected throttled broadcasts to be held back")
	}
}

func TestHubDeliversLatestThrottledSnapshot(t *testing.T) {
	hub := NewHub(Config{Rate: 20, Burst: 1})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 })

	for _, id := range []string{"a", "b", "c"} {
		hub.Broadcast(model.NewPositionMap([]model.SatellitePosition{{ID: id, Name: id}}))
	}

	if msg := readMessage(t, conn); msg.Seq != 1 {
		t.Fatalf("first delivered seq = %d, want 1", msg.Seq)
	}
	// No further broadcast happens; the newest snapshot still arrives once
	// the budget refills, and the one in between is skipped.
	msg := readMessage(t, conn)
	if msg.Seq != 3 {
		t.Fatalf("follow-up seq = %d, want 3", msg.Seq)
	}
	if _, ok := msg.Satellites.ByID("c"); !ok {
		t.Fatalf("follow-up is not the latest snapshot")
	}
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("unexpected extra message after the latest snapshot")
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	gauge := &gaugeRecorder{}
	hub := NewHub(Config{Rate: 100, Burst: 10}, WithClientGauge(gauge))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.Clients() == 1 })
	conn.Close()

	waitFor(t, func() bool { return hub.Clients() == 0 && gauge.last() == 0 })
}
