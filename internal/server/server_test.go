package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/r2k/internal/protocol"
	"github.com/muurk/r2k/internal/reader"
)

type wireMessage struct {
	Type   string          `json:"type"`
	Time   time.Time       `json:"time"`
	Reader string          `json:"reader"`
	Event  json.RawMessage `json:"event"`
}

func sampleTag() *protocol.TagEvent {
	return &protocol.TagEvent{
		Command: protocol.CmdRealTimeInventory,
		Tag: protocol.TagRecord{
			Antenna:   1,
			Frequency: 902.0,
			RSSI:      -58,
			EPC:       "E2003412B80201234567890A",
			PC:        0x3000,
		},
	}
}

// dial connects a WebSocket client and waits until the server has
// registered it.
func dial(t *testing.T, srv *Server, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for srv.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wireMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestPublishReachesClients(t *testing.T) {
	srv := New(&Config{Reader: "dock-door"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	first := dial(t, srv, ts)
	second := dial(t, srv, ts)
	for srv.Clients() < 2 {
		time.Sleep(5 * time.Millisecond)
	}

	if err := srv.Publish(NewMessage("dock-door", sampleTag())); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		if msg.Type != "tag" || msg.Reader != "dock-door" {
			t.Errorf("message = %+v, want a tag from dock-door", msg)
		}
		var ev struct {
			Command string `json:"command"`
			Tag     struct {
				EPC  string `json:"epc"`
				RSSI int    `json:"rssi"`
			} `json:"tag"`
		}
		if err := json.Unmarshal(msg.Event, &ev); err != nil {
			t.Fatalf("event decode error = %v", err)
		}
		if ev.Command != "RealTimeInventory" || ev.Tag.EPC != "E2003412B80201234567890A" || ev.Tag.RSSI != -58 {
			t.Errorf("tag = %+v", ev.Tag)
		}
	}
}

func TestPumpForwardsEvents(t *testing.T) {
	srv := New(&Config{Reader: "bench"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	conn := dial(t, srv, ts)

	events := make(chan protocol.Response, 2)
	events <- sampleTag()
	events <- &protocol.RoundComplete{Command: protocol.CmdRealTimeInventory, Antenna: 1, ReadRate: 120, TotalRead: 1}
	close(events)

	done := make(chan struct{})
	go func() {
		srv.Pump(context.Background(), events)
		close(done)
	}()

	if msg := readMessage(t, conn); msg.Type != "tag" {
		t.Errorf("first message type = %q, want tag", msg.Type)
	}
	msg := readMessage(t, conn)
	if msg.Type != "round_complete" {
		t.Errorf("second message type = %q, want round_complete", msg.Type)
	}
	if !strings.Contains(string(msg.Event), `"total_read":1`) {
		t.Errorf("round event = %s", msg.Event)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pump() did not return after the channel closed")
	}
	if got := srv.Status().Published; got != 2 {
		t.Errorf("Published = %d, want 2", got)
	}
}

func TestSlowClientDrops(t *testing.T) {
	c := newClient(1, nil)
	for i := range clientQueue {
		if !c.send([]byte("x")) {
			t.Fatalf("send %d rejected before the queue was full", i)
		}
	}
	if c.send([]byte("x")) {
		t.Error("send accepted past the queue size")
	}
	c.close()
	c.close()
	if c.send([]byte("x")) {
		t.Error("send accepted after close")
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := New(&Config{
		Reader: "dock-door",
		Stats:  func() reader.Stats { return reader.Stats{FramesOut: 7, Timeouts: 1} },
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}

	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if st.Reader != "dock-door" || st.Link == nil || st.Link.FramesOut != 7 || st.Link.Timeouts != 1 {
		t.Errorf("status = %+v", st)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status code = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("/healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestServeShutdownClosesClients(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(&Config{})

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, l) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+l.Addr().String()+"/events", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	for srv.Clients() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if srv.Addr().String() != l.Addr().String() {
		t.Errorf("Addr() = %v, want %v", srv.Addr(), l.Addr())
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want a going-away close", err)
	}
}

func TestNewTLSConfigMissingFiles(t *testing.T) {
	if _, err := NewTLSConfig("/nonexistent/cert.pem", "/nonexistent/key.pem"); err == nil {
		t.Error("NewTLSConfig() with missing files succeeded")
	}
}
