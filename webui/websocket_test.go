package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

func startBroadcaster(t *testing.T, config BroadcasterConfig) (*WebSocketBroadcaster, string) {
	t.Helper()
	config.Logger = zaptest.NewLogger(t)
	b := NewWebSocketBroadcasterWithConfig(config)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Start(ctx)

	srv := httptest.NewServer(http.HandlerFunc(b.HandleConnection))
	t.Cleanup(srv.Close)
	return b, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, b *WebSocketBroadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", b.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketBroadcaster_InitialState(t *testing.T) {
	_, url := startBroadcaster(t, BroadcasterConfig{
		InitialState: func() WSMessage {
			return NewInitialMessage(InitialData{Engine: "procedural"})
		},
	})

	msg := readMessage(t, dial(t, url))
	if msg["type"] != MessageTypeInitial {
		t.Fatalf("first message type = %v", msg["type"])
	}
	data := msg["data"].(map[string]any)
	if data["engine"] != "procedural" {
		t.Errorf("engine = %v", data["engine"])
	}
}

func TestWebSocketBroadcaster_Broadcast(t *testing.T) {
	b, url := startBroadcaster(t, BroadcasterConfig{})
	c1 := dial(t, url)
	c2 := dial(t, url)
	waitForClients(t, b, 2)

	b.BroadcastProgress(ProgressData{Step: 2, Total: 4, Percent: 50})
	b.BroadcastError(CodeSynthesis, "engine crashed")

	for _, conn := range []*websocket.Conn{c1, c2} {
		progress := readMessage(t, conn)
		if progress["type"] != MessageTypeProgress {
			t.Errorf("type = %v, want progress", progress["type"])
		}
		if step := progress["data"].(map[string]any)["step"]; step != float64(2) {
			t.Errorf("step = %v", step)
		}

		errMsg := readMessage(t, conn)
		if errMsg["type"] != MessageTypeError {
			t.Errorf("type = %v, want error", errMsg["type"])
		}
	}
}

func TestWebSocketBroadcaster_Disconnect(t *testing.T) {
	b, url := startBroadcaster(t, BroadcasterConfig{})
	conn := dial(t, url)
	waitForClients(t, b, 1)

	conn.Close()
	waitForClients(t, b, 0)
}

func TestWebSocketBroadcaster_DropsWhenBufferFull(t *testing.T) {
	b := NewWebSocketBroadcasterWithConfig(BroadcasterConfig{BroadcastBufferSize: 1})

	b.BroadcastMessage(NewWSMessage(MessageTypeProgress, nil))
	done := make(chan struct{})
	go func() {
		b.BroadcastMessage(NewWSMessage(MessageTypeProgress, nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastMessage blocked on a full buffer")
	}
}
