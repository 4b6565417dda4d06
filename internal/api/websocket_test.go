package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialWS connects to the server's WebSocket endpoint.
func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.mux)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	return msg
}

func sendWSMessage(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()

	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write websocket message: %v", err)
	}
}

func TestWebSocketSubscribeAll(t *testing.T) {
	srv := newTestServer(t)
	proj := createTestProject(t, srv)
	conn := dialWS(t, srv)

	sendWSMessage(t, conn, WSMessage{Type: "subscribe", TaskID: "*"})

	ack := readWSMessage(t, conn)
	if ack["type"] != "subscribed" || ack["task_id"] != "*" {
		t.Fatalf("unexpected ack: %v", ack)
	}

	// Scope-all subscriptions start with a stats snapshot.
	snapshot := readWSMessage(t, conn)
	if snapshot["type"] != "stats" {
		t.Fatalf("expected stats snapshot, got %v", snapshot)
	}

	task := createTestTask(t, srv, map[string]any{
		"project_id": proj.ID.String(),
		"title":      "observed",
	})

	event := readWSMessage(t, conn)
	if event["type"] != "event" || event["event"] != "task_created" {
		t.Fatalf("expected task_created event, got %v", event)
	}
	if event["task_id"] != task.ID.String() {
		t.Errorf("expected task_id %s, got %v", task.ID, event["task_id"])
	}
}

func TestWebSocketSubscribeTask(t *testing.T) {
	srv := newTestServer(t)
	proj := createTestProject(t, srv)
	task := createTestTask(t, srv, map[string]any{
		"project_id": proj.ID.String(),
		"title":      "watched",
	})

	conn := dialWS(t, srv)
	sendWSMessage(t, conn, WSMessage{Type: "subscribe", TaskID: task.ID.String()})

	ack := readWSMessage(t, conn)
	if ack["type"] != "subscribed" {
		t.Fatalf("unexpected ack: %v", ack)
	}

	// Another task's events must not reach this subscriber.
	createTestTask(t, srv, map[string]any{
		"project_id": proj.ID.String(),
		"title":      "unrelated",
	})

	w := doRequest(t, srv, "PATCH", "/api/tasks/"+task.ID.String(), map[string]any{
		"status": "in_progress",
	})
	if w.Code != 200 {
		t.Fatalf("patch: status %d", w.Code)
	}

	event := readWSMessage(t, conn)
	if event["event"] != "task_updated" {
		t.Fatalf("expected task_updated, got %v", event)
	}
	if event["task_id"] != task.ID.String() {
		t.Errorf("expected task_id %s, got %v", task.ID, event["task_id"])
	}
}

func TestWebSocketPing(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)

	sendWSMessage(t, conn, WSMessage{Type: "ping"})

	msg := readWSMessage(t, conn)
	if msg["type"] != "pong" {
		t.Errorf("expected pong, got %v", msg)
	}
}

func TestWebSocketErrors(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)

	sendWSMessage(t, conn, WSMessage{Type: "subscribe"})
	if msg := readWSMessage(t, conn); msg["type"] != "error" {
		t.Errorf("expected error for subscribe without task_id, got %v", msg)
	}

	sendWSMessage(t, conn, WSMessage{Type: "launch"})
	if msg := readWSMessage(t, conn); msg["type"] != "error" {
		t.Errorf("expected error for unknown type, got %v", msg)
	}
}

func TestWebSocketUnsubscribe(t *testing.T) {
	srv := newTestServer(t)
	proj := createTestProject(t, srv)
	conn := dialWS(t, srv)

	sendWSMessage(t, conn, WSMessage{Type: "subscribe", TaskID: "*"})
	readWSMessage(t, conn) // ack
	readWSMessage(t, conn) // stats snapshot

	sendWSMessage(t, conn, WSMessage{Type: "unsubscribe"})

	// Give the unsubscribe time to land before publishing.
	time.Sleep(50 * time.Millisecond)

	createTestTask(t, srv, map[string]any{
		"project_id": proj.ID.String(),
		"title":      "unseen",
	})

	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err == nil {
		t.Errorf("expected no message after unsubscribe, got %v", msg)
	}
}
