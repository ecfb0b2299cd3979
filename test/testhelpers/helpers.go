// Package testhelpers provides common utilities for testing the relay server.
//
// It wraps the repeated plumbing of integration tests: starting a relay over
// httptest, dialing the WebSocket endpoint with a valid origin, running the
// username handshake, and reading typed records off the wire.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/LuSilva710/mensageria-server/internal/server"
	"github.com/gorilla/websocket"
)

// DefaultCommands mirrors config/commands.json so integration tests exercise
// the interpreter without depending on the working directory.
func DefaultCommands() *server.CommandTable {
	return server.NewCommandTable([]server.Command{
		{Name: "history", Description: "List your messages in this group", Usage: "/history", MinArgs: 1},
		{Name: "delete", Description: "Delete one of your messages", Usage: "/delete <message_id>", MinArgs: 2},
		{Name: "edit", Description: "Edit one of your messages", Usage: "/edit <message_id> <new_content>", MinArgs: 3},
	})
}

// Relay bundles a running test server with its hub and WebSocket URL.
type Relay struct {
	Hub    *server.Hub
	Server *httptest.Server
	WSURL  string
}

// StartRelay boots a relay on an ephemeral port with the test server's own
// URL allow-listed as origin. Cleanup is registered on t.
func StartRelay(t *testing.T) *Relay {
	t.Helper()

	hub := server.NewHub(DefaultCommands())
	testServer := httptest.NewServer(server.SetupRoutes(hub))

	cfg := server.NewConfig()
	cfg.AllowedOrigins = append([]string{testServer.URL}, cfg.AllowedOrigins...)
	server.SetConfig(cfg)

	u, err := url.Parse(testServer.URL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"

	t.Cleanup(func() {
		_ = hub.Shutdown(5 * time.Second)
		testServer.Close()
		server.SetConfig(nil)
	})

	return &Relay{Hub: hub, Server: testServer, WSURL: u.String()}
}

// Dial opens a WebSocket connection to the relay with an allowed origin.
func (r *Relay) Dial(t *testing.T) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", r.Server.URL)

	conn, resp, err := dialer.Dial(r.WSURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Register dials, sends the username frame, and asserts a successful ack.
// It returns the open connection and the decoded ack record.
func (r *Relay) Register(t *testing.T, username string) (*websocket.Conn, map[string]any) {
	t.Helper()

	conn := r.Dial(t)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(username)); err != nil {
		t.Fatalf("Failed to send username frame: %v", err)
	}

	ack := ReadRecord(t, conn)
	if ack["type"] != "connection_ack" || ack["status"] != "success" {
		t.Fatalf("Expected successful connection_ack, got %v", ack)
	}
	return conn, ack
}

// SendRecord marshals and sends one record as a single text frame.
func SendRecord(t *testing.T, conn *websocket.Conn, record any) {
	t.Helper()
	if err := conn.WriteJSON(record); err != nil {
		t.Fatalf("Failed to send record: %v", err)
	}
}

// ReadRecord reads one record from the connection with a read deadline.
func ReadRecord(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(payload, &record); err != nil {
		t.Fatalf("Failed to decode record %q: %v", payload, err)
	}
	return record
}

// ReadRecordOfType reads records until one of the wanted type arrives,
// skipping interleaved presence updates and other traffic.
func ReadRecordOfType(t *testing.T, conn *websocket.Conn, recordType string) map[string]any {
	t.Helper()

	for i := 0; i < 20; i++ {
		record := ReadRecord(t, conn)
		if record["type"] == recordType {
			return record
		}
	}
	t.Fatalf("No record of type %q in the first 20 records", recordType)
	return nil
}

// WaitForUpdate reads records until a presence update satisfying check
// arrives. Earlier updates (for example the one from the reader's own
// registration) are discarded.
func WaitForUpdate(t *testing.T, conn *websocket.Conn, check func(update map[string]any) bool) map[string]any {
	t.Helper()

	for i := 0; i < 20; i++ {
		record := ReadRecord(t, conn)
		if record["type"] == "update" && check(record) {
			return record
		}
	}
	t.Fatal("No matching presence update in the first 20 records")
	return nil
}

// ExpectNoRecordOfType asserts that no record of the given type arrives
// within the timeout. Other record types are read and discarded.
func ExpectNoRecordOfType(t *testing.T, conn *websocket.Conn, recordType string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return // timeout or close both mean "nothing arrived"
		}
		var record map[string]any
		if err := json.Unmarshal(payload, &record); err != nil {
			t.Fatalf("Failed to decode record %q: %v", payload, err)
		}
		if record["type"] == recordType {
			t.Fatalf("Unexpected record of type %q: %v", recordType, record)
		}
	}
}
