// Package server exposes the HTTP handlers: the WebSocket endpoint with its
// registration handshake, a health check, and a built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const handshakeReadTimeout = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler returns the handler for the /ws endpoint. It upgrades the
// connection, runs the username handshake, and on success hands the
// connection over to the hub's pump goroutines.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		handleHandshake(hub, client)
	}
}

// handleHandshake performs the registration handshake: the first frame is
// the raw desired username, answered with a single connection_ack record
// carrying the full history snapshot on success.
func handleHandshake(hub *Hub, client *Client) {
	if err := client.conn.SetReadDeadline(time.Now().Add(handshakeReadTimeout)); err != nil {
		log.Printf("Error setting handshake deadline for %s: %v", client.addr, err)
	}

	_, raw, err := client.conn.ReadMessage()
	if err != nil {
		log.Printf("Handshake read failed for %s: %v", client.addr, err)
		client.closeConnection()
		return
	}

	username := strings.TrimSpace(string(raw))
	if username == "" {
		rejectHandshake(client, "Username must not be empty")
		return
	}

	session, err := hub.RegisterClient(username, client)
	if err != nil {
		rejectHandshake(client, fmt.Sprintf("Could not register %q: %v", username, err))
		return
	}

	ack := ConnectionAck{
		Type:     TypeConnectionAck,
		Status:   "success",
		Message:  fmt.Sprintf("Bem-vindo %s", username),
		YourName: username,
		History:  hub.SnapshotFor(username),
	}
	if !writeRecord(client, ack) {
		hub.DisconnectClient(client)
		return
	}

	log.Printf("[session %s] handshake complete for %s", session.ID, username)
	hub.StartPumps(client)
	hub.BroadcastPresence()
}

// rejectHandshake answers a failed handshake with an error ack and closes
// the transport. The connection never reaches the registered state.
func rejectHandshake(client *Client, reason string) {
	log.Printf("Rejected handshake from %s: %s", client.addr, reason)
	writeRecord(client, ConnectionAck{
		Type:    TypeConnectionAck,
		Status:  "error",
		Message: reason,
	})
	client.markClosed()
	client.closeConnection()
}

// writeRecord writes a record directly to the transport. Only valid during
// the handshake, before the write pump owns the connection.
func writeRecord(client *Client, record any) bool {
	payload, err := json.Marshal(record)
	if err != nil {
		log.Printf("Could not encode handshake record for %s: %v", client.addr, err)
		return false
	}
	if err := client.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		log.Printf("Error setting handshake write deadline for %s: %v", client.addr, err)
		return false
	}
	if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing handshake record to %s: %v", client.addr, err)
		}
		return false
	}
	return true
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Mensageria relay server is running!")
}

// TestPageHandler serves a minimal HTML page speaking the real protocol:
// username handshake, JSON records, group messages to "Geral".
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Mensageria Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        input[type="text"] { width: 250px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; }
    </style>
</head>
<body>
    <h1>Mensageria Test</h1>
    <div>
        <input type="text" id="username" placeholder="Username">
        <button onclick="connect()">Connect</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Message to Geral (try /history)" disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>
    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');

        function addLine(text) {
            const el = document.createElement('div');
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function connect() {
            const name = document.getElementById('username').value.trim();
            if (!name) { return; }
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = function() { ws.send(name); };
            ws.onmessage = function(event) {
                const record = JSON.parse(event.data);
                if (record.type === 'connection_ack') {
                    addLine('[' + record.status + '] ' + record.message);
                    if (record.status === 'success') {
                        messageInput.disabled = false;
                        sendButton.disabled = false;
                    }
                } else if (record.type === 'group_message' || record.type === 'private_message' || record.type === 'system') {
                    const flags = (record.deleted ? ' (deleted)' : '') + (record.edited ? ' (edited)' : '');
                    addLine(record.sender + ' #' + record.id + ': ' + record.message + flags);
                } else if (record.type === 'update') {
                    addLine('online: ' + record.contacts.join(', '));
                }
            };
            ws.onclose = function() {
                addLine('connection closed');
                messageInput.disabled = true;
                sendButton.disabled = true;
            };
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({type: 'group_message', group: 'Geral', message: text}));
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
