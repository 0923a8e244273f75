package websocket

import (
	"log"
	"net/http"
	"os"
	"strings"

	"trust-platform/backend/internal/protocol"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// AllowedOrigins is the upgrade origin allow-list, loaded once at startup and
// overridable in tests.
var AllowedOrigins = getAllowedOrigins()

// getAllowedOrigins reads ALLOWED_ORIGINS (comma-separated) or falls back to
// local development origins.
func getAllowedOrigins() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// checkOrigin enforces an exact-match origin policy for upgrades.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Upgrader configures the WebSocket upgrader
var Upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// HandleWebSocket upgrades an HTTP connection, starts the client pumps and
// hands the connection to the dispatcher callbacks. Authentication happens
// in-band via the REGISTER message, not at upgrade time.
func HandleWebSocket(
	c *gin.Context,
	onMessage func(*Client, protocol.Envelope),
	onClose func(*Client),
) {
	conn, err := Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}

	client := &Client{
		ConnID: uuid.New().String(),
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	go client.WritePump()
	go client.ReadPump(onMessage, onClose)
}
