package ws

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aidocs/platform/internal/identity"
	"github.com/aidocs/platform/internal/infrastructure/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to WebSocket connections, authenticating
// with the same bearer token the REST API accepts.
type Handler struct {
	hub      *Hub
	verifier *identity.Verifier
	log      *logger.Logger
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, verifier *identity.Verifier, log *logger.Logger) *Handler {
	return &Handler{hub: hub, verifier: verifier, log: log}
}

// bearerToken extracts the token from the Authorization header or, since
// browsers cannot set custom headers on a WebSocket handshake, the "token"
// query parameter.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP authenticates the caller, upgrades the connection, and starts
// the client's read/write pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.Verify(r.Context(), bearerToken(r))
	if err != nil {
		h.log.Warn("websocket authentication failed", "error", err, "remote_addr", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	clientID := uuid.NewString()
	client := NewClient(clientID, accountID, h.hub, conn)
	h.log.Info("websocket client connected", "client_id", clientID, "account_id", accountID, "remote_addr", r.RemoteAddr)

	h.hub.register <- client
	go client.writePump()
	go client.readPump()
}
