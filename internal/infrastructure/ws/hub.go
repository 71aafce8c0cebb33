package ws

import (
	"sync"

	"github.com/aidocs/platform/internal/infrastructure/logger"
)

// Broadcaster pushes a job event to whichever clients are watching it.
// A narrow interface so a caller can depend on the behavior, not the Hub's
// concrete wiring.
type Broadcaster interface {
	Broadcast(accountID, jobID string, event *JobEvent)
}

type broadcastMsg struct {
	accountID string
	jobID     string
	event     *JobEvent
}

// Hub tracks connected clients and fans a job event out to whoever is
// subscribed to that job, or to that account's own connections.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	byAccountID map[string]map[*Client]bool
	byJobID     map[string]map[*Client]bool

	log *logger.Logger
	mu  sync.RWMutex
}

// NewHub constructs a Hub. Run must be called in a goroutine to start it.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *broadcastMsg, 256),
		byAccountID: make(map[string]map[*Client]bool),
		byJobID:     make(map[string]map[*Client]bool),
		log:         log,
	}
}

// Run is the hub's event loop; call it once, in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case msg := <-h.broadcast:
			h.broadcastEvent(msg)
		}
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = true
	if c.accountID != "" {
		if h.byAccountID[c.accountID] == nil {
			h.byAccountID[c.accountID] = make(map[*Client]bool)
		}
		h.byAccountID[c.accountID][c] = true
	}
	h.log.Debug("ws client registered", "client_id", c.id, "account_id", c.accountID, "total", len(h.clients))
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)

	if c.accountID != "" {
		if clients, ok := h.byAccountID[c.accountID]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.byAccountID, c.accountID)
			}
		}
	}

	c.subs.mu.RLock()
	for jobID := range c.subs.jobs {
		if clients, ok := h.byJobID[jobID]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.byJobID, jobID)
			}
		}
	}
	c.subs.mu.RUnlock()

	h.log.Debug("ws client unregistered", "client_id", c.id, "account_id", c.accountID, "total", len(h.clients))
}

// Broadcast implements Broadcaster: it queues event for delivery to every
// client watching jobID, plus every connection accountID itself holds open.
func (h *Hub) Broadcast(accountID, jobID string, event *JobEvent) {
	h.broadcast <- &broadcastMsg{accountID: accountID, jobID: jobID, event: event}
}

func (h *Hub) broadcastEvent(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[*Client]bool)
	if clients, ok := h.byJobID[msg.jobID]; ok {
		for c := range clients {
			targets[c] = true
		}
	}
	if msg.accountID != "" {
		if clients, ok := h.byAccountID[msg.accountID]; ok {
			for c := range clients {
				targets[c] = true
			}
		}
	}

	for c := range targets {
		select {
		case c.send <- msg.event:
		default:
			h.log.Warn("ws client buffer full, dropping event", "client_id", c.id, "event_type", msg.event.Type)
		}
	}
}

// Subscribe registers a client's interest in a specific job's events.
func (h *Hub) Subscribe(c *Client, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()

	c.subs.jobs[jobID] = true
	if h.byJobID[jobID] == nil {
		h.byJobID[jobID] = make(map[*Client]bool)
	}
	h.byJobID[jobID][c] = true
}

// Unsubscribe removes a client's interest in a job.
func (h *Hub) Unsubscribe(c *Client, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()

	delete(c.subs.jobs, jobID)
	if clients, ok := h.byJobID[jobID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.byJobID, jobID)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
