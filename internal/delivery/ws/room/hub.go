package ws_room

import (
	"context"
	"log/slog"
	"sync"

	usecase_room "github.com/wellworld/core/internal/usecase/room"
)

const (
	EventSelectionChanged  = "SELECTION_CHANGED"
	EventFocus             = "FOCUS"
	EventCountrySelected   = "COUNTRY_SELECTED"
	EventLobbyUpdate       = "LOBBY_UPDATE"
	EventPlanningStarted   = "PLANNING_STARTED"
	EventRedirectToPlanner = "REDIRECT_TO_PLANNER"
	EventError             = "ERROR"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type roomEvent struct {
	roomCode string
	event    Event
}

type Hub struct {
	usecase    *usecase_room.Usecase
	logger     *slog.Logger
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomEvent
	mu         sync.RWMutex
}

func NewHub(usecase *usecase_room.Usecase) *Hub {
	return &Hub{
		usecase:    usecase,
		logger:     slog.Default(),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomEvent),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case roomEvent := <-h.broadcast:
			h.broadcastToRoom(roomEvent.roomCode, roomEvent.event)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	if _, exists := h.rooms[client.roomCode]; !exists {
		h.rooms[client.roomCode] = make(map[*Client]bool)
	}
	h.rooms[client.roomCode][client] = true

	h.logger.Info("client registered",
		"user_id", client.userID,
		"room", client.roomCode)

	go h.broadcastParticipantsCount(client.roomCode)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)

		if roomClients, exists := h.rooms[client.roomCode]; exists {
			delete(roomClients, client)
			if len(roomClients) == 0 {
				delete(h.rooms, client.roomCode)
			}
		}
	}
	h.mu.Unlock()

	// Release first, close after: the feed pump may still be draining
	// buffered change events into Send, which tolerates a closed client but
	// must never race a bare channel close.
	client.release()
	client.closeSend()

	h.logger.Info("client unregistered",
		"user_id", client.userID,
		"room", client.roomCode)

	if client.roomCode != "" {
		go h.broadcastParticipantsCount(client.roomCode)
	}
}

func (h *Hub) broadcastParticipantsCount(roomCode string) {
	count, err := h.usecase.ParticipantsCount(context.Background(), roomCode)
	if err != nil {
		h.logger.Error("failed to get participants count", "error", err, "room", roomCode)
		return
	}

	h.broadcastToRoom(roomCode, Event{
		Type: EventLobbyUpdate,
		Payload: map[string]interface{}{
			"participants_count": count,
		},
	})
}

func (h *Hub) broadcastToRoom(roomCode string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if roomClients, exists := h.rooms[roomCode]; exists {
		for client := range roomClients {
			// Send drops on slow or departed clients rather than block the
			// room.
			client.Send(event)
		}
	}
}

// StartPlanning flips the room into the planning phase and redirects every
// lobby client. Repeat calls are harmless: the phase flip is monotonic.
func (h *Hub) StartPlanning(roomCode string, userID string) error {
	err := h.usecase.StartPlanning(context.Background(), roomCode)
	if err != nil {
		h.logger.Error("failed to start planning", "error", err, "room", roomCode)
		return err
	}

	h.broadcast <- roomEvent{
		roomCode: roomCode,
		event: Event{
			Type: EventRedirectToPlanner,
			Payload: map[string]interface{}{
				"initiated_by": userID,
				"room_code":    roomCode,
				"redirect_url": "/planning.html?room=" + roomCode,
			},
		},
	}

	return nil
}
