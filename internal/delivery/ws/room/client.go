package ws_room

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/wellworld/core/internal/model"
	usecase_selection "github.com/wellworld/core/internal/usecase/selection"
)

const (
	ActionSelectOpportunity = "SELECT_OPPORTUNITY"
	ActionClearSelection    = "CLEAR_SELECTION"
	ActionStartPlanning     = "START_PLANNING"
)

// Client is one connected participant: a websocket conn plus its own
// selection session. The session holds the client's local view; the feed
// pump reconciles remote changes into it.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	roomCode string

	sendMu     sync.Mutex
	send       chan Event
	sendClosed bool

	session     *usecase_selection.Session
	feed        <-chan model.RoomChange
	releaseFeed func()

	catalog []model.Opportunity
	logger  *slog.Logger
}

type ClientParams struct {
	Conn        *websocket.Conn
	UserID      string
	RoomCode    string
	Session     *usecase_selection.Session
	Feed        <-chan model.RoomChange
	ReleaseFeed func()
	Catalog     []model.Opportunity
}

func NewClient(hub *Hub, params ClientParams) *Client {
	return &Client{
		hub:         hub,
		conn:        params.Conn,
		send:        make(chan Event, 256),
		userID:      params.UserID,
		roomCode:    params.RoomCode,
		session:     params.Session,
		feed:        params.Feed,
		releaseFeed: params.ReleaseFeed,
		catalog:     params.Catalog,
		logger:      slog.Default(),
	}
}

// Send queues an event for the client without blocking the caller. Events
// arriving after the client left, such as buffered change-feed entries still
// draining through the feed pump, are dropped.
func (c *Client) Send(event Event) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	select {
	case c.send <- event:
	default:
	}
}

// closeSend hands the writer pump its termination signal. Idempotent, and
// the only place the send channel is ever closed.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// release drops the change-feed subscription and flushes the session's last
// pending write. Called once, from the hub's unregister path.
func (c *Client) release() {
	if c.releaseFeed != nil {
		c.releaseFeed()
	}
	if c.session != nil {
		c.session.Close()
	}
}

type actionDTO struct {
	OpportunityID string  `json:"opportunity_id"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Name          string  `json:"name"`
	Country       string  `json:"country"`
}

func (h *Hub) StartClientReading(client *Client) {
	defer func() {
		h.unregister <- client
		client.conn.Close()
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			break
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			client.Send(Event{Type: EventError, Payload: map[string]interface{}{
				"message": "malformed event",
			}})
			continue
		}

		client.handleAction(event)
	}
}

func (c *Client) handleAction(event Event) {
	switch event.Type {
	case ActionSelectOpportunity:
		var dto actionDTO
		raw, _ := json.Marshal(event.Payload)
		if err := json.Unmarshal(raw, &dto); err != nil {
			c.Send(Event{Type: EventError, Payload: map[string]interface{}{
				"message": "malformed payload",
			}})
			return
		}
		c.session.SelectOpportunity(c.resolveOpportunity(dto))

	case ActionClearSelection:
		c.session.ClearSelection()

	case ActionStartPlanning:
		if err := c.hub.StartPlanning(c.roomCode, c.userID); err != nil {
			c.Send(Event{Type: EventError, Payload: map[string]interface{}{
				"message": "try again",
			}})
		}

	default:
		c.Send(Event{Type: EventError, Payload: map[string]interface{}{
			"message": "unknown action",
		}})
	}
}

// resolveOpportunity prefers the catalog record when the client names one,
// so picks carry the catalog's country label rather than client-supplied
// text.
func (c *Client) resolveOpportunity(dto actionDTO) model.Opportunity {
	if dto.OpportunityID != "" {
		for _, opp := range c.catalog {
			if opp.ID == dto.OpportunityID {
				return opp
			}
		}
	}
	return model.Opportunity{
		ID:      dto.OpportunityID,
		Lat:     dto.Lat,
		Lng:     dto.Lng,
		Name:    dto.Name,
		Country: dto.Country,
	}
}

func (h *Hub) StartClientWriting(client *Client) {
	defer client.conn.Close()

	for event := range client.send {
		if err := client.conn.WriteJSON(event); err != nil {
			break
		}
	}
}

// StartClientFeed reconciles remote change events into the client's local
// view and pushes the derived state down the socket. Planning-phase flips
// arriving through the feed redirect the client the same way a local start
// does.
func (h *Hub) StartClientFeed(client *Client) {
	for change := range client.feed {
		if change.New.PlanningStarted && !change.Previous.PlanningStarted {
			client.Send(Event{
				Type: EventPlanningStarted,
				Payload: map[string]interface{}{
					"room_code":    client.roomCode,
					"redirect_url": "/planning.html?room=" + client.roomCode,
				},
			})
		}

		client.session.ApplyRemote(change)
		client.Send(selectionChangedEvent(client.session))
	}
}

func selectionChangedEvent(session *usecase_selection.Session) Event {
	view := session.View()

	payload := map[string]interface{}{
		"show_all":      view.ShowAll,
		"country":       view.Country,
		"selected":      view.Selected,
		"opportunities": session.DisplayList(),
	}
	return Event{Type: EventSelectionChanged, Payload: payload}
}
