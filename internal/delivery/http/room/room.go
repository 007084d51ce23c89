package http_room

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	http_common "github.com/wellworld/core/internal/delivery/http/common"
	ws_room "github.com/wellworld/core/internal/delivery/ws/room"
	"github.com/wellworld/core/internal/model"
	usecase_room "github.com/wellworld/core/internal/usecase/room"
	usecase_selection "github.com/wellworld/core/internal/usecase/selection"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ChangeFeed interface {
	Publish(change model.RoomChange) error
	Subscribe(code string) (<-chan model.RoomChange, func(), error)
}

type OpportunityCatalog interface {
	Load(ctx context.Context) []model.Opportunity
}

type Controller struct {
	uc      *usecase_room.Usecase
	hub     *ws_room.Hub
	store   usecase_selection.SelectionStore
	feed    ChangeFeed
	catalog OpportunityCatalog
	matcher usecase_selection.CountryMatcher

	logger *slog.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(
	uc *usecase_room.Usecase,
	hub *ws_room.Hub,
	store usecase_selection.SelectionStore,
	feed ChangeFeed,
	catalog OpportunityCatalog,
	matcher usecase_selection.CountryMatcher,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		uc:      uc,
		hub:     hub,
		store:   store,
		feed:    feed,
		catalog: catalog,
		matcher: matcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	rooms := router.Group("/rooms")
	rooms.POST("", c.create)
	rooms.GET("/public", c.listPublic)

	room := router.Group("rooms/:room_code")
	room.GET("", c.get)
	room.POST("/join", c.join)
	room.POST("/participants", c.ensureParticipant)
	room.POST("/start", c.start)
	room.GET("/ws", c.roomWS)
}

// resolveUserToken reads the caller identity or mints one for first-time
// visitors; the minted token comes back in the response header.
func (c *Controller) resolveUserToken(ctx *gin.Context) string {
	userToken := ctx.GetHeader("X-user-token")
	if userToken == "" {
		userToken = c.uc.ResolveUserToken()
		ctx.Header("X-user-token", userToken)
	}
	return userToken
}

type CreateRequestDTO struct {
	IsPublic    bool   `json:"is_public"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CreateResponseDTO struct {
	RoomCode string `json:"room_code"`
}

func (c *Controller) create(ctx *gin.Context) {
	var req CreateRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request format",
		})
		return
	}

	userToken := c.resolveUserToken(ctx)

	code, err := c.uc.Create(ctx.Request.Context(), userToken, usecase_room.CreateParams{
		IsPublic:    req.IsPublic,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		c.logger.Error("failed to create room", slog.String("error", err.Error()))
		if errors.Is(err, usecase_room.ErrCodeExhausted) {
			ctx.JSON(http.StatusServiceUnavailable, http_common.ErrorResponse{
				Message: "unavailable",
			})
			return
		}
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	ctx.JSON(http.StatusCreated, CreateResponseDTO{
		RoomCode: code,
	})
}

type JoinResponseDTO struct {
	Phase string `json:"phase"`
}

func (c *Controller) join(ctx *gin.Context) {
	code := ctx.Param("room_code")
	userToken := c.resolveUserToken(ctx)

	result, err := c.uc.Join(ctx.Request.Context(), code, userToken)
	if err != nil {
		c.logger.Error("failed to join room",
			slog.String("room", code), slog.String("error", err.Error()))
		switch {
		case errors.Is(err, usecase_room.ErrRoomNotFound):
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "not found",
			})
		case errors.Is(err, usecase_room.ErrRoomFull):
			ctx.JSON(http.StatusConflict, http_common.ErrorResponse{
				Message: "room is full",
			})
		default:
			ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
				Message: "internal error",
			})
		}
		return
	}

	ctx.JSON(http.StatusOK, JoinResponseDTO{
		Phase: result,
	})
}

func (c *Controller) ensureParticipant(ctx *gin.Context) {
	code := ctx.Param("room_code")
	userToken := c.resolveUserToken(ctx)

	if err := c.uc.EnsureParticipant(ctx.Request.Context(), code, userToken); err != nil {
		if errors.Is(err, usecase_room.ErrRoomNotFound) {
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "not found",
			})
			return
		}
		c.logger.Error("failed to ensure participant",
			slog.String("room", code), slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *Controller) start(ctx *gin.Context) {
	code := ctx.Param("room_code")
	userToken := c.resolveUserToken(ctx)

	if err := c.hub.StartPlanning(code, userToken); err != nil {
		if errors.Is(err, usecase_room.ErrRoomNotFound) {
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "not found",
			})
			return
		}
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	ctx.Status(http.StatusOK)
}

type RoomResponseDTO struct {
	Room  model.Room      `json:"room"`
	Phase model.RoomPhase `json:"phase"`
}

func (c *Controller) get(ctx *gin.Context) {
	code := ctx.Param("room_code")

	room, err := c.uc.Room(ctx.Request.Context(), code)
	if err != nil {
		if errors.Is(err, usecase_room.ErrRoomNotFound) {
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "not found",
			})
			return
		}
		c.logger.Error("failed to get room",
			slog.String("room", code), slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	ctx.JSON(http.StatusOK, RoomResponseDTO{
		Room:  room,
		Phase: room.Phase(),
	})
}

type PublicRoomsResponseDTO struct {
	Rooms []model.Room `json:"rooms"`
}

func (c *Controller) listPublic(ctx *gin.Context) {
	rooms, err := c.uc.ListPublic(ctx.Request.Context())
	if err != nil {
		c.logger.Error("failed to list public rooms", slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	ctx.JSON(http.StatusOK, PublicRoomsResponseDTO{
		Rooms: rooms,
	})
}

// roomWS upgrades to a websocket and stands up the client's realtime state:
// a seat in the room (capped for fresh lobby entrants, cap-free for seat
// holders and planning links), a change-feed subscription and a selection
// session over the loaded catalog.
func (c *Controller) roomWS(ctx *gin.Context) {
	code := ctx.Param("room_code")
	userToken := c.resolveUserToken(ctx)

	if err := c.uc.Admit(ctx.Request.Context(), code, userToken); err != nil {
		switch {
		case errors.Is(err, usecase_room.ErrRoomNotFound):
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "not found",
			})
		case errors.Is(err, usecase_room.ErrRoomFull):
			ctx.JSON(http.StatusConflict, http_common.ErrorResponse{
				Message: "room is full",
			})
		default:
			ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
				Message: "internal error",
			})
		}
		return
	}

	feedCh, releaseFeed, err := c.feed.Subscribe(code)
	if err != nil {
		c.logger.Error("failed to subscribe to change feed",
			slog.String("room", code), slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		releaseFeed()
		c.logger.Error("failed to upgrade to websocket",
			slog.String("error", err.Error()),
		)
		return
	}

	catalog := c.catalog.Load(ctx.Request.Context())

	var client *ws_room.Client
	session := usecase_selection.NewSession(
		code,
		c.store,
		c.feed,
		catalog,
		c.matcher,
		usecase_selection.WithCountryConsumer(func(country *string) {
			client.Send(ws_room.Event{
				Type: ws_room.EventCountrySelected,
				Payload: map[string]interface{}{
					"country": country,
				},
			})
		}),
		usecase_selection.WithFocusConsumer(func(opp *model.Opportunity) {
			client.Send(ws_room.Event{
				Type: ws_room.EventFocus,
				Payload: map[string]interface{}{
					"opportunity": opp,
				},
			})
		}),
	)

	client = ws_room.NewClient(c.hub, ws_room.ClientParams{
		Conn:        conn,
		UserID:      userToken,
		RoomCode:    code,
		Session:     session,
		Feed:        feedCh,
		ReleaseFeed: releaseFeed,
		Catalog:     catalog,
	})

	c.hub.RegisterClient(client)

	go c.hub.StartClientReading(client)
	go c.hub.StartClientWriting(client)
	go c.hub.StartClientFeed(client)
}
