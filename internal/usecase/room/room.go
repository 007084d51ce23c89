package usecase_room

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/wellworld/core/internal/model"
)

var (
	ErrCodeConflict  = errors.New("code conflict")
	ErrCodeExhausted = errors.New("room code generation exhausted")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrDuplicate     = errors.New("duplicate key")
	ErrInternal      = errors.New("internal error")
)

type JoinResult = string

const (
	JoinedLobby    JoinResult = "lobby"
	JoinedPlanning JoinResult = "planning"
)

//go:generate mockery --name=RoomRepository --output=./mocks/room/repository --filename=repository.go
type RoomRepository interface {
	Create(ctx context.Context, room model.Room) error
	InsertParticipant(ctx context.Context, p model.Participant) error
	ByCode(ctx context.Context, code string) (model.Room, error)
	IsParticipant(ctx context.Context, code string, userID string) (bool, error)
	ParticipantsCount(ctx context.Context, code string) (int, error)
	SetPlanningStarted(ctx context.Context, code string) error
	ListPublic(ctx context.Context) ([]model.Room, error)
}

type CreateParams struct {
	IsPublic    bool
	Name        string
	Description string
}

type Usecase struct {
	repository RoomRepository
	logger     *slog.Logger

	codeAttempts int
}

func New(repository RoomRepository) *Usecase {
	return &Usecase{
		repository:   repository,
		logger:       slog.Default(),
		codeAttempts: 10,
	}
}

// Create books a fresh room and seats the creator as its master. Code
// collisions at insert time are retried with a new draw up to the attempt
// bound; a participant-insert failure after the room insert is logged and
// swallowed, the seat self-repairs via EnsureParticipant on the next visit.
func (u *Usecase) Create(ctx context.Context, creatorID string, params CreateParams) (string, error) {
	code, err := u.createWithUniqueCode(ctx, creatorID, params)
	if err != nil {
		return "", err
	}

	if err := u.repository.InsertParticipant(ctx, model.Participant{
		RoomCode: code,
		UserID:   creatorID,
		IsMaster: true,
	}); err != nil && !errors.Is(err, ErrDuplicate) {
		u.logger.Warn("master participant insert failed, room stays usable",
			"room", code, "user_id", creatorID, "error", err)
	}

	return code, nil
}

// Assuming that codes can conflict.
// Retrying...
func (u *Usecase) createWithUniqueCode(ctx context.Context, creatorID string, params CreateParams) (string, error) {
	retries := u.codeAttempts
	for retries > 0 {
		code := u.buildRoomCode()
		err := u.repository.Create(ctx, model.Room{
			Code:        code,
			MasterID:    creatorID,
			IsPublic:    params.IsPublic,
			Name:        params.Name,
			Description: params.Description,
		})
		if err != nil {
			if errors.Is(err, ErrCodeConflict) {
				retries--
				continue
			}
			return "", errors.Join(ErrInternal, err)
		}
		return code, nil
	}
	return "", ErrCodeExhausted
}

func (u *Usecase) buildRoomCode() string {
	var builder strings.Builder
	builder.Grow(model.RoomCodeLen)

	for range model.RoomCodeLen {
		builder.WriteByte(model.RoomCodeAlphabet[rand.Intn(len(model.RoomCodeAlphabet))])
	}

	return builder.String()
}

// Join admits a user into the room's lobby. The seat cap is best effort: the
// count-then-insert pair is not transactional, so two concurrent joins can
// overshoot it by one. A duplicate-key failure on the participant insert
// means the user already holds a seat and counts as success.
func (u *Usecase) Join(ctx context.Context, code string, userID string) (JoinResult, error) {
	room, err := u.repository.ByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return "", ErrRoomNotFound
		}
		return "", errors.Join(ErrInternal, err)
	}

	if room.PlanningStarted {
		return JoinedPlanning, nil
	}

	count, err := u.repository.ParticipantsCount(ctx, code)
	if err != nil {
		return "", errors.Join(ErrInternal, err)
	}
	if count >= model.RoomCapacity {
		return "", ErrRoomFull
	}

	if err := u.repository.InsertParticipant(ctx, model.Participant{
		RoomCode: code,
		UserID:   userID,
	}); err != nil && !errors.Is(err, ErrDuplicate) {
		return "", errors.Join(ErrInternal, err)
	}

	return JoinedLobby, nil
}

// EnsureParticipant seats a user who landed on a planning link directly.
// Unlike Join it never enforces the capacity cap: the cap gates new room
// entry, not continued presence in an already-started session.
func (u *Usecase) EnsureParticipant(ctx context.Context, code string, userID string) error {
	if _, err := u.repository.ByCode(ctx, code); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return errors.Join(ErrInternal, err)
	}

	if err := u.repository.InsertParticipant(ctx, model.Participant{
		RoomCode: code,
		UserID:   userID,
	}); err != nil && !errors.Is(err, ErrDuplicate) {
		return errors.Join(ErrInternal, err)
	}

	return nil
}

// Admit seats a user for a live connection. Holders of an existing seat and
// planning-phase links are admitted regardless of headcount; a fresh user
// entering a lobby-phase room goes through the same capacity cap as Join.
func (u *Usecase) Admit(ctx context.Context, code string, userID string) error {
	room, err := u.repository.ByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return errors.Join(ErrInternal, err)
	}

	seated, err := u.repository.IsParticipant(ctx, code, userID)
	if err != nil {
		return errors.Join(ErrInternal, err)
	}

	if !seated && !room.PlanningStarted {
		count, err := u.repository.ParticipantsCount(ctx, code)
		if err != nil {
			return errors.Join(ErrInternal, err)
		}
		if count >= model.RoomCapacity {
			return ErrRoomFull
		}
	}

	if err := u.repository.InsertParticipant(ctx, model.Participant{
		RoomCode: code,
		UserID:   userID,
	}); err != nil && !errors.Is(err, ErrDuplicate) {
		return errors.Join(ErrInternal, err)
	}

	return nil
}

// StartPlanning flips the room into the planning phase. Monotonic: repeating
// the call is a no-op, never an error.
func (u *Usecase) StartPlanning(ctx context.Context, code string) error {
	if err := u.repository.SetPlanningStarted(ctx, code); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return errors.Join(ErrInternal, err)
	}
	return nil
}

func (u *Usecase) Phase(ctx context.Context, code string) (model.RoomPhase, error) {
	room, err := u.Room(ctx, code)
	if err != nil {
		return "", err
	}
	return room.Phase(), nil
}

func (u *Usecase) Room(ctx context.Context, code string) (model.Room, error) {
	room, err := u.repository.ByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return model.Room{}, ErrRoomNotFound
		}
		return model.Room{}, errors.Join(ErrInternal, err)
	}
	return room, nil
}

func (u *Usecase) ListPublic(ctx context.Context) ([]model.Room, error) {
	rooms, err := u.repository.ListPublic(ctx)
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	return rooms, nil
}

func (u *Usecase) ParticipantsCount(ctx context.Context, code string) (int, error) {
	count, err := u.repository.ParticipantsCount(ctx, code)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return 0, ErrRoomNotFound
		}
		return 0, errors.Join(ErrInternal, err)
	}
	return count, nil
}

// ResolveUserToken hands out an identity for first-time visitors.
func (u *Usecase) ResolveUserToken() string {
	return uuid.New().String()
}
