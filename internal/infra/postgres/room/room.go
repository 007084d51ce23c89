package infra_postgres_room

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wellworld/core/internal/model"
	usecase_room "github.com/wellworld/core/internal/usecase/room"
)

type Driver struct {
	db *sqlx.DB
}

func New(
	db *sqlx.DB,
) *Driver {
	return &Driver{db: db}
}

type roomDTO struct {
	Code            string          `db:"room_code"`
	MasterID        string          `db:"master_id"`
	IsPublic        bool            `db:"is_public"`
	PlanningStarted bool            `db:"planning_started"`
	SelectedCountry sql.NullString  `db:"selected_country"`
	SelectedLat     sql.NullFloat64 `db:"selected_opportunity_lat"`
	SelectedLng     sql.NullFloat64 `db:"selected_opportunity_lng"`
	Name            string          `db:"name"`
	Description     string          `db:"description"`
	CreatedAt       time.Time       `db:"created_at"`
}

func (dto roomDTO) toModel() model.Room {
	room := model.Room{
		Code:            dto.Code,
		MasterID:        dto.MasterID,
		IsPublic:        dto.IsPublic,
		PlanningStarted: dto.PlanningStarted,
		Name:            dto.Name,
		Description:     dto.Description,
		CreatedAt:       dto.CreatedAt,
	}
	if dto.SelectedCountry.Valid {
		country := dto.SelectedCountry.String
		room.SelectedCountry = &country
	}
	if dto.SelectedLat.Valid {
		lat := dto.SelectedLat.Float64
		room.SelectedLat = &lat
	}
	if dto.SelectedLng.Valid {
		lng := dto.SelectedLng.Float64
		room.SelectedLng = &lng
	}
	return room
}

func isDuplicateKey(err error) bool {
	return strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "duplicate key")
}

func (d *Driver) Create(ctx context.Context, room model.Room) error {
	query := `
		INSERT INTO rooms (room_code, master_id, is_public, planning_started, name, description)
		VALUES (:room_code, :master_id, :is_public, :planning_started, :name, :description)
	`

	_, err := d.db.NamedExecContext(ctx, query, roomDTO{
		Code:            room.Code,
		MasterID:        room.MasterID,
		IsPublic:        room.IsPublic,
		PlanningStarted: room.PlanningStarted,
		Name:            room.Name,
		Description:     room.Description,
	})
	if err != nil {
		if isDuplicateKey(err) {
			return usecase_room.ErrCodeConflict
		}
		return err
	}
	return nil
}

func (d *Driver) InsertParticipant(ctx context.Context, p model.Participant) error {
	query := `
		INSERT INTO room_participants (room_code, user_id, is_master)
		VALUES ($1, $2, $3)
	`

	_, err := d.db.ExecContext(ctx, query, p.RoomCode, p.UserID, p.IsMaster)
	if err != nil {
		if isDuplicateKey(err) {
			return usecase_room.ErrDuplicate
		}
		return err
	}
	return nil
}

func (d *Driver) ByCode(ctx context.Context, code string) (model.Room, error) {
	var dto roomDTO

	query := `
        SELECT room_code, master_id, is_public, planning_started,
               selected_country, selected_opportunity_lat, selected_opportunity_lng,
               name, description, created_at
        FROM rooms
        WHERE room_code = $1
    `

	err := d.db.GetContext(ctx, &dto, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Room{}, usecase_room.ErrRoomNotFound
		}
		return model.Room{}, err
	}

	return dto.toModel(), nil
}

func (d *Driver) IsParticipant(ctx context.Context, code string, userID string) (bool, error) {
	var seated bool

	query := `
        SELECT EXISTS (
            SELECT 1
            FROM room_participants
            WHERE room_code = $1 AND user_id = $2
        )
    `

	if err := d.db.GetContext(ctx, &seated, query, code, userID); err != nil {
		return false, err
	}

	return seated, nil
}

func (d *Driver) ParticipantsCount(ctx context.Context, code string) (int, error) {
	var count int

	query := `
        SELECT COUNT(*)
        FROM room_participants
        WHERE room_code = $1
    `

	if err := d.db.GetContext(ctx, &count, query, code); err != nil {
		return 0, err
	}

	return count, nil
}

func (d *Driver) SetPlanningStarted(ctx context.Context, code string) error {
	query := `
        UPDATE rooms
        SET planning_started = TRUE
        WHERE room_code = $1
    `

	result, err := d.db.ExecContext(ctx, query, code)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return usecase_room.ErrRoomNotFound
	}

	return nil
}

func (d *Driver) ListPublic(ctx context.Context) ([]model.Room, error) {
	var dtos []roomDTO

	query := `
        SELECT room_code, master_id, is_public, planning_started,
               selected_country, selected_opportunity_lat, selected_opportunity_lng,
               name, description, created_at
        FROM rooms
        WHERE is_public = TRUE
        ORDER BY created_at DESC
    `

	if err := d.db.SelectContext(ctx, &dtos, query); err != nil {
		return nil, err
	}

	rooms := make([]model.Room, 0, len(dtos))
	for _, dto := range dtos {
		rooms = append(rooms, dto.toModel())
	}
	return rooms, nil
}

type changeDTO struct {
	PrevSelectedCountry sql.NullString  `db:"prev_selected_country"`
	PrevSelectedLat     sql.NullFloat64 `db:"prev_selected_opportunity_lat"`
	PrevSelectedLng     sql.NullFloat64 `db:"prev_selected_opportunity_lng"`

	Code            string          `db:"room_code"`
	MasterID        string          `db:"master_id"`
	IsPublic        bool            `db:"is_public"`
	PlanningStarted bool            `db:"planning_started"`
	SelectedCountry sql.NullString  `db:"selected_country"`
	SelectedLat     sql.NullFloat64 `db:"selected_opportunity_lat"`
	SelectedLng     sql.NullFloat64 `db:"selected_opportunity_lng"`
	Name            string          `db:"name"`
	Description     string          `db:"description"`
	CreatedAt       time.Time       `db:"created_at"`
}

// UpdateSelection writes the shared selection and captures the row as it was
// before the statement, so the change-feed event carries both sides. Writers
// race last-write-wins; there is no application-level lock.
func (d *Driver) UpdateSelection(ctx context.Context, code string, sel model.Selection) (model.RoomChange, error) {
	query := `
        WITH prev AS (
            SELECT selected_country, selected_opportunity_lat, selected_opportunity_lng
            FROM rooms
            WHERE room_code = $1
        ), upd AS (
            UPDATE rooms
            SET selected_country = $2,
                selected_opportunity_lat = $3,
                selected_opportunity_lng = $4
            WHERE room_code = $1
            RETURNING room_code, master_id, is_public, planning_started,
                      selected_country, selected_opportunity_lat, selected_opportunity_lng,
                      name, description, created_at
        )
        SELECT prev.selected_country AS prev_selected_country,
               prev.selected_opportunity_lat AS prev_selected_opportunity_lat,
               prev.selected_opportunity_lng AS prev_selected_opportunity_lng,
               upd.room_code, upd.master_id, upd.is_public, upd.planning_started,
               upd.selected_country, upd.selected_opportunity_lat, upd.selected_opportunity_lng,
               upd.name, upd.description, upd.created_at
        FROM prev, upd
    `

	var dto changeDTO
	err := d.db.GetContext(ctx, &dto, query, code, sel.Country, sel.Lat, sel.Lng)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RoomChange{}, usecase_room.ErrRoomNotFound
		}
		return model.RoomChange{}, err
	}

	newRow := roomDTO{
		Code:            dto.Code,
		MasterID:        dto.MasterID,
		IsPublic:        dto.IsPublic,
		PlanningStarted: dto.PlanningStarted,
		SelectedCountry: dto.SelectedCountry,
		SelectedLat:     dto.SelectedLat,
		SelectedLng:     dto.SelectedLng,
		Name:            dto.Name,
		Description:     dto.Description,
		CreatedAt:       dto.CreatedAt,
	}.toModel()

	prevRow := roomDTO{
		Code:            dto.Code,
		MasterID:        dto.MasterID,
		IsPublic:        dto.IsPublic,
		PlanningStarted: dto.PlanningStarted,
		SelectedCountry: dto.PrevSelectedCountry,
		SelectedLat:     dto.PrevSelectedLat,
		SelectedLng:     dto.PrevSelectedLng,
		Name:            dto.Name,
		Description:     dto.Description,
		CreatedAt:       dto.CreatedAt,
	}.toModel()

	return model.RoomChange{Previous: prevRow, New: newRow}, nil
}
