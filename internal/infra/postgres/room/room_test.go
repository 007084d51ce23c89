//go:build !integration
// +build !integration

package infra_postgres_room

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/wellworld/core/internal/model"
	usecase_room "github.com/wellworld/core/internal/usecase/room"
)

type resources struct {
	db     *sqlx.DB
	mock   sqlmock.Sqlmock
	driver *Driver
	ctx    context.Context
}

func initResources(t *testing.T) *resources {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	driver := New(sqlxDB)

	return &resources{
		db:     sqlxDB,
		mock:   mock,
		driver: driver,
		ctx:    context.Background(),
	}
}

type RoomBuilder struct {
	r model.Room
}

func NewRoomBuilder() *RoomBuilder {
	return &RoomBuilder{
		r: model.Room{
			Code:     "AB12CD",
			MasterID: "user-1",
			IsPublic: true,
			Name:     "Summer trip",
		},
	}
}

func (b *RoomBuilder) Build() model.Room {
	return b.r
}

func roomColumns() []string {
	return []string{
		"room_code", "master_id", "is_public", "planning_started",
		"selected_country", "selected_opportunity_lat", "selected_opportunity_lng",
		"name", "description", "created_at",
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("Should insert room", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		r.mock.ExpectExec("INSERT INTO rooms").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := r.driver.Create(r.ctx, NewRoomBuilder().Build())

		assert.NoError(t, err)
		assert.NoError(t, r.mock.ExpectationsWereMet())
	})

	t.Run("Should map duplicate code to conflict", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		r.mock.ExpectExec("INSERT INTO rooms").
			WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "rooms_pkey"`))

		err := r.driver.Create(r.ctx, NewRoomBuilder().Build())

		assert.ErrorIs(t, err, usecase_room.ErrCodeConflict)
	})
}

func TestInsertParticipant(t *testing.T) {
	t.Parallel()

	t.Run("Should insert participant", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		r.mock.ExpectExec("INSERT INTO room_participants").
			WithArgs("AB12CD", "user-2", false).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := r.driver.InsertParticipant(r.ctx, model.Participant{RoomCode: "AB12CD", UserID: "user-2"})

		assert.NoError(t, err)
	})

	t.Run("Should map duplicate seat to sentinel", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		r.mock.ExpectExec("INSERT INTO room_participants").
			WithArgs("AB12CD", "user-2", false).
			WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "room_participants_pkey"`))

		err := r.driver.InsertParticipant(r.ctx, model.Participant{RoomCode: "AB12CD", UserID: "user-2"})

		assert.ErrorIs(t, err, usecase_room.ErrDuplicate)
	})
}

func TestByCode(t *testing.T) {
	t.Parallel()

	t.Run("Should scan room with selection", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		rows := sqlmock.NewRows(roomColumns()).
			AddRow("AB12CD", "user-1", true, false, "united states", nil, nil, "Summer trip", "", time.Now())
		r.mock.ExpectQuery("SELECT (.+) FROM rooms").
			WithArgs("AB12CD").
			WillReturnRows(rows)

		room, err := r.driver.ByCode(r.ctx, "AB12CD")

		assert.NoError(t, err)
		assert.Equal(t, "AB12CD", room.Code)
		assert.NotNil(t, room.SelectedCountry)
		assert.Equal(t, "united states", *room.SelectedCountry)
		assert.Nil(t, room.SelectedLat)
	})

	t.Run("Should map missing room to not found", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		r.mock.ExpectQuery("SELECT (.+) FROM rooms").
			WithArgs("ZZZZZZ").
			WillReturnError(sql.ErrNoRows)

		_, err := r.driver.ByCode(r.ctx, "ZZZZZZ")

		assert.ErrorIs(t, err, usecase_room.ErrRoomNotFound)
	})
}

func TestIsParticipant(t *testing.T) {
	t.Parallel()

	t.Run("Should report existing seat", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
		r.mock.ExpectQuery("SELECT EXISTS").
			WithArgs("AB12CD", "user-2").
			WillReturnRows(rows)

		seated, err := r.driver.IsParticipant(r.ctx, "AB12CD", "user-2")

		assert.NoError(t, err)
		assert.True(t, seated)
	})

	t.Run("Should report missing seat", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		rows := sqlmock.NewRows([]string{"exists"}).AddRow(false)
		r.mock.ExpectQuery("SELECT EXISTS").
			WithArgs("AB12CD", "user-9").
			WillReturnRows(rows)

		seated, err := r.driver.IsParticipant(r.ctx, "AB12CD", "user-9")

		assert.NoError(t, err)
		assert.False(t, seated)
	})
}

func TestParticipantsCount(t *testing.T) {
	t.Parallel()
	r := initResources(t)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(3)
	r.mock.ExpectQuery("SELECT COUNT").
		WithArgs("AB12CD").
		WillReturnRows(rows)

	count, err := r.driver.ParticipantsCount(r.ctx, "AB12CD")

	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSetPlanningStarted(t *testing.T) {
	t.Parallel()

	t.Run("Should flip flag", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		r.mock.ExpectExec("UPDATE rooms").
			WithArgs("AB12CD").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, r.driver.SetPlanningStarted(r.ctx, "AB12CD"))
	})

	t.Run("Should map zero rows to not found", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		r.mock.ExpectExec("UPDATE rooms").
			WithArgs("ZZZZZZ").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, r.driver.SetPlanningStarted(r.ctx, "ZZZZZZ"), usecase_room.ErrRoomNotFound)
	})
}

func TestUpdateSelection(t *testing.T) {
	t.Parallel()

	t.Run("Should capture previous and new rows", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		columns := append([]string{
			"prev_selected_country", "prev_selected_opportunity_lat", "prev_selected_opportunity_lng",
		}, roomColumns()...)
		rows := sqlmock.NewRows(columns).
			AddRow(nil, 40.7128, -74.006,
				"AB12CD", "user-1", true, false, "united states", nil, nil, "Summer trip", "", time.Now())

		r.mock.ExpectQuery("WITH prev AS").
			WithArgs("AB12CD", "united states", nil, nil).
			WillReturnRows(rows)

		country := "united states"
		change, err := r.driver.UpdateSelection(r.ctx, "AB12CD", model.Selection{Country: &country})

		assert.NoError(t, err)
		assert.Nil(t, change.Previous.SelectedCountry)
		assert.NotNil(t, change.Previous.SelectedLat)
		assert.Equal(t, 40.7128, *change.Previous.SelectedLat)
		assert.NotNil(t, change.New.SelectedCountry)
		assert.Equal(t, "united states", *change.New.SelectedCountry)
		assert.Nil(t, change.New.SelectedLat)
	})

	t.Run("Should map missing room to not found", func(t *testing.T) {
		t.Parallel()
		r := initResources(t)

		r.mock.ExpectQuery("WITH prev AS").
			WillReturnError(sql.ErrNoRows)

		_, err := r.driver.UpdateSelection(r.ctx, "ZZZZZZ", model.SelectionNone())

		assert.ErrorIs(t, err, usecase_room.ErrRoomNotFound)
	})
}
