//go:build !integration
// +build !integration

package usecase_room

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/wellworld/core/internal/model"
	repo_mocks "github.com/wellworld/core/internal/usecase/room/mocks/room/repository"
)

type UsecaseRoomUnitSuite struct {
	suite.Suite
}

type resources struct {
	usecase  *Usecase
	roomRepo *repo_mocks.RoomRepository
	ctx      context.Context
}

func initResources(t provider.T) *resources {
	roomRepo := repo_mocks.NewRoomRepository(t)
	usecase := New(roomRepo)

	return &resources{
		usecase:  usecase,
		roomRepo: roomRepo,
		ctx:      context.Background(),
	}
}

func validRoomCode() string {
	return "AB12CD"
}

func validUserID() string {
	return uuid.New().String()
}

type RoomBuilder struct {
	r model.Room
}

func NewRoomBuilder() *RoomBuilder {
	return &RoomBuilder{
		r: model.Room{
			Code:     validRoomCode(),
			MasterID: uuid.New().String(),
			Name:     "Summer trip",
		},
	}
}

func (b *RoomBuilder) WithPlanningStarted() *RoomBuilder {
	b.r.PlanningStarted = true
	return b
}

func (b *RoomBuilder) Build() model.Room {
	return b.r
}

func (suite *UsecaseRoomUnitSuite) TestCreate(t provider.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		setupMocks    func(r *resources)
		expectError   bool
		expectedError error
	}{
		{
			name: "Should create room and seat master",
			setupMocks: func(r *resources) {
				r.roomRepo.On("Create", r.ctx, mock.AnythingOfType("model.Room")).
					Return(nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, mock.AnythingOfType("model.Participant")).
					Return(nil).Once()
			},
			expectError: false,
		},
		{
			name: "Should retry on code conflict and succeed",
			setupMocks: func(r *resources) {
				r.roomRepo.On("Create", r.ctx, mock.AnythingOfType("model.Room")).
					Return(ErrCodeConflict).Twice()
				r.roomRepo.On("Create", r.ctx, mock.AnythingOfType("model.Room")).
					Return(nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, mock.AnythingOfType("model.Participant")).
					Return(nil).Once()
			},
			expectError: false,
		},
		{
			name: "Should give up after attempt bound",
			setupMocks: func(r *resources) {
				r.roomRepo.On("Create", r.ctx, mock.AnythingOfType("model.Room")).
					Return(ErrCodeConflict).Times(10)
			},
			expectError:   true,
			expectedError: ErrCodeExhausted,
		},
		{
			name: "Should keep room when master insert fails",
			setupMocks: func(r *resources) {
				r.roomRepo.On("Create", r.ctx, mock.AnythingOfType("model.Room")).
					Return(nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, mock.AnythingOfType("model.Participant")).
					Return(errors.New("connection reset")).Once()
			},
			expectError: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t provider.T) {
			t.Parallel()
			r := initResources(t)
			tc.setupMocks(r)

			code, err := r.usecase.Create(r.ctx, validUserID(), CreateParams{Name: "Summer trip"})

			if tc.expectError {
				assert.ErrorIs(t, err, tc.expectedError)
				assert.Empty(t, code)
			} else {
				assert.NoError(t, err)
				assert.Len(t, code, model.RoomCodeLen)
				for _, ch := range code {
					assert.Contains(t, model.RoomCodeAlphabet, string(ch))
				}
			}
			r.roomRepo.AssertExpectations(t)
		})
	}
}

func (suite *UsecaseRoomUnitSuite) TestCreateMarksMaster(t provider.T) {
	t.Parallel()

	r := initResources(t)
	creatorID := validUserID()

	r.roomRepo.On("Create", r.ctx, mock.AnythingOfType("model.Room")).
		Return(nil).Once()
	r.roomRepo.On("InsertParticipant", r.ctx, mock.MatchedBy(func(p model.Participant) bool {
		return p.IsMaster && p.UserID == creatorID
	})).Return(nil).Once()

	_, err := r.usecase.Create(r.ctx, creatorID, CreateParams{})

	assert.NoError(t, err)
	r.roomRepo.AssertExpectations(t)
}

func (suite *UsecaseRoomUnitSuite) TestJoin(t provider.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		setupMocks     func(r *resources, code, userID string)
		expectedResult JoinResult
		expectError    bool
		expectedError  error
	}{
		{
			name: "Should join lobby",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().Build(), nil).Once()
				r.roomRepo.On("ParticipantsCount", r.ctx, code).
					Return(1, nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: userID}).
					Return(nil).Once()
			},
			expectedResult: JoinedLobby,
		},
		{
			name: "Should direct to planning when started",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().WithPlanningStarted().Build(), nil).Once()
			},
			expectedResult: JoinedPlanning,
		},
		{
			name: "Should fail when room is gone",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(model.Room{}, ErrRoomNotFound).Once()
			},
			expectError:   true,
			expectedError: ErrRoomNotFound,
		},
		{
			name: "Should fail when room is full",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().Build(), nil).Once()
				r.roomRepo.On("ParticipantsCount", r.ctx, code).
					Return(model.RoomCapacity, nil).Once()
			},
			expectError:   true,
			expectedError: ErrRoomFull,
		},
		{
			name: "Should treat duplicate seat as success",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().Build(), nil).Once()
				r.roomRepo.On("ParticipantsCount", r.ctx, code).
					Return(2, nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: userID}).
					Return(ErrDuplicate).Once()
			},
			expectedResult: JoinedLobby,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t provider.T) {
			t.Parallel()
			r := initResources(t)
			code := validRoomCode()
			userID := validUserID()
			tc.setupMocks(r, code, userID)

			result, err := r.usecase.Join(r.ctx, code, userID)

			if tc.expectError {
				assert.ErrorIs(t, err, tc.expectedError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedResult, result)
			}
			r.roomRepo.AssertExpectations(t)
		})
	}
}

// Four distinct users fill the room; the fifth join is rejected without a
// participant insert.
func (suite *UsecaseRoomUnitSuite) TestJoinCapacityScenario(t provider.T) {
	t.Parallel()

	r := initResources(t)
	code := validRoomCode()
	room := NewRoomBuilder().Build()

	for i := 0; i < model.RoomCapacity; i++ {
		userID := fmt.Sprintf("user-%d", i)
		r.roomRepo.On("ByCode", r.ctx, code).Return(room, nil).Once()
		r.roomRepo.On("ParticipantsCount", r.ctx, code).Return(i, nil).Once()
		r.roomRepo.On("InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: userID}).
			Return(nil).Once()

		result, err := r.usecase.Join(r.ctx, code, userID)
		assert.NoError(t, err)
		assert.Equal(t, JoinedLobby, result)
	}

	r.roomRepo.On("ByCode", r.ctx, code).Return(room, nil).Once()
	r.roomRepo.On("ParticipantsCount", r.ctx, code).Return(model.RoomCapacity, nil).Once()

	_, err := r.usecase.Join(r.ctx, code, "user-4")
	assert.ErrorIs(t, err, ErrRoomFull)
	r.roomRepo.AssertNotCalled(t, "InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: "user-4"})
}

func (suite *UsecaseRoomUnitSuite) TestEnsureParticipant(t provider.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		setupMocks    func(r *resources, code, userID string)
		expectError   bool
		expectedError error
	}{
		{
			name: "Should seat user ignoring capacity",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().WithPlanningStarted().Build(), nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: userID}).
					Return(nil).Once()
			},
		},
		{
			name: "Should swallow duplicate seat",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().WithPlanningStarted().Build(), nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: userID}).
					Return(ErrDuplicate).Once()
			},
		},
		{
			name: "Should fail when room is gone",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(model.Room{}, ErrRoomNotFound).Once()
			},
			expectError:   true,
			expectedError: ErrRoomNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t provider.T) {
			t.Parallel()
			r := initResources(t)
			code := validRoomCode()
			userID := validUserID()
			tc.setupMocks(r, code, userID)

			err := r.usecase.EnsureParticipant(r.ctx, code, userID)

			if tc.expectError {
				assert.ErrorIs(t, err, tc.expectedError)
			} else {
				assert.NoError(t, err)
			}
			r.roomRepo.AssertExpectations(t)
		})
	}
}

func (suite *UsecaseRoomUnitSuite) TestAdmit(t provider.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		setupMocks    func(r *resources, code, userID string)
		expectError   bool
		expectedError error
	}{
		{
			name: "Should seat fresh lobby user below capacity",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().Build(), nil).Once()
				r.roomRepo.On("IsParticipant", r.ctx, code, userID).
					Return(false, nil).Once()
				r.roomRepo.On("ParticipantsCount", r.ctx, code).
					Return(2, nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: userID}).
					Return(nil).Once()
			},
		},
		{
			name: "Should reject fresh user when lobby is full",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().Build(), nil).Once()
				r.roomRepo.On("IsParticipant", r.ctx, code, userID).
					Return(false, nil).Once()
				r.roomRepo.On("ParticipantsCount", r.ctx, code).
					Return(model.RoomCapacity, nil).Once()
			},
			expectError:   true,
			expectedError: ErrRoomFull,
		},
		{
			name: "Should readmit seat holder into full lobby",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().Build(), nil).Once()
				r.roomRepo.On("IsParticipant", r.ctx, code, userID).
					Return(true, nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: userID}).
					Return(ErrDuplicate).Once()
			},
		},
		{
			name: "Should seat planning link holder ignoring capacity",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(NewRoomBuilder().WithPlanningStarted().Build(), nil).Once()
				r.roomRepo.On("IsParticipant", r.ctx, code, userID).
					Return(false, nil).Once()
				r.roomRepo.On("InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: userID}).
					Return(nil).Once()
			},
		},
		{
			name: "Should fail when room is gone",
			setupMocks: func(r *resources, code, userID string) {
				r.roomRepo.On("ByCode", r.ctx, code).
					Return(model.Room{}, ErrRoomNotFound).Once()
			},
			expectError:   true,
			expectedError: ErrRoomNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t provider.T) {
			t.Parallel()
			r := initResources(t)
			code := validRoomCode()
			userID := validUserID()
			tc.setupMocks(r, code, userID)

			err := r.usecase.Admit(r.ctx, code, userID)

			if tc.expectError {
				assert.ErrorIs(t, err, tc.expectedError)
			} else {
				assert.NoError(t, err)
			}
			r.roomRepo.AssertExpectations(t)

			if errors.Is(tc.expectedError, ErrRoomFull) {
				r.roomRepo.AssertNotCalled(t, "InsertParticipant", r.ctx, model.Participant{RoomCode: code, UserID: userID})
			}
		})
	}
}

func (suite *UsecaseRoomUnitSuite) TestStartPlanning(t provider.T) {
	t.Parallel()

	t.Run("Should flip planning flag idempotently", func(t provider.T) {
		r := initResources(t)
		code := validRoomCode()

		r.roomRepo.On("SetPlanningStarted", r.ctx, code).Return(nil).Twice()

		assert.NoError(t, r.usecase.StartPlanning(r.ctx, code))
		assert.NoError(t, r.usecase.StartPlanning(r.ctx, code))
	})

	t.Run("Should fail when room is gone", func(t provider.T) {
		r := initResources(t)
		code := validRoomCode()

		r.roomRepo.On("SetPlanningStarted", r.ctx, code).Return(ErrRoomNotFound).Once()

		assert.ErrorIs(t, r.usecase.StartPlanning(r.ctx, code), ErrRoomNotFound)
	})
}

func (suite *UsecaseRoomUnitSuite) TestPhase(t provider.T) {
	t.Parallel()

	r := initResources(t)
	code := validRoomCode()

	r.roomRepo.On("ByCode", r.ctx, code).
		Return(NewRoomBuilder().WithPlanningStarted().Build(), nil).Once()

	phase, err := r.usecase.Phase(r.ctx, code)

	assert.NoError(t, err)
	assert.Equal(t, model.PhasePlanning, phase)
}

func TestUnitSuite(t *testing.T) {
	suite.RunSuite(t, new(UsecaseRoomUnitSuite))
}
