package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/joeljohnson18227/eventflow/authz"
)

func newEventService(t *testing.T) (*EventService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	return NewEventService(db, authz.NewEngine(authz.NewResolver(db))), mock, db
}

func eventRow(id, organizerID string, published bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "organizer_id", "name", "description", "location", "registration_deadline",
		"starts_at", "ends_at", "max_team_size", "is_published", "created_at", "updated_at",
	}).AddRow(id, organizerID, "Hack Night", nil, nil, now.Add(24*time.Hour),
		now.Add(48*time.Hour), now.Add(72*time.Hour), 5, published, now, now)
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	input := CreateEventInput{
		Name:                 "Hack Night",
		RegistrationDeadline: now.Add(24 * time.Hour),
		StartsAt:             now.Add(48 * time.Hour),
		EndsAt:               now.Add(72 * time.Hour),
	}

	t.Run("organizer creates with default team size", func(t *testing.T) {
		s, mock, db := newEventService(t)
		defer db.Close()

		mock.ExpectExec(`INSERT INTO events`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		event, err := s.CreateEvent(ctx, authz.Subject{ID: "org-1", Role: authz.RoleOrganizer}, input)
		assert.NoError(t, err)
		assert.Equal(t, "org-1", event.OrganizerID)
		assert.Equal(t, 5, event.MaxTeamSize)
	})

	t.Run("participant denied before any query", func(t *testing.T) {
		s, mock, db := newEventService(t)
		defer db.Close()

		_, err := s.CreateEvent(ctx, authz.Subject{ID: "p-1", Role: authz.RoleParticipant}, input)
		assert.ErrorIs(t, err, authz.ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("end before start rejected", func(t *testing.T) {
		s, _, db := newEventService(t)
		defer db.Close()

		bad := input
		bad.EndsAt = bad.StartsAt.Add(-time.Hour)
		_, err := s.CreateEvent(ctx, authz.Subject{ID: "org-1", Role: authz.RoleOrganizer}, bad)
		assert.ErrorIs(t, err, authz.ErrInvalidInput)
	})
}

func TestGetEvent_DraftVisibility(t *testing.T) {
	ctx := context.Background()

	t.Run("published event is public", func(t *testing.T) {
		s, mock, db := newEventService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, organizer_id, name`).
			WithArgs("ev-1").
			WillReturnRows(eventRow("ev-1", "org-1", true))

		event, err := s.GetEvent(ctx, authz.Subject{}, "ev-1")
		assert.NoError(t, err)
		assert.Equal(t, "ev-1", event.ID)
	})

	t.Run("draft is invisible to other users", func(t *testing.T) {
		s, mock, db := newEventService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, organizer_id, name`).
			WithArgs("ev-1").
			WillReturnRows(eventRow("ev-1", "org-1", false))

		_, err := s.GetEvent(ctx, authz.Subject{ID: "p-1", Role: authz.RoleParticipant}, "ev-1")
		assert.ErrorIs(t, err, authz.ErrNotFound)
	})

	t.Run("draft visible to its organizer", func(t *testing.T) {
		s, mock, db := newEventService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, organizer_id, name`).
			WithArgs("ev-1").
			WillReturnRows(eventRow("ev-1", "org-1", false))

		_, err := s.GetEvent(ctx, authz.Subject{ID: "org-1", Role: authz.RoleOrganizer}, "ev-1")
		assert.NoError(t, err)
	})

	t.Run("draft visible to admin", func(t *testing.T) {
		s, mock, db := newEventService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, organizer_id, name`).
			WithArgs("ev-1").
			WillReturnRows(eventRow("ev-1", "org-1", false))

		_, err := s.GetEvent(ctx, authz.Subject{ID: "a-1", Role: authz.RoleAdmin}, "ev-1")
		assert.NoError(t, err)
	})
}

func TestAssignJudge(t *testing.T) {
	ctx := context.Background()
	admin := authz.Subject{ID: "a-1", Role: authz.RoleAdmin}

	t.Run("target must hold the judge role", func(t *testing.T) {
		s, mock, db := newEventService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT role FROM users`).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("participant"))

		err := s.AssignJudge(ctx, admin, "ev-1", "u-1")
		assert.ErrorIs(t, err, authz.ErrInvalidInput)
	})

	t.Run("duplicate assignment is already-exists", func(t *testing.T) {
		s, mock, db := newEventService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT role FROM users`).
			WithArgs("j-1").
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("judge"))
		mock.ExpectExec(`INSERT INTO event_judges`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "event_judges_pkey"})

		err := s.AssignJudge(ctx, admin, "ev-1", "j-1")
		assert.ErrorIs(t, err, authz.ErrAlreadyExists)
	})
}
