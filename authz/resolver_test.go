package authz

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func newMockResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	return NewResolver(db), mock, db
}

func TestResolver_EventOwner(t *testing.T) {
	ctx := context.Background()

	t.Run("organizer owns their event", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT organizer_id FROM events`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows([]string{"organizer_id"}).AddRow("org-1"))

		d, err := r.CheckOwnership(ctx, Subject{ID: "org-1", Role: RoleOrganizer}, KindEvent, ActionUpdate, "ev-1")
		assert.NoError(t, err)
		assert.True(t, d.Allow)
	})

	t.Run("another organizer is not the owner", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT organizer_id FROM events`).
			WithArgs("ev-1").
			WillReturnRows(sqlmock.NewRows([]string{"organizer_id"}).AddRow("org-1"))

		d, err := r.CheckOwnership(ctx, Subject{ID: "org-2", Role: RoleOrganizer}, KindEvent, ActionUpdate, "ev-1")
		assert.NoError(t, err)
		assert.False(t, d.Allow)
		assert.Equal(t, ReasonNotOwner, d.Reason)
	})

	t.Run("missing event is not-found", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT organizer_id FROM events`).
			WithArgs("ev-nope").
			WillReturnError(sql.ErrNoRows)

		d, err := r.CheckOwnership(ctx, Subject{ID: "org-1", Role: RoleOrganizer}, KindEvent, ActionUpdate, "ev-nope")
		assert.NoError(t, err)
		assert.False(t, d.Allow)
		assert.Equal(t, ReasonNotFound, d.Reason)
	})

	t.Run("store error fails closed", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT organizer_id FROM events`).
			WithArgs("ev-1").
			WillReturnError(errors.New("connection reset"))

		d, err := r.CheckOwnership(ctx, Subject{ID: "org-1", Role: RoleOrganizer}, KindEvent, ActionUpdate, "ev-1")
		assert.NoError(t, err)
		assert.False(t, d.Allow)
	})
}

func TestResolver_Team(t *testing.T) {
	ctx := context.Background()

	t.Run("leader may disband", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT leader_id FROM teams`).
			WithArgs("t-1").
			WillReturnRows(sqlmock.NewRows([]string{"leader_id"}).AddRow("u-1"))

		d, err := r.CheckOwnership(ctx, Subject{ID: "u-1", Role: RoleParticipant}, KindTeam, ActionDisband, "t-1")
		assert.NoError(t, err)
		assert.True(t, d.Allow)
	})

	t.Run("regular member may not disband", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT leader_id FROM teams`).
			WithArgs("t-1").
			WillReturnRows(sqlmock.NewRows([]string{"leader_id"}).AddRow("u-1"))

		d, err := r.CheckOwnership(ctx, Subject{ID: "u-2", Role: RoleParticipant}, KindTeam, ActionDisband, "t-1")
		assert.NoError(t, err)
		assert.False(t, d.Allow)
		assert.Equal(t, ReasonNotOwner, d.Reason)
	})

	t.Run("mentor assignment owned through the event", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT e.organizer_id FROM teams t JOIN events e`).
			WithArgs("t-1").
			WillReturnRows(sqlmock.NewRows([]string{"organizer_id"}).AddRow("org-1"))

		d, err := r.CheckOwnership(ctx, Subject{ID: "org-1", Role: RoleOrganizer}, KindTeam, ActionAssignMentor, "t-1")
		assert.NoError(t, err)
		assert.True(t, d.Allow)
	})
}

func TestResolver_SubmissionMembership(t *testing.T) {
	ctx := context.Background()

	t.Run("team member allowed", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("s-1", "u-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		d, err := r.CheckOwnership(ctx, Subject{ID: "u-1", Role: RoleParticipant}, KindSubmission, ActionUpdate, "s-1")
		assert.NoError(t, err)
		assert.True(t, d.Allow)
	})

	t.Run("non-member on existing submission is not-owner", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("s-1", "u-2").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM submissions`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		d, err := r.CheckOwnership(ctx, Subject{ID: "u-2", Role: RoleParticipant}, KindSubmission, ActionUpdate, "s-1")
		assert.NoError(t, err)
		assert.False(t, d.Allow)
		assert.Equal(t, ReasonNotOwner, d.Reason)
	})

	t.Run("missing submission is not-found", func(t *testing.T) {
		r, mock, db := newMockResolver(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("s-nope", "u-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM submissions`).
			WithArgs("s-nope").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		d, err := r.CheckOwnership(ctx, Subject{ID: "u-1", Role: RoleParticipant}, KindSubmission, ActionUpdate, "s-nope")
		assert.NoError(t, err)
		assert.False(t, d.Allow)
		assert.Equal(t, ReasonNotFound, d.Reason)
	})
}
