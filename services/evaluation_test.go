package services

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/joeljohnson18227/eventflow/authz"
)

func newEvaluationService(t *testing.T) (*EvaluationService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	resolver := authz.NewResolver(db)
	engine := authz.NewEngine(resolver)
	return NewEvaluationService(db, engine, resolver), mock, db
}

func scoreInput(innovation, execution, presentation int) EvaluateInput {
	return EvaluateInput{Innovation: &innovation, Execution: &execution, Presentation: &presentation}
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	judge := authz.Subject{ID: "j-1", Role: authz.RoleJudge}
	scores := scoreInput(8, 7, 9)

	t.Run("assigned judge scores and the average recomputes in one tx", func(t *testing.T) {
		s, mock, db := newEvaluationService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT event_id FROM submissions`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("ev-1"))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM event_judges`).
			WithArgs("ev-1", "j-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM submissions WHERE id = \$1 FOR UPDATE`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1"))
		mock.ExpectExec(`INSERT INTO evaluations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE submissions\s+SET average_score = \(SELECT AVG\(total_score\) FROM evaluations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		eval, err := s.Evaluate(ctx, judge, "s-1", scores)
		assert.NoError(t, err)
		assert.Equal(t, 24, eval.TotalScore)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero in one category and a high total are both valid", func(t *testing.T) {
		s, mock, db := newEvaluationService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT event_id FROM submissions`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("ev-1"))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM event_judges`).
			WithArgs("ev-1", "j-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM submissions WHERE id = \$1 FOR UPDATE`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1"))
		mock.ExpectExec(`INSERT INTO evaluations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE submissions`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		eval, err := s.Evaluate(ctx, judge, "s-1", scoreInput(60, 25, 0))
		assert.NoError(t, err)
		assert.Equal(t, 85, eval.TotalScore)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate evaluation is already-exists and nothing commits", func(t *testing.T) {
		s, mock, db := newEvaluationService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT event_id FROM submissions`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("ev-1"))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM event_judges`).
			WithArgs("ev-1", "j-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM submissions WHERE id = \$1 FOR UPDATE`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1"))
		mock.ExpectExec(`INSERT INTO evaluations`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "evaluations_submission_id_judge_id_key"})
		mock.ExpectRollback()

		_, err := s.Evaluate(ctx, judge, "s-1", scores)
		assert.ErrorIs(t, err, authz.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unassigned judge is forbidden", func(t *testing.T) {
		s, mock, db := newEvaluationService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT event_id FROM submissions`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("ev-1"))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM event_judges`).
			WithArgs("ev-1", "j-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := s.Evaluate(ctx, judge, "s-1", scores)
		assert.ErrorIs(t, err, authz.ErrForbidden)
	})

	t.Run("organizer skips the assignment check", func(t *testing.T) {
		s, mock, db := newEvaluationService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT event_id FROM submissions`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("ev-1"))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM submissions WHERE id = \$1 FOR UPDATE`).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1"))
		mock.ExpectExec(`INSERT INTO evaluations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE submissions`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := s.Evaluate(ctx, authz.Subject{ID: "o-1", Role: authz.RoleOrganizer}, "s-1", scores)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("participant cannot evaluate", func(t *testing.T) {
		s, _, db := newEvaluationService(t)
		defer db.Close()

		_, err := s.Evaluate(ctx, authz.Subject{ID: "p-1", Role: authz.RoleParticipant}, "s-1", scores)
		assert.ErrorIs(t, err, authz.ErrForbidden)
	})

	t.Run("missing submission is not-found", func(t *testing.T) {
		s, mock, db := newEvaluationService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT event_id FROM submissions`).
			WithArgs("s-nope").
			WillReturnError(sql.ErrNoRows)

		_, err := s.Evaluate(ctx, judge, "s-nope", scores)
		assert.ErrorIs(t, err, authz.ErrNotFound)
	})
}

func TestEvaluateInputBinding(t *testing.T) {
	// Scores bind through gin; zero must pass and each category runs 0-100.
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var bound EvaluateInput
	r.POST("/score", func(c *gin.Context) {
		if err := c.ShouldBindJSON(&bound); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/score", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post(`{"innovation":8,"execution":7,"presentation":0}`))
	assert.Equal(t, http.StatusOK, post(`{"innovation":30,"execution":30,"presentation":25}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"innovation":101,"execution":7,"presentation":0}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"innovation":-1,"execution":7,"presentation":0}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"execution":7,"presentation":0}`))
}
