package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/db"
)

// EvaluationService handles judge scoring of submissions. A judge scores a
// submission at most once; the aggregate average is recomputed from the
// stored evaluation rows inside the same transaction as the insert.
type EvaluationService struct {
	PG       *sql.DB
	engine   *authz.Engine
	resolver *authz.Resolver
}

// NewEvaluationService creates a new evaluation service.
func NewEvaluationService(pg *sql.DB, engine *authz.Engine, resolver *authz.Resolver) *EvaluationService {
	return &EvaluationService{PG: pg, engine: engine, resolver: resolver}
}

// EvaluateInput represents a judge's scores for a submission. The score
// fields are pointers so that a legitimate 0 still satisfies required.
type EvaluateInput struct {
	Innovation   *int   `json:"innovation" binding:"required,min=0,max=100"`
	Execution    *int   `json:"execution" binding:"required,min=0,max=100"`
	Presentation *int   `json:"presentation" binding:"required,min=0,max=100"`
	Feedback     string `json:"feedback"`
}

// Evaluate records the subject's scores for a submission. Judges must be
// assigned to the submission's event; organizers and admins may always score.
// The unique (submission_id, judge_id) index rejects a second attempt.
func (s *EvaluationService) Evaluate(ctx context.Context, subject authz.Subject, submissionID string, input EvaluateInput) (db.Evaluation, error) {
	decision, err := s.engine.EvaluateRole(subject, authz.ActionEvaluate, authz.KindSubmission)
	if err != nil {
		return db.Evaluation{}, err
	}
	if !decision.Allow {
		return db.Evaluation{}, decision.Err()
	}

	var eventID string
	err = s.PG.QueryRowContext(ctx, `SELECT event_id FROM submissions WHERE id = $1`, submissionID).Scan(&eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.Evaluation{}, authz.ErrNotFound
		}
		return db.Evaluation{}, fmt.Errorf("failed to look up submission: %w", err)
	}
	if subject.Role == authz.RoleJudge && !s.resolver.IsJudgeAssigned(ctx, subject.ID, eventID) {
		return db.Evaluation{}, fmt.Errorf("%w: judge is not assigned to this event", authz.ErrForbidden)
	}

	eval := db.Evaluation{
		ID:           uuid.New().String(),
		SubmissionID: submissionID,
		JudgeID:      subject.ID,
		Innovation:   *input.Innovation,
		Execution:    *input.Execution,
		Presentation: *input.Presentation,
		TotalScore:   *input.Innovation + *input.Execution + *input.Presentation,
		Feedback:     input.Feedback,
		CreatedAt:    time.Now(),
	}

	tx, err := s.PG.BeginTx(ctx, nil)
	if err != nil {
		return db.Evaluation{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the submission row first so concurrent judges recompute the
	// average one at a time, each seeing the previous insert.
	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM submissions WHERE id = $1 FOR UPDATE`, submissionID).Scan(&locked)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.Evaluation{}, authz.ErrNotFound
		}
		return db.Evaluation{}, fmt.Errorf("failed to lock submission: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluations (id, submission_id, judge_id, innovation, execution, presentation, total_score, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, eval.ID, eval.SubmissionID, eval.JudgeID, eval.Innovation, eval.Execution,
		eval.Presentation, eval.TotalScore, nullIfEmpty(eval.Feedback), eval.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return db.Evaluation{}, fmt.Errorf("%w: submission already evaluated by this judge", authz.ErrAlreadyExists)
		}
		return db.Evaluation{}, fmt.Errorf("failed to record evaluation: %w", err)
	}

	// The average derives from the evaluation rows only; the row lock above
	// keeps concurrent recomputes serialized.
	_, err = tx.ExecContext(ctx, `
		UPDATE submissions
		SET average_score = (SELECT AVG(total_score) FROM evaluations WHERE submission_id = $1),
		    updated_at = $2
		WHERE id = $1
	`, eval.SubmissionID, time.Now())
	if err != nil {
		return db.Evaluation{}, fmt.Errorf("failed to recompute average score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return db.Evaluation{}, fmt.Errorf("failed to commit evaluation: %w", err)
	}
	return eval, nil
}

// ListEvaluations returns all evaluations recorded for a submission.
func (s *EvaluationService) ListEvaluations(ctx context.Context, submissionID string) ([]db.Evaluation, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT id, submission_id, judge_id, innovation, execution, presentation, total_score,
		       COALESCE(feedback, ''), created_at
		FROM evaluations WHERE submission_id = $1
		ORDER BY created_at
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	evals := make([]db.Evaluation, 0)
	for rows.Next() {
		var eval db.Evaluation
		if err := rows.Scan(&eval.ID, &eval.SubmissionID, &eval.JudgeID, &eval.Innovation,
			&eval.Execution, &eval.Presentation, &eval.TotalScore, &eval.Feedback, &eval.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, eval)
	}
	return evals, rows.Err()
}
