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

// SubmissionService handles project submissions. Creating and updating are
// team-member actions; one submission per team per event.
type SubmissionService struct {
	PG       *sql.DB
	engine   *authz.Engine
	resolver *authz.Resolver
}

// NewSubmissionService creates a new submission service.
func NewSubmissionService(pg *sql.DB, engine *authz.Engine, resolver *authz.Resolver) *SubmissionService {
	return &SubmissionService{PG: pg, engine: engine, resolver: resolver}
}

// CreateSubmissionInput represents input for creating a submission.
type CreateSubmissionInput struct {
	TeamID      string `json:"team_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	RepoURL     string `json:"repo_url"`
	DemoURL     string `json:"demo_url"`
}

// CreateSubmission creates the team's submission. Membership gates the
// action; the unique (event_id, team_id) index rejects a second submission.
func (s *SubmissionService) CreateSubmission(ctx context.Context, subject authz.Subject, input CreateSubmissionInput) (db.Submission, error) {
	// Creation has no submission id yet; the membership check runs against
	// the target team directly. Role rule first.
	decision, err := s.engine.EvaluateRole(subject, authz.ActionCreate, authz.KindSubmission)
	if err != nil {
		return db.Submission{}, err
	}
	if !decision.Allow {
		return db.Submission{}, decision.Err()
	}
	if subject.Role != authz.RoleAdmin && !s.resolver.IsTeamMember(ctx, subject.ID, input.TeamID) {
		return db.Submission{}, authz.ErrNotOwner
	}

	var eventID string
	var endsAt time.Time
	err = s.PG.QueryRowContext(ctx, `
		SELECT t.event_id, e.ends_at FROM teams t JOIN events e ON e.id = t.event_id
		WHERE t.id = $1
	`, input.TeamID).Scan(&eventID, &endsAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.Submission{}, authz.ErrNotFound
		}
		return db.Submission{}, fmt.Errorf("failed to look up team: %w", err)
	}
	if time.Now().After(endsAt) {
		return db.Submission{}, fmt.Errorf("%w: the event has ended", authz.ErrConflict)
	}

	now := time.Now()
	sub := db.Submission{
		ID:          uuid.New().String(),
		TeamID:      input.TeamID,
		EventID:     eventID,
		Title:       input.Title,
		Description: input.Description,
		RepoURL:     input.RepoURL,
		DemoURL:     input.DemoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.PG.ExecContext(ctx, `
		INSERT INTO submissions (id, team_id, event_id, title, description, repo_url, demo_url, average_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
	`, sub.ID, sub.TeamID, sub.EventID, sub.Title, nullIfEmpty(sub.Description),
		nullIfEmpty(sub.RepoURL), nullIfEmpty(sub.DemoURL), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return db.Submission{}, fmt.Errorf("%w: team already has a submission for this event", authz.ErrAlreadyExists)
		}
		return db.Submission{}, fmt.Errorf("failed to create submission: %w", err)
	}
	return sub, nil
}

// UpdateSubmissionInput represents input for updating a submission.
type UpdateSubmissionInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	RepoURL     *string `json:"repo_url,omitempty"`
	DemoURL     *string `json:"demo_url,omitempty"`
}

// UpdateSubmission updates the submission (team member or admin).
func (s *SubmissionService) UpdateSubmission(ctx context.Context, subject authz.Subject, id string, input UpdateSubmissionInput) (db.Submission, error) {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionUpdate, authz.KindSubmission, id)
	if err != nil {
		return db.Submission{}, err
	}
	if !decision.Allow {
		return db.Submission{}, decision.Err()
	}

	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return db.Submission{}, err
	}
	if input.Title != nil {
		sub.Title = *input.Title
	}
	if input.Description != nil {
		sub.Description = *input.Description
	}
	if input.RepoURL != nil {
		sub.RepoURL = *input.RepoURL
	}
	if input.DemoURL != nil {
		sub.DemoURL = *input.DemoURL
	}
	sub.UpdatedAt = time.Now()

	if _, err := s.PG.ExecContext(ctx, `
		UPDATE submissions SET title = $2, description = $3, repo_url = $4, demo_url = $5, updated_at = $6
		WHERE id = $1
	`, sub.ID, sub.Title, nullIfEmpty(sub.Description), nullIfEmpty(sub.RepoURL),
		nullIfEmpty(sub.DemoURL), sub.UpdatedAt); err != nil {
		return db.Submission{}, fmt.Errorf("failed to update submission: %w", err)
	}
	return sub, nil
}

// GetSubmission retrieves a submission by ID.
func (s *SubmissionService) GetSubmission(ctx context.Context, id string) (db.Submission, error) {
	var sub db.Submission
	var description, repoURL, demoURL sql.NullString
	err := s.PG.QueryRowContext(ctx, `
		SELECT id, team_id, event_id, title, description, repo_url, demo_url, average_score, created_at, updated_at
		FROM submissions WHERE id = $1
	`, id).Scan(&sub.ID, &sub.TeamID, &sub.EventID, &sub.Title, &description, &repoURL, &demoURL,
		&sub.AverageScore, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.Submission{}, authz.ErrNotFound
		}
		return db.Submission{}, fmt.Errorf("failed to get submission: %w", err)
	}
	sub.Description = description.String
	sub.RepoURL = repoURL.String
	sub.DemoURL = demoURL.String
	return sub, nil
}

// ListEventSubmissions returns an event's submissions, highest score first.
func (s *SubmissionService) ListEventSubmissions(ctx context.Context, eventID string) ([]db.Submission, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT id, team_id, event_id, title, COALESCE(description, ''), COALESCE(repo_url, ''),
		       COALESCE(demo_url, ''), average_score, created_at, updated_at
		FROM submissions WHERE event_id = $1
		ORDER BY average_score DESC, created_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]db.Submission, 0)
	for rows.Next() {
		var sub db.Submission
		if err := rows.Scan(&sub.ID, &sub.TeamID, &sub.EventID, &sub.Title, &sub.Description,
			&sub.RepoURL, &sub.DemoURL, &sub.AverageScore, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
