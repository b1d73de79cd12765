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

// EventService handles event business logic. Every mutation runs a policy
// evaluation first; ownership-required actions go through the resolver.
type EventService struct {
	PG     *sql.DB
	engine *authz.Engine
}

// NewEventService creates a new event service.
func NewEventService(pg *sql.DB, engine *authz.Engine) *EventService {
	return &EventService{PG: pg, engine: engine}
}

// CreateEventInput represents input for creating an event.
type CreateEventInput struct {
	Name                 string    `json:"name" binding:"required"`
	Description          string    `json:"description"`
	Location             string    `json:"location"`
	RegistrationDeadline time.Time `json:"registration_deadline" binding:"required"`
	StartsAt             time.Time `json:"starts_at" binding:"required"`
	EndsAt               time.Time `json:"ends_at" binding:"required"`
	MaxTeamSize          int       `json:"max_team_size"`
	IsPublished          bool      `json:"is_published"`
}

// CreateEvent creates an event owned by the subject.
func (s *EventService) CreateEvent(ctx context.Context, subject authz.Subject, input CreateEventInput) (db.Event, error) {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionCreate, authz.KindEvent, "")
	if err != nil {
		return db.Event{}, err
	}
	if !decision.Allow {
		return db.Event{}, decision.Err()
	}

	if input.MaxTeamSize <= 0 {
		input.MaxTeamSize = 5
	}
	if !input.EndsAt.After(input.StartsAt) {
		return db.Event{}, fmt.Errorf("%w: event must end after it starts", authz.ErrInvalidInput)
	}

	now := time.Now()
	event := db.Event{
		ID:                   uuid.New().String(),
		OrganizerID:          subject.ID,
		Name:                 input.Name,
		Description:          input.Description,
		Location:             input.Location,
		RegistrationDeadline: input.RegistrationDeadline,
		StartsAt:             input.StartsAt,
		EndsAt:               input.EndsAt,
		MaxTeamSize:          input.MaxTeamSize,
		IsPublished:          input.IsPublished,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err = s.PG.ExecContext(ctx, `
		INSERT INTO events (id, organizer_id, name, description, location, registration_deadline,
		                    starts_at, ends_at, max_team_size, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, event.ID, event.OrganizerID, event.Name, nullIfEmpty(event.Description), nullIfEmpty(event.Location),
		event.RegistrationDeadline, event.StartsAt, event.EndsAt, event.MaxTeamSize, event.IsPublished,
		event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return db.Event{}, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

// GetEvent retrieves an event by ID. Published events are public; drafts are
// visible only to their organizer and admins.
func (s *EventService) GetEvent(ctx context.Context, subject authz.Subject, id string) (db.Event, error) {
	event, err := s.getEvent(ctx, id)
	if err != nil {
		return db.Event{}, err
	}
	if !event.IsPublished && subject.Role != authz.RoleAdmin && subject.ID != event.OrganizerID {
		// Unpublished events do not exist for anyone else.
		return db.Event{}, authz.ErrNotFound
	}
	return event, nil
}

func (s *EventService) getEvent(ctx context.Context, id string) (db.Event, error) {
	var event db.Event
	var description, location sql.NullString
	err := s.PG.QueryRowContext(ctx, `
		SELECT id, organizer_id, name, description, location, registration_deadline,
		       starts_at, ends_at, max_team_size, is_published, created_at, updated_at
		FROM events WHERE id = $1
	`, id).Scan(&event.ID, &event.OrganizerID, &event.Name, &description, &location,
		&event.RegistrationDeadline, &event.StartsAt, &event.EndsAt, &event.MaxTeamSize,
		&event.IsPublished, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.Event{}, authz.ErrNotFound
		}
		return db.Event{}, fmt.Errorf("failed to get event: %w", err)
	}
	event.Description = description.String
	event.Location = location.String
	return event, nil
}

// ListEvents returns published events, newest start first.
func (s *EventService) ListEvents(ctx context.Context) ([]db.Event, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT e.id, e.organizer_id, e.name, COALESCE(e.description, ''), COALESCE(e.location, ''),
		       e.registration_deadline, e.starts_at, e.ends_at, e.max_team_size, e.is_published,
		       e.created_at, e.updated_at,
		       (SELECT COUNT(*) FROM teams t WHERE t.event_id = e.id) AS team_count
		FROM events e
		WHERE e.is_published = true
		ORDER BY e.starts_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]db.Event, 0)
	for rows.Next() {
		var event db.Event
		if err := rows.Scan(&event.ID, &event.OrganizerID, &event.Name, &event.Description,
			&event.Location, &event.RegistrationDeadline, &event.StartsAt, &event.EndsAt,
			&event.MaxTeamSize, &event.IsPublished, &event.CreatedAt, &event.UpdatedAt,
			&event.TeamCount); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// UpdateEventInput represents input for updating an event.
type UpdateEventInput struct {
	Name                 *string    `json:"name,omitempty"`
	Description          *string    `json:"description,omitempty"`
	Location             *string    `json:"location,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	StartsAt             *time.Time `json:"starts_at,omitempty"`
	EndsAt               *time.Time `json:"ends_at,omitempty"`
	MaxTeamSize          *int       `json:"max_team_size,omitempty"`
	IsPublished          *bool      `json:"is_published,omitempty"`
}

// UpdateEvent updates an event (organizer must own it; admin bypasses).
func (s *EventService) UpdateEvent(ctx context.Context, subject authz.Subject, id string, input UpdateEventInput) (db.Event, error) {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionUpdate, authz.KindEvent, id)
	if err != nil {
		return db.Event{}, err
	}
	if !decision.Allow {
		return db.Event{}, decision.Err()
	}

	event, err := s.getEvent(ctx, id)
	if err != nil {
		return db.Event{}, err
	}

	if input.Name != nil {
		event.Name = *input.Name
	}
	if input.Description != nil {
		event.Description = *input.Description
	}
	if input.Location != nil {
		event.Location = *input.Location
	}
	if input.RegistrationDeadline != nil {
		event.RegistrationDeadline = *input.RegistrationDeadline
	}
	if input.StartsAt != nil {
		event.StartsAt = *input.StartsAt
	}
	if input.EndsAt != nil {
		event.EndsAt = *input.EndsAt
	}
	if input.MaxTeamSize != nil {
		event.MaxTeamSize = *input.MaxTeamSize
	}
	if input.IsPublished != nil {
		event.IsPublished = *input.IsPublished
	}
	event.UpdatedAt = time.Now()

	result, err := s.PG.ExecContext(ctx, `
		UPDATE events
		SET name = $2, description = $3, location = $4, registration_deadline = $5,
		    starts_at = $6, ends_at = $7, max_team_size = $8, is_published = $9, updated_at = $10
		WHERE id = $1
	`, event.ID, event.Name, nullIfEmpty(event.Description), nullIfEmpty(event.Location),
		event.RegistrationDeadline, event.StartsAt, event.EndsAt, event.MaxTeamSize,
		event.IsPublished, event.UpdatedAt)
	if err != nil {
		return db.Event{}, fmt.Errorf("failed to update event: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.Event{}, authz.ErrNotFound
	}
	return event, nil
}

// DeleteEvent deletes an event (organizer must own it; admin bypasses).
func (s *EventService) DeleteEvent(ctx context.Context, subject authz.Subject, id string) error {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionDelete, authz.KindEvent, id)
	if err != nil {
		return err
	}
	if !decision.Allow {
		return decision.Err()
	}

	result, err := s.PG.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// AssignJudge assigns a judge to the event. The target user must hold the
// judge role; duplicate assignment maps to the conflict sentinel.
func (s *EventService) AssignJudge(ctx context.Context, subject authz.Subject, eventID, judgeID string) error {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionAssignJudge, authz.KindEvent, eventID)
	if err != nil {
		return err
	}
	if !decision.Allow {
		return decision.Err()
	}

	var role string
	if err := s.PG.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, judgeID).Scan(&role); err != nil {
		if err == sql.ErrNoRows {
			return authz.ErrNotFound
		}
		return fmt.Errorf("failed to look up judge: %w", err)
	}
	if authz.Role(role) != authz.RoleJudge {
		return fmt.Errorf("%w: user %s is not a judge", authz.ErrInvalidInput, judgeID)
	}

	_, err = s.PG.ExecContext(ctx, `
		INSERT INTO event_judges (event_id, judge_id, assigned_at) VALUES ($1, $2, $3)
	`, eventID, judgeID, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: judge already assigned", authz.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to assign judge: %w", err)
	}
	return nil
}

// RemoveJudge removes a judge assignment from the event.
func (s *EventService) RemoveJudge(ctx context.Context, subject authz.Subject, eventID, judgeID string) error {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionRemoveJudge, authz.KindEvent, eventID)
	if err != nil {
		return err
	}
	if !decision.Allow {
		return decision.Err()
	}

	result, err := s.PG.ExecContext(ctx, `
		DELETE FROM event_judges WHERE event_id = $1 AND judge_id = $2
	`, eventID, judgeID)
	if err != nil {
		return fmt.Errorf("failed to remove judge: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// ListJudges returns the judges assigned to an event.
func (s *EventService) ListJudges(ctx context.Context, eventID string) ([]db.EventJudge, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT ej.event_id, ej.judge_id, ej.assigned_at, u.name, u.email
		FROM event_judges ej
		JOIN users u ON u.id = ej.judge_id
		WHERE ej.event_id = $1
		ORDER BY ej.assigned_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list judges: %w", err)
	}
	defer rows.Close()

	judges := make([]db.EventJudge, 0)
	for rows.Next() {
		var j db.EventJudge
		if err := rows.Scan(&j.EventID, &j.JudgeID, &j.AssignedAt, &j.JudgeName, &j.JudgeEmail); err != nil {
			return nil, fmt.Errorf("failed to scan judge: %w", err)
		}
		judges = append(judges, j)
	}
	return judges, rows.Err()
}
