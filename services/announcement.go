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

// AnnouncementService handles event announcements. Organizers and admins
// post and delete; reading is open to everyone, anonymous included.
type AnnouncementService struct {
	PG     *sql.DB
	engine *authz.Engine
}

// NewAnnouncementService creates a new announcement service.
func NewAnnouncementService(pg *sql.DB, engine *authz.Engine) *AnnouncementService {
	return &AnnouncementService{PG: pg, engine: engine}
}

// CreateAnnouncementInput represents input for posting an announcement.
type CreateAnnouncementInput struct {
	EventID string `json:"event_id" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

// CreateAnnouncement posts an announcement to an event.
func (s *AnnouncementService) CreateAnnouncement(ctx context.Context, subject authz.Subject, input CreateAnnouncementInput) (db.Announcement, error) {
	decision, err := s.engine.EvaluateRole(subject, authz.ActionCreate, authz.KindAnnouncement)
	if err != nil {
		return db.Announcement{}, err
	}
	if !decision.Allow {
		return db.Announcement{}, decision.Err()
	}

	var exists bool
	if err := s.PG.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, input.EventID).Scan(&exists); err != nil {
		return db.Announcement{}, fmt.Errorf("failed to look up event: %w", err)
	}
	if !exists {
		return db.Announcement{}, authz.ErrNotFound
	}

	ann := db.Announcement{
		ID:        uuid.New().String(),
		EventID:   input.EventID,
		AuthorID:  subject.ID,
		Title:     input.Title,
		Body:      input.Body,
		CreatedAt: time.Now(),
	}
	if _, err := s.PG.ExecContext(ctx, `
		INSERT INTO announcements (id, event_id, author_id, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ann.ID, ann.EventID, ann.AuthorID, ann.Title, ann.Body, ann.CreatedAt); err != nil {
		return db.Announcement{}, fmt.Errorf("failed to create announcement: %w", err)
	}
	return ann, nil
}

// DeleteAnnouncement removes an announcement.
func (s *AnnouncementService) DeleteAnnouncement(ctx context.Context, subject authz.Subject, id string) error {
	decision, err := s.engine.EvaluateRole(subject, authz.ActionDelete, authz.KindAnnouncement)
	if err != nil {
		return err
	}
	if !decision.Allow {
		return decision.Err()
	}

	res, err := s.PG.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// ListEventAnnouncements returns an event's announcements, newest first.
func (s *AnnouncementService) ListEventAnnouncements(ctx context.Context, eventID string) ([]db.Announcement, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT id, event_id, author_id, title, body, created_at
		FROM announcements WHERE event_id = $1
		ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	anns := make([]db.Announcement, 0)
	for rows.Next() {
		var ann db.Announcement
		if err := rows.Scan(&ann.ID, &ann.EventID, &ann.AuthorID, &ann.Title, &ann.Body, &ann.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		anns = append(anns, ann)
	}
	return anns, rows.Err()
}
