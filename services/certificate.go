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

// CertificateService issues participation and winner certificates for an
// event. Only the event's organizer or an admin may issue them; one
// certificate of each kind per (event, user).
type CertificateService struct {
	PG     *sql.DB
	engine *authz.Engine
}

// NewCertificateService creates a new certificate service.
func NewCertificateService(pg *sql.DB, engine *authz.Engine) *CertificateService {
	return &CertificateService{PG: pg, engine: engine}
}

// GenerateCertificateInput represents input for issuing a certificate.
type GenerateCertificateInput struct {
	UserID string `json:"user_id" binding:"required"`
	Kind   string `json:"kind" binding:"required"`
}

// GenerateCertificate issues a certificate to a user for an event.
func (s *CertificateService) GenerateCertificate(ctx context.Context, subject authz.Subject, eventID string, input GenerateCertificateInput) (db.Certificate, error) {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionGenerate, authz.KindCertificate, eventID)
	if err != nil {
		return db.Certificate{}, err
	}
	if !decision.Allow {
		return db.Certificate{}, decision.Err()
	}

	if input.Kind != db.CertificateParticipation && input.Kind != db.CertificateWinner {
		return db.Certificate{}, fmt.Errorf("%w: unknown certificate kind %q", authz.ErrInvalidInput, input.Kind)
	}

	var registered bool
	err = s.PG.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM team_members WHERE event_id = $1 AND user_id = $2)
	`, eventID, input.UserID).Scan(&registered)
	if err != nil {
		return db.Certificate{}, fmt.Errorf("failed to check registration: %w", err)
	}
	if !registered {
		return db.Certificate{}, fmt.Errorf("%w: user did not take part in this event", authz.ErrNotFound)
	}

	cert := db.Certificate{
		ID:       uuid.New().String(),
		EventID:  eventID,
		UserID:   input.UserID,
		Kind:     input.Kind,
		IssuedBy: subject.ID,
		IssuedAt: time.Now(),
	}
	_, err = s.PG.ExecContext(ctx, `
		INSERT INTO certificates (id, event_id, user_id, kind, issued_by, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cert.ID, cert.EventID, cert.UserID, cert.Kind, cert.IssuedBy, cert.IssuedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return db.Certificate{}, fmt.Errorf("%w: certificate already issued", authz.ErrAlreadyExists)
		}
		return db.Certificate{}, fmt.Errorf("failed to issue certificate: %w", err)
	}
	return cert, nil
}

// ListUserCertificates returns the certificates issued to one user.
func (s *CertificateService) ListUserCertificates(ctx context.Context, userID string) ([]db.Certificate, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT id, event_id, user_id, kind, issued_by, issued_at
		FROM certificates WHERE user_id = $1
		ORDER BY issued_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	certs := make([]db.Certificate, 0)
	for rows.Next() {
		var c db.Certificate
		if err := rows.Scan(&c.ID, &c.EventID, &c.UserID, &c.Kind, &c.IssuedBy, &c.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}
