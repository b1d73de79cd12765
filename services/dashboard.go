package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joeljohnson18227/eventflow/authz"
)

// DashboardService builds the per-role landing page summaries. Each role
// home shows counts scoped to what that role works with.
type DashboardService struct {
	PG *sql.DB
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(pg *sql.DB) *DashboardService {
	return &DashboardService{PG: pg}
}

// Summary returns the landing counts for the subject's role.
func (s *DashboardService) Summary(ctx context.Context, subject authz.Subject) (map[string]interface{}, error) {
	switch subject.Role {
	case authz.RoleAdmin:
		return s.adminSummary(ctx)
	case authz.RoleOrganizer:
		return s.organizerSummary(ctx, subject.ID)
	case authz.RoleJudge:
		return s.judgeSummary(ctx, subject.ID)
	case authz.RoleMentor:
		return s.mentorSummary(ctx, subject.ID)
	case authz.RoleParticipant:
		return s.participantSummary(ctx, subject.ID)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", authz.ErrInvalidInput, subject.Role)
	}
}

func (s *DashboardService) adminSummary(ctx context.Context) (map[string]interface{}, error) {
	var users, events, teams int
	err := s.PG.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM users WHERE is_active),
		       (SELECT COUNT(*) FROM events),
		       (SELECT COUNT(*) FROM teams WHERE status = 'active')
	`).Scan(&users, &events, &teams)
	if err != nil {
		return nil, fmt.Errorf("failed to build admin summary: %w", err)
	}
	return map[string]interface{}{"active_users": users, "events": events, "active_teams": teams}, nil
}

func (s *DashboardService) organizerSummary(ctx context.Context, userID string) (map[string]interface{}, error) {
	var events, teams, submissions int
	err := s.PG.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM events WHERE organizer_id = $1),
		       (SELECT COUNT(*) FROM teams t JOIN events e ON e.id = t.event_id WHERE e.organizer_id = $1),
		       (SELECT COUNT(*) FROM submissions s JOIN events e ON e.id = s.event_id WHERE e.organizer_id = $1)
	`, userID).Scan(&events, &teams, &submissions)
	if err != nil {
		return nil, fmt.Errorf("failed to build organizer summary: %w", err)
	}
	return map[string]interface{}{"my_events": events, "teams": teams, "submissions": submissions}, nil
}

func (s *DashboardService) judgeSummary(ctx context.Context, userID string) (map[string]interface{}, error) {
	var assigned, pending int
	err := s.PG.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM event_judges WHERE judge_id = $1),
		       (SELECT COUNT(*) FROM submissions s
		        JOIN event_judges ej ON ej.event_id = s.event_id AND ej.judge_id = $1
		        WHERE NOT EXISTS (SELECT 1 FROM evaluations ev WHERE ev.submission_id = s.id AND ev.judge_id = $1))
	`, userID).Scan(&assigned, &pending)
	if err != nil {
		return nil, fmt.Errorf("failed to build judge summary: %w", err)
	}
	return map[string]interface{}{"assigned_events": assigned, "pending_evaluations": pending}, nil
}

func (s *DashboardService) mentorSummary(ctx context.Context, userID string) (map[string]interface{}, error) {
	var teams int
	err := s.PG.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM teams WHERE mentor_id = $1 AND status = 'active'
	`, userID).Scan(&teams)
	if err != nil {
		return nil, fmt.Errorf("failed to build mentor summary: %w", err)
	}
	return map[string]interface{}{"mentored_teams": teams}, nil
}

func (s *DashboardService) participantSummary(ctx context.Context, userID string) (map[string]interface{}, error) {
	var teams, submissions int
	err := s.PG.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM team_members WHERE user_id = $1),
		       (SELECT COUNT(*) FROM submissions s
		        JOIN team_members tm ON tm.team_id = s.team_id
		        WHERE tm.user_id = $1)
	`, userID).Scan(&teams, &submissions)
	if err != nil {
		return nil, fmt.Errorf("failed to build participant summary: %w", err)
	}
	return map[string]interface{}{"my_teams": teams, "my_submissions": submissions}, nil
}
