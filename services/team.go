package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/db"
)

// TeamService handles team lifecycle: create, join by invite code, leave,
// update, mentor assignment, disband. The join path is the racy one; slot
// capacity and one-team-per-event are both settled inside the database, not
// by check-then-write.
type TeamService struct {
	PG       *sql.DB
	engine   *authz.Engine
	resolver *authz.Resolver
}

// NewTeamService creates a new team service.
func NewTeamService(pg *sql.DB, engine *authz.Engine, resolver *authz.Resolver) *TeamService {
	return &TeamService{PG: pg, engine: engine, resolver: resolver}
}

// newInviteCode returns a short, URL-safe code. Uniqueness is guarded by the
// column constraint; the caller retries on collision.
func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// CreateTeamInput represents input for creating a team.
type CreateTeamInput struct {
	EventID string `json:"event_id" binding:"required"`
	Name    string `json:"name" binding:"required"`
}

// CreateTeam creates a team for the event with the subject as leader. The
// leader occupies the first member slot; the unique (event_id, user_id)
// index rejects a participant who already has a team for this event.
func (s *TeamService) CreateTeam(ctx context.Context, subject authz.Subject, input CreateTeamInput) (db.Team, error) {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionCreate, authz.KindTeam, "")
	if err != nil {
		return db.Team{}, err
	}
	if !decision.Allow {
		return db.Team{}, decision.Err()
	}

	var maxTeamSize int
	var deadline time.Time
	var published bool
	err = s.PG.QueryRowContext(ctx, `
		SELECT max_team_size, registration_deadline, is_published FROM events WHERE id = $1
	`, input.EventID).Scan(&maxTeamSize, &deadline, &published)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.Team{}, authz.ErrNotFound
		}
		return db.Team{}, fmt.Errorf("failed to look up event: %w", err)
	}
	if !published {
		return db.Team{}, authz.ErrNotFound
	}
	if time.Now().After(deadline) {
		return db.Team{}, fmt.Errorf("%w: registration deadline has passed", authz.ErrConflict)
	}

	now := time.Now()
	team := db.Team{
		ID:          uuid.New().String(),
		EventID:     input.EventID,
		Name:        input.Name,
		LeaderID:    subject.ID,
		MaxMembers:  maxTeamSize,
		MemberCount: 1,
		Status:      db.TeamStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.PG.BeginTx(ctx, nil)
	if err != nil {
		return db.Team{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The code column is unique across all teams; retry a few times on the
	// (unlikely) collision. Each attempt runs under a savepoint because
	// Postgres aborts the whole transaction on the failed INSERT otherwise.
	for attempt := 0; ; attempt++ {
		team.InviteCode = newInviteCode()
		if _, err = tx.ExecContext(ctx, `SAVEPOINT create_team`); err != nil {
			return db.Team{}, fmt.Errorf("failed to create team: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO teams (id, event_id, name, leader_id, invite_code, max_members, member_count, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9)
		`, team.ID, team.EventID, team.Name, team.LeaderID, team.InviteCode,
			team.MaxMembers, team.Status, team.CreatedAt, team.UpdatedAt)
		if err == nil {
			break
		}
		if isUniqueViolation(err) && attempt < 3 {
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT create_team`); rbErr != nil {
				return db.Team{}, fmt.Errorf("failed to create team: %w", rbErr)
			}
			continue
		}
		return db.Team{}, fmt.Errorf("failed to create team: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (id, team_id, event_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New().String(), team.ID, team.EventID, subject.ID, db.TeamRoleLeader, now)
	if err != nil {
		if isUniqueViolation(err) {
			return db.Team{}, fmt.Errorf("%w: already in a team for this event", authz.ErrAlreadyExists)
		}
		return db.Team{}, fmt.Errorf("failed to add leader membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return db.Team{}, fmt.Errorf("failed to commit team: %w", err)
	}
	return team, nil
}

// JoinTeam adds the subject to the team matching the invite code.
//
// The capacity check is the conditional increment: the UPDATE row-locks the
// team and only succeeds while member_count < max_members, so two users
// racing for the last slot serialize on the team row. The duplicate-team
// race lands on the unique (event_id, user_id) index. Either failure rolls
// back the whole join.
func (s *TeamService) JoinTeam(ctx context.Context, subject authz.Subject, inviteCode string) (db.Team, error) {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionJoin, authz.KindTeam, "")
	if err != nil {
		return db.Team{}, err
	}
	if !decision.Allow {
		return db.Team{}, decision.Err()
	}
	if inviteCode == "" {
		return db.Team{}, fmt.Errorf("%w: invite code required", authz.ErrInvalidInput)
	}

	team, err := s.getTeamByInviteCode(ctx, strings.ToUpper(inviteCode))
	if err != nil {
		return db.Team{}, err
	}

	// Deadline is not racy; a plain read suffices.
	var deadline time.Time
	if err := s.PG.QueryRowContext(ctx, `
		SELECT registration_deadline FROM events WHERE id = $1
	`, team.EventID).Scan(&deadline); err != nil {
		return db.Team{}, fmt.Errorf("failed to look up event: %w", err)
	}
	if time.Now().After(deadline) {
		return db.Team{}, fmt.Errorf("%w: registration deadline has passed", authz.ErrConflict)
	}

	tx, err := s.PG.BeginTx(ctx, nil)
	if err != nil {
		return db.Team{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE teams SET member_count = member_count + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND member_count < max_members
	`, team.ID)
	if err != nil {
		return db.Team{}, fmt.Errorf("failed to claim team slot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.Team{}, fmt.Errorf("%w: team is full or not accepting members", authz.ErrConflict)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (id, team_id, event_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New().String(), team.ID, team.EventID, subject.ID, db.TeamRoleMember, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return db.Team{}, fmt.Errorf("%w: already in a team for this event", authz.ErrAlreadyExists)
		}
		return db.Team{}, fmt.Errorf("failed to add membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return db.Team{}, fmt.Errorf("failed to commit join: %w", err)
	}

	team.MemberCount++
	return team, nil
}

// LeaveTeam removes the subject from the team. The leader cannot leave;
// leaders disband instead.
func (s *TeamService) LeaveTeam(ctx context.Context, subject authz.Subject, teamID string) error {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionLeave, authz.KindTeam, "")
	if err != nil {
		return err
	}
	if !decision.Allow {
		return decision.Err()
	}

	tx, err := s.PG.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM team_members
		WHERE team_id = $1 AND user_id = $2 AND role <> 'leader'
	`, teamID, subject.ID)
	if err != nil {
		return fmt.Errorf("failed to leave team: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Either not a member, or the member is the leader.
		if s.resolver.IsTeamMember(ctx, subject.ID, teamID) {
			return fmt.Errorf("%w: the leader cannot leave; disband the team instead", authz.ErrConflict)
		}
		return authz.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET member_count = member_count - 1, updated_at = NOW() WHERE id = $1
	`, teamID); err != nil {
		return fmt.Errorf("failed to release team slot: %w", err)
	}

	return tx.Commit()
}

// UpdateTeamInput represents input for updating a team.
type UpdateTeamInput struct {
	Name *string `json:"name,omitempty"`
}

// UpdateTeam renames a team. Leader-or-admin, same as every other Team
// mutation.
func (s *TeamService) UpdateTeam(ctx context.Context, subject authz.Subject, teamID string, input UpdateTeamInput) (db.Team, error) {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionUpdate, authz.KindTeam, teamID)
	if err != nil {
		return db.Team{}, err
	}
	if !decision.Allow {
		return db.Team{}, decision.Err()
	}

	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return db.Team{}, err
	}
	if input.Name != nil {
		team.Name = *input.Name
	}
	team.UpdatedAt = time.Now()

	if _, err := s.PG.ExecContext(ctx, `
		UPDATE teams SET name = $2, updated_at = $3 WHERE id = $1
	`, team.ID, team.Name, team.UpdatedAt); err != nil {
		return db.Team{}, fmt.Errorf("failed to update team: %w", err)
	}
	return team, nil
}

// DisbandTeam archives the team, keeping its submission history. Leader or
// admin only, explicitly never a regular member.
func (s *TeamService) DisbandTeam(ctx context.Context, subject authz.Subject, teamID string) error {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionDisband, authz.KindTeam, teamID)
	if err != nil {
		return err
	}
	if !decision.Allow {
		return decision.Err()
	}

	result, err := s.PG.ExecContext(ctx, `
		UPDATE teams SET status = $1, updated_at = $2 WHERE id = $3 AND status <> $1
	`, db.TeamStatusArchived, time.Now(), teamID)
	if err != nil {
		return fmt.Errorf("failed to disband team: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// AssignMentor assigns a mentor to the team (event organizer or admin).
func (s *TeamService) AssignMentor(ctx context.Context, subject authz.Subject, teamID, mentorID string) error {
	decision, err := s.engine.Evaluate(ctx, subject, authz.ActionAssignMentor, authz.KindTeam, teamID)
	if err != nil {
		return err
	}
	if !decision.Allow {
		return decision.Err()
	}

	var role string
	if err := s.PG.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, mentorID).Scan(&role); err != nil {
		if err == sql.ErrNoRows {
			return authz.ErrNotFound
		}
		return fmt.Errorf("failed to look up mentor: %w", err)
	}
	if authz.Role(role) != authz.RoleMentor {
		return fmt.Errorf("%w: user %s is not a mentor", authz.ErrInvalidInput, mentorID)
	}

	result, err := s.PG.ExecContext(ctx, `
		UPDATE teams SET mentor_id = $2, updated_at = NOW() WHERE id = $1
	`, teamID, mentorID)
	if err != nil {
		return fmt.Errorf("failed to assign mentor: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// GetTeam retrieves a team with its members.
func (s *TeamService) GetTeam(ctx context.Context, id string) (db.Team, error) {
	var team db.Team
	var mentorID sql.NullString
	err := s.PG.QueryRowContext(ctx, `
		SELECT id, event_id, name, leader_id, mentor_id, invite_code, max_members, member_count, status, created_at, updated_at
		FROM teams WHERE id = $1
	`, id).Scan(&team.ID, &team.EventID, &team.Name, &team.LeaderID, &mentorID, &team.InviteCode,
		&team.MaxMembers, &team.MemberCount, &team.Status, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.Team{}, authz.ErrNotFound
		}
		return db.Team{}, fmt.Errorf("failed to get team: %w", err)
	}
	team.MentorID = mentorID.String

	members, err := s.listMembers(ctx, id)
	if err != nil {
		return db.Team{}, err
	}
	team.Members = members
	return team, nil
}

func (s *TeamService) getTeamByInviteCode(ctx context.Context, code string) (db.Team, error) {
	var team db.Team
	var mentorID sql.NullString
	err := s.PG.QueryRowContext(ctx, `
		SELECT id, event_id, name, leader_id, mentor_id, invite_code, max_members, member_count, status, created_at, updated_at
		FROM teams WHERE invite_code = $1
	`, code).Scan(&team.ID, &team.EventID, &team.Name, &team.LeaderID, &mentorID, &team.InviteCode,
		&team.MaxMembers, &team.MemberCount, &team.Status, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.Team{}, authz.ErrNotFound
		}
		return db.Team{}, fmt.Errorf("failed to get team: %w", err)
	}
	team.MentorID = mentorID.String
	return team, nil
}

// ListEventTeams returns the teams registered for an event.
func (s *TeamService) ListEventTeams(ctx context.Context, eventID string) ([]db.Team, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT id, event_id, name, leader_id, COALESCE(mentor_id, ''), max_members, member_count, status, created_at, updated_at
		FROM teams WHERE event_id = $1
		ORDER BY created_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]db.Team, 0)
	for rows.Next() {
		var team db.Team
		if err := rows.Scan(&team.ID, &team.EventID, &team.Name, &team.LeaderID, &team.MentorID,
			&team.MaxMembers, &team.MemberCount, &team.Status, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (s *TeamService) listMembers(ctx context.Context, teamID string) ([]db.TeamMember, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT tm.id, tm.team_id, tm.event_id, tm.user_id, tm.role, tm.joined_at, u.name, u.email
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.joined_at
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]db.TeamMember, 0)
	for rows.Next() {
		var m db.TeamMember
		if err := rows.Scan(&m.ID, &m.TeamID, &m.EventID, &m.UserID, &m.Role, &m.JoinedAt,
			&m.UserName, &m.UserEmail); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
