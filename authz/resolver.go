package authz

import (
	"context"
	"database/sql"
	"log"
)

// Resolver answers ownership and assignment questions with direct SQL
// queries, fetching only the columns needed for the check. It never mutates
// state, and on any store error it fails closed: ambiguous ownership denies.
type Resolver struct {
	db *sql.DB
}

// NewResolver creates a Resolver backed by the given database connection.
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

// Ensure Resolver implements OwnershipChecker.
var _ OwnershipChecker = (*Resolver)(nil)

// CheckOwnership dispatches to the per-kind check. Admin never reaches this
// point (the engine bypasses ownership for admin), so every branch only has
// to consider non-admin subjects.
func (r *Resolver) CheckOwnership(ctx context.Context, subject Subject, kind ResourceKind, action Action, resourceID string) (Decision, error) {
	switch kind {
	case KindEvent, KindCertificate:
		// Certificate generation is owned through the event.
		return r.checkEventOwner(ctx, subject, resourceID)
	case KindTeam:
		return r.checkTeam(ctx, subject, action, resourceID)
	case KindSubmission:
		return r.checkSubmissionMember(ctx, subject, resourceID)
	default:
		return Decision{Allow: false, Reason: ReasonNotOwner}, nil
	}
}

// checkEventOwner allows only the organizer who created the event.
func (r *Resolver) checkEventOwner(ctx context.Context, subject Subject, eventID string) (Decision, error) {
	var organizerID string
	err := r.db.QueryRowContext(ctx, `
		SELECT organizer_id FROM events WHERE id = $1
	`, eventID).Scan(&organizerID)

	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("resolver: event lookup failed: %v", err)
		}
		// Not-found is reported before any ownership detail.
		return Decision{Allow: false, Reason: ReasonNotFound}, nil
	}
	if organizerID == subject.ID {
		return Decision{Allow: true}, nil
	}
	return Decision{Allow: false, Reason: ReasonNotOwner}, nil
}

// checkTeam applies the per-action team relation: destructive actions
// (disband) require the leader, updates require the leader, mentor
// assignment is owned through the team's event.
func (r *Resolver) checkTeam(ctx context.Context, subject Subject, action Action, teamID string) (Decision, error) {
	if action == ActionAssignMentor {
		var organizerID string
		err := r.db.QueryRowContext(ctx, `
			SELECT e.organizer_id FROM teams t JOIN events e ON e.id = t.event_id
			WHERE t.id = $1
		`, teamID).Scan(&organizerID)
		if err != nil {
			if err != sql.ErrNoRows {
				log.Printf("resolver: team event lookup failed: %v", err)
			}
			return Decision{Allow: false, Reason: ReasonNotFound}, nil
		}
		if organizerID == subject.ID {
			return Decision{Allow: true}, nil
		}
		return Decision{Allow: false, Reason: ReasonNotOwner}, nil
	}

	var leaderID string
	err := r.db.QueryRowContext(ctx, `
		SELECT leader_id FROM teams WHERE id = $1
	`, teamID).Scan(&leaderID)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("resolver: team lookup failed: %v", err)
		}
		return Decision{Allow: false, Reason: ReasonNotFound}, nil
	}
	// Update and disband are leader-only for non-admin subjects. A regular
	// member is explicitly never enough for disband.
	if leaderID == subject.ID {
		return Decision{Allow: true}, nil
	}
	return Decision{Allow: false, Reason: ReasonNotOwner}, nil
}

// checkSubmissionMember allows any member (leader included) of the
// submission's team.
func (r *Resolver) checkSubmissionMember(ctx context.Context, subject Subject, submissionID string) (Decision, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM submissions s
			JOIN team_members tm ON tm.team_id = s.team_id
			WHERE s.id = $1 AND tm.user_id = $2
		)
	`, submissionID, subject.ID).Scan(&exists)
	if err != nil {
		log.Printf("resolver: submission membership lookup failed: %v", err)
		return Decision{Allow: false, Reason: ReasonNotFound}, nil
	}
	if !exists {
		// Distinguish missing submission from non-membership so callers can
		// return 404 before leaking ownership structure.
		var found bool
		if err := r.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM submissions WHERE id = $1)
		`, submissionID).Scan(&found); err != nil || !found {
			return Decision{Allow: false, Reason: ReasonNotFound}, nil
		}
		return Decision{Allow: false, Reason: ReasonNotOwner}, nil
	}
	return Decision{Allow: true}, nil
}

// IsTeamMember reports whether the user belongs to the team (leader or
// member). Used by services for self-membership checks outside the policy
// table.
func (r *Resolver) IsTeamMember(ctx context.Context, userID, teamID string) bool {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)
	`, teamID, userID).Scan(&exists)
	if err != nil {
		log.Printf("resolver: team membership lookup failed: %v", err)
		return false
	}
	return exists
}

// IsJudgeAssigned reports whether the judge is assigned to the event.
func (r *Resolver) IsJudgeAssigned(ctx context.Context, judgeID, eventID string) bool {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM event_judges WHERE event_id = $1 AND judge_id = $2)
	`, eventID, judgeID).Scan(&exists)
	if err != nil {
		log.Printf("resolver: judge assignment lookup failed: %v", err)
		return false
	}
	return exists
}
