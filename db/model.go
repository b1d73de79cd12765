package db

import "time"

// ===========================
// USER MODELS
// ===========================

// User represents a registered account. Role is a closed enum validated at
// the session boundary (see authz.Role).
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	Role         string `json:"role"` // admin, organizer, participant, mentor, judge

	// Email verification
	IsVerified  bool   `json:"is_verified"`
	VerifyToken string `json:"-"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ===========================
// EVENT MODELS
// ===========================

// Event represents a hackathon/event owned by an organizer.
type Event struct {
	ID          string `json:"id"`
	OrganizerID string `json:"organizer_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	RegistrationDeadline time.Time `json:"registration_deadline"`
	StartsAt             time.Time `json:"starts_at"`
	EndsAt               time.Time `json:"ends_at"`

	MaxTeamSize int  `json:"max_team_size"`
	IsPublished bool `json:"is_published"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// For API responses (populated via JOINs)
	TeamCount int `json:"team_count,omitempty"`
}

// EventJudge records a judge assignment. Unique per (event, judge).
type EventJudge struct {
	EventID    string    `json:"event_id"`
	JudgeID    string    `json:"judge_id"`
	AssignedAt time.Time `json:"assigned_at"`

	// For API responses
	JudgeName  string `json:"judge_name,omitempty"`
	JudgeEmail string `json:"judge_email,omitempty"`
}

// ===========================
// TEAM MODELS
// ===========================

// Team statuses. Lifecycle: active -> disqualified | archived.
const (
	TeamStatusActive       = "active"
	TeamStatusDisqualified = "disqualified"
	TeamStatusArchived     = "archived"
)

// Team represents a participant team for one event. The leader also holds a
// member row; member_count is maintained with a conditional increment so
// joins racing for the last slot resolve at the data layer.
type Team struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	LeaderID   string `json:"leader_id"`
	MentorID   string `json:"mentor_id,omitempty"`
	InviteCode string `json:"invite_code,omitempty"` // unique across all teams

	MaxMembers  int    `json:"max_members"`
	MemberCount int    `json:"member_count"`
	Status      string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// For API responses
	Members []TeamMember `json:"members,omitempty"`
}

// Team member roles within a team.
const (
	TeamRoleLeader = "leader"
	TeamRoleMember = "member"
)

// TeamMember is one user's membership in a team. Unique per
// (event, user): a participant belongs to at most one team per event.
type TeamMember struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"team_id"`
	EventID  string    `json:"event_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"` // leader, member
	JoinedAt time.Time `json:"joined_at"`

	// For API responses
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

// ===========================
// SUBMISSION MODELS
// ===========================

// Submission is a team's project entry. One per (event, team).
// AverageScore is recomputed from the deduplicated evaluation set after
// every accepted evaluation, never incrementally.
type Submission struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	EventID     string `json:"event_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	RepoURL     string `json:"repo_url,omitempty"`
	DemoURL     string `json:"demo_url,omitempty"`

	AverageScore float64 `json:"average_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Evaluation is one judge's scoring of a submission. Unique per
// (submission, judge), enforced by the database.
type Evaluation struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	JudgeID      string `json:"judge_id"`

	Innovation   int    `json:"innovation"`
	Execution    int    `json:"execution"`
	Presentation int    `json:"presentation"`
	TotalScore   int    `json:"total_score"`
	Feedback     string `json:"feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// For API responses
	JudgeName string `json:"judge_name,omitempty"`
}

// ===========================
// ANNOUNCEMENT MODELS
// ===========================

// Announcement is a public notice, optionally scoped to one event.
type Announcement struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id,omitempty"` // empty: global
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ===========================
// CERTIFICATE MODELS
// ===========================

// Certificate kinds.
const (
	CertificateParticipation = "participation"
	CertificateWinner        = "winner"
)

// Certificate is the issuance record; rendering the artifact is an external
// collaborator's job.
type Certificate struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	UserID   string    `json:"user_id"`
	Kind     string    `json:"kind"`
	IssuedBy string    `json:"issued_by"`
	IssuedAt time.Time `json:"issued_at"`
}
