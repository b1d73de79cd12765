// Package authz provides the role-based authorization core for EventFlow:
// - Engine: static policy rules, answers "may this role do this at all?"
// - Resolver: fetches minimal ownership fields and checks subject-resource relations
// - Guard/middleware: route protection in front of every handler
//
// Decisions are derived fresh per request from the session and the store.
// Nothing in this package caches a permission across requests.
package authz

import (
	"context"
	"errors"
	"fmt"
)

// Common errors, mapped to HTTP statuses in handlers.
var (
	ErrUnauthenticated = errors.New("unauthenticated: sign in required")
	ErrForbidden       = errors.New("forbidden: your role cannot perform this action")
	ErrNotOwner        = errors.New("forbidden: you do not own this resource")
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrConflict        = errors.New("conflict: resource state does not allow this")
	ErrInvalidInput    = errors.New("invalid input")
)

// Role is a user's role. Closed set; unknown values are rejected at the
// session-decoding boundary, never defaulted.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
	RoleMentor      Role = "mentor"
	RoleJudge       Role = "judge"
)

// AllRoles lists every valid role, in dashboard-prefix order.
var AllRoles = []Role{RoleAdmin, RoleOrganizer, RoleJudge, RoleMentor, RoleParticipant}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleParticipant, RoleMentor, RoleJudge:
		return true
	}
	return false
}

// HomePath returns the role's dashboard path.
func (r Role) HomePath() string {
	return "/" + string(r)
}

// Action is an operation on a resource kind.
type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionJoin         Action = "join"
	ActionLeave        Action = "leave"
	ActionDisband      Action = "disband"
	ActionAssignJudge  Action = "assign-judge"
	ActionRemoveJudge  Action = "remove-judge"
	ActionAssignMentor Action = "assign-mentor"
	ActionEvaluate     Action = "evaluate"
	ActionList         Action = "list"
	ActionGenerate     Action = "generate"
)

// ResourceKind identifies the entity a rule applies to.
type ResourceKind string

const (
	KindEvent        ResourceKind = "event"
	KindTeam         ResourceKind = "team"
	KindSubmission   ResourceKind = "submission"
	KindAnnouncement ResourceKind = "announcement"
	KindUser         ResourceKind = "user"
	KindCertificate  ResourceKind = "certificate"
)

// Subject is the actor behind a request. Derived from the session once and
// immutable for the request's lifetime. A zero Subject is anonymous.
type Subject struct {
	ID   string
	Role Role
}

// Anonymous reports whether the subject carries no identity.
func (s Subject) Anonymous() bool { return s.ID == "" }

// Reason is a typed denial reason so callers can render a precise message
// without parsing error strings.
type Reason string

const (
	ReasonAllowed         Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonRoleForbidden   Reason = "role-forbidden"
	ReasonNotOwner        Reason = "not-owner"
	ReasonNotFound        Reason = "not-found"
	ReasonAlreadyExists   Reason = "already-exists"
)

// Decision is the outcome of a policy evaluation. Never persisted or cached.
type Decision struct {
	Allow  bool
	Reason Reason
}

// Err maps a denial to its sentinel error. Allowed decisions return nil.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	switch d.Reason {
	case ReasonUnauthenticated:
		return ErrUnauthenticated
	case ReasonNotOwner:
		return ErrNotOwner
	case ReasonNotFound:
		return ErrNotFound
	case ReasonAlreadyExists:
		return ErrAlreadyExists
	default:
		return ErrForbidden
	}
}

// Rule is a static policy entry: which roles may perform an action on a
// resource kind, and whether the subject must additionally own (or be
// assigned to) the specific resource. Admin always bypasses the ownership
// check when OwnershipRequired is set.
type Rule struct {
	AllowedRoles             map[Role]bool
	AnyAuthenticated         bool // any valid role passes the role check
	AnyoneIncludingAnonymous bool
	OwnershipRequired        bool
}

func roles(rs ...Role) map[Role]bool {
	m := make(map[Role]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

type ruleKey struct {
	Kind   ResourceKind
	Action Action
}

// policy is the canonical rule set, one rule per (resource kind, action).
var policy = map[ruleKey]Rule{
	{KindEvent, ActionCreate}:         {AllowedRoles: roles(RoleOrganizer, RoleAdmin)},
	{KindEvent, ActionUpdate}:         {AllowedRoles: roles(RoleOrganizer, RoleAdmin), OwnershipRequired: true},
	{KindEvent, ActionDelete}:         {AllowedRoles: roles(RoleOrganizer, RoleAdmin), OwnershipRequired: true},
	{KindEvent, ActionAssignJudge}:    {AllowedRoles: roles(RoleOrganizer, RoleAdmin), OwnershipRequired: true},
	{KindEvent, ActionRemoveJudge}:    {AllowedRoles: roles(RoleOrganizer, RoleAdmin), OwnershipRequired: true},
	{KindTeam, ActionCreate}:          {AllowedRoles: roles(RoleParticipant)},
	{KindTeam, ActionJoin}:            {AllowedRoles: roles(RoleParticipant)},
	{KindTeam, ActionLeave}:           {AllowedRoles: roles(RoleParticipant)},
	{KindTeam, ActionUpdate}:          {AnyAuthenticated: true, OwnershipRequired: true},
	{KindTeam, ActionDisband}:         {AnyAuthenticated: true, OwnershipRequired: true},
	{KindTeam, ActionAssignMentor}:    {AllowedRoles: roles(RoleOrganizer, RoleAdmin), OwnershipRequired: true},
	{KindSubmission, ActionCreate}:    {AllowedRoles: roles(RoleParticipant, RoleAdmin), OwnershipRequired: true},
	{KindSubmission, ActionUpdate}:    {AllowedRoles: roles(RoleParticipant, RoleAdmin), OwnershipRequired: true},
	{KindSubmission, ActionEvaluate}:  {AllowedRoles: roles(RoleJudge, RoleOrganizer, RoleAdmin)},
	{KindAnnouncement, ActionCreate}:  {AllowedRoles: roles(RoleOrganizer, RoleAdmin)},
	{KindAnnouncement, ActionDelete}:  {AllowedRoles: roles(RoleOrganizer, RoleAdmin)},
	{KindAnnouncement, ActionRead}:    {AnyoneIncludingAnonymous: true},
	{KindUser, ActionList}:            {AllowedRoles: roles(RoleAdmin)},
	{KindUser, ActionUpdate}:          {AllowedRoles: roles(RoleAdmin)},
	{KindUser, ActionDelete}:          {AllowedRoles: roles(RoleAdmin)},
	{KindCertificate, ActionGenerate}: {AllowedRoles: roles(RoleOrganizer, RoleAdmin), OwnershipRequired: true},
}

// OwnershipChecker answers whether a subject owns / is assigned to a specific
// resource. Implemented by Resolver; kept as an interface so the engine can be
// tested without a database.
type OwnershipChecker interface {
	CheckOwnership(ctx context.Context, subject Subject, kind ResourceKind, action Action, resourceID string) (Decision, error)
}

// Engine evaluates the static policy table and defers to the ownership
// checker when a rule requires it.
type Engine struct {
	owners OwnershipChecker
}

// NewEngine creates a policy engine. owners may be nil when only
// role-level checks are needed (tests, the route guard).
func NewEngine(owners OwnershipChecker) *Engine {
	return &Engine{owners: owners}
}

// EvaluateRole performs the role-level half of a rule, ignoring ownership.
// Denials come back as a Decision; only a rule lookup miss is an error
// (unknown (kind, action) pairs are programming mistakes, fail closed).
func (e *Engine) EvaluateRole(subject Subject, action Action, kind ResourceKind) (Decision, error) {
	rule, ok := policy[ruleKey{kind, action}]
	if !ok {
		return Decision{Allow: false, Reason: ReasonRoleForbidden}, fmt.Errorf("%w: no policy rule for %s %s", ErrInvalidInput, kind, action)
	}

	if rule.AnyoneIncludingAnonymous {
		return Decision{Allow: true}, nil
	}
	if subject.Anonymous() || !subject.Role.Valid() {
		return Decision{Allow: false, Reason: ReasonUnauthenticated}, nil
	}
	if rule.AnyAuthenticated || rule.AllowedRoles[subject.Role] {
		return Decision{Allow: true}, nil
	}
	return Decision{Allow: false, Reason: ReasonRoleForbidden}, nil
}

// Evaluate runs the full check: role rule first, then ownership when the rule
// demands it. resourceID must be set for ownership-required rules; a missing
// id is the one fatal input error the engine signals.
func (e *Engine) Evaluate(ctx context.Context, subject Subject, action Action, kind ResourceKind, resourceID string) (Decision, error) {
	d, err := e.EvaluateRole(subject, action, kind)
	if err != nil || !d.Allow {
		return d, err
	}

	rule := policy[ruleKey{kind, action}]
	if !rule.OwnershipRequired {
		return d, nil
	}
	if resourceID == "" {
		return Decision{Allow: false, Reason: ReasonNotFound}, fmt.Errorf("%w: resource id required for %s %s", ErrInvalidInput, kind, action)
	}
	// Admin bypasses every ownership check.
	if subject.Role == RoleAdmin {
		return Decision{Allow: true}, nil
	}
	if e.owners == nil {
		return Decision{Allow: false, Reason: ReasonNotOwner}, nil
	}
	return e.owners.CheckOwnership(ctx, subject, kind, action, resourceID)
}
