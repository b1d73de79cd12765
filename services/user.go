package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/db"
)

// UserService handles admin-side account management. Listing, updating and
// deactivating accounts are admin-only; self-service lives in AuthService.
type UserService struct {
	PG     *sql.DB
	engine *authz.Engine
}

// NewUserService creates a new user service.
func NewUserService(pg *sql.DB, engine *authz.Engine) *UserService {
	return &UserService{PG: pg, engine: engine}
}

// ListUsers returns all accounts, newest first.
func (s *UserService) ListUsers(ctx context.Context, subject authz.Subject) ([]db.User, error) {
	decision, err := s.engine.EvaluateRole(subject, authz.ActionList, authz.KindUser)
	if err != nil {
		return nil, err
	}
	if !decision.Allow {
		return nil, decision.Err()
	}

	rows, err := s.PG.QueryContext(ctx, `
		SELECT id, email, name, role, is_verified, is_active, created_at, updated_at
		FROM users ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]db.User, 0)
	for rows.Next() {
		var u db.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsVerified,
			&u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetProfile returns the public slice of an account. No policy check: the
// profile page is on the public allowlist, read-only.
func (s *UserService) GetProfile(ctx context.Context, id string) (db.User, error) {
	var u db.User
	err := s.PG.QueryRowContext(ctx, `
		SELECT id, name, role FROM users WHERE id = $1 AND is_active
	`, id).Scan(&u.ID, &u.Name, &u.Role)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.User{}, authz.ErrNotFound
		}
		return db.User{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return u, nil
}

// UpdateUserInput represents an admin edit of an account.
type UpdateUserInput struct {
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UpdateUser applies an admin edit. Admins cannot change their own role,
// which would otherwise allow locking out the last admin by accident.
func (s *UserService) UpdateUser(ctx context.Context, subject authz.Subject, id string, input UpdateUserInput) (db.User, error) {
	decision, err := s.engine.EvaluateRole(subject, authz.ActionUpdate, authz.KindUser)
	if err != nil {
		return db.User{}, err
	}
	if !decision.Allow {
		return db.User{}, decision.Err()
	}

	if input.Role != nil {
		if !authz.Role(*input.Role).Valid() {
			return db.User{}, fmt.Errorf("%w: unknown role %q", authz.ErrInvalidInput, *input.Role)
		}
		if id == subject.ID {
			return db.User{}, fmt.Errorf("%w: cannot change your own role", authz.ErrForbidden)
		}
	}

	var u db.User
	err = s.PG.QueryRowContext(ctx, `
		SELECT id, email, name, role, is_verified, is_active, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.User{}, authz.ErrNotFound
		}
		return db.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	if input.Name != nil {
		u.Name = *input.Name
	}
	if input.Role != nil {
		u.Role = *input.Role
	}
	if input.IsActive != nil {
		u.IsActive = *input.IsActive
	}
	u.UpdatedAt = time.Now()

	if _, err := s.PG.ExecContext(ctx, `
		UPDATE users SET name = $2, role = $3, is_active = $4, updated_at = $5 WHERE id = $1
	`, u.ID, u.Name, u.Role, u.IsActive, u.UpdatedAt); err != nil {
		return db.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// DeleteUser deactivates an account. Rows are kept so authored events,
// teams and evaluations stay attributable.
func (s *UserService) DeleteUser(ctx context.Context, subject authz.Subject, id string) error {
	decision, err := s.engine.EvaluateRole(subject, authz.ActionDelete, authz.KindUser)
	if err != nil {
		return err
	}
	if !decision.Allow {
		return decision.Err()
	}
	if id == subject.ID {
		return fmt.Errorf("%w: cannot delete your own account", authz.ErrForbidden)
	}

	res, err := s.PG.ExecContext(ctx, `
		UPDATE users SET is_active = FALSE, updated_at = $2 WHERE id = $1
	`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authz.ErrNotFound
	}
	return nil
}
