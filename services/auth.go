package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/db"
)

// AuthService issues and validates first-party sessions and handles
// registration, login and email verification.
type AuthService struct {
	PG         *sql.DB
	jwtSecret  []byte
	cookieName string
	sessionTTL time.Duration
}

// SessionClaims is the JWT payload: stable user id plus role.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService creates the auth service. secret must be non-empty in
// production; cookieName is the browser session cookie.
func NewAuthService(pg *sql.DB, secret, cookieName string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		PG:         pg,
		jwtSecret:  []byte(secret),
		cookieName: cookieName,
		sessionTTL: ttl,
	}
}

// Ensure AuthService can front the route guard.
var _ authz.SessionDecoder = (*AuthService)(nil)

// HashPassword creates a bcrypt hash of the password.
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// IssueToken signs a session token for the user.
func (s *AuthService) IssueToken(user db.User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies a session token. Unknown roles are
// rejected here, at the session-decoding boundary, not deep in handlers.
func (s *AuthService) ValidateToken(tokenString string) (authz.Subject, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return authz.Subject{}, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return authz.Subject{}, errors.New("invalid token claims")
	}
	role := authz.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return authz.Subject{}, errors.New("invalid session: unknown role")
	}
	return authz.Subject{ID: claims.Subject, Role: role}, nil
}

// DecodeSession extracts the subject from a request: Authorization bearer
// token for API clients, session cookie for browser navigation.
func (s *AuthService) DecodeSession(r *http.Request) (authz.Subject, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.Split(auth, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return authz.Subject{}, errors.New("invalid authorization header format")
		}
		return s.ValidateToken(parts[1])
	}
	if cookie, err := r.Cookie(s.cookieName); err == nil && cookie.Value != "" {
		return s.ValidateToken(cookie.Value)
	}
	return authz.Subject{}, errors.New("no session")
}

// CookieName returns the browser session cookie name.
func (s *AuthService) CookieName() string { return s.cookieName }

// RegisterInput is the sign-up payload. Role is restricted: admin accounts
// are never self-service.
type RegisterInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// Register creates a user with a fresh verification token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (db.User, error) {
	role := authz.Role(input.Role)
	if !role.Valid() || role == authz.RoleAdmin {
		return db.User{}, fmt.Errorf("%w: invalid role %q", authz.ErrInvalidInput, input.Role)
	}
	if len(input.Password) < 8 {
		return db.User{}, fmt.Errorf("%w: password must be at least 8 characters", authz.ErrInvalidInput)
	}

	hash, err := s.HashPassword(input.Password)
	if err != nil {
		return db.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := db.User{
		ID:          uuid.New().String(),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		Name:        input.Name,
		Role:        string(role),
		VerifyToken: uuid.New().String(),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.PG.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, is_verified, verify_token, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, $6, true, $7, $8)
	`, user.ID, user.Email, hash, user.Name, user.Role, user.VerifyToken, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return db.User{}, fmt.Errorf("%w: email already registered", authz.ErrAlreadyExists)
		}
		return db.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login checks credentials and returns the user plus a signed session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (db.User, string, error) {
	var user db.User
	var hash string
	err := s.PG.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, role, is_verified, is_active, created_at, updated_at
		FROM users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(
		&user.ID, &user.Email, &hash, &user.Name, &user.Role,
		&user.IsVerified, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.User{}, "", authz.ErrUnauthenticated
		}
		return db.User{}, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return db.User{}, "", authz.ErrUnauthenticated
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return db.User{}, "", authz.ErrUnauthenticated
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return db.User{}, "", fmt.Errorf("failed to sign session: %w", err)
	}
	return user, token, nil
}

// Verify marks the account behind the token as verified.
func (s *AuthService) Verify(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: verification token required", authz.ErrInvalidInput)
	}
	result, err := s.PG.ExecContext(ctx, `
		UPDATE users SET is_verified = true, verify_token = NULL, updated_at = NOW()
		WHERE verify_token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// GetUser fetches a user's public profile.
func (s *AuthService) GetUser(ctx context.Context, id string) (db.User, error) {
	var user db.User
	err := s.PG.QueryRowContext(ctx, `
		SELECT id, email, name, role, is_verified, is_active, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.Role,
		&user.IsVerified, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.User{}, authz.ErrNotFound
		}
		return db.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
