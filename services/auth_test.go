package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/db"
)

func newAuthService(t *testing.T) *AuthService {
	return NewAuthService(nil, "test-secret", "eventflow_session", time.Hour)
}

func TestTokenRoundTrip(t *testing.T) {
	s := newAuthService(t)
	user := db.User{ID: "u-1", Email: "a@example.com", Role: "organizer"}

	token, err := s.IssueToken(user)
	assert.NoError(t, err)

	subject, err := s.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, authz.Subject{ID: "u-1", Role: authz.RoleOrganizer}, subject)
}

func TestValidateToken_Rejections(t *testing.T) {
	s := newAuthService(t)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthService(nil, "other-secret", "eventflow_session", time.Hour)
		token, _ := other.IssueToken(db.User{ID: "u-1", Role: "judge"})
		_, err := s.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("unknown role rejected at decode", func(t *testing.T) {
		token, _ := s.IssueToken(db.User{ID: "u-1", Role: "superuser"})
		_, err := s.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := SessionClaims{
			Role: "judge",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		_, err := s.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestDecodeSession(t *testing.T) {
	s := newAuthService(t)
	token, _ := s.IssueToken(db.User{ID: "u-1", Email: "a@example.com", Role: "participant"})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/teams/t-1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		subject, err := s.DecodeSession(req)
		assert.NoError(t, err)
		assert.Equal(t, "u-1", subject.ID)
	})

	t.Run("session cookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/participant", nil)
		req.AddCookie(&http.Cookie{Name: s.CookieName(), Value: token})
		subject, err := s.DecodeSession(req)
		assert.NoError(t, err)
		assert.Equal(t, authz.RoleParticipant, subject.Role)
	})

	t.Run("no session", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/participant", nil)
		_, err := s.DecodeSession(req)
		assert.Error(t, err)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/teams/t-1", nil)
		req.Header.Set("Authorization", "Token abc")
		_, err := s.DecodeSession(req)
		assert.Error(t, err)
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("admin self-registration rejected", func(t *testing.T) {
		s := newAuthService(t)
		_, err := s.Register(ctx, RegisterInput{Email: "x@example.com", Password: "longenough", Name: "X", Role: "admin"})
		assert.ErrorIs(t, err, authz.ErrInvalidInput)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		s := newAuthService(t)
		_, err := s.Register(ctx, RegisterInput{Email: "x@example.com", Password: "longenough", Name: "X", Role: "root"})
		assert.ErrorIs(t, err, authz.ErrInvalidInput)
	})

	t.Run("short password rejected", func(t *testing.T) {
		s := newAuthService(t)
		_, err := s.Register(ctx, RegisterInput{Email: "x@example.com", Password: "short", Name: "X", Role: "participant"})
		assert.ErrorIs(t, err, authz.ErrInvalidInput)
	})

	t.Run("email stored lowercased", func(t *testing.T) {
		pg, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to open sqlmock: %v", err)
		}
		defer pg.Close()
		s := NewAuthService(pg, "test-secret", "eventflow_session", time.Hour)

		mock.ExpectExec(`INSERT INTO users`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		user, err := s.Register(ctx, RegisterInput{Email: "  Mixed@Example.COM ", Password: "longenough", Name: "M", Role: "mentor"})
		assert.NoError(t, err)
		assert.Equal(t, "mixed@example.com", user.Email)
		assert.NotEmpty(t, user.VerifyToken)
	})
}
