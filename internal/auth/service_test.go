package auth

import (
	"context"
	"testing"
	"time"

	"dm-chat/internal/config"
	"dm-chat/internal/database"
	"dm-chat/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:    []byte("test-secret"),
			ExpiresIn: time.Hour,
		},
	}
}

func registerUser(t *testing.T, svc *Service, username, email string) *models.LoginResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), &models.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "password123",
	})
	require.NoError(t, err)
	return resp
}

func signToken(t *testing.T, secret []byte, userID int, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestVerifyToken_Valid(t *testing.T) {
	db := database.NewMemoryDB()
	svc := NewService(db, testConfig())
	resp := registerUser(t, svc, "alice", "alice@example.com")

	user, err := svc.VerifyToken(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, user.ID)
	require.Equal(t, "alice@example.com", user.Email)
}

func TestVerifyToken_FailureKinds(t *testing.T) {
	db := database.NewMemoryDB()
	cfg := testConfig()
	svc := NewService(db, cfg)
	resp := registerUser(t, svc, "alice", "alice@example.com")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{
			name:  "garbage",
			token: "not-a-token",
			want:  ErrMalformedCredential,
		},
		{
			name:  "tampered signature",
			token: resp.Token[:len(resp.Token)-2] + "xx",
			want:  ErrMalformedCredential,
		},
		{
			name:  "wrong secret",
			token: signToken(t, []byte("other-secret"), resp.User.ID, time.Hour),
			want:  ErrMalformedCredential,
		},
		{
			name:  "expired",
			token: signToken(t, cfg.JWT.Secret, resp.User.ID, -time.Hour),
			want:  ErrExpiredCredential,
		},
		{
			name:  "unknown subject",
			token: signToken(t, cfg.JWT.Secret, 999, time.Hour),
			want:  ErrUnknownSubject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.VerifyToken(context.Background(), tt.token)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifyToken_Revoked(t *testing.T) {
	db := database.NewMemoryDB()
	svc := NewService(db, testConfig())
	resp := registerUser(t, svc, "alice", "alice@example.com")

	require.NoError(t, svc.Logout(context.Background(), resp.Token))

	_, err := svc.VerifyToken(context.Background(), resp.Token)
	require.ErrorIs(t, err, ErrRevokedCredential)
}

func TestLogout_MarksOffline(t *testing.T) {
	db := database.NewMemoryDB()
	svc := NewService(db, testConfig())
	resp := registerUser(t, svc, "alice", "alice@example.com")

	login, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	require.True(t, login.User.IsOnline)

	require.NoError(t, svc.Logout(context.Background(), login.Token))

	user, err := db.GetUserByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	require.False(t, user.IsOnline)
}

func TestLogin_InvalidPassword(t *testing.T) {
	db := database.NewMemoryDB()
	svc := NewService(db, testConfig())
	registerUser(t, svc, "alice", "alice@example.com")

	_, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	require.Error(t, err)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db := database.NewMemoryDB()
	svc := NewService(db, testConfig())
	registerUser(t, svc, "alice", "alice@example.com")

	_, err := svc.Register(context.Background(), &models.RegisterRequest{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.Error(t, err)
}

func TestRegister_Validation(t *testing.T) {
	db := database.NewMemoryDB()
	svc := NewService(db, testConfig())

	tests := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"missing fields", models.RegisterRequest{}},
		{"bad email", models.RegisterRequest{Username: "alice", Email: "not-an-email", Password: "password123"}},
		{"short password", models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "short"}},
		{"short username", models.RegisterRequest{Username: "al", Email: "alice@example.com", Password: "password123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), &tt.req)
			require.Error(t, err)
		})
	}
}
