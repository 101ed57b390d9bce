package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
)

type recordedActivity struct {
	actor   Actor
	action  string
	details map[string]interface{}
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []recordedActivity
}

func (r *recordingActivity) Record(_ context.Context, actor Actor, action string, details map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recordedActivity{actor: actor, action: action, details: details})
}

func (r *recordingActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.action)
	}
	return out
}

type mockAuthRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revokedAll    []string
}

func newMockAuthRepo(t *testing.T, users ...*models.User) *mockAuthRepo {
	t.Helper()
	repo := &mockAuthRepo{users: map[string]*models.User{}, refreshTokens: map[string]*models.RefreshToken{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	for _, tok := range m.refreshTokens {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	copy := *token
	m.refreshTokens[token.TokenHash] = &copy
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	if tok, ok := m.refreshTokens[tokenHash]; ok {
		copy := *tok
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	for _, tok := range m.refreshTokens {
		if tok.ID == id {
			tok.Revoked = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func testUser(t *testing.T, id, username, password string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: id, Name: "Green Farm", Username: username, PasswordHash: string(hash), Role: role}
}

func newTestAuthService(repo *mockAuthRepo, activity activityRecorder) *AuthService {
	return NewAuthService(repo, nil, activity, nil, AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "dairy-portal",
	})
}

func TestAuthServiceLoginIssuesTokens(t *testing.T) {
	repo := newMockAuthRepo(t, testUser(t, "user-1", "greenfarm", "password123", models.RoleUser))
	activity := &recordingActivity{}
	svc := newTestAuthService(repo, activity)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "greenfarm", Password: "password123", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "greenfarm", resp.User.Username)

	_, stored := repo.refreshTokens[hashToken(resp.RefreshToken)]
	assert.True(t, stored, "only the token hash is persisted")
	_, plain := repo.refreshTokens[resp.RefreshToken]
	assert.False(t, plain)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, []string{models.ActivityLogin}, activity.actions())
}

func TestAuthServiceLoginRejectsBadPassword(t *testing.T) {
	repo := newMockAuthRepo(t, testUser(t, "user-1", "greenfarm", "password123", models.RoleUser))
	svc := newTestAuthService(repo, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "greenfarm", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceRefreshRotates(t *testing.T) {
	repo := newMockAuthRepo(t, testUser(t, "user-1", "greenfarm", "password123", models.RoleUser))
	svc := newTestAuthService(repo, nil)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Username: "greenfarm", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRefreshRejectsExpired(t *testing.T) {
	repo := newMockAuthRepo(t, testUser(t, "user-1", "greenfarm", "password123", models.RoleUser))
	svc := newTestAuthService(repo, nil)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Username: "greenfarm", Password: "password123"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceLogoutRequiresOwner(t *testing.T) {
	repo := newMockAuthRepo(t, testUser(t, "user-1", "greenfarm", "password123", models.RoleUser))
	svc := newTestAuthService(repo, nil)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Username: "greenfarm", Password: "password123"})
	require.NoError(t, err)

	err = svc.Logout(ctx, login.RefreshToken, Actor{UserID: "user-2"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Logout(ctx, login.RefreshToken, Actor{UserID: "user-1"}))
	assert.True(t, repo.refreshTokens[hashToken(login.RefreshToken)].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo(t, testUser(t, "user-1", "greenfarm", "password123", models.RoleUser))
	svc := newTestAuthService(repo, nil)
	ctx := context.Background()
	actor := Actor{UserID: "user-1", Role: models.RoleUser}

	err := svc.ChangePassword(ctx, actor, models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpassword"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.ChangePassword(ctx, actor, models.ChangePasswordRequest{OldPassword: "password123", NewPassword: "newpassword"}))
	assert.Equal(t, []string{"user-1"}, repo.revokedAll)

	_, err = svc.Login(ctx, models.LoginRequest{Username: "greenfarm", Password: "newpassword"})
	assert.NoError(t, err)
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	repo := newMockAuthRepo(t, testUser(t, "user-1", "greenfarm", "password123", models.RoleUser))
	svc := newTestAuthService(repo, nil)

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "greenfarm", Password: "password123"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "dairy-portal"})
	_, err = other.ValidateToken(login.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
