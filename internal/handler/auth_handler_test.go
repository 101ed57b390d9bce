package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
)

type authServiceMock struct {
	loginResp *models.LoginResponse
	loginErr  error
	gotLogin  models.LoginRequest
	gotLogout string
	gotActor  service.Actor
	changeErr error
}

func (m *authServiceMock) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.gotLogin = req
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "a", RefreshToken: "r"}, nil
}

func (m *authServiceMock) Logout(_ context.Context, refreshToken string, actor service.Actor) error {
	m.gotLogout, m.gotActor = refreshToken, actor
	return nil
}

func (m *authServiceMock) ChangePassword(_ context.Context, actor service.Actor, _ models.ChangePasswordRequest) error {
	m.gotActor = actor
	return m.changeErr
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{loginResp: &models.LoginResponse{AccessToken: "token", User: models.UserInfo{ID: "u1", Role: models.RoleUser}}}
	handler := NewAuthHandler(mockSvc)

	payload, _ := json.Marshal(map[string]string{"username": "farmer", "password": "secret-pass"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)
	c.Request.Header.Set("User-Agent", "test-agent")

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "farmer", mockSvc.gotLogin.Username)
	assert.Equal(t, "test-agent", mockSvc.gotLogin.UserAgent)
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})

	payload, _ := json.Marshal(map[string]string{"username": "farmer", "password": "wrong"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)

	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/auth/logout", nil)
	withClaims(c, "u1", models.RoleUser)
	handler.Logout(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	payload, _ := json.Marshal(models.LogoutRequest{RefreshToken: "refresh"})
	c, w = newGinContext(http.MethodPost, "/auth/logout", payload)
	withClaims(c, "u1", models.RoleUser)
	handler.Logout(c)
	c.Writer.WriteHeaderNow() // gin's engine flushes status-only responses after the handler chain
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "refresh", mockSvc.gotLogout)
	assert.Equal(t, "u1", mockSvc.gotActor.UserID)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	c.Set("currentUser", &models.JWTClaims{UserID: "u1", Username: "farmer", Name: "Farmer Joe", Role: models.RoleUser})
	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "farmer", data["username"])
}
