package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dairy-portal-api/internal/middleware"
	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
)

type draftServiceMock struct {
	draft     *models.Draft
	drafts    []models.Draft
	thread    *service.DraftThread
	err       error
	gotID     int64
	gotUpload string
	gotReq    service.DraftRequest
	gotFile   *service.FileUpload
	gotFilter models.DraftFilter
	gotActor  service.Actor
}

func (m *draftServiceMock) CreateAdminDraft(_ context.Context, uploadID string, req service.DraftRequest, file *service.FileUpload, actor service.Actor) (*models.Draft, error) {
	m.gotUpload, m.gotReq, m.gotFile, m.gotActor = uploadID, req, file, actor
	return m.draft, m.err
}

func (m *draftServiceMock) Respond(_ context.Context, draftID int64, req service.DraftRequest, file *service.FileUpload, actor service.Actor) (*models.Draft, error) {
	m.gotID, m.gotReq, m.gotFile, m.gotActor = draftID, req, file, actor
	return m.draft, m.err
}

func (m *draftServiceMock) Get(_ context.Context, id int64, actor service.Actor) (*models.Draft, error) {
	m.gotID, m.gotActor = id, actor
	return m.draft, m.err
}

func (m *draftServiceMock) List(_ context.Context, filter models.DraftFilter, actor service.Actor) ([]models.Draft, *models.Pagination, error) {
	m.gotFilter, m.gotActor = filter, actor
	return m.drafts, &models.Pagination{Page: 1, PageSize: len(m.drafts), TotalCount: len(m.drafts)}, m.err
}

func (m *draftServiceMock) Thread(_ context.Context, uploadID string, actor service.Actor) (*service.DraftThread, error) {
	m.gotUpload, m.gotActor = uploadID, actor
	return m.thread, m.err
}

func (m *draftServiceMock) UpdateStatus(_ context.Context, id int64, _ service.DraftStatusRequest, actor service.Actor) (*models.Draft, error) {
	m.gotID, m.gotActor = id, actor
	return m.draft, m.err
}

func (m *draftServiceMock) MarkFinal(_ context.Context, id int64, actor service.Actor) (*models.Draft, error) {
	m.gotID, m.gotActor = id, actor
	return m.draft, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func newMultipartContext(t *testing.T, path string, fields map[string]string, fileName, content string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	return c, w
}

func withClaims(c *gin.Context, userID string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestDraftHandlerCreateAdminDraft(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &draftServiceMock{draft: &models.Draft{ID: 1, UploadID: "upload-1", DraftNumber: 1, Status: models.DraftStatusPendingReview}}
	handler := NewDraftHandler(mockSvc)

	c, w := newMultipartContext(t, "/uploads/upload-1/drafts", map[string]string{"comments": "please fix row 4"}, "draft.pdf", "%PDF-1.4")
	c.Params = gin.Params{{Key: "id", Value: "upload-1"}}
	withClaims(c, "admin-1", models.RoleAdmin)

	handler.CreateAdminDraft(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "upload-1", mockSvc.gotUpload)
	require.NotNil(t, mockSvc.gotReq.Comments)
	assert.Equal(t, "please fix row 4", *mockSvc.gotReq.Comments)
	require.NotNil(t, mockSvc.gotFile)
	assert.Equal(t, "draft.pdf", mockSvc.gotFile.Name)
	assert.Equal(t, int64(8), mockSvc.gotFile.Size)
	assert.Equal(t, "admin-1", mockSvc.gotActor.UserID)

	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["isFinal"])
}

func TestDraftHandlerRespondWithoutFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &draftServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "file is required")}
	handler := NewDraftHandler(mockSvc)

	c, w := newMultipartContext(t, "/drafts/7/respond", nil, "", "")
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	withClaims(c, "user-1", models.RoleUser)

	handler.Respond(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(7), mockSvc.gotID)
	assert.Nil(t, mockSvc.gotFile)
	assert.Nil(t, mockSvc.gotReq.Comments)
}

func TestDraftHandlerRejectsBadID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDraftHandler(&draftServiceMock{})

	c, w := newGinContext(http.MethodPost, "/drafts/abc/final", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	withClaims(c, "user-1", models.RoleUser)

	handler.MarkFinal(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftHandlerMarkFinal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &draftServiceMock{draft: &models.Draft{ID: 3, Status: models.DraftStatusFinal}}
	handler := NewDraftHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/drafts/3/final", nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	withClaims(c, "user-1", models.RoleUser)

	handler.MarkFinal(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["isFinal"])
	assert.Equal(t, "FINAL", data["status"])
}

func TestDraftHandlerMarkFinalConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDraftHandler(&draftServiceMock{err: appErrors.Clone(appErrors.ErrFinalized, "thread already final")})

	c, w := newGinContext(http.MethodPost, "/drafts/3/final", nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	withClaims(c, "user-1", models.RoleUser)

	handler.MarkFinal(c)
	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "FINALIZED", errBody["code"])
}

func TestDraftHandlerListThreadByUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &draftServiceMock{drafts: []models.Draft{{ID: 1, DraftNumber: 1}, {ID: 2, DraftNumber: 2}}}
	handler := NewDraftHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/drafts?uploadId=upload-1", nil)
	withClaims(c, "user-1", models.RoleUser)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "upload-1", mockSvc.gotFilter.UploadID)
	assert.Zero(t, mockSvc.gotFilter.Limit)

	c, _ = newGinContext(http.MethodGet, "/drafts?status=FINAL", nil)
	withClaims(c, "admin-1", models.RoleAdmin)
	handler.List(c)
	assert.Equal(t, 50, mockSvc.gotFilter.Limit)
	assert.Equal(t, models.DraftStatusFinal, mockSvc.gotFilter.Status)
}

func TestDraftHandlerListPagesOnlyUnscopedQueries(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &draftServiceMock{}
	handler := NewDraftHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/drafts", nil)
	withClaims(c, "user-1", models.RoleUser)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, mockSvc.gotFilter.Limit)

	c, _ = newGinContext(http.MethodGet, "/drafts?userId=user-1", nil)
	withClaims(c, "admin-1", models.RoleAdmin)
	handler.List(c)
	assert.Equal(t, "user-1", mockSvc.gotFilter.UserID)
	assert.Zero(t, mockSvc.gotFilter.Limit)

	c, _ = newGinContext(http.MethodGet, "/drafts", nil)
	withClaims(c, "admin-1", models.RoleAdmin)
	handler.List(c)
	assert.Equal(t, 50, mockSvc.gotFilter.Limit)

	c, _ = newGinContext(http.MethodGet, "/drafts?limit=5", nil)
	withClaims(c, "user-1", models.RoleUser)
	handler.List(c)
	assert.Equal(t, 5, mockSvc.gotFilter.Limit)
}

func TestDraftHandlerThread(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &draftServiceMock{thread: &service.DraftThread{
		UploadID:        "upload-1",
		Drafts:          []models.Draft{{ID: 1, DraftNumber: 1, Status: models.DraftStatusFinal}},
		NextDraftNumber: 2,
		Finalized:       true,
	}}
	handler := NewDraftHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/uploads/upload-1/drafts", nil)
	c.Params = gin.Params{{Key: "id", Value: "upload-1"}}
	withClaims(c, "user-1", models.RoleUser)

	handler.Thread(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["finalized"])
	assert.EqualValues(t, 2, data["nextDraftNumber"])
	drafts := data["drafts"].([]interface{})
	require.Len(t, drafts, 1)
	assert.Equal(t, true, drafts[0].(map[string]interface{})["isFinal"])
}

func TestDraftHandlerRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDraftHandler(&draftServiceMock{})

	c, w := newGinContext(http.MethodGet, "/drafts", nil)
	handler.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
