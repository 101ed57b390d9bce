package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
)

type memoryTemplateRepo struct {
	templates []*models.Template
	listCalls int
}

func (m *memoryTemplateRepo) Create(_ context.Context, tpl *models.Template) error {
	tpl.ID = "tpl-" + string(rune('a'+len(m.templates)))
	tpl.FamilyID = "fam-" + tpl.ID
	tpl.Version = 1
	tpl.IsActive = true
	tpl.CreatedAt = time.Now()
	copy := *tpl
	m.templates = append(m.templates, &copy)
	return nil
}

func (m *memoryTemplateRepo) CreateVersion(_ context.Context, familyID string, tpl *models.Template) error {
	max := 0
	for _, t := range m.templates {
		if t.FamilyID == familyID {
			t.IsActive = false
			if t.Version > max {
				max = t.Version
			}
		}
	}
	if max == 0 {
		return sql.ErrNoRows
	}
	tpl.ID = "tpl-" + string(rune('a'+len(m.templates)))
	tpl.FamilyID = familyID
	tpl.Version = max + 1
	tpl.IsActive = true
	copy := *tpl
	m.templates = append(m.templates, &copy)
	return nil
}

func (m *memoryTemplateRepo) GetByID(_ context.Context, id string) (*models.Template, error) {
	for _, t := range m.templates {
		if t.ID == id {
			copy := *t
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryTemplateRepo) List(_ context.Context, filter models.TemplateFilter) ([]models.Template, error) {
	m.listCalls++
	var out []models.Template
	for _, t := range m.templates {
		if filter.IncludeInactive || t.IsActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memoryTemplateRepo) History(_ context.Context, familyID string) ([]models.Template, error) {
	var out []models.Template
	for i := len(m.templates) - 1; i >= 0; i-- {
		if m.templates[i].FamilyID == familyID {
			out = append(out, *m.templates[i])
		}
	}
	return out, nil
}

func TestTemplateServiceVersioning(t *testing.T) {
	repo := &memoryTemplateRepo{}
	blobs := newMemoryBlobs()
	activity := &recordingActivity{}
	svc := NewTemplateService(repo, blobs, FilePolicy{AllowedMIMEs: []string{"application/pdf"}}, nil, nil, activity, nil)
	ctx := context.Background()

	v1, err := svc.Create(ctx, TemplateRequest{Name: "Sustainability", Description: "FY template"}, pdfFile("template.pdf"), testAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	require.NotNil(t, v1.UploadedBy)
	assert.Equal(t, "admin-1", *v1.UploadedBy)
	assert.Contains(t, v1.FileURL, "templates/")

	v2, err := svc.CreateVersion(ctx, v1.ID, TemplateRequest{Name: "Sustainability"}, pdfFile("template-v2.pdf"), testAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, v1.FamilyID, v2.FamilyID)

	active, err := svc.List(ctx, models.TemplateFilter{IncludeInactive: true}, testOwner)
	require.NoError(t, err)
	require.Len(t, active, 1, "users never see inactive versions")
	assert.Equal(t, v2.ID, active[0].ID)

	history, err := svc.History(ctx, v2.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)

	assert.Equal(t, []string{models.ActivityTemplateUpload, models.ActivityTemplateVersion}, activity.actions())
}

func TestTemplateServiceValidation(t *testing.T) {
	svc := NewTemplateService(&memoryTemplateRepo{}, newMemoryBlobs(), FilePolicy{MaxSizeBytes: 4}, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, TemplateRequest{Name: "  "}, pdfFile("t.pdf"), testAdmin)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, TemplateRequest{Name: "Big"}, pdfFile("t.pdf"), testAdmin)
	assert.True(t, appErrors.Is(err, appErrors.ErrPayloadTooLarge))

	_, err = svc.CreateVersion(ctx, "missing", TemplateRequest{Name: "x"}, pdfFile("t.pdf"), testAdmin)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
