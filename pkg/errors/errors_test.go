package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	err := Clone(ErrConflict, "draft already final")
	got := FromError(err)
	assert.Equal(t, "CONFLICT", got.Code)
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.Equal(t, "draft already final", got.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.True(t, errors.Is(got, sql.ErrConnDone))
}

func TestCloneDoesNotMutateSentinel(t *testing.T) {
	_ = Clone(ErrValidation, "financialYear is required")
	assert.Equal(t, "validation failed", ErrValidation.Message)
}

func TestIsComparesCodes(t *testing.T) {
	wrapped := Wrap(errors.New("boom"), ErrNotFound.Code, ErrNotFound.Status, "upload not found")
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(wrapped, ErrConflict))
	assert.False(t, Is(errors.New("plain"), ErrNotFound))
}
