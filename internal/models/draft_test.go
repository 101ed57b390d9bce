package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftStatusValid(t *testing.T) {
	for _, s := range []DraftStatus{DraftStatusPendingReview, DraftStatusApproved, DraftStatusRejected, DraftStatusFinal} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, DraftStatus("ARCHIVED").Valid())
	assert.False(t, DraftStatus("").Valid())
}

func TestDraftIsFinal(t *testing.T) {
	var nilDraft *Draft
	assert.False(t, nilDraft.IsFinal())
	assert.False(t, (&Draft{Status: DraftStatusApproved}).IsFinal())
	assert.True(t, (&Draft{Status: DraftStatusFinal}).IsFinal())
}

func TestSnapshotScanValue(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	in := UploadSnapshot{ID: "u1", FinancialYear: "2023-24", FileURL: "http://f/a.xlsx", FileName: "a.xlsx", Status: UploadStatusApproved, CreatedAt: created}

	raw, err := in.Value()
	require.NoError(t, err)

	var out UploadSnapshot
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)

	var fromString UserSnapshot
	require.NoError(t, fromString.Scan(`{"id":"x","name":"Ann","username":"ann"}`))
	assert.Equal(t, "Ann", fromString.Name)

	var empty TemplateSnapshot
	require.NoError(t, empty.Scan(nil))
	assert.Error(t, empty.Scan(42))
}
