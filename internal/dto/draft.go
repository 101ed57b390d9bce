package dto

import (
	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/service"
)

// DraftResponse is a draft with its derived finality flag.
type DraftResponse struct {
	models.Draft
	IsFinal bool `json:"isFinal"`
}

// DraftThreadResponse is returned by GET /uploads/:id/drafts.
type DraftThreadResponse struct {
	UploadID        string          `json:"uploadId"`
	Drafts          []DraftResponse `json:"drafts"`
	NextDraftNumber int             `json:"nextDraftNumber"`
	Finalized       bool            `json:"finalized"`
}

// NewDraftResponse converts a draft for the wire.
func NewDraftResponse(draft *models.Draft) DraftResponse {
	if draft == nil {
		return DraftResponse{}
	}
	return DraftResponse{Draft: *draft, IsFinal: draft.IsFinal()}
}

// NewDraftResponses converts a slice of drafts, never returning nil.
func NewDraftResponses(drafts []models.Draft) []DraftResponse {
	out := make([]DraftResponse, 0, len(drafts))
	for i := range drafts {
		out = append(out, NewDraftResponse(&drafts[i]))
	}
	return out
}

// NewDraftThreadResponse converts a thread.
func NewDraftThreadResponse(thread *service.DraftThread) DraftThreadResponse {
	if thread == nil {
		return DraftThreadResponse{Drafts: []DraftResponse{}}
	}
	return DraftThreadResponse{
		UploadID:        thread.UploadID,
		Drafts:          NewDraftResponses(thread.Drafts),
		NextDraftNumber: thread.NextDraftNumber,
		Finalized:       thread.Finalized,
	}
}
