package service

import "github.com/noah-isme/dairy-portal-api/internal/models"

// CanRespond reports whether the user may answer draft with a draft of their
// own: only an admin draft still awaiting review qualifies.
func CanRespond(draft *models.Draft) bool {
	if draft == nil {
		return false
	}
	return draft.DraftType == models.DraftTypeAdminToUser && draft.Status == models.DraftStatusPendingReview
}

// CanMarkFinal reports whether actingUserID may close the thread on draft.
// Only the recipient of a pending draft can finalize it: the admin for a
// user response, the owning user for an admin draft.
func CanMarkFinal(draft *models.Draft, actingUserID, adminUserID string) bool {
	if draft == nil || actingUserID == "" {
		return false
	}
	if draft.Status != models.DraftStatusPendingReview {
		return false
	}
	switch draft.DraftType {
	case models.DraftTypeUserToAdmin:
		return adminUserID != "" && actingUserID == adminUserID
	case models.DraftTypeAdminToUser:
		return actingUserID == draft.UserID
	default:
		return false
	}
}
