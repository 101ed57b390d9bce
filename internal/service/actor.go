package service

import (
	"context"

	"github.com/noah-isme/dairy-portal-api/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   models.UserRole
	IP     string
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// ActorFromClaims builds an Actor from verified token claims.
func ActorFromClaims(claims *models.JWTClaims, ip string) Actor {
	if claims == nil {
		return Actor{IP: ip}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role, IP: ip}
}

type activityRecorder interface {
	Record(ctx context.Context, actor Actor, action string, details map[string]interface{})
}

type noopActivity struct{}

func (noopActivity) Record(context.Context, Actor, string, map[string]interface{}) {}

func offsetPagination(limit, offset, total int) *models.Pagination {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return &models.Pagination{Page: offset/limit + 1, PageSize: limit, TotalCount: total}
}
