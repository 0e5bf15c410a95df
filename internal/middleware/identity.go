package middleware

import (
	"go-erp/internal/features/access"
	"go-erp/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// CurrentIdentity converts the claims set by AuthMiddleware into the
// identity consumed by the permission gate. ok is false for anonymous calls.
func CurrentIdentity(c *fiber.Ctx) (access.Identity, bool) {
	claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok || claims == nil || claims.UserID == "" {
		return access.Identity{}, false
	}
	return access.Identity{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Roles:    claims.Roles,
	}, true
}
