package httpapi

import (
	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UserIdHeader is set by the gateway in front of this service after it has
// authenticated the caller.
const UserIdHeader = "X-User-Id"

const localUser = "user"

// RequireUser resolves the caller from UserIdHeader and stores it in locals
func (h *Handler) RequireUser(c *fiber.Ctx) error {
	userId := c.Get(UserIdHeader)
	if userId == "" {
		return WriteError(c, fiber.StatusUnauthorized, apperror.KindForbidden, "missing "+UserIdHeader+" header")
	}

	user, err := h.service.GetUser(c.UserContext(), userId)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return WriteError(c, fiber.StatusUnauthorized, apperror.KindForbidden, "unknown caller")
		}
		return WriteAppError(c, err)
	}

	c.Locals(localUser, user)
	return c.Next()
}

// RequireAdmin must run after RequireUser
func (h *Handler) RequireAdmin(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil || !user.IsAdmin {
		return WriteError(c, fiber.StatusForbidden, apperror.KindForbidden, "admin access required")
	}
	return c.Next()
}

func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}
