package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dmorenog/user-management-api/internal/api/dto"
	"github.com/dmorenog/user-management-api/internal/auth"
	"github.com/dmorenog/user-management-api/internal/service"
	apperrors "github.com/dmorenog/user-management-api/pkg/util"
)

// UsersHandler exposes the admin CRUD endpoints plus the caller profile.
type UsersHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

// NewUsersHandler constructs the handler.
func NewUsersHandler(userService *service.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{users: userService, logger: logger}
}

// List handles GET /api/users?page=0&size=10.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", 10)

	users, total, err := h.users.List(c.UserContext(), page, size)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.UserPage{
			Users: dto.NewUserResponseList(users),
			Page:  page,
			Size:  size,
			Total: total,
		},
	})
}

// GetByID handles GET /api/users/:id.
func (h *UsersHandler) GetByID(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Update handles PUT /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	input := service.UpdateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.DateOfBirth != nil {
		parsed, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			return apperrors.NewValidationError("date_of_birth must use the 2006-01-02 layout", nil)
		}
		input.DateOfBirth = &parsed
	}

	user, err := h.users.Update(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Delete handles DELETE /api/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	if err := h.users.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /api/users/me for any authenticated caller.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	user, err := h.users.GetByUsername(c.UserContext(), principal.Username)
	if err != nil {
		return err
	}
	h.logger.Debug("profile fetched", zap.String("username", principal.Username))
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}
