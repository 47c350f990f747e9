package users

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/apperror"
	"github.com/mackenziemax/userhub/internal/middleware"
)

// Handler serves the /users endpoints. Handlers are thin: they bind the
// request, call the service, and write JSON. No business logic lives here.
type Handler struct {
	service Service
}

// NewHandler creates a users handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /users.
func (h *Handler) Create(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.service.Create(c.Request().Context(), req.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// List handles GET /users.
func (h *Handler) List(c echo.Context) error {
	users, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Show handles GET /users/:id.
func (h *Handler) Show(c echo.Context) error {
	user, err := h.service.FindByID(c.Request().Context(), middleware.IntParam(c, "id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Replace handles PUT /users/:id.
func (h *Handler) Replace(c echo.Context) error {
	var req UpdatePutRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.service.Update(c.Request().Context(), middleware.IntParam(c, "id"), req.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Patch handles PATCH /users/:id.
func (h *Handler) Patch(c echo.Context) error {
	var req UpdatePatchRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.service.Update(c.Request().Context(), middleware.IntParam(c, "id"), req.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /users/:id.
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), middleware.IntParam(c, "id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": true})
}
