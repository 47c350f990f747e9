package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/apperror"
)

// Handler handles the /auth endpoints. Handlers are thin: they bind the
// request, call the service, and write JSON. No business logic lives here.
type Handler struct {
	service Service
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	tok, err := h.service.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

// Register handles POST /auth/register.
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	tok, err := h.service.Register(c.Request().Context(), req.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tok)
}

// Forget handles POST /auth/forget.
func (h *Handler) Forget(c echo.Context) error {
	var req ForgetRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ok, err := h.service.Forget(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok)
}

// Reset handles POST /auth/reset.
func (h *Handler) Reset(c echo.Context) error {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	tok, err := h.service.Reset(c.Request().Context(), req.Password, req.Token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

// Me handles POST /auth/me. RequireAuth has already attached the identity.
func (h *Handler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, MeResponse{
		User:         GetUser(c),
		TokenPayload: GetTokenPayload(c),
	})
}
