package auth

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/apperror"
	"github.com/mackenziemax/userhub/internal/plugins/users"
	"github.com/mackenziemax/userhub/internal/token"
)

// Context keys for the authenticated identity. Other plugins read them
// through GetUser and GetTokenPayload.
const (
	contextKeyUser    = "auth_user"
	contextKeyPayload = "auth_token_payload"
)

// GuardState is the outcome of Guard.Check.
type GuardState int

const (
	// StateNoToken means the request carried no Authorization header.
	StateNoToken GuardState = iota
	// StateRejected means a credential was present but did not verify or
	// did not resolve to a user.
	StateRejected
	// StateVerified means the token verified and the user was loaded.
	StateVerified
)

// Reasons reported in GuardResult.Reason.
const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
	ReasonUserNotFound = "user_not_found"
	ReasonLookupFailed = "lookup_failed"
)

// GuardResult is the detailed outcome of a guard check. Claims and User
// are set only when State is StateVerified.
type GuardResult struct {
	State  GuardState
	Reason string
	Claims *token.Claims
	User   *users.User
}

// Allowed reports whether the request may proceed.
func (r GuardResult) Allowed() bool {
	return r.State == StateVerified
}

// Guard authenticates requests by bearer token.
type Guard struct {
	service Service
	store   UserStore
}

// NewGuard creates a request guard.
func NewGuard(service Service, store UserStore) *Guard {
	return &Guard{service: service, store: store}
}

// Check extracts and verifies the bearer token, loads the user and, on
// success, attaches both to c. It never returns an error; every failure is
// described by the result.
func (g *Guard) Check(c echo.Context) GuardResult {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return GuardResult{State: StateNoToken, Reason: ReasonMissingToken}
	}

	raw, ok := bearerToken(header)
	if !ok {
		return GuardResult{State: StateRejected, Reason: ReasonMissingToken}
	}

	claims, err := g.service.CheckToken(raw)
	if err != nil {
		return GuardResult{State: StateRejected, Reason: ReasonInvalidToken}
	}

	user, err := g.store.FindByID(c.Request().Context(), claims.ID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return GuardResult{State: StateRejected, Reason: ReasonUserNotFound}
		}
		slog.Error("auth guard user lookup failed",
			slog.Int64("user_id", claims.ID),
			slog.Any("error", err),
		)
		return GuardResult{State: StateRejected, Reason: ReasonLookupFailed}
	}

	c.Set(contextKeyPayload, claims)
	c.Set(contextKeyUser, user)
	return GuardResult{State: StateVerified, Claims: claims, User: user}
}

// CanActivate reports whether the request is authenticated.
func (g *Guard) CanActivate(c echo.Context) bool {
	return g.Check(c).Allowed()
}

// RequireAuth returns middleware that lets a request through only when the
// guard verifies it. Every denial is the same 401 response; the next
// handler and any role check never run.
func RequireAuth(g *Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result := g.Check(c)
			if !result.Allowed() {
				slog.Debug("request not authenticated",
					slog.String("reason", result.Reason),
					slog.String("path", c.Path()),
				)
				return apperror.NewUnauthorized("authentication required")
			}
			return next(c)
		}
	}
}

// bearerToken parses "Bearer <token>". The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}

// --- Exported getters for other plugins ---

// GetUser returns the user attached by RequireAuth, or nil if the request
// is not authenticated.
func GetUser(c echo.Context) *users.User {
	user, ok := c.Get(contextKeyUser).(*users.User)
	if !ok {
		return nil
	}
	return user
}

// GetTokenPayload returns the verified claims attached by RequireAuth, or
// nil if the request is not authenticated.
func GetTokenPayload(c echo.Context) *token.Claims {
	claims, ok := c.Get(contextKeyPayload).(*token.Claims)
	if !ok {
		return nil
	}
	return claims
}
