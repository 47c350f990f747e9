package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/plugins/users"
	"github.com/mackenziemax/userhub/internal/token"
)

func newGuardContext(authHeader string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/me", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newTestGuard(t *testing.T, store *mockUserStore) (*Guard, *authService) {
	t.Helper()
	svc := newTestAuthService(t, store, nil)
	return NewGuard(svc, store), svc
}

func TestGuardCheck_MissingHeader(t *testing.T) {
	g, _ := newTestGuard(t, &mockUserStore{})
	c, _ := newGuardContext("")

	result := g.Check(c)
	if result.State != StateNoToken || result.Reason != ReasonMissingToken {
		t.Errorf("unexpected result: %+v", result)
	}
	if GetUser(c) != nil || GetTokenPayload(c) != nil {
		t.Error("nothing should be attached to the request")
	}
}

func TestGuardCheck_Rejected(t *testing.T) {
	u := &users.User{ID: 5, Name: "Five", Email: "five@x.com"}
	g, svc := newTestGuard(t, storeWithUser(u))

	valid, err := svc.CreateToken(u)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	ghost, err := svc.CreateToken(&users.User{ID: 404})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	expiredCodec := newTestCodec(t, token.WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) }))
	expired, err := expiredCodec.Sign(token.Claims{ID: 5}, token.SignOptions{
		ExpiresIn: 24 * time.Hour, Subject: "5", Scope: token.AccessScope,
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tests := []struct {
		name   string
		header string
		reason string
	}{
		{"basic scheme", "Basic " + valid.AccessToken, ReasonMissingToken},
		{"scheme only", "Bearer", ReasonMissingToken},
		{"scheme with blank token", "Bearer   ", ReasonMissingToken},
		{"raw token without scheme", valid.AccessToken, ReasonMissingToken},
		{"garbage", "Bearer not.a.jwt", ReasonInvalidToken},
		{"expired", "Bearer " + expired, ReasonInvalidToken},
		{"unknown user", "Bearer " + ghost.AccessToken, ReasonUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newGuardContext(tt.header)
			result := g.Check(c)
			if result.State != StateRejected {
				t.Fatalf("expected StateRejected, got %v", result.State)
			}
			if result.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, result.Reason)
			}
			if result.Allowed() || g.CanActivate(c) {
				t.Error("request must not be allowed")
			}
			if GetUser(c) != nil {
				t.Error("no user should be attached on rejection")
			}
		})
	}
}

func TestGuardCheck_LookupFailure(t *testing.T) {
	store := &mockUserStore{findByIDFn: func(ctx context.Context, id int64) (*users.User, error) {
		return nil, errors.New("connection reset")
	}}
	g, svc := newTestGuard(t, store)
	tok, _ := svc.CreateToken(&users.User{ID: 5})

	c, _ := newGuardContext("Bearer " + tok.AccessToken)
	result := g.Check(c)
	if result.State != StateRejected || result.Reason != ReasonLookupFailed {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGuardCheck_Verified(t *testing.T) {
	u := &users.User{ID: 5, Name: "Five", Email: "five@x.com", Role: users.RoleAdmin}
	g, svc := newTestGuard(t, storeWithUser(u))
	tok, _ := svc.CreateToken(u)

	// Scheme matching is case-insensitive.
	c, _ := newGuardContext("bearer " + tok.AccessToken)
	result := g.Check(c)
	if !result.Allowed() || result.User != u {
		t.Fatalf("expected verified result for user 5, got %+v", result)
	}
	if GetUser(c) != u {
		t.Error("user not attached to request")
	}
	if p := GetTokenPayload(c); p == nil || p.Subject != "5" || p.Email != "five@x.com" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestRequireAuth_BlocksBeforeHandler(t *testing.T) {
	g, _ := newTestGuard(t, &mockUserStore{})

	for _, header := range []string{"", "Bearer expired.or.bad"} {
		c, _ := newGuardContext(header)
		called := false
		next := func(c echo.Context) error {
			called = true
			return nil
		}

		err := RequireAuth(g)(next)(c)
		appErr := assertAppError(t, err, http.StatusUnauthorized)
		if appErr.Message != "authentication required" {
			t.Errorf("unexpected message %q", appErr.Message)
		}
		if called {
			t.Errorf("handler ran for header %q", header)
		}
	}
}

func TestRequireAuth_RoleCheckNeverRunsOnExpiredToken(t *testing.T) {
	u := &users.User{ID: 5, Role: users.RoleAdmin}
	g, _ := newTestGuard(t, storeWithUser(u))

	expiredCodec := newTestCodec(t, token.WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) }))
	expired, _ := expiredCodec.Sign(token.Claims{ID: 5}, token.SignOptions{
		ExpiresIn: time.Hour, Subject: "5", Scope: token.AccessScope,
	})

	roleChecked := false
	roleCheck := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roleChecked = true
			return next(c)
		}
	}
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	c, _ := newGuardContext("Bearer " + expired)
	err := RequireAuth(g)(roleCheck(handler))(c)
	assertAppError(t, err, http.StatusUnauthorized)
	if roleChecked {
		t.Error("role check must not run when authentication fails")
	}
}

func TestRequireAuth_PassesVerifiedRequest(t *testing.T) {
	u := &users.User{ID: 8, Role: users.RoleUser}
	g, svc := newTestGuard(t, storeWithUser(u))
	tok, _ := svc.CreateToken(u)

	c, rec := newGuardContext("Bearer " + tok.AccessToken)
	err := RequireAuth(g)(func(c echo.Context) error {
		if GetUser(c) == nil {
			t.Error("handler should see the authenticated user")
		}
		return c.NoContent(http.StatusNoContent)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
