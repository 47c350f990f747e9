package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/plugins/users"
)

func TestAuthorize(t *testing.T) {
	admin := &users.User{ID: 1, Role: users.RoleAdmin}
	user := &users.User{ID: 2, Role: users.RoleUser}

	tests := []struct {
		name     string
		user     *users.User
		required []users.Role
		want     bool
	}{
		{"no requirement allows user", user, nil, true},
		{"no requirement allows admin", admin, []users.Role{}, true},
		{"admin route admin", admin, []users.Role{users.RoleAdmin}, true},
		{"admin route user", user, []users.Role{users.RoleAdmin}, false},
		{"either role", user, []users.Role{users.RoleAdmin, users.RoleUser}, true},
		{"nil user", nil, nil, false},
		{"nil user with roles", nil, []users.Role{users.RoleUser}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.user, tt.required); got != tt.want {
				t.Errorf("Authorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	tests := []struct {
		name     string
		user     *users.User
		roles    []users.Role
		wantCode int
	}{
		{"admin allowed", &users.User{ID: 1, Role: users.RoleAdmin}, []users.Role{users.RoleAdmin}, 0},
		{"user forbidden", &users.User{ID: 2, Role: users.RoleUser}, []users.Role{users.RoleAdmin}, http.StatusForbidden},
		{"no user forbidden", nil, []users.Role{users.RoleAdmin}, http.StatusForbidden},
		{"open route", &users.User{ID: 2, Role: users.RoleUser}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/users", nil), httptest.NewRecorder())
			if tt.user != nil {
				c.Set(contextKeyUser, tt.user)
			}

			called := false
			err := RequireRoles(tt.roles...)(func(c echo.Context) error {
				called = true
				return nil
			})(c)

			if tt.wantCode == 0 {
				if err != nil || !called {
					t.Fatalf("expected handler to run, err=%v called=%v", err, called)
				}
				return
			}
			assertAppError(t, err, tt.wantCode)
			if called {
				t.Error("handler must not run when the role check fails")
			}
		})
	}
}
