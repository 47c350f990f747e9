package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/apperror"
)

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	var seen string
	e.GET("/", func(c echo.Context) error {
		seen = GetRequestID(c)
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 36 {
		t.Fatalf("expected generated UUID, got %q", seen)
	}
	if rec.Header().Get(echo.HeaderXRequestID) != seen {
		t.Errorf("response header %q does not match %q", rec.Header().Get(echo.HeaderXRequestID), seen)
	}
}

func TestRequestID_ReusesValidIncoming(t *testing.T) {
	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{"proxy id", "abc-123", true},
		{"control chars", "abc\n123", false},
		{"spaces", "abc 123", false},
		{"too long", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(echo.HeaderXRequestID, tt.header)
			c := e.NewContext(req, httptest.NewRecorder())

			_ = RequestID()(func(c echo.Context) error { return nil })(c)
			if got := GetRequestID(c); (got == tt.header) != tt.reuse {
				t.Errorf("reuse=%v but got %q", tt.reuse, got)
			}
		})
	}
}

func TestRecovery_ReturnsJSON500(t *testing.T) {
	e := echo.New()
	e.Use(Recovery())
	e.GET("/boom", func(c echo.Context) error { panic("kaboom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "kaboom") {
		t.Error("panic value leaked to client")
	}
}

func TestRequestLogger_HandlesError(t *testing.T) {
	e := echo.New()
	handled := 0
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		handled++
		_ = c.NoContent(apperror.SafeCode(err))
	}
	e.Use(RequestLogger())
	e.GET("/", func(c echo.Context) error { return apperror.NewNotFound("nope") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if handled != 1 {
		t.Errorf("expected error handled once, got %d", handled)
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, h := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options", "Cache-Control"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestCORS(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com/"}}))
	e.Any("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	t.Run("preflight allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
		req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "https://app.example.com" {
			t.Error("missing allow-origin")
		}
		if !strings.Contains(rec.Header().Get(echo.HeaderAccessControlAllowHeaders), echo.HeaderAuthorization) {
			t.Error("Authorization must be an allowed header")
		}
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
			t.Error("unknown origin must not be allowed")
		}
	})
}

func TestCORS_WildcardDropsCredentials(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderOrigin, "https://any.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Header().Get(echo.HeaderAccessControlAllowCredentials) != "" {
		t.Error("credentials must not be allowed with a wildcard origin")
	}
}

func TestIPExtractor(t *testing.T) {
	extract := buildIPExtractor([]string{"10.0.0.0/8", "not-a-cidr"})

	tests := []struct {
		name   string
		remote string
		xff    string
		realIP string
		want   string
	}{
		{"untrusted peer ignores headers", "203.0.113.9:1234", "1.2.3.4", "5.6.7.8", "203.0.113.9"},
		{"trusted peer uses X-Real-IP", "10.0.0.2:1234", "", "198.51.100.7", "198.51.100.7"},
		{"trusted peer walks XFF", "10.0.0.2:1234", "198.51.100.7, 10.0.0.5", "", "198.51.100.7"},
		{"spoofed leftmost XFF ignored", "10.0.0.2:1234", "1.1.1.1, 198.51.100.7", "", "198.51.100.7"},
		{"garbage XFF", "10.0.0.2:1234", "nonsense", "", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set(echo.HeaderXForwardedFor, tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set(echo.HeaderXRealIP, tt.realIP)
			}
			if got := extract(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPositiveIntParam(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
		want    int64
	}{
		{"1", false, 1},
		{"42", false, 42},
		{"0", true, 0},
		{"-1", true, 0},
		{"abc", true, 0},
		{"1.5", true, 0},
		{"", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(tt.value)

			var got int64
			err := PositiveIntParam("id")(func(c echo.Context) error {
				got = IntParam(c, "id")
				return nil
			})(c)

			if tt.wantErr {
				var appErr *apperror.AppError
				if !errors.As(err, &appErr) || appErr.Code != http.StatusBadRequest {
					t.Fatalf("expected 400 AppError, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %d (%v), want %d", got, err, tt.want)
			}
		})
	}
}
