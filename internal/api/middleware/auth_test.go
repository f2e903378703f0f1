package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func runAuth(t *testing.T, header string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := Auth("secret")(next)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func unreachable(t *testing.T) echo.HandlerFunc {
	return func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
		"sub":       "ops-7",
		"role":      "branch",
		"branch_id": "JKT",
	})

	called := false
	rec := runAuth(t, "Bearer "+token, func(c echo.Context) error {
		called = true
		if c.Get(ContextActorID) != "ops-7" {
			t.Fatalf("actor not set")
		}
		if c.Get(ContextRole) != "branch" {
			t.Fatalf("role not set")
		}
		if c.Get(ContextBranchID) != "JKT" {
			t.Fatalf("branch_id not set")
		}
		return c.NoContent(http.StatusOK)
	})

	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_UsernameFallback(t *testing.T) {
	token := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
		"username": "alice",
		"role":     "finance",
	})

	rec := runAuth(t, "Bearer "+token, func(c echo.Context) error {
		if c.Get(ContextActorID) != "alice" {
			t.Fatalf("expected username as actor, got %v", c.Get(ContextActorID))
		}
		return c.NoContent(http.StatusOK)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	noSubject := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"role": "admin"})
	wrongKey := signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "x"})
	noneAlg := signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "x"})

	cases := map[string]string{
		"missing header":  "",
		"invalid format":  "Token abc",
		"garbage token":   "Bearer not-a-token",
		"no subject":      "Bearer " + noSubject,
		"wrong secret":    "Bearer " + wrongKey,
		"unsigned (none)": "Bearer " + noneAlg,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := runAuth(t, header, unreachable(t))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}
