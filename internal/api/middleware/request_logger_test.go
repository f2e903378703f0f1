package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

func TestRequestLogger_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	e := echo.New()
	e.Use(echomiddleware.RequestID())
	e.Use(RequestLogger(log))
	e.GET("/v1/tracking/:n", func(c echo.Context) error {
		if zerolog.Ctx(c.Request().Context()).GetLevel() == zerolog.Disabled {
			t.Fatalf("request logger not attached to context")
		}
		c.Set(ContextActorID, "ops-1")
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/tracking/JKT-20261016-000001", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line: %v (%s)", err, buf.String())
	}
	if entry["method"] != http.MethodGet || entry["status"] != float64(http.StatusNoContent) {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["actor"] != "ops-1" {
		t.Fatalf("actor missing: %v", entry)
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Fatalf("request id missing: %v", entry)
	}
}
