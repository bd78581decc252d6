package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func statusRouter(logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logger))
	r.Use(RequestMetrics())
	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestLoggerKeepsSuccessesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	r := statusRouter(zerolog.New(&buf))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	out := buf.String()
	if !strings.Contains(out, "status_request") || !strings.Contains(out, "/health") {
		t.Fatalf("log line missing: %q", out)
	}
	if !strings.Contains(out, `"level":"debug"`) {
		t.Fatalf("2xx should log at debug: %q", out)
	}
}

func TestRequestLoggerWarnsOnFailures(t *testing.T) {
	var buf bytes.Buffer
	r := statusRouter(zerolog.New(&buf))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "404") {
		t.Fatalf("404 should log at warn: %q", out)
	}
}
