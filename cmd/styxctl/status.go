package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/QuarksBlueFoot/styxctl/internal/harness"
	"github.com/QuarksBlueFoot/styxctl/internal/observability"
)

var startedAt = time.Now()

// serveStatus exposes run progress and metrics while a conformance run
// is in flight. It blocks, so callers start it on its own goroutine.
func serveStatus(addr string, orch *harness.Orchestrator, log zerolog.Logger) {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log))
	r.Use(observability.RequestMetrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		total, passed, expected, unexpected := orch.Counts()
		c.JSON(http.StatusOK, gin.H{
			"status":              "ok",
			"service":             "styxctl",
			"uptime":              time.Since(startedAt).String(),
			"run_state":           orch.State().String(),
			"total":               total,
			"passed":              passed,
			"expected_failures":   expected,
			"unexpected_failures": unexpected,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := r.Run(addr); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("status server stopped")
	}
}
