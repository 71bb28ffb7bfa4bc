// Package api wires together all HTTP routes for the Package Index backend.
//
// Route grouping philosophy:
//   - System routes (/health, /ready, /version) carry no middleware beyond the
//     global chain so probes stay cheap.
//   - Everything else lives under /api/v1. Project and publisher routes share
//     the same repositories; the publisher handlers additionally hold the
//     ActiveState lookup client so trusted publisher registrations can resolve
//     organization and actor names before anything is stored.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/package-index/package-index/internal/activestate"
	"github.com/package-index/package-index/internal/api/projects"
	"github.com/package-index/package-index/internal/api/publishers"
	"github.com/package-index/package-index/internal/config"
	"github.com/package-index/package-index/internal/middleware"
	"github.com/package-index/package-index/internal/monitoring"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB, reporter monitoring.Reporter) *gin.Engine {
	router := gin.New()

	// The lookup client is shared by both registration variants. The timeout
	// bounds each remote call; the reporter receives unexpected remote
	// failures.
	resolver := activestate.NewClient(nil, reporter, activestate.Options{
		GraphQLURL: cfg.ActiveState.GraphQLURL,
		Timeout:    cfg.ActiveState.Timeout,
	})

	// Initialize handlers
	projectHandlers := projects.NewProjectHandlers(cfg, db)
	publisherHandlers := publishers.NewPublisherHandlers(cfg, db, resolver)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(db))

	// API version
	router.GET("/version", versionHandler())

	apiV1 := router.Group("/api/v1")
	{
		// Project endpoints
		projectsGroup := apiV1.Group("/projects")
		{
			projectsGroup.GET("", projectHandlers.ListProjectsHandler())
			projectsGroup.POST("", projectHandlers.CreateProjectHandler())
			projectsGroup.GET("/:name", projectHandlers.GetProjectHandler())
		}

		// Trusted publisher endpoints. The pending routes must be registered
		// before the :id routes so "pending" is not captured as an ID.
		publishersGroup := apiV1.Group("/publishers/activestate")
		{
			publishersGroup.GET("/pending", publisherHandlers.ListPendingPublishersHandler())
			publishersGroup.POST("/pending", publisherHandlers.RegisterPendingPublisherHandler())
			publishersGroup.DELETE("/pending/:id", publisherHandlers.DeletePendingPublisherHandler())

			publishersGroup.GET("", publisherHandlers.ListPublishersHandler())
			publishersGroup.POST("", publisherHandlers.RegisterPublisherHandler())
			publishersGroup.DELETE("/:id", publisherHandlers.DeletePublisherHandler())
		}
	}

	return router
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. The ActiveState
// platform is deliberately not probed here: its availability gates only new
// publisher registrations, and a platform outage must not take the whole
// service out of rotation.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
