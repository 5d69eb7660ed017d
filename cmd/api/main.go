package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classnotify/internal/attendance"
	"classnotify/internal/auth"
	"classnotify/internal/config"
	"classnotify/internal/decision"
	"classnotify/internal/httpmiddleware"
	"classnotify/internal/notify"
	"classnotify/internal/queue"
	"classnotify/internal/risk"
	"classnotify/internal/roster"
	"classnotify/internal/schedule"
	"classnotify/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var tasks queue.Queue
	if cfg.QueueBackend == "memory" {
		tasks = queue.NewInMemory(64)
	} else {
		tasks = queue.NewRedisQueue(redisClient.Client, "classnotify:decision-tasks")
	}

	zone := cfg.Location()
	notifications := notify.NewRepository(db.Client)
	writer := notify.NewWriter(notifications)
	rosterRepo := roster.NewRepository(db.Client)
	records := attendance.NewRepository(db.Client)
	riskEval := risk.New(records, rosterRepo, rosterRepo, writer, cfg.AbsenceThreshold)
	workflow := decision.New(records, rosterRepo, rosterRepo, writer, tasks, zone, decision.Config{
		InitialDelay: cfg.DecisionInitialDelay,
		RetryDelay:   cfg.DecisionRetryDelay,
		MaxAttempts:  cfg.DecisionMaxAttempts,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Identity is established elsewhere; this mint endpoint only exists so the
	// boundary can be exercised outside production.
	if cfg.Env == "dev" {
		r.POST("/v1/dev/tokens", func(c *gin.Context) {
			var req struct {
				UserID string `json:"user_id" binding:"required"`
				Email  string `json:"email"`
				Role   string `json:"role"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if req.Role == "" {
				req.Role = "student"
			}
			token, expiresAt, err := auth.Issue(req.UserID, req.Role, req.Email, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"access_token": token, "expires_at": expiresAt.Unix()})
		})
	}

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Document-change webhook: every attendance-record write lands here with
	// before/after snapshots. Risk evaluation runs on each write; the first
	// write that creates a pending record also schedules the decision poll.
	authGroup.POST("/attendance/events", func(c *gin.Context) {
		var req struct {
			Before *attendance.Record `json:"before"`
			After  *attendance.Record `json:"after"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.After == nil {
			c.JSON(http.StatusAccepted, gin.H{"processed": false})
			return
		}

		ctx := c.Request.Context()
		if err := riskEval.Run(ctx, risk.Event{Before: req.Before, After: req.After}); err != nil {
			log.Printf("attendance risk evaluation failed for record %s: %v", req.After.ID, err)
		}

		if req.Before == nil && req.After.ID != "" && isPendingRecord(req.After) {
			if err := workflow.Schedule(ctx, req.After.ID); err != nil {
				log.Printf("decision scheduling failed for record %s: %v", req.After.ID, err)
			}
		}

		c.JSON(http.StatusAccepted, gin.H{"processed": true})
	})

	authGroup.GET("/notifications", func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		limit := 50
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		targets := claimTargets(claims)
		list, err := notifications.ListForTargets(c.Request.Context(), targets, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list})
	})

	authGroup.POST("/notifications/:id/ack", func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		id := c.Param("id")
		doc, err := notifications.Get(c.Request.Context(), id)
		if err != nil {
			respondNotificationErr(c, err)
			return
		}
		if !doc.OwnedBy(claims.Subject, claims.Email) {
			c.JSON(http.StatusForbidden, gin.H{"error": "you cannot modify this notification"})
			return
		}
		if err := notifications.MarkRead(c.Request.Context(), id, time.Now().UTC()); err != nil {
			respondNotificationErr(c, err)
			return
		}
		log.Printf("notification %s acknowledged by %s", id, claims.Subject)
		c.JSON(http.StatusOK, gin.H{"acknowledged": true})
	})

	authGroup.POST("/notifications/:id/dismiss", func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		var req struct {
			Surface  string `json:"surface" binding:"required"`
			MarkRead bool   `json:"mark_read"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		surface := notify.Surface(req.Surface)
		if !notify.ValidSurface(surface) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "surface must be banner, toast, or inbox"})
			return
		}
		id := c.Param("id")
		doc, err := notifications.Get(c.Request.Context(), id)
		if err != nil {
			respondNotificationErr(c, err)
			return
		}
		if !doc.OwnedBy(claims.Subject, claims.Email) {
			c.JSON(http.StatusForbidden, gin.H{"error": "you cannot modify this notification"})
			return
		}
		if err := notifications.DismissSurface(c.Request.Context(), id, surface, req.MarkRead, time.Now().UTC()); err != nil {
			respondNotificationErr(c, err)
			return
		}
		log.Printf("notification %s surface %s dismissed by %s", id, surface, claims.Subject)
		c.JSON(http.StatusOK, gin.H{"dismissed": true})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func isPendingRecord(rec *attendance.Record) bool {
	return rec.IsPending || schedule.NormalizeStatus(rec.Status) == "pending"
}

func claimTargets(claims auth.Claims) []string {
	targets := []string{}
	if claims.Subject != "" {
		targets = append(targets, claims.Subject)
	}
	if claims.Email != "" {
		targets = append(targets, strings.ToLower(claims.Email))
	}
	return targets
}

func respondNotificationErr(c *gin.Context, err error) {
	if errors.Is(err, notify.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification does not exist"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
