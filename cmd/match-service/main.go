package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/matchapi"
	"github.com/mmdatafocus/match_backend/middlewares"
	"github.com/mmdatafocus/match_backend/models"
	"github.com/mmdatafocus/match_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("MATCH_SERVICE_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Fail before listening if tolerances are misconfigured.
	policies, err := config.LoadMatchPolicySet()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "match_policy"}).Fatal(err)
	}
	sweepCfg := config.NewDefaultMatchSweepConfig()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())

	// Every route but /healthz answers 503 until the database is up.
	var api atomic.Pointer[matchapi.API]
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || api.Load() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.RequestLogger(logger))
	r.Use(gin.Recovery())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	matchapi.Register(r, api.Load)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry(sigCtx)

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !config.SkipMigrations() {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	sweeper := newSweeper(db, policies, sweepCfg, logger)
	handlers := matchapi.New(models.NewMatchStore(db), sweeper, logger)
	handlers.BaseContext = sigCtx
	api.Store(handlers)

	var scheduler *workflow.MatchScheduler
	if config.MatchSchedulerEnabled() {
		scheduler, err = workflow.NewMatchScheduler(sweeper, sweepCfg, logger)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "scheduler"}).Fatal(err)
		}
		scheduler.Start()
	}

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		// Running sweeps must close their runs before the database closes.
		if scheduler != nil {
			scheduler.Stop(shutdownCtx)
		}
		handlers.Drain(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func newSweeper(db *gorm.DB, policies config.MatchPolicySet, cfg config.MatchSweepConfig, logger *logrus.Logger) *workflow.Sweeper {
	store := models.NewMatchStore(db)
	store.RecordHistory = config.MatchResultHistoryEnabled()

	locker := workflow.NewRedisPurchaseOrderLocker(config.GetRedisLock(), logger)
	publisher := workflow.NewPubSubSummaryPublisher(config.MatchSummaryTopic())
	matcher := workflow.NewMatcher(store, policies, locker, publisher, logger)
	return workflow.NewSweeper(matcher, store, cfg, logger)
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
