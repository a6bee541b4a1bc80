package server

import (
	"context"
	"net/http"
	"time"

	"hiive-relay/config"
	"hiive-relay/internal/event"
	"hiive-relay/internal/listeners"
	"hiive-relay/internal/manager"
	"hiive-relay/internal/queue"
	"hiive-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ManagerFactory builds the request-scoped event manager. One manager per
// request mirrors the host's request lifecycle: events buffer in memory and
// flush exactly once when the request finishes.
type ManagerFactory func() *manager.Manager

// Pinger is the readiness dependency check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *listeners.Registry
	newMgr   ManagerFactory
	queue    queue.DurableQueue
	env      event.EnvironmentContext
	db       Pinger
}

func New(cfg *config.Config, log *logger.Logger, registry *listeners.Registry, newMgr ManagerFactory, q queue.DurableQueue, env event.EnvironmentContext, db Pinger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		newMgr:   newMgr,
		queue:    q,
		env:      env,
		db:       db,
	}
}

// Router assembles the gin engine: public health endpoints plus the
// authenticated ingest surface with per-request flush.
func (s *Server) Router() *gin.Engine {
	if s.cfg.AppMode == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(s.log))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the queue's database is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := s.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	authGroup := r.Group("/")
	authGroup.Use(AuthMiddleware(s.cfg.IngestJWTKey))
	authGroup.Use(s.flushMiddleware())
	s.registerRoutes(authGroup)

	return r
}

// flushMiddleware gives each request its own manager and flushes it once
// the handler chain finishes, exactly like the host's end-of-request hook.
func (s *Server) flushMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		mgr := s.newMgr()
		c.Set(managerCtxKey, mgr)
		c.Next()
		mgr.Shutdown(c.Request.Context())
	}
}

func requestManager(c *gin.Context) *manager.Manager {
	v, _ := c.Get(managerCtxKey)
	mgr, _ := v.(*manager.Manager)
	return mgr
}
