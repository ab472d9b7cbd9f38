// Package server exposes the shadow engine over HTTP and pushes completed
// results to WebSocket subscribers.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shademap/shademap/internal/cache"
	"github.com/shademap/shademap/internal/engine"
	"github.com/shademap/shademap/internal/footprint"
	"github.com/shademap/shademap/internal/log"
	"github.com/shademap/shademap/internal/scheduler"
	"github.com/shademap/shademap/pkg/config"
)

// Controller owns the HTTP server and its handler state.
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	cfg       config.ServerConfig
	scheduler *scheduler.Scheduler
	engine    *engine.Orchestrator
	tiles     *cache.Cache[[]footprint.Footprint]
	Server    http.Server
	hub       *Hub
	logger    *zap.SugaredLogger
	handlers  *Handlers
}

// NewController creates a REST/WebSocket controller over the given scheduler
// and orchestrator. The hub is created by the caller so the orchestrator's
// result callback can be wired to it before the controller exists. The tile
// cache is only read, for the stats endpoint.
func NewController(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg config.ServerConfig,
	sched *scheduler.Scheduler,
	orch *engine.Orchestrator,
	tiles *cache.Cache[[]footprint.Footprint],
	hub *Hub,
	logger *zap.SugaredLogger,
) *Controller {
	ctrl := &Controller{
		ctx:       ctx,
		wg:        wg,
		cfg:       cfg,
		scheduler: sched,
		engine:    orch,
		tiles:     tiles,
		hub:       hub,
		logger:    logger,
	}
	ctrl.handlers = NewHandlers(ctrl)
	return ctrl
}

// StartServer begins listening and installs a shutdown hook on the
// controller context.
func (c *Controller) StartServer() error {
	router := c.setupRouter()

	c.Server = http.Server{
		Addr:         c.cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		log.Infof("HTTP server listening on %s", c.cfg.ListenAddr)
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
		c.hub.Close()
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints.
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/viewport", c.handlers.PostViewport).Methods(http.MethodPost)
	api.HandleFunc("/shadows", c.handlers.GetShadows).Methods(http.MethodGet)
	api.HandleFunc("/sun", c.handlers.GetSun).Methods(http.MethodGet)
	api.HandleFunc("/state", c.handlers.GetState).Methods(http.MethodGet)
	api.HandleFunc("/cache/stats", c.handlers.GetCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/cache", c.handlers.DeleteCache).Methods(http.MethodDelete)

	router.HandleFunc("/ws", c.hub.HandleWebSocket)
	router.HandleFunc("/health", c.handlers.GetHealth).Methods(http.MethodGet)

	return router
}
