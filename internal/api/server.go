package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/estimate"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/realtime"
	"github.com/yazinsai/cal-ai/internal/service"
	"github.com/yazinsai/cal-ai/internal/store"
)

const shutdownTimeout = 5 * time.Second

type Deps struct {
	Store      *store.Store
	Clock      clock.Clock
	Scheduler  *service.ResetScheduler
	Estimator  estimate.Estimator
	Hub        *realtime.Hub
	Logger     *slog.Logger
	Catalog    []model.CatalogItem
	UndoWindow time.Duration
}

// Server exposes the engine over HTTP. Mutating handlers hold mu so the
// store sees a single writer.
type Server struct {
	st         *store.Store
	clk        clock.Clock
	sched      *service.ResetScheduler
	est        estimate.Estimator
	hub        *realtime.Hub
	logger     *slog.Logger
	catalog    []model.CatalogItem
	undoWindow time.Duration

	mu     sync.Mutex
	engine *gin.Engine
	unsub  func()
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Hub == nil {
		d.Hub = realtime.NewHub(d.Logger)
	}
	if d.Catalog == nil {
		d.Catalog = service.DefaultCatalog()
	}
	if d.UndoWindow == 0 {
		d.UndoWindow = service.DefaultUndoWindow
	}
	s := &Server{
		st:         d.Store,
		clk:        d.Clock,
		sched:      d.Scheduler,
		est:        d.Estimator,
		hub:        d.Hub,
		logger:     d.Logger.With(slog.String("component", "api")),
		catalog:    d.Catalog,
		undoWindow: d.UndoWindow,
	}
	if s.sched != nil {
		s.unsub = s.sched.Subscribe(func(ev service.Rollover) {
			s.hub.Broadcast(realtime.Event{Type: "rollover", Data: ev})
		})
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests and disconnects websocket clients.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.hub.Close()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close detaches the server from the scheduler and drops websocket clients.
func (s *Server) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.hub.Close()
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestIDMiddleware(), s.loggerMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/today", s.getToday)
		v1.GET("/days/:date", s.getDay)
		v1.GET("/history", s.getHistory)
		v1.GET("/stats", s.getStats)
		v1.GET("/suggestions", s.getSuggestions)
		v1.POST("/visibility", s.postVisibility)
		v1.GET("/ws", s.serveWS)

		entries := v1.Group("/entries")
		entries.GET("", s.listEntries)
		entries.POST("", s.createEntry)
		entries.POST("/undo", s.undoRemove)
		entries.GET("/:id", s.getEntry)
		entries.PATCH("/:id", s.updateEntry)
		entries.POST("/:id/adjust", s.adjustEntry)
		entries.DELETE("/:id", s.deleteEntry)

		ql := v1.Group("/quicklog")
		ql.GET("", s.listQuickLog)
		ql.POST("/log", s.logQuickItem)
		ql.PUT("/:item/star", s.starQuickItem(true))
		ql.DELETE("/:item/star", s.starQuickItem(false))
		ql.DELETE("/:item", s.removeQuickItem)

		v1.GET("/target", s.getTarget)
		v1.PUT("/target", s.putTarget)
		v1.POST("/target/estimate", s.estimateTarget)
		v1.GET("/profile", s.getProfile)
		v1.PUT("/profile", s.putProfile)
		v1.GET("/settings", s.getSettings)
		v1.PUT("/settings/:key", s.putSetting)

		v1.POST("/estimate/text", s.estimateText)
		v1.POST("/estimate/image", s.estimateImage)

		v1.GET("/export", s.export)
	}
	return r
}
