package reporting

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/storage/postgres"
)

// Server hosts the reporting API.
type Server struct {
	Engine *gin.Engine
	Addr   string
	tiers  *postgres.Tiers
}

// New builds the HTTP server and mounts the reporting routes.
func New(addr string, tiers *postgres.Tiers, handler *Handler, mode string) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	s := &Server{
		Engine: r,
		Addr:   addr,
		tiers:  tiers,
	}

	r.GET("/health", s.healthHandler)
	handler.Register(r)

	return s
}

// healthHandler verifies both tier connections. A degraded archive tier is
// still unhealthy: straddling queries and archival both need it.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "healthy"}
	healthy := true
	for _, t := range []tier.Tier{tier.Hot, tier.Archive} {
		db := s.tiers.ForTier(t)
		if db == nil {
			continue
		}
		if err := db.PingContext(ctx); err != nil {
			slog.Error("[Reporting] Health check failed: tier unreachable", "tier", t, "error", err)
			status[string(t)] = "unreachable"
			healthy = false
			continue
		}
		status[string(t)] = "connected"
	}

	if !healthy {
		status["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	slog.Info("[Reporting] Starting HTTP server", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("[Reporting] Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("[Reporting] HTTP server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
