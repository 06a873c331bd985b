package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janekbaraniewski/tokenledger/internal/telemetry"
	"github.com/janekbaraniewski/tokenledger/internal/version"
)

const defaultShutdownTimeout = 5 * time.Second

// Server exposes range queries over HTTP.
type Server struct {
	cfg    Config
	ranges RangeQuerier
	engine *gin.Engine
}

func NewServer(cfg Config, ranges RangeQuerier) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	s := &Server{cfg: cfg, ranges: ranges}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.Verbose {
		engine.Use(gin.LoggerWithWriter(log.Writer()))
	}
	engine.GET("/healthz", s.handleHealth)
	api := engine.Group("/api/usage")
	api.GET("/range", s.handleRangeQuery)
	api.POST("/range", s.handleRangeBody)
	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down and waits for pending
// cache writes when the querier supports flushing.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		return fmt.Errorf("daemon: listen address is empty")
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("daemon: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       30 * time.Second,
	}
	s.infof("listening", "addr=%s", listener.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("daemon: serve: %w", err)
	case <-ctx.Done():
	}

	s.infof("shutdown", "reason=context_done")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if f, ok := s.ranges.(interface{ Flush() }); ok {
		f.Flush()
	}
	return err
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		ServerVersion: strings.TrimSpace(version.Version),
		APIVersion:    APIVersion,
	})
}

func (s *Server) handleRangeQuery(c *gin.Context) {
	s.respond(c, telemetry.RangeRequest{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Timezone:  c.Query("timezone"),
	})
}

func (s *Server) handleRangeBody(c *gin.Context) {
	var req telemetry.RangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, telemetry.RangeResponse{
			Success: false,
			Error:   telemetry.CodeInvalidDateRange,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}
	s.respond(c, req)
}

func (s *Server) respond(c *gin.Context, req telemetry.RangeRequest) {
	started := time.Now()
	resp := s.ranges.Query(c.Request.Context(), req)
	status := statusFor(resp)
	s.infof("range", "start=%s end=%s status=%d error=%s took=%s",
		req.StartDate, req.EndDate, status, resp.Error, time.Since(started).Round(time.Millisecond))
	c.JSON(status, resp)
}

func statusFor(resp telemetry.RangeResponse) int {
	switch {
	case resp.Success:
		return http.StatusOK
	case resp.Error.IsValidation():
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) infof(event, format string, args ...any) {
	if !s.cfg.Verbose {
		return
	}
	log.Printf("[daemon] "+event+" "+format, args...)
}
