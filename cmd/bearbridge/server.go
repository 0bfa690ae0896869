package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ============================================================================
// HTTP Control Surface
// ============================================================================
// One listener serves both sides of the bridge:
//
//	GET  /bridge   websocket for the host (see host_ws.go)
//	POST /command  raw bridge payload in the body, same path as a host message
//	POST /wake     ask the host to nudge the user
//	GET  /state    scene snapshot
//	GET  /capture  capture loop counters
//	GET  /healthz  liveness
// ============================================================================

// HTTPServer holds the handlers' dependencies.
type HTTPServer struct {
	logger  *slog.Logger
	bridge  *Bridge
	events  chan<- Event
	hosts   *HostServer
	capture *CaptureLoop // nil when capture is disabled
	echo    *echo.Echo
}

// NewHTTPServer builds the echo router. capture may be nil.
func NewHTTPServer(logger *slog.Logger, bridge *Bridge, events chan<- Event, hosts *HostServer, capture *CaptureLoop) *HTTPServer {
	s := &HTTPServer{
		logger:  logger,
		bridge:  bridge,
		events:  events,
		hosts:   hosts,
		capture: capture,
		echo:    echo.New(),
	}
	s.setupEcho()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler { return s.echo }

func (s *HTTPServer) setupEcho() {
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			s.logger.Debug("http request", attrs...)
			return nil
		},
	}))

	RegisterRoutes(s.echo, s)
}

// RegisterRoutes wires the control surface onto e.
func RegisterRoutes(e *echo.Echo, s *HTTPServer) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/state", s.handleState)
	e.GET("/capture", s.handleCapture)
	e.POST("/command", s.handleCommand)
	e.POST("/wake", s.handleWake)
	if s.hosts != nil {
		e.GET("/bridge", echo.WrapHandler(s.hosts))
	}
}

func (s *HTTPServer) handleHealth(c echo.Context) error {
	resp := map[string]any{"status": "ok"}
	if s.hosts != nil {
		resp["hosts"] = s.hosts.Hub().ClientCount()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) handleCommand(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxInboundFrame+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body").SetInternal(err)
	}
	if len(body) > maxInboundFrame {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload exceeds %d bytes", maxInboundFrame))
	}

	if err := s.bridge.Submit(c.Request().Context(), string(body)); err != nil {
		return submitError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *HTTPServer) handleWake(c echo.Context) error {
	ctx := c.Request().Context()
	select {
	case s.events <- WakeRequested{Origin: "http", At: time.Now()}:
		return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
	case <-ctx.Done():
		return echo.NewHTTPError(http.StatusServiceUnavailable, "wake not queued").SetInternal(ctx.Err())
	}
}

func (s *HTTPServer) handleState(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
	defer cancel()

	snap, err := requestSnapshot(ctx, s.events)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "state unavailable").SetInternal(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *HTTPServer) handleCapture(c echo.Context) error {
	if s.capture == nil {
		return c.JSON(http.StatusOK, map[string]any{"enabled": false})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"enabled": true,
		"stats":   s.capture.Stats(),
	})
}

func submitError(err error) error {
	switch {
	case errors.Is(err, ErrBridgeClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "bridge closed").SetInternal(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "command not queued").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
}

// runHTTPServer serves the router on addr and shuts it down gracefully when
// ctx is canceled.
func runHTTPServer(ctx context.Context, s *HTTPServer, addr string, logger *slog.Logger) error {
	logger.Info("http server listening", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		// ListenAndServe returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown; the hub
		// closes those when its own context ends.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
