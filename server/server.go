package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/virtualclone/ai/conversation"
	"github.com/hrygo/virtualclone/ai/metrics"
	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/plugin/chat_apps/channels"
	apiv1 "github.com/hrygo/virtualclone/server/router/api/v1"
	"github.com/hrygo/virtualclone/server/router/frontend"
	"github.com/hrygo/virtualclone/store"
)

// Dependencies are the services the HTTP server exposes.
type Dependencies struct {
	Conversation *conversation.Service
	// Metrics is optional; /metrics is only served when set.
	Metrics *metrics.PrometheusExporter
	// Channels holds the registered chat apps; nil means none.
	Channels *channels.ChannelRouter
}

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	apiV1      *apiv1.APIV1Service
	channels   *channels.ChannelRouter
	listener   net.Listener
}

func NewServer(_ context.Context, profile *profile.Profile, store *store.Store, deps Dependencies) (*Server, error) {
	if deps.Conversation == nil {
		return nil, errors.New("conversation service is required")
	}
	if deps.Channels == nil {
		deps.Channels = channels.NewChannelRouter()
	}

	s := &Server{
		Profile:  profile,
		Store:    store,
		channels: deps.Channels,
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = jsonErrorHandler(echoServer)
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	echoServer.Use(requestLogger())
	s.echoServer = echoServer

	if deps.Metrics != nil {
		echoServer.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	s.apiV1 = apiv1.NewAPIV1Service(profile, deps.Conversation, deps.Metrics, deps.Channels)
	s.apiV1.RegisterRoutes(echoServer)

	frontend.NewFrontendService().Serve(echoServer)

	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the configured unix socket or address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	)
	if len(s.Profile.UNIXSock) != 0 {
		network = "unix"
		address = s.Profile.UNIXSock
	}
	listener, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.listener = listener
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := s.apiV1.Wait(ctx); err != nil {
		slog.Warn("chat app replies still running at shutdown", "error", err)
	}
	if err := s.channels.Close(); err != nil {
		slog.Error("failed to close chat channels", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("server stopped properly")
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"request_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				slog.Warn("http request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Debug("http request", attrs...)
			return nil
		},
	})
}

// jsonErrorHandler answers API errors with the {"success": false} envelope
// and leaves other paths to echo's default handler.
func jsonErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		if !strings.HasPrefix(c.Request().URL.Path, "/api/") {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		code := http.StatusInternalServerError
		msg := "Internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch code {
			case http.StatusNotFound:
				msg = "Endpoint not found"
			case http.StatusMethodNotAllowed:
				msg = "Method not allowed"
			}
		}
		if code >= http.StatusInternalServerError {
			slog.Error("internal server error", "path", c.Request().URL.Path, "error", err)
		}
		if err := c.JSON(code, map[string]any{"success": false, "error": msg}); err != nil {
			slog.Error("failed to write error response", "error", err)
		}
	}
}
