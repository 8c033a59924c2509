package v1

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/virtualclone/ai/conversation"
	"github.com/hrygo/virtualclone/ai/metrics"
	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/plugin/chat_apps/channels"
)

const (
	// SessionCookieName holds the conversation session id of a browser client.
	SessionCookieName = "virtualclone_session"

	serviceName = "VirtualClone API"
)

type APIV1Service struct {
	Profile      *profile.Profile
	Conversation *conversation.Service

	// Metrics is optional.
	Metrics *metrics.PrometheusExporter

	chatSemaphore     *semaphore.Weighted
	chatChannelRouter *channels.ChannelRouter

	// background tracks chat app messages answered after the webhook returned.
	background sync.WaitGroup
}

func NewAPIV1Service(profile *profile.Profile, conv *conversation.Service, exporter *metrics.PrometheusExporter, router *channels.ChannelRouter) *APIV1Service {
	concurrency := profile.ChatConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if router == nil {
		router = channels.NewChannelRouter()
	}
	return &APIV1Service{
		Profile:           profile,
		Conversation:      conv,
		Metrics:           exporter,
		chatSemaphore:     semaphore.NewWeighted(int64(concurrency)),
		chatChannelRouter: router,
	}
}

// RegisterRoutes registers the JSON API under /api/v1 and the chat app webhooks.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.Use(middleware.CORSWithConfig(corsConfig(s.Profile.AllowedOrigins)))

	g.GET("/health", s.health)
	g.POST("/chat", s.chat)
	g.POST("/reset-session", s.resetSession)
	g.GET("/conversation-history", s.conversationHistory)
	g.GET("/languages", s.languages)

	e.POST("/chat-apps/:platform/webhook", s.chatAppWebhook)
}

// Wait blocks until background chat app replies finish or ctx is done.
func (s *APIV1Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func corsConfig(origins []string) middleware.CORSConfig {
	wildcard := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard {
		origins = []string{"*"}
	}
	return middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: !wildcard,
	}
}

// sessionID returns the session id from the request cookie. When there is
// none and create is set, a new id is issued in a cookie.
func (s *APIV1Service) sessionID(c echo.Context, create bool) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if !create {
		return ""
	}

	id := shortuuid.New()
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Profile.SessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if s.Profile.SessionIdleTimeout > 0 {
		cookie.MaxAge = int(s.Profile.SessionIdleTimeout / time.Second)
	}
	c.SetCookie(cookie)
	slog.Debug("api: new session", "session_id", id)
	return id
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]any{
		"success": false,
		"error":   msg,
	})
}
