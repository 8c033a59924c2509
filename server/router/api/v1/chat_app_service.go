package v1

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/virtualclone/ai/conversation"
	"github.com/hrygo/virtualclone/ai/translate"
	"github.com/hrygo/virtualclone/plugin/chat_apps"
	"github.com/hrygo/virtualclone/plugin/chat_apps/channels"
)

const (
	maxWebhookBodyBytes = 1 << 20
	chatAppReplyTimeout = 2 * time.Minute
)

const (
	greetingText = "Hi! Ask me anything. Send /reset to start a new conversation."
	resetText    = "Conversation cleared. Let's start over."
)

// chatAppWebhook validates and acknowledges a webhook, then answers the
// message in the background so the platform does not retry.
func (s *APIV1Service) chatAppWebhook(c echo.Context) error {
	platform := chat_apps.Platform(c.Param("platform"))
	if !platform.IsValid() || platform == chat_apps.PlatformWeb {
		return errorJSON(c, http.StatusNotFound, "Endpoint not found")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to read body")
	}
	headers := make(map[string]string, len(c.Request().Header))
	for k, v := range c.Request().Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	ctx := c.Request().Context()
	msg, err := s.chatChannelRouter.HandleWebhook(ctx, platform, headers, body)
	switch {
	case errors.Is(err, channels.ErrNoChannelForPlatform):
		slog.Warn("no channel registered for platform", "platform", platform)
		return errorJSON(c, http.StatusNotFound, "platform not configured")
	case errors.Is(err, channels.ErrInvalidSignature):
		s.recordWebhook(platform, "rejected")
		slog.Warn("webhook validation failed", "platform", platform, "remote_addr", c.RealIP())
		return errorJSON(c, http.StatusUnauthorized, "webhook validation failed")
	case errors.Is(err, channels.ErrIgnoredUpdate):
		s.recordWebhook(platform, "ignored")
		return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "ignored"})
	case err != nil:
		s.recordWebhook(platform, "parse_error")
		slog.Warn("failed to parse webhook message", "platform", platform, "error", err)
		return errorJSON(c, http.StatusBadRequest, "failed to parse message")
	}

	s.recordWebhook(platform, "received")
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), chatAppReplyTimeout)
		defer cancel()
		s.processChatAppMessage(replyCtx, msg)
	}()

	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "message received"})
}

// processChatAppMessage answers one chat app message and sends the reply.
func (s *APIV1Service) processChatAppMessage(ctx context.Context, msg *chat_apps.IncomingMessage) {
	sessionID := msg.Platform.SessionID(msg.PlatformChatID)

	var text string
	switch msg.Command() {
	case "start", "help":
		text = greetingText
	case "reset":
		if err := s.Conversation.Reset(ctx, sessionID); err != nil {
			slog.Error("chat app: reset failed", "session_id", sessionID, "error", err)
			return
		}
		text = resetText
	default:
		if err := s.chatSemaphore.Acquire(ctx, 1); err != nil {
			slog.Warn("chat app: gave up waiting for a chat slot", "session_id", sessionID, "error", err)
			return
		}
		defer s.chatSemaphore.Release(1)
		if s.Metrics != nil {
			defer s.Metrics.ChatStarted()()
		}

		reply, err := s.Conversation.Chat(ctx, conversation.Request{
			SessionID: sessionID,
			Message:   msg.Content,
			Language:  translate.FromIETF(msg.LanguageCode),
		})
		if err != nil {
			slog.Error("chat app: answering failed", "session_id", sessionID, "error", err)
			return
		}
		text = reply.Response
	}

	err := s.chatChannelRouter.SendResponse(ctx, msg.Platform, &chat_apps.OutgoingMessage{
		PlatformChatID: msg.PlatformChatID,
		Content:        text,
	})
	if err != nil {
		s.recordWebhook(msg.Platform, "send_error")
		slog.Error("failed to send response to chat platform", "platform", msg.Platform, "error", err)
		return
	}
	s.recordWebhook(msg.Platform, "answered")
	slog.Info("response sent to chat platform",
		"platform", msg.Platform,
		"platform_chat_id", msg.PlatformChatID,
	)
}

func (s *APIV1Service) recordWebhook(platform chat_apps.Platform, event string) {
	if s.Metrics != nil {
		s.Metrics.RecordWebhookEvent(string(platform), event)
	}
}
