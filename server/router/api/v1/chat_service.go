package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/virtualclone/ai/conversation"
	"github.com/hrygo/virtualclone/ai/translate"
)

type chatRequest struct {
	Message  *string `json:"message"`
	Language string  `json:"language"`
}

type historyItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Index    int    `json:"index"`
}

func (s *APIV1Service) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   s.Profile.Version,
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   serviceName,
	})
}

func (s *APIV1Service) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil || req.Message == nil {
		return errorJSON(c, http.StatusBadRequest, "Message is required")
	}

	ctx := c.Request().Context()
	if err := s.chatSemaphore.Acquire(ctx, 1); err != nil {
		return errorJSON(c, http.StatusServiceUnavailable, "Server is busy")
	}
	defer s.chatSemaphore.Release(1)
	if s.Metrics != nil {
		defer s.Metrics.ChatStarted()()
	}

	reply, err := s.Conversation.Chat(ctx, conversation.Request{
		SessionID: s.sessionID(c, true),
		Message:   *req.Message,
		Language:  req.Language,
	})
	if errors.Is(err, conversation.ErrEmptyMessage) {
		return errorJSON(c, http.StatusBadRequest, "Message is required")
	}
	if err != nil {
		slog.Error("api: chat failed", "request_id", c.Response().Header().Get(echo.HeaderXRequestID), "error", err)
		return errorJSON(c, http.StatusInternalServerError, "An error occurred processing your message")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"response":  reply.Response,
		"message":   reply.Message,
		"timestamp": reply.Timestamp.Format(time.RFC3339),
	})
}

func (s *APIV1Service) resetSession(c echo.Context) error {
	if id := s.sessionID(c, false); id != "" {
		if err := s.Conversation.Reset(c.Request().Context(), id); err != nil {
			slog.Error("api: session reset failed", "error", err)
			return errorJSON(c, http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Session cleared successfully",
	})
}

func (s *APIV1Service) conversationHistory(c echo.Context) error {
	items := []historyItem{}
	if id := s.sessionID(c, false); id != "" {
		turns, err := s.Conversation.History(c.Request().Context(), id)
		if err != nil {
			slog.Error("api: get history failed", "error", err)
			return errorJSON(c, http.StatusInternalServerError, err.Error())
		}
		for i, t := range turns {
			items = append(items, historyItem{Question: t.Question, Answer: t.Answer, Index: i})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"history": items,
		"count":   len(items),
	})
}

func (s *APIV1Service) languages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"languages": translate.Languages(),
	})
}
