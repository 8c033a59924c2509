// Package telegram implements the Telegram Bot channel.
package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hrygo/virtualclone/plugin/chat_apps"
	"github.com/hrygo/virtualclone/plugin/chat_apps/channels"
)

const (
	// SecretTokenHeader carries the secret_token given to setWebhook.
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

	// MaxMessageLength is the Telegram limit for one text message, in runes.
	MaxMessageLength = 4096
)

// TelegramConfig holds configuration for the Telegram channel.
type TelegramConfig struct {
	BotToken string
	// SecretToken, when set, must match the SecretTokenHeader of every webhook request.
	SecretToken string
	// APIEndpoint overrides tgbotapi.APIEndpoint.
	APIEndpoint string
}

// TelegramChannel implements ChatChannel for Telegram Bot API.
type TelegramChannel struct {
	bot    *tgbotapi.BotAPI
	config *TelegramConfig
}

// NewTelegramChannel creates a new Telegram channel. It calls getMe to check the token.
func NewTelegramChannel(config *TelegramConfig) (*TelegramChannel, error) {
	if config == nil || config.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	endpoint := config.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(config.BotToken, endpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	slog.Info("telegram: bot authorized", "username", bot.Self.UserName)

	return &TelegramChannel{
		bot:    bot,
		config: config,
	}, nil
}

// Name returns the platform name.
func (t *TelegramChannel) Name() chat_apps.Platform {
	return chat_apps.PlatformTelegram
}

// Username returns the bot username reported by getMe.
func (t *TelegramChannel) Username() string {
	return t.bot.Self.UserName
}

// ValidateWebhook checks the secret token header when one is configured.
func (t *TelegramChannel) ValidateWebhook(_ context.Context, headers map[string]string, _ []byte) error {
	if t.config.SecretToken == "" {
		return nil
	}
	got := headers[SecretTokenHeader]
	if subtle.ConstantTimeCompare([]byte(got), []byte(t.config.SecretToken)) != 1 {
		return channels.ErrInvalidSignature
	}
	return nil
}

// ParseMessage parses an update into an IncomingMessage. Only new and edited
// text messages are accepted.
func (t *TelegramChannel) ParseMessage(_ context.Context, payload []byte) (*chat_apps.IncomingMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		slog.Warn("telegram: failed to parse webhook payload", "error", err)
		return nil, channels.ErrInvalidPayload
	}

	tgMsg := update.Message
	if tgMsg == nil {
		tgMsg = update.EditedMessage
	}
	if tgMsg == nil || tgMsg.Chat == nil || strings.TrimSpace(tgMsg.Text) == "" {
		return nil, channels.ErrIgnoredUpdate
	}

	msg := &chat_apps.IncomingMessage{
		Platform:       chat_apps.PlatformTelegram,
		PlatformChatID: strconv.FormatInt(tgMsg.Chat.ID, 10),
		Content:        tgMsg.Text,
		Timestamp:      time.Now(),
		Metadata: map[string]string{
			"update_id": strconv.Itoa(update.UpdateID),
		},
	}
	if tgMsg.From != nil {
		msg.PlatformUserID = strconv.FormatInt(tgMsg.From.ID, 10)
		msg.LanguageCode = tgMsg.From.LanguageCode
		msg.Metadata["username"] = tgMsg.From.UserName
	}

	return msg, nil
}

// SendMessage sends a text message, split into parts when it exceeds MaxMessageLength.
func (t *TelegramChannel) SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error {
	chatID, err := strconv.ParseInt(msg.PlatformChatID, 10, 64)
	if err != nil {
		slog.Error("telegram: invalid chat ID", "chat_id", msg.PlatformChatID, "error", err)
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	for _, part := range SplitMessage(msg.Content, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		tgMsg := tgbotapi.NewMessage(chatID, part)
		if msg.ParseMode != "" {
			tgMsg.ParseMode = msg.ParseMode
		}
		if _, err := t.bot.Send(tgMsg); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}

	slog.Debug("telegram: message sent", "chat_id", chatID)
	return nil
}

// Close closes the Telegram channel.
func (t *TelegramChannel) Close() error {
	return nil
}

// SplitMessage cuts text into parts of at most limit runes, preferring to
// break after a newline or space.
func SplitMessage(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' || runes[i-1] == ' ' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

var _ channels.ChatChannel = (*TelegramChannel)(nil)
