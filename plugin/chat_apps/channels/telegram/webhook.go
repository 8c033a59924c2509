package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SetWebhook points the bot at webhookURL. The configured secret token is
// registered with Telegram so ValidateWebhook can check it.
func (t *TelegramChannel) SetWebhook(_ context.Context, webhookURL string, dropPendingUpdates bool) error {
	parsed, err := url.Parse(webhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("webhook URL must use https: %s", webhookURL)
	}

	params := tgbotapi.Params{
		"url":                  parsed.String(),
		"drop_pending_updates": strconv.FormatBool(dropPendingUpdates),
		"allowed_updates":      `["message","edited_message"]`,
	}
	if t.config.SecretToken != "" {
		params["secret_token"] = t.config.SecretToken
	}

	if _, err := t.bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	slog.Info("telegram: webhook registered", "url", parsed.Redacted())
	return nil
}

// DeleteWebhook removes the webhook for the Telegram bot.
func (t *TelegramChannel) DeleteWebhook(_ context.Context) error {
	_, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}

// WebhookInfo returns information about the current webhook.
func (t *TelegramChannel) WebhookInfo(_ context.Context) (tgbotapi.WebhookInfo, error) {
	return t.bot.GetWebhookInfo()
}
