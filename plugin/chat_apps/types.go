// Package chat_apps connects chat platforms to the conversation service.
// Only text messages are answered; Telegram is the supported platform.
package chat_apps

import "time"

// Platform represents a supported chat platform.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformWeb      Platform = "web"
)

// IsValid checks if the platform is valid.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformTelegram, PlatformWeb:
		return true
	default:
		return false
	}
}

// SessionID returns the conversation session key for a chat on this platform.
func (p Platform) SessionID(chatID string) string {
	return string(p) + ":" + chatID
}

// IncomingMessage represents a message from a chat platform.
type IncomingMessage struct {
	Platform       Platform
	PlatformUserID string
	PlatformChatID string
	Content        string
	// LanguageCode is the client language reported by the platform (IETF tag), if any.
	LanguageCode string
	Metadata     map[string]string
	Timestamp    time.Time
}

// IsCommand reports whether the message is a bot command such as "/start".
func (m *IncomingMessage) IsCommand() bool {
	return len(m.Content) > 1 && m.Content[0] == '/'
}

// Command returns the command name without the leading slash or bot suffix,
// e.g. "/reset@clone_bot now" yields "reset".
func (m *IncomingMessage) Command() string {
	if !m.IsCommand() {
		return ""
	}
	cmd := m.Content[1:]
	for i, r := range cmd {
		if r == ' ' || r == '@' || r == '\n' {
			return cmd[:i]
		}
	}
	return cmd
}

// OutgoingMessage represents a message to send to a chat platform.
type OutgoingMessage struct {
	PlatformChatID string
	Content        string
	ParseMode      string // Markdown/HTML parsing mode (optional)
}
