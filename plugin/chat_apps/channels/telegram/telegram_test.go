package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/virtualclone/plugin/chat_apps"
	"github.com/hrygo/virtualclone/plugin/chat_apps/channels"
)

// fakeBotAPI records Bot API calls made by the channel.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls map[string][]map[string]string
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	t.Helper()
	f := &fakeBotAPI{calls: make(map[string][]map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		params := make(map[string]string)
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.calls[method] = append(f.calls[method], params)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "getMe":
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Clone","username":"clone_bot"}}`)
		case "sendMessage":
			fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":%s,"type":"private"}}}`, params["chat_id"])
		default:
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBotAPI) get(method string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func newTestChannel(t *testing.T, secret string) (*TelegramChannel, *fakeBotAPI) {
	t.Helper()
	f, srv := newFakeBotAPI(t)
	ch, err := NewTelegramChannel(&TelegramConfig{
		BotToken:    "123:abc",
		SecretToken: secret,
		APIEndpoint: srv.URL + "/bot%s/%s",
	})
	require.NoError(t, err)
	return ch, f
}

func TestNewTelegramChannel(t *testing.T) {
	ch, f := newTestChannel(t, "")
	assert.Equal(t, chat_apps.PlatformTelegram, ch.Name())
	assert.Equal(t, "clone_bot", ch.Username())
	assert.Len(t, f.get("getMe"), 1)

	_, err := NewTelegramChannel(&TelegramConfig{})
	assert.Error(t, err)
}

func TestTelegramChannel_ValidateWebhook(t *testing.T) {
	ctx := context.Background()

	open, _ := newTestChannel(t, "")
	assert.NoError(t, open.ValidateWebhook(ctx, nil, nil))

	ch, _ := newTestChannel(t, "s3cret")
	assert.NoError(t, ch.ValidateWebhook(ctx, map[string]string{SecretTokenHeader: "s3cret"}, nil))
	assert.ErrorIs(t, ch.ValidateWebhook(ctx, map[string]string{SecretTokenHeader: "wrong"}, nil), channels.ErrInvalidSignature)
	assert.ErrorIs(t, ch.ValidateWebhook(ctx, map[string]string{}, nil), channels.ErrInvalidSignature)
}

func TestTelegramChannel_ParseMessage(t *testing.T) {
	ch, _ := newTestChannel(t, "")
	ctx := context.Background()

	t.Run("text message", func(t *testing.T) {
		payload := `{"update_id":7,"message":{"message_id":3,"date":0,
			"from":{"id":99,"is_bot":false,"first_name":"A","username":"ana","language_code":"es"},
			"chat":{"id":42,"type":"private"},"text":"What is the Matrix?"}}`
		msg, err := ch.ParseMessage(ctx, []byte(payload))
		require.NoError(t, err)
		assert.Equal(t, "42", msg.PlatformChatID)
		assert.Equal(t, "99", msg.PlatformUserID)
		assert.Equal(t, "es", msg.LanguageCode)
		assert.Equal(t, "What is the Matrix?", msg.Content)
		assert.Equal(t, "7", msg.Metadata["update_id"])
		assert.Equal(t, "telegram:42", msg.Platform.SessionID(msg.PlatformChatID))
	})

	t.Run("edited message", func(t *testing.T) {
		payload := `{"update_id":8,"edited_message":{"message_id":3,"date":0,"chat":{"id":42,"type":"private"},"text":"hi"}}`
		msg, err := ch.ParseMessage(ctx, []byte(payload))
		require.NoError(t, err)
		assert.Equal(t, "hi", msg.Content)
		assert.Empty(t, msg.PlatformUserID)
	})

	t.Run("photo without text is ignored", func(t *testing.T) {
		payload := `{"update_id":9,"message":{"message_id":4,"date":0,"chat":{"id":42,"type":"private"},
			"photo":[{"file_id":"x","file_unique_id":"y","width":1,"height":1}]}}`
		_, err := ch.ParseMessage(ctx, []byte(payload))
		assert.ErrorIs(t, err, channels.ErrIgnoredUpdate)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ch.ParseMessage(ctx, []byte("{"))
		assert.ErrorIs(t, err, channels.ErrInvalidPayload)
	})
}

func TestTelegramChannel_SendMessage(t *testing.T) {
	ch, f := newTestChannel(t, "")
	ctx := context.Background()

	require.NoError(t, ch.SendMessage(ctx, &chat_apps.OutgoingMessage{PlatformChatID: "42", Content: "The One"}))
	sent := f.get("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, "42", sent[0]["chat_id"])
	assert.Equal(t, "The One", sent[0]["text"])

	long := strings.Repeat("word ", 1000)
	require.NoError(t, ch.SendMessage(ctx, &chat_apps.OutgoingMessage{PlatformChatID: "42", Content: long}))
	assert.Len(t, f.get("sendMessage"), 3)

	assert.Error(t, ch.SendMessage(ctx, &chat_apps.OutgoingMessage{PlatformChatID: "not-a-number", Content: "x"}))
}

func TestTelegramChannel_SetWebhook(t *testing.T) {
	ch, f := newTestChannel(t, "s3cret")
	ctx := context.Background()

	require.NoError(t, ch.SetWebhook(ctx, "https://clone.example.com/chat-apps/telegram/webhook", true))
	calls := f.get("setWebhook")
	require.Len(t, calls, 1)
	assert.Equal(t, "https://clone.example.com/chat-apps/telegram/webhook", calls[0]["url"])
	assert.Equal(t, "s3cret", calls[0]["secret_token"])
	assert.Equal(t, "true", calls[0]["drop_pending_updates"])

	assert.Error(t, ch.SetWebhook(ctx, "http://insecure.example.com/hook", false))
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	parts := SplitMessage("aaaa bbbb cccc", 10)
	assert.Equal(t, []string{"aaaa bbbb ", "cccc"}, parts)

	parts = SplitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, parts)

	parts = SplitMessage(strings.Repeat("é", 12), 10)
	require.Len(t, parts, 2)
	assert.Equal(t, strings.Repeat("é", 10), parts[0])
}
