package telegram_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dbcv/platform/internal/credentials"
	"github.com/dbcv/platform/internal/integrations"
	"github.com/dbcv/platform/internal/integrations/integrationstest"
	"github.com/dbcv/platform/internal/integrations/telegram"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:ABC"

var testBotID = uuid.New()

func newSendMessage(upstream *integrationstest.Upstream, timeout time.Duration) *telegram.SendMessage {
	return telegram.NewSendMessage(telegram.Options{
		Client:   upstream.Client(),
		Endpoint: upstream.URL + "/bot%s/%s",
		Timeout:  timeout,
	})
}

func tokenResolver(payload map[string]any) credentials.Resolver {
	resolver := credentials.NewStaticResolver()
	resolver.Set(testBotID, "telegram", "bot_token", credentials.Credentials{"payload": payload})
	return resolver
}

func execute(integration integrations.Integration, config map[string]any, resolver credentials.Resolver) (integrations.Envelope, *integrationstest.RecordingLogger) {
	logger := integrationstest.NewRecordingLogger()
	return integration.Execute(context.Background(), config, resolver, testBotID, logger), logger
}

func TestSendMessage(t *testing.T) {
	var form map[string]string
	upstream := integrationstest.NewUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"path":                 r.URL.Path,
			"chat_id":              r.PostForm.Get("chat_id"),
			"text":                 r.PostForm.Get("text"),
			"parse_mode":           r.PostForm.Get("parse_mode"),
			"disable_notification": r.PostForm.Get("disable_notification"),
		}
		integrationstest.WriteJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":7,"date":1700000000,"text":"hi","chat":{"id":123,"type":"private","username":"alice"},"from":{"id":1}}}`)
	})

	env, logger := execute(newSendMessage(upstream, time.Second), map[string]any{
		"chat_id":              "123",
		"text":                 "hi",
		"parse_mode":           "HTML",
		"disable_notification": 1,
	}, tokenResolver(map[string]any{"bot_token": testToken}))

	require.True(t, env.Response.OK, env.Response.Description)
	assert.Empty(t, logger.Errors())
	assert.Equal(t, 1, upstream.Calls())

	assert.Equal(t, "/bot"+testToken+"/sendMessage", form["path"])
	assert.Equal(t, "123", form["chat_id"])
	assert.Equal(t, "hi", form["text"])
	assert.Equal(t, "HTML", form["parse_mode"])
	assert.Equal(t, "true", form["disable_notification"])

	result := env.Response.Result
	assert.Equal(t, 7, result["message_id"])
	assert.Equal(t, "hi", result["text"])
	assert.NotContains(t, result, "from")
	chat := result["chat"].(map[string]any)
	assert.Equal(t, int64(123), chat["id"])
	assert.Equal(t, "alice", chat["username"])
}

func TestSendMessageToChannel(t *testing.T) {
	var chatID string
	upstream := integrationstest.NewUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		chatID = r.PostForm.Get("chat_id")
		integrationstest.WriteJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":1,"date":1,"chat":{"id":-100,"type":"channel","title":"News"}}}`)
	})

	env, _ := execute(newSendMessage(upstream, time.Second), map[string]any{
		"chat_id": "@dbcv_news",
		"text":    "hello",
	}, tokenResolver(map[string]any{"token": testToken}))

	require.True(t, env.Response.OK, env.Response.Description)
	assert.Equal(t, "@dbcv_news", chatID)
}

func TestSendMessageAPIError(t *testing.T) {
	upstream := integrationstest.NewUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		integrationstest.WriteJSON(w, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	})

	env, logger := execute(newSendMessage(upstream, time.Second), map[string]any{
		"chat_id": "42",
		"text":    "hi",
	}, tokenResolver(map[string]any{"api_key": testToken}))

	assert.False(t, env.Response.OK)
	assert.Equal(t, 400, env.Response.ErrorCode)
	assert.Equal(t, "Bad Request: chat not found", env.Response.Description)
	assert.Contains(t, logger.Errors(), "Telegram API error")
}

func TestSendMessageTimeout(t *testing.T) {
	upstream := integrationstest.NewUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	env, _ := execute(newSendMessage(upstream, 50*time.Millisecond), map[string]any{
		"chat_id": "42",
		"text":    "hi",
	}, tokenResolver(map[string]any{"token": testToken}))

	assert.False(t, env.Response.OK)
	assert.Equal(t, 504, env.Response.ErrorCode)
	assert.Equal(t, "Request timeout", env.Response.Description)
}

func TestSendMessagePreflight(t *testing.T) {
	upstream := integrationstest.NewUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})
	sendMessage := newSendMessage(upstream, time.Second)

	t.Run("no credentials", func(t *testing.T) {
		env, _ := execute(sendMessage, map[string]any{"chat_id": "1", "text": "hi"}, credentials.NewStaticResolver())
		assert.Equal(t, 401, env.Response.ErrorCode)
	})

	t.Run("missing text", func(t *testing.T) {
		env, _ := execute(sendMessage, map[string]any{"chat_id": "1"}, tokenResolver(map[string]any{"token": testToken}))
		assert.Equal(t, 400, env.Response.ErrorCode)
		assert.Equal(t, "text is required", env.Response.Description)
	})

	t.Run("unknown parse mode", func(t *testing.T) {
		env, _ := execute(sendMessage, map[string]any{"chat_id": "1", "text": "hi", "parse_mode": "Markdown"}, tokenResolver(map[string]any{"token": testToken}))
		assert.Equal(t, 400, env.Response.ErrorCode)
	})

	assert.Equal(t, 0, upstream.Calls())
}

func TestMetadata(t *testing.T) {
	meta := telegram.NewSendMessage(telegram.Options{}).Metadata()
	assert.Equal(t, telegram.SendMessageID, meta.ID)
	assert.Equal(t, "telegram", meta.CredentialsProvider)
	assert.Equal(t, "bot_token", meta.CredentialsStrategy)
	assert.True(t, meta.RequiresCredentials())
	assert.Len(t, telegram.All(telegram.Options{}), 1)
}
