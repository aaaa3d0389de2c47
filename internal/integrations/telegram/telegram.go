// Package telegram implements the Telegram Bot API integrations.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dbcv/platform/internal/credentials"
	"github.com/dbcv/platform/internal/integrations"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	SendMessageID = "telegram_send_message"

	provider      = "telegram"
	strategy      = "bot_token"
	providerLabel = "Telegram"
)

var secretKeys = []string{"token", "bot_token", "api_key"}

// Options configure the Telegram integrations. Endpoint follows the
// tgbotapi format with the token and method placeholders.
type Options struct {
	Client   *http.Client
	Endpoint string
	Timeout  time.Duration
}

// All returns the Telegram integrations in registration order.
func All(opts Options) []integrations.Integration {
	return []integrations.Integration{NewSendMessage(opts)}
}

type SendMessage struct {
	meta *integrations.Metadata
	opts Options
}

var _ integrations.Integration = (*SendMessage)(nil)

func NewSendMessage(opts Options) *SendMessage {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = integrations.DefaultTimeout
	}
	return &SendMessage{meta: sendMessageMetadata(), opts: opts}
}

func sendMessageMetadata() *integrations.Metadata {
	return &integrations.Metadata{
		ID:          SendMessageID,
		Version:     "1.0.0",
		Name:        "Telegram Send Message",
		Description: "Отправка текстового сообщения в чат или канал через Telegram Bot API",
		Category:    "messaging",
		IconS3Key:   "icons/integrations/telegram.svg",
		Color:       "#229ed9",
		Schema: integrations.Schema{Fields: []integrations.Field{
			{
				Name:        "chat_id",
				Kind:        integrations.FieldString,
				Title:       "Chat ID",
				Description: "Числовой идентификатор чата или имя канала (например: '@channel')",
				Required:    true,
			},
			{
				Name:        "text",
				Kind:        integrations.FieldString,
				Title:       "Text",
				Description: "Текст сообщения",
				Required:    true,
			},
			{
				Name:        "parse_mode",
				Kind:        integrations.FieldEnum,
				Title:       "Parse mode",
				Description: "Режим форматирования текста",
				Enum:        []string{"", tgbotapi.ModeHTML, tgbotapi.ModeMarkdownV2},
				Default:     "",
			},
			{
				Name:        "disable_notification",
				Kind:        integrations.FieldInteger,
				Title:       "Disable notification",
				Description: "Отправить сообщение без звука (1) или со звуком (0)",
				Default:     int64(0),
				Minimum:     lo.ToPtr[int64](0),
				Maximum:     lo.ToPtr[int64](1),
			},
		}},
		CredentialsProvider: provider,
		CredentialsStrategy: strategy,
		LibraryName:         "go-telegram-bot-api/telegram-bot-api",
		Examples: []integrations.Example{
			{Title: "Сообщение в чат", Config: map[string]any{"chat_id": "123456789", "text": "Привет!"}},
			{Title: "Сообщение в канал с HTML", Config: map[string]any{"chat_id": "@dbcv_news", "text": "<b>Новости</b>", "parse_mode": "HTML"}},
		},
		ProviderLabel: providerLabel,
	}
}

func (s *SendMessage) Metadata() *integrations.Metadata {
	return s.meta
}

func (s *SendMessage) Execute(ctx context.Context, config map[string]any, resolver credentials.Resolver, botID uuid.UUID, logger integrations.BotLogger) integrations.Envelope {
	return integrations.Guard(ctx, logger, func() integrations.Envelope {
		prepared, ierr := integrations.Prepare(ctx, integrations.PrepareRequest{
			Metadata:   s.meta,
			Config:     config,
			Resolver:   resolver,
			BotID:      botID,
			Logger:     logger,
			SecretKeys: secretKeys,
		})
		if ierr != nil {
			return ierr.Envelope()
		}

		ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		bot := &tgbotapi.BotAPI{
			Token:  prepared.Secret,
			Client: contextClient{ctx: ctx, client: s.opts.Client},
			Buffer: 100,
		}
		bot.SetAPIEndpoint(s.opts.Endpoint)

		sent, err := bot.Send(newMessage(prepared.Config))
		if err != nil {
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) {
				return integrations.Fail(ctx, logger, providerLabel+" API error",
					integrations.NewErrUpstream(apiErr.Code, apiErr.Message),
					zap.Int("status", apiErr.Code),
				)
			}
			return integrations.Fail(ctx, logger, providerLabel+" request failed",
				integrations.ClassifyTransportError(err, "Request error"))
		}

		return integrations.Success(projectMessage(sent))
	})
}

func newMessage(config map[string]any) tgbotapi.MessageConfig {
	chatID := config["chat_id"].(string)
	text := config["text"].(string)

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	}
	msg.ParseMode = config["parse_mode"].(string)
	msg.DisableNotification = config["disable_notification"].(int64) == 1
	return msg
}

func projectMessage(msg tgbotapi.Message) map[string]any {
	result := map[string]any{
		"message_id": msg.MessageID,
		"date":       msg.Date,
		"text":       msg.Text,
		"chat":       nil,
	}
	if msg.Chat != nil {
		result["chat"] = map[string]any{
			"id":       msg.Chat.ID,
			"type":     msg.Chat.Type,
			"title":    msg.Chat.Title,
			"username": msg.Chat.UserName,
		}
	}
	return result
}

// contextClient binds the requests tgbotapi makes to one Execute context.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}
