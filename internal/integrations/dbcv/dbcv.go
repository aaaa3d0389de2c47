// Package dbcv implements integrations backed by the platform's own MCP tool
// service.
package dbcv

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dbcv/platform/internal/credentials"
	"github.com/dbcv/platform/internal/integrations"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CallToolID = "dbcv_call_tool"

	providerLabel = "DBCV MCP"
)

// Options configure the MCP client. Token is the service token sent as a
// bearer credential on every call.
type Options struct {
	Client  *resty.Client
	BaseURL string
	Token   string
	Timeout time.Duration
}

func All(opts Options) []integrations.Integration {
	return []integrations.Integration{NewCallTool(opts)}
}

type CallTool struct {
	meta *integrations.Metadata
	opts Options
}

var _ integrations.Integration = (*CallTool)(nil)

func NewCallTool(opts Options) *CallTool {
	if opts.Client == nil {
		opts.Client = resty.New()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = integrations.DefaultTimeout
	}
	return &CallTool{meta: callToolMetadata(), opts: opts}
}

func callToolMetadata() *integrations.Metadata {
	return &integrations.Metadata{
		ID:          CallToolID,
		Version:     "1.0.0",
		Name:        "DBCV Call Tool",
		Description: "Вызов инструмента внутреннего MCP-сервиса DBCV",
		Category:    "internal",
		IconS3Key:   "icons/integrations/dbcv.svg",
		Color:       "#3b82f6",
		Schema: integrations.Schema{Fields: []integrations.Field{
			{
				Name:        "tool",
				Kind:        integrations.FieldString,
				Title:       "Tool",
				Description: "Имя инструмента MCP",
				Required:    true,
			},
			{
				Name:        "arguments",
				Kind:        integrations.FieldObject,
				Title:       "Arguments",
				Description: "Аргументы инструмента",
				Default:     map[string]any{},
			},
		}},
		LibraryName: "go-resty/resty",
		Examples: []integrations.Example{
			{Title: "Список таблиц", Config: map[string]any{"tool": "list_tables", "arguments": map[string]any{}}},
		},
		ProviderLabel: providerLabel,
	}
}

func (c *CallTool) Metadata() *integrations.Metadata {
	return c.meta
}

type callToolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	BotID     string         `json:"bot_id"`
}

func (c *CallTool) Execute(ctx context.Context, config map[string]any, resolver credentials.Resolver, botID uuid.UUID, logger integrations.BotLogger) integrations.Envelope {
	return integrations.Guard(ctx, logger, func() integrations.Envelope {
		prepared, ierr := integrations.Prepare(ctx, integrations.PrepareRequest{
			Metadata: c.meta,
			Config:   config,
			Resolver: resolver,
			BotID:    botID,
			Logger:   logger,
		})
		if ierr != nil {
			return ierr.Envelope()
		}

		tool := prepared.Config["tool"].(string)
		arguments, _ := prepared.Config["arguments"].(map[string]any)

		ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		req := c.opts.Client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(callToolRequest{Name: tool, Arguments: arguments, BotID: botID.String()})
		if c.opts.Token != "" {
			req.SetAuthToken(c.opts.Token)
		}

		raw, err := req.Post(strings.TrimRight(c.opts.BaseURL, "/") + "/tools/call")
		if err != nil {
			return integrations.Fail(ctx, logger, providerLabel+" request failed",
				integrations.ClassifyTransportError(err, "Request error"),
				zap.String("tool", tool),
			)
		}

		resp := integrations.NewCallResponse(raw)
		if resp.Status != http.StatusOK {
			message, _ := resp.Message()
			return integrations.Fail(ctx, logger, providerLabel+" API error", integrations.ClassifyStatus(resp, ""),
				zap.String("tool", tool),
				zap.Int("status", resp.Status),
				zap.String("upstream_message", message),
			)
		}

		body, ok := resp.JSON()
		if !ok {
			return integrations.Fail(ctx, logger, providerLabel+" API error",
				integrations.NewErrUnexpected(errInvalidJSON),
				zap.String("tool", tool),
			)
		}

		return integrations.Success(map[string]any{
			"tool":     tool,
			"content":  contentOf(body),
			"is_error": isError(body),
		})
	})
}
