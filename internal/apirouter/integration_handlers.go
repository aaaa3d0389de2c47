package apirouter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dbcv/platform/internal/botlog"
	"github.com/dbcv/platform/internal/credentials"
	"github.com/dbcv/platform/internal/integrations"
	"github.com/dbcv/platform/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IntegrationHandlers struct {
	logger     *logging.Logger
	registry   *integrations.Registry
	resolver   credentials.Resolver
	iconURL    func(key string) string
	maxLogSize int
}

func NewIntegrationHandlers(logger *logging.Logger, registry *integrations.Registry, resolver credentials.Resolver, iconURL func(string) string, maxLogSize int) *IntegrationHandlers {
	return &IntegrationHandlers{
		logger:     logger,
		registry:   registry,
		resolver:   resolver,
		iconURL:    iconURL,
		maxLogSize: maxLogSize,
	}
}

func (h *IntegrationHandlers) List(c *gin.Context) {
	all := h.registry.List()
	out := make([]map[string]json.RawMessage, 0, len(all))
	for _, integration := range all {
		presented, err := h.present(integration.Metadata())
		if err != nil {
			AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
			return
		}
		out = append(out, presented)
	}
	c.JSON(http.StatusOK, out)
}

func (h *IntegrationHandlers) Retrieve(c *gin.Context) {
	integration, ok := h.mustIntegration(c)
	if !ok {
		return
	}
	presented, err := h.present(integration.Metadata())
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	c.JSON(http.StatusOK, presented)
}

type ExecuteRequest struct {
	Config map[string]any `json:"config"`
}

// Execute runs an integration for a bot. Integration failures are part of
// the envelope and still answer 200.
func (h *IntegrationHandlers) Execute(c *gin.Context) {
	botID, err := uuid.Parse(c.Param("bot_id"))
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, NewErrBadRequest(errors.New("invalid bot_id")))
		return
	}

	integration, ok := h.mustIntegration(c)
	if !ok {
		return
	}

	var req ExecuteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithValidationError(c, err)
			return
		}
	}
	if req.Config == nil {
		req.Config = map[string]any{}
	}

	id := integration.Metadata().ID
	logger := botlog.New(h.logger, botID, id, h.maxLogSize)
	envelope := integration.Execute(c.Request.Context(), req.Config, h.resolver, botID, logger)

	h.logger.Ctx(c.Request.Context()).Info("integration executed",
		zap.String("integration_id", id),
		zap.String("bot_id", botID.String()),
		zap.String("subject", subjectFromContext(c)),
		zap.Bool("ok", envelope.Response.OK),
		zap.Int("error_code", envelope.Response.ErrorCode),
	)
	c.JSON(http.StatusOK, envelope)
}

func (h *IntegrationHandlers) mustIntegration(c *gin.Context) (integrations.Integration, bool) {
	integration, err := h.registry.Get(c.Param("integration_id"))
	if err != nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("integration"))
		return nil, false
	}
	return integration, true
}

// present renders metadata with the public icon_url next to icon_s3_key.
func (h *IntegrationHandlers) present(meta *integrations.Metadata) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	var iconURL *string
	if h.iconURL != nil && meta.IconS3Key != "" {
		if u := h.iconURL(meta.IconS3Key); u != "" {
			iconURL = &u
		}
	}
	out["icon_url"], err = json.Marshal(iconURL)
	if err != nil {
		return nil, err
	}
	return out, nil
}
