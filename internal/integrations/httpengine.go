package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dbcv/platform/internal/credentials"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

// HTTPIntegration is the generic engine behind integrations that boil down
// to "build query parameters, GET one endpoint, project the JSON". Concrete
// integrations are values of this type rather than new code paths.
type HTTPIntegration struct {
	Meta    *Metadata
	Client  *resty.Client
	BaseURL string
	Path    string

	// APIKeyParam is the query parameter carrying the resolved secret.
	APIKeyParam string
	Timeout     time.Duration
	SecretKeys  []string

	// Validate runs after schema validation, before any request.
	Validate func(config map[string]any) error
	// BuildParams returns the query of the main request. It may issue
	// sub-requests through call, sequentially.
	BuildParams func(ctx context.Context, call *Call, config map[string]any) (url.Values, *Error)
	// Project maps the upstream 200 body to the result allow-list.
	Project func(body map[string]any, call *Call) map[string]any
	// NotFound describes a 404 for the given config.
	NotFound func(config map[string]any) string
}

var _ Integration = (*HTTPIntegration)(nil)

func (h *HTTPIntegration) Metadata() *Metadata {
	return h.Meta
}

func (h *HTTPIntegration) Execute(ctx context.Context, config map[string]any, resolver credentials.Resolver, botID uuid.UUID, logger BotLogger) Envelope {
	return Guard(ctx, logger, func() Envelope {
		prepared, ierr := Prepare(ctx, PrepareRequest{
			Metadata:   h.Meta,
			Config:     config,
			Resolver:   resolver,
			BotID:      botID,
			Logger:     logger,
			SecretKeys: h.SecretKeys,
			Validate:   h.Validate,
		})
		if ierr != nil {
			return ierr.Envelope()
		}

		call := &Call{engine: h, secret: prepared.Secret, values: map[string]any{}}

		params := url.Values{}
		if h.BuildParams != nil {
			params, ierr = h.BuildParams(ctx, call, prepared.Config)
			if ierr != nil {
				return Fail(ctx, logger, h.Meta.ProviderLabel+" request preparation failed", ierr)
			}
		}

		resp, err := call.Get(ctx, h.Path, params)
		if err != nil {
			return Fail(ctx, logger, h.Meta.ProviderLabel+" request failed", ClassifyTransportError(err, "Request error"))
		}

		if resp.Status != http.StatusOK {
			notFound := ""
			if h.NotFound != nil {
				notFound = h.NotFound(prepared.Config)
			}
			ierr := ClassifyStatus(resp, notFound)
			message, _ := resp.Message()
			return Fail(ctx, logger, h.Meta.ProviderLabel+" API error", ierr,
				zap.Int("status", resp.Status),
				zap.String("upstream_message", message),
			)
		}

		body, ok := resp.JSON()
		if !ok {
			ierr := NewErrUnexpected(fmt.Errorf("invalid JSON response from %s", h.Meta.ProviderLabel))
			return Fail(ctx, logger, h.Meta.ProviderLabel+" API error", ierr, zap.Int("status", resp.Status))
		}

		if h.Project == nil {
			return Success(body)
		}
		return Success(h.Project(body, call))
	})
}

func (h *HTTPIntegration) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return DefaultTimeout
}

// Call is the state of one Execute run. Requests made through it carry the
// resolved secret and are bounded by the engine timeout.
type Call struct {
	engine *HTTPIntegration
	secret string
	values map[string]any
}

// Get issues a GET against the engine base URL.
func (c *Call) Get(ctx context.Context, path string, params url.Values) (*CallResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.engine.timeout())
	defer cancel()

	req := c.engine.Client.R().SetContext(ctx).SetQueryParamsFromValues(params)
	if c.engine.APIKeyParam != "" {
		req.SetQueryParam(c.engine.APIKeyParam, c.secret)
	}

	resp, err := req.Get(strings.TrimRight(c.engine.BaseURL, "/") + path)
	if err != nil {
		return nil, err
	}
	return NewCallResponse(resp), nil
}

// Set stores a value for Project to pick up, e.g. geocoded coordinates.
func (c *Call) Set(key string, value any) {
	c.values[key] = value
}

func (c *Call) Value(key string) any {
	return c.values[key]
}

type CallResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

func NewCallResponse(resp *resty.Response) *CallResponse {
	return &CallResponse{
		Status:      resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}
}

func (r *CallResponse) isJSON() bool {
	return strings.HasPrefix(strings.ToLower(r.ContentType), "application/json")
}

// JSON decodes the body as a JSON object.
func (r *CallResponse) JSON() (map[string]any, bool) {
	var body map[string]any
	if err := json.Unmarshal(r.Body, &body); err != nil || body == nil {
		return nil, false
	}
	return body, true
}

// DecodeJSON decodes the body into any JSON value, arrays included.
func (r *CallResponse) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Message returns the "message" field of a JSON error body.
func (r *CallResponse) Message() (string, bool) {
	if !r.isJSON() {
		return "", false
	}
	body, ok := r.JSON()
	if !ok {
		return "", false
	}
	message, ok := body["message"].(string)
	return message, ok && message != ""
}

// ClassifyStatus maps a non-200 upstream response to an *Error. An empty
// notFound falls back to the generic status handling for 404s.
func ClassifyStatus(resp *CallResponse, notFound string) *Error {
	message, hasMessage := resp.Message()

	switch {
	case resp.Status == http.StatusUnauthorized:
		return NewErrUpstream(http.StatusUnauthorized, "Invalid API key")
	case resp.Status == http.StatusNotFound && notFound != "":
		return &Error{Kind: ErrorLocationNotFound, Code: http.StatusNotFound, Description: notFound}
	case resp.Status == http.StatusBadRequest && !hasMessage:
		return NewErrUpstream(http.StatusBadRequest, "Bad request")
	case !hasMessage:
		return NewErrUpstream(resp.Status, fmt.Sprintf("HTTP %d", resp.Status))
	default:
		return NewErrUpstream(resp.Status, message)
	}
}

// ClassifyTransportError maps a failed round trip: timeouts become 504,
// anything else a 500 whose description starts with prefix.
func ClassifyTransportError(err error, prefix string) *Error {
	if IsTimeout(err) {
		return NewErrRequestTimeout(err)
	}
	return NewErrTransport(prefix, err)
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
