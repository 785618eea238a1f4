package publishers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/samvad-hq/soupchef/internal/logger"
)

const (
	headerRunID    = "X-Soupchef-Run-Id"
	headerRecipeID = "X-Soupchef-Recipe-Id"
	maxErrorBody   = 512
)

// webhookPublisher posts each recipe event as JSON to a configured URL.
type webhookPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
	log     logger.Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	method := cfg.HTTP.Method
	if method == "" {
		method = httpDefaultMethod
	}
	return &webhookPublisher{
		id:      cfg.ID,
		method:  method,
		url:     cfg.HTTP.URL,
		headers: cfg.HTTP.Headers,
		client:  resty.New().SetTimeout(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second),
		log:     logger.Ensure(log),
	}, nil
}

func (w *webhookPublisher) ID() string   { return w.id }
func (w *webhookPublisher) Type() string { return TypeHTTP }

// Publish delivers evt. Configured headers are sent first so the event headers
// cannot be overridden by configuration.
func (w *webhookPublisher) Publish(ctx context.Context, evt RecipeEvent) error {
	payload, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode recipe event: %w", err)
	}

	req := w.client.R().SetContext(ctx).SetHeaders(w.headers)
	req.SetHeader("Content-Type", "application/json").
		SetHeader(headerRecipeID, evt.RecipeID.String()).
		SetBody(payload)
	if evt.RunID != "" {
		req.SetHeader(headerRunID, evt.RunID)
	}

	resp, err := req.Execute(w.method, w.url)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode(), errorBody(resp.Body()))
	}
	w.log.DebugObj("webhook delivered recipe event", "publisher_http_delivery", map[string]any{
		"publisher_id": w.id,
		"recipe_id":    evt.RecipeID,
		"status":       resp.StatusCode(),
	})
	return nil
}

func errorBody(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}
