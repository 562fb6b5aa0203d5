// Package submission forwards a completed lead draft to the relay endpoint.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

var tracer = otel.Tracer("esc.internal.submission")

// ErrSubmissionFailed is the only error callers see; the cause is logged.
var ErrSubmissionFailed = errors.New("submission: lead was not accepted")

const defaultTimeout = 15 * time.Second

// Config controls the adapter.
type Config struct {
	RelayURL   string
	Mode       tenant.DestinationMode
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Adapter posts lead payloads to the relay.
type Adapter struct {
	relayURL   string
	mode       tenant.DestinationMode
	timeout    time.Duration
	httpClient *http.Client
	logger     *logging.Logger
}

// New validates cfg and builds an Adapter.
func New(cfg Config) (*Adapter, error) {
	relayURL := strings.TrimSpace(cfg.RelayURL)
	if relayURL == "" {
		return nil, errors.New("submission: relay url is required")
	}
	mode := cfg.Mode
	if mode == "" {
		mode = tenant.ModeAllowlist
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{
		relayURL:   relayURL,
		mode:       mode,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type relayResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
	TaskURL string `json:"taskUrl"`
	Error   string `json:"error"`
}

// Submit sends draft for tenant cfg. It returns nil only when the relay
// answered 2xx with success and a task id within the timeout.
func (a *Adapter) Submit(ctx context.Context, draft leads.Draft, cfg tenant.Config) error {
	ctx, span := tracer.Start(ctx, "submission.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("esc.cliente", cfg.Slug),
		attribute.String("esc.destination_mode", string(a.mode)),
	)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.post(ctx, BuildPayload(draft, cfg, a.mode))
	if err != nil {
		span.RecordError(err)
		a.logger.Error("lead submission failed", "cliente", cfg.Slug, "error", err)
		return ErrSubmissionFailed
	}
	span.SetAttributes(attribute.String("esc.task_id", resp.TaskID))
	a.logger.Info("lead submitted", "cliente", cfg.Slug, "task_id", resp.TaskID, "task_url", resp.TaskURL)
	return nil
}

func (a *Adapter) post(ctx context.Context, payload Payload) (*relayResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.relayURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read relay response: %w", err)
	}
	var parsed relayResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("relay status %d with non-JSON body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relay status %d: %s", resp.StatusCode, parsed.Error)
	}
	if !parsed.Success || parsed.TaskID == "" {
		return nil, fmt.Errorf("relay reported no task (success=%t)", parsed.Success)
	}
	return &parsed, nil
}
