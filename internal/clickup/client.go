// Package clickup creates tasks through the ClickUp v2 REST API.
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/esc-funnel/pkg/logging"
)

const (
	defaultBaseURL   = "https://api.clickup.com/api/v2"
	defaultUserAgent = "esc-funnel-relay/1.0"
	defaultTimeout   = 30 * time.Second
)

var tracer = otel.Tracer("esc.internal.clickup")

// Config controls how the ClickUp client behaves.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
}

// Client posts tasks to ClickUp lists.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	userAgent  string
}

// New creates a configured Client. Token is the default credential used when
// a call does not carry its own.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		userAgent:  userAgent,
	}
}

// HasDefaultToken reports whether the client was configured with a token.
func (c *Client) HasDefaultToken() bool {
	return c.token != ""
}

// CreateTask creates a task on listID. An empty token uses the client's
// default credential.
func (c *Client) CreateTask(ctx context.Context, listID, token string, task TaskRequest) (*Task, error) {
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return nil, ErrMissingListID
	}
	token = strings.TrimSpace(token)
	if token == "" {
		token = c.token
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	if strings.TrimSpace(task.Name) == "" {
		return nil, errors.New("clickup: task name required")
	}

	ctx, span := tracer.Start(ctx, "clickup.create_task")
	defer span.End()
	span.SetAttributes(
		attribute.String("clickup.list_id", listID),
		attribute.Int("clickup.tags", len(task.Tags)),
	)

	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("clickup: marshal task: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/list/"+listID+"/task", token, body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var created Task
	if err := json.Unmarshal(data, &created); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("clickup: decode task: %w", err)
	}
	span.SetAttributes(attribute.String("clickup.task_id", created.ID))
	return &created, nil
}

func (c *Client) invoke(ctx context.Context, method, path, token string, body []byte) ([]byte, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("clickup: build request: %w", err)
		}
		// ClickUp personal tokens are sent bare, without a Bearer scheme.
		req.Header.Set("Authorization", token)
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("%w: %w", ErrTransport, err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrTransport, sleepErr)
			}
			continue
		}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("%w: read response: %w", ErrTransport, readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: data}
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrTransport, sleepErr)
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: request failed without response", ErrTransport)
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.backoff * time.Duration(1<<attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt, status int, err error) {
	c.logger.Warn("clickup retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

// Task creation is not idempotent. A 429 or a failure to dial means ClickUp
// never processed the request; any other transport error may have happened
// after the body was written, so it is not retried.
func shouldRetry(status int, err error) bool {
	if err != nil {
		var opErr *net.OpError
		return errors.As(err, &opErr) && opErr.Op == "dial"
	}
	return status == http.StatusTooManyRequests
}
