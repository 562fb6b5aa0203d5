// Package relay turns funnel lead submissions into ClickUp tasks. It is the
// only component that holds ClickUp credentials.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/esc-funnel/internal/clickup"
	"github.com/wolfman30/esc-funnel/internal/notify"
	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// Response messages, kept byte-compatible with the funnel front-end.
const (
	MessageMethodNotAllowed = "Method not allowed"
	MessageInvalidJSON      = "JSON inválido"
	MessageRequired         = "Nome e WhatsApp são obrigatórios"
	MessageListNotAllowed   = "Lista de destino não permitida"
	MessageUpstreamRejected = "Erro ao criar task no ClickUp"
	MessageUpstreamDown     = "Erro na conexão com ClickUp"
	MessageInternal         = "Erro interno do servidor"
)

const maxBodyBytes = 64 << 10

var (
	errListNotAllowed = errors.New("relay: destination list not allowed")
	tracer            = otel.Tracer("esc.internal.relay")
)

type taskCreator interface {
	CreateTask(ctx context.Context, listID, token string, task clickup.TaskRequest) (*clickup.Task, error)
}

// LeadNotifier is told about every task the relay creates.
type LeadNotifier interface {
	NotifyLead(ctx context.Context, lead notify.Lead) error
}

type relayObserver interface {
	ObserveRequest(mode string, status int)
	ObserveUpstream(outcome string, seconds float64)
}

// Config wires a Handler. Destinations maps allowed list ids to their
// server-side credential; an empty credential means the client's default token.
// NotifyInline sends the lead e-mail before responding, for runtimes that
// freeze once the response is returned.
type Config struct {
	Mode          tenant.DestinationMode
	DefaultListID string
	Destinations  map[string]string
	Breaker       *gobreaker.CircuitBreaker
	Notifier      LeadNotifier
	NotifyTimeout time.Duration
	NotifyInline  bool
	Metrics       relayObserver
	Logger        *logging.Logger
}

// Handler serves POST /api/clickup.
type Handler struct {
	client        taskCreator
	mode          tenant.DestinationMode
	defaultListID string
	destinations  map[string]string
	breaker       *gobreaker.CircuitBreaker
	notifier      LeadNotifier
	notifyTimeout time.Duration
	notifyInline  bool
	metrics       relayObserver
	logger        *logging.Logger
	now           func() time.Time
}

// NewHandler builds the relay. The client is required.
func NewHandler(client taskCreator, cfg Config) *Handler {
	if client == nil {
		panic("relay: clickup client required")
	}
	if cfg.Mode == "" {
		cfg.Mode = tenant.ModeAllowlist
	}
	if cfg.DefaultListID == "" {
		cfg.DefaultListID = tenant.DefaultListID
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewBreaker("clickup")
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	destinations := make(map[string]string, len(cfg.Destinations))
	for id, cred := range cfg.Destinations {
		destinations[strings.TrimSpace(id)] = cred
	}
	if cfg.Mode == tenant.ModePassthrough {
		cfg.Logger.Warn("relay accepts client-supplied ClickUp destinations and tokens", "mode", cfg.Mode)
	}
	return &Handler{
		client:        client,
		mode:          cfg.Mode,
		defaultListID: cfg.DefaultListID,
		destinations:  destinations,
		breaker:       cfg.Breaker,
		notifier:      cfg.Notifier,
		notifyTimeout: cfg.NotifyTimeout,
		notifyInline:  cfg.NotifyInline,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		now:           time.Now,
	}
}

// Response is a relay outcome before it is written to a transport.
type Response struct {
	Status int
	Body   any
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

type successBody struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
	TaskURL string `json:"taskUrl"`
}

// ServeHTTP adapts Handle to net/http.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	SetCORSHeaders(w.Header())
	var body []byte
	if r.Method == http.MethodPost {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			h.logger.Warn("relay body read failed", "error", err)
			body = nil
		}
	}
	resp := h.Handle(r.Context(), r.Method, body)
	if resp.Body == nil {
		w.WriteHeader(resp.Status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

// SetCORSHeaders opens the relay to any origin.
func SetCORSHeaders(hdr http.Header) {
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Credentials", "true")
	hdr.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type")
}

// Handle processes one relay call.
func (h *Handler) Handle(ctx context.Context, method string, body []byte) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("relay panic", "panic", rec)
			resp = Response{Status: http.StatusInternalServerError, Body: errorBody{Error: MessageInternal, Message: fmt.Sprint(rec)}}
		}
		if h.metrics != nil {
			h.metrics.ObserveRequest(string(h.mode), resp.Status)
		}
	}()

	switch strings.ToUpper(method) {
	case http.MethodOptions:
		return Response{Status: http.StatusOK}
	case http.MethodPost:
	default:
		return Response{Status: http.StatusMethodNotAllowed, Body: errorBody{Error: MessageMethodNotAllowed}}
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Response{Status: http.StatusBadRequest, Body: errorBody{Error: MessageInvalidJSON}}
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" {
		return Response{Status: http.StatusBadRequest, Body: errorBody{Error: MessageRequired}}
	}

	listID, token, err := h.destination(req)
	if err != nil {
		h.logger.Warn("relay rejected destination", "cliente", req.client(), "list_id", req.ListID)
		return Response{Status: http.StatusBadRequest, Body: errorBody{Error: MessageListNotAllowed}}
	}
	h.logger.Info("relaying lead", "cliente", req.client(), "list_id", listID, "mode", h.mode)

	task, err := h.createTask(ctx, listID, token, BuildTask(req, h.now()))
	if err != nil {
		return h.upstreamFailure(req, listID, err)
	}

	h.notifyLead(ctx, req, task)
	return Response{Status: http.StatusOK, Body: successBody{Success: true, TaskID: task.ID, TaskURL: task.URL}}
}

// destination picks the list and credential for req under the relay mode.
func (h *Handler) destination(req Request) (listID, token string, err error) {
	requested := strings.TrimSpace(req.ListID)
	switch h.mode {
	case tenant.ModeFixed:
		return h.defaultListID, "", nil
	case tenant.ModePassthrough:
		if requested == "" {
			requested = h.defaultListID
		}
		if req.Token != "" {
			h.logger.Warn("relay using client-supplied ClickUp token", "cliente", req.client(), "list_id", requested)
		}
		return requested, strings.TrimSpace(req.Token), nil
	default:
		if requested == "" {
			return h.defaultListID, h.destinations[h.defaultListID], nil
		}
		cred, ok := h.destinations[requested]
		if !ok {
			return "", "", fmt.Errorf("%w: %s", errListNotAllowed, requested)
		}
		return requested, cred, nil
	}
}

func (h *Handler) createTask(ctx context.Context, listID, token string, task clickup.TaskRequest) (*clickup.Task, error) {
	ctx, span := tracer.Start(ctx, "relay.create_task")
	defer span.End()
	span.SetAttributes(attribute.String("relay.mode", string(h.mode)), attribute.String("clickup.list_id", listID))

	start := time.Now()
	out, err := h.breaker.Execute(func() (interface{}, error) {
		return h.client.CreateTask(ctx, listID, token, task)
	})
	h.observeUpstream(err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out.(*clickup.Task), nil
}

func (h *Handler) upstreamFailure(req Request, listID string, err error) Response {
	var apiErr *clickup.APIError
	switch {
	case errors.As(err, &apiErr):
		h.logger.Warn("clickup rejected task", "cliente", req.client(), "list_id", listID, "status", apiErr.StatusCode, "error", err)
		return Response{Status: apiErr.StatusCode, Body: errorBody{Error: MessageUpstreamRejected, Details: apiErr.Details()}}
	case errors.Is(err, clickup.ErrTransport),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		h.logger.Error("clickup unreachable", "cliente", req.client(), "list_id", listID, "error", err)
		return Response{Status: http.StatusInternalServerError, Body: errorBody{Error: MessageUpstreamDown, Message: err.Error()}}
	default:
		h.logger.Error("relay failed", "cliente", req.client(), "list_id", listID, "error", err)
		return Response{Status: http.StatusInternalServerError, Body: errorBody{Error: MessageInternal, Message: err.Error()}}
	}
}

func (h *Handler) observeUpstream(err error, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	var apiErr *clickup.APIError
	outcome := "success"
	switch {
	case err == nil:
	case errors.As(err, &apiErr):
		outcome = "rejected"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "open"
	default:
		outcome = "error"
	}
	h.metrics.ObserveUpstream(outcome, elapsed.Seconds())
}

// notifyLead sends the tenant e-mail. It runs in the background unless
// NotifyInline is set; failures never change the response.
func (h *Handler) notifyLead(ctx context.Context, req Request, task *clickup.Task) {
	if h.notifier == nil {
		return
	}
	lead := notify.Lead{
		Client:        req.client(),
		Name:          strings.TrimSpace(req.Name),
		Phone:         strings.TrimSpace(req.Phone),
		Region:        strings.TrimSpace(req.Region),
		City:          strings.TrimSpace(req.City),
		CreditAmount:  int(req.CreditAmount),
		HasBusiness:   isYes(req.HasBusiness),
		HasStorefront: isYes(req.HasStorefront),
		Source:        origin(req),
		TaskID:        task.ID,
		TaskURL:       task.URL,
		ReceivedAt:    h.now(),
	}
	send := func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.notifyTimeout)
		defer cancel()
		if err := h.notifier.NotifyLead(nctx, lead); err != nil {
			h.logger.Warn("lead notification failed", "cliente", lead.Client, "task_id", lead.TaskID, "error", err)
		}
	}
	if h.notifyInline {
		send()
		return
	}
	go send()
}
