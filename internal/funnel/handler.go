package funnel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/esc-funnel/internal/geo"
	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/validation"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// MessageSubmitFailed is shown when the lead could not be sent.
const MessageSubmitFailed = "Ocorreu um erro. Por favor, tente novamente."

// MessageCitiesFailed is shown when the city list could not be loaded.
const MessageCitiesFailed = "Erro ao carregar"

type sessionService interface {
	Start(ctx context.Context, in StartInput) (*View, error)
	Get(ctx context.Context, id string) (*View, error)
	SelectOption(ctx context.Context, id, value string) (*View, error)
	SelectCredit(ctx context.Context, id string, amount int) (*View, error)
	GoTo(ctx context.Context, id string, step int) (*View, error)
	ValidateField(ctx context.Context, id string, field validation.FieldID, value, primaryPhone, region string) (validation.Result, error)
	Submit(ctx context.Context, id string, contact Contact) (*View, error)
	Regions(ctx context.Context, id string) ([]geo.Region, error)
	Cities(ctx context.Context, id, region string) (geo.CityList, error)
}

// Handler exposes funnel sessions over HTTP.
type Handler struct {
	service sessionService
	logger  *logging.Logger
}

// NewHandler creates a funnel handler.
func NewHandler(service sessionService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the session endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.StartSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/options", h.SelectOption)
		r.Post("/credit", h.SelectCredit)
		r.Post("/goto", h.GoTo)
		r.Post("/validate", h.ValidateField)
		r.Post("/submit", h.Submit)
		r.Get("/regions", h.Regions)
		r.Get("/cities", h.Cities)
	})
}

type errorResponse struct {
	Error   string                                   `json:"error"`
	Field   validation.FieldID                       `json:"field,omitempty"`
	Results map[validation.FieldID]validation.Result `json:"results,omitempty"`
}

// StartSession handles POST /funnel/sessions.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var in StartInput
	if !h.decode(w, r, &in) {
		return
	}
	if in.Referrer == "" {
		in.Referrer = r.Referer()
	}
	in.UserAgent = r.UserAgent()

	view, err := h.service.Start(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetSession handles GET /funnel/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, view, err)
}

// SelectOption handles POST /funnel/sessions/{id}/options.
func (h *Handler) SelectOption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SelectOption(r.Context(), chi.URLParam(r, "id"), req.Value)
	h.respond(w, r, view, err)
}

// SelectCredit handles POST /funnel/sessions/{id}/credit.
func (h *Handler) SelectCredit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int `json:"amount"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SelectCredit(r.Context(), chi.URLParam(r, "id"), req.Amount)
	h.respond(w, r, view, err)
}

// GoTo handles POST /funnel/sessions/{id}/goto.
func (h *Handler) GoTo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step int `json:"step"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.GoTo(r.Context(), chi.URLParam(r, "id"), req.Step)
	h.respond(w, r, view, err)
}

// ValidateField handles POST /funnel/sessions/{id}/validate.
func (h *Handler) ValidateField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field   validation.FieldID `json:"field"`
		Value   string             `json:"value"`
		Related struct {
			Phone  string `json:"whatsapp"`
			Region string `json:"estado"`
		} `json:"related"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.ValidateField(r.Context(), chi.URLParam(r, "id"), req.Field, req.Value, req.Related.Phone, req.Related.Region)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Submit handles POST /funnel/sessions/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var contact Contact
	if !h.decode(w, r, &contact) {
		return
	}
	view, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"), contact)
	h.respond(w, r, view, err)
}

// Regions handles GET /funnel/sessions/{id}/regions.
func (h *Handler) Regions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.service.Regions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": regions})
}

// Cities handles GET /funnel/sessions/{id}/cities?region=UF.
func (h *Handler) Cities(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Cities(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("region"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(dst); err != nil {
		h.logger.Debug("failed to decode request", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "JSON inválido"})
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, view *View, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: vErr.Message, Field: vErr.Field, Results: vErr.Results})
	case errors.Is(err, leads.ErrDraftNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
	case errors.Is(err, ErrSessionClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "session closed"})
	case errors.Is(err, ErrUnknownOption), errors.Is(err, ErrWrongStep):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrSubmissionFailed):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: MessageSubmitFailed})
	case errors.Is(err, geo.ErrUnknownRegion), errors.Is(err, geo.ErrRegionNotServed):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, geo.ErrLookupFailed):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: MessageCitiesFailed})
	default:
		h.logger.Error("funnel request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
