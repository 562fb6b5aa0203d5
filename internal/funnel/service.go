package funnel

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/esc-funnel/internal/analytics"
	"github.com/wolfman30/esc-funnel/internal/geo"
	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/internal/validation"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// CityProvider lists selectable cities for a tenant and region.
type CityProvider interface {
	Cities(ctx context.Context, cfg tenant.Config, region string) (geo.CityList, error)
}

type serviceMetrics interface {
	ObserveTransition(variant, from, to string)
	ObserveSubmission(tenant, outcome string)
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Registry   *tenant.Registry
	Default    tenant.Config
	Store      leads.DraftStore
	Submitter  Submitter
	Notifier   analytics.Notifier
	Cities     CityProvider
	Metrics    serviceMetrics
	PurgeDelay time.Duration
	WhatsApp   WhatsApp
	Logger     *logging.Logger
}

// Service owns funnel sessions: it resolves the tenant once per session,
// persists state through the draft store around every action and
// deduplicates concurrent submits.
type Service struct {
	registry   *tenant.Registry
	defaults   tenant.Config
	store      leads.DraftStore
	submitter  Submitter
	notifier   analytics.Notifier
	cities     CityProvider
	metrics    serviceMetrics
	purgeDelay time.Duration
	whatsapp   WhatsApp
	logger     *logging.Logger

	submits singleflight.Group
	newID   func() string
	now     func() time.Time
}

// NewService builds a Service. Store is required.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		panic("funnel: draft store required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = analytics.NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.PurgeDelay < 0 {
		cfg.PurgeDelay = 0
	}
	return &Service{
		registry:   cfg.Registry,
		defaults:   cfg.Default,
		store:      cfg.Store,
		submitter:  cfg.Submitter,
		notifier:   cfg.Notifier,
		cities:     cfg.Cities,
		metrics:    cfg.Metrics,
		purgeDelay: cfg.PurgeDelay,
		whatsapp:   cfg.WhatsApp,
		logger:     cfg.Logger,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// StartInput describes the landing request that opens a session.
type StartInput struct {
	Path              string `json:"path"`
	Query             string `json:"query"`
	Referrer          string `json:"referrer"`
	PreviousSessionID string `json:"previous_session_id"`
	UserAgent         string `json:"-"`
}

// Start opens a session for the tenant named by the landing path.
func (s *Service) Start(ctx context.Context, in StartInput) (*View, error) {
	cfg := tenant.Resolve(in.Path, s.registry, s.defaults)
	query, err := url.ParseQuery(strings.TrimPrefix(in.Query, "?"))
	if err != nil {
		s.logger.Debug("ignoring malformed landing query", "error", err)
	}
	draft := leads.NewDraft(query, in.Referrer, in.UserAgent, s.now())

	if prev := strings.TrimSpace(in.PreviousSessionID); prev != "" {
		draft = s.restore(ctx, prev, draft)
	}

	state := State{
		SessionID: s.newID(),
		Step:      1,
		Tenant:    cfg,
		Draft:     draft,
	}
	m := s.machine(state)
	m.Start(ctx)
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("funnel session started",
		"session_id", state.SessionID,
		"cliente", cfg.Slug,
		"variant", m.Variant().Name,
	)
	return newView(m, s.whatsapp), nil
}

// restore reuses a previous session's unfinished answers. Campaign
// attribution from the new landing wins when present.
func (s *Service) restore(ctx context.Context, prev string, fresh leads.Draft) leads.Draft {
	restored, err := leads.Restore(ctx, s.store, prev)
	switch {
	case err == nil:
	case errors.Is(err, leads.ErrDraftNotFound), errors.Is(err, leads.ErrDraftCompleted):
		return fresh
	default:
		s.logger.Warn("draft restore failed", "previous_session_id", prev, "error", err)
		return fresh
	}
	if len(fresh.Attribution) > 0 {
		restored.Attribution = fresh.Attribution
		restored.Referrer = fresh.Referrer
	}
	restored.UserAgent = fresh.UserAgent
	restored.Completed = false
	if err := s.store.Delete(ctx, prev); err != nil && !errors.Is(err, leads.ErrDraftNotFound) {
		s.logger.Warn("previous session cleanup failed", "previous_session_id", prev, "error", err)
	}
	return *restored
}

// Get returns the current view of a session.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newView(m, s.whatsapp), nil
}

// SelectOption answers the current choice step.
func (s *Service) SelectOption(ctx context.Context, id, value string) (*View, error) {
	return s.mutate(ctx, id, func(m *Machine) error { return m.SelectOption(ctx, value) })
}

// SelectCredit picks the credit amount.
func (s *Service) SelectCredit(ctx context.Context, id string, amount int) (*View, error) {
	return s.mutate(ctx, id, func(m *Machine) error { return m.SelectCredit(ctx, amount) })
}

// GoTo navigates to an already reachable step.
func (s *Service) GoTo(ctx context.Context, id string, step int) (*View, error) {
	return s.mutate(ctx, id, func(m *Machine) error { return m.GoTo(ctx, step) })
}

// ValidateField checks one contact input under the session tenant's rules.
func (s *Service) ValidateField(ctx context.Context, id string, field validation.FieldID, value, primaryPhone, region string) (validation.Result, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return validation.Result{}, err
	}
	return validation.Validate(field, value, m.Related(primaryPhone, strings.TrimSpace(region))), nil
}

// Submit validates the contact form and sends the lead. Concurrent submits
// for the same session share one attempt.
func (s *Service) Submit(ctx context.Context, id string, contact Contact) (*View, error) {
	v, err, shared := s.submits.Do(id, func() (any, error) {
		return s.submit(ctx, id, contact)
	})
	if shared {
		s.logger.Debug("duplicate submit joined in-flight attempt", "session_id", id)
	}
	if err != nil {
		return nil, err
	}
	return v.(*View), nil
}

func (s *Service) submit(ctx context.Context, id string, contact Contact) (*View, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	slug := m.State().Tenant.Slug

	err = m.Submit(ctx, contact)
	var vErr *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &vErr):
		return nil, err
	case errors.Is(err, ErrSubmissionFailed):
		s.observeSubmission(slug, "failure")
		s.logger.Warn("lead submission failed", "session_id", id, "cliente", slug, "error", err)
		if saveErr := s.save(ctx, m); saveErr != nil {
			s.logger.Error("saving draft after failed submit", "session_id", id, "error", saveErr)
		}
		return nil, err
	default:
		return nil, err
	}

	s.observeSubmission(slug, "success")
	if err := s.save(ctx, m); err != nil {
		s.logger.Error("saving completed session", "session_id", id, "error", err)
	} else if err := s.store.PurgeAfter(ctx, id, s.purgeDelay); err != nil {
		s.logger.Warn("scheduling draft purge", "session_id", id, "error", err)
	}
	s.logger.Info("lead converted", "session_id", id, "cliente", slug)
	return newView(m, s.whatsapp), nil
}

// Regions lists the regions the session's tenant serves.
func (s *Service) Regions(ctx context.Context, id string) ([]geo.Region, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return geo.RegionsFor(m.State().Tenant), nil
}

// Cities lists the selectable cities of region for the session's tenant.
func (s *Service) Cities(ctx context.Context, id, region string) (geo.CityList, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return geo.CityList{}, err
	}
	if s.cities == nil {
		return geo.CityList{}, geo.ErrLookupFailed
	}
	return s.cities.Cities(ctx, m.State().Tenant, strings.TrimSpace(region))
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*Machine) error) (*View, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(m); err != nil {
		return nil, err
	}
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	return newView(m, s.whatsapp), nil
}

func (s *Service) machine(state State) *Machine {
	variant, ok := VariantByName(state.Tenant.Variant)
	if !ok {
		s.logger.Warn("unknown funnel variant, using canonical", "variant", state.Tenant.Variant, "cliente", state.Tenant.Slug)
		variant, _ = VariantByName(VariantCanonical)
	}
	m := NewMachine(variant, state, s.submitter, s.notifier)
	if s.metrics != nil {
		m.WithMetrics(s.metrics)
	}
	return m
}

func (s *Service) load(ctx context.Context, id string) (*Machine, error) {
	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.machine(State{
		SessionID: rec.ID,
		Step:      rec.Step,
		Rejected:  rec.Rejected,
		Tenant:    rec.Tenant,
		Draft:     rec.Draft,
	}), nil
}

func (s *Service) save(ctx context.Context, m *Machine) error {
	st := m.State()
	return s.store.Save(ctx, &leads.SessionRecord{
		ID:        st.SessionID,
		Step:      st.Step,
		Rejected:  st.Rejected,
		Tenant:    st.Tenant,
		Draft:     st.Draft,
		UpdatedAt: s.now().UTC(),
	})
}

func (s *Service) observeSubmission(slug, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveSubmission(slug, outcome)
	}
}
