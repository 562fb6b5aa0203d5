package leads

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DraftStore persists funnel sessions between requests.
type DraftStore interface {
	Save(ctx context.Context, rec *SessionRecord) error
	Load(ctx context.Context, id string) (*SessionRecord, error)
	Delete(ctx context.Context, id string) error
	// PurgeAfter schedules removal of the record once delay elapses.
	PurgeAfter(ctx context.Context, id string, delay time.Duration) error
}

// Restore loads a previous session's draft for reuse in a new session. A
// completed draft is stale: it is deleted and ErrDraftCompleted is returned.
func Restore(ctx context.Context, store DraftStore, id string) (*Draft, error) {
	rec, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Draft.Completed {
		if delErr := store.Delete(ctx, id); delErr != nil && !errors.Is(delErr, ErrDraftNotFound) {
			return nil, delErr
		}
		return nil, ErrDraftCompleted
	}
	draft := rec.Draft
	return &draft, nil
}

// InMemoryRepository keeps sessions in process memory. Used in development
// and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]SessionRecord
	timers  map[string]*time.Timer
}

// NewInMemoryRepository creates an empty in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]SessionRecord),
		timers:  make(map[string]*time.Timer),
	}
}

// Save stores a copy of rec.
func (r *InMemoryRepository) Save(_ context.Context, rec *SessionRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrMissingSessionID
	}
	r.mu.Lock()
	r.records[rec.ID] = cloneRecord(*rec)
	r.mu.Unlock()
	return nil
}

// Load returns a copy of the stored record.
func (r *InMemoryRepository) Load(_ context.Context, id string) (*SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

// Delete removes the record.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	if _, ok := r.records[id]; !ok {
		return ErrDraftNotFound
	}
	delete(r.records, id)
	return nil
}

// PurgeAfter removes the record after delay.
func (r *InMemoryRepository) PurgeAfter(_ context.Context, id string, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return ErrDraftNotFound
	}
	if t, ok := r.timers[id]; ok {
		t.Stop()
	}
	if delay <= 0 {
		delete(r.records, id)
		delete(r.timers, id)
		return nil
	}
	r.timers[id] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.records, id)
		delete(r.timers, id)
		r.mu.Unlock()
	})
	return nil
}

func cloneRecord(rec SessionRecord) SessionRecord {
	out := rec
	out.Tenant = rec.Tenant.Clone()
	if rec.Draft.Attribution != nil {
		out.Draft.Attribution = make(map[string]string, len(rec.Draft.Attribution))
		for k, v := range rec.Draft.Attribution {
			out.Draft.Attribution[k] = v
		}
	}
	return out
}
