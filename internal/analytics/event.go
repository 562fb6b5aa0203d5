// Package analytics carries funnel events to tag-manager, pixel and queue
// sinks on a best-effort side channel. Nothing here returns an error to the
// funnel.
package analytics

import (
	"context"
	"time"
)

// Funnel event names, as pushed to the tag-manager data layer.
const (
	EventFunnelStart     = "funnel_start"
	EventOptionSelected  = "option_selected"
	EventValueSelected   = "value_selected"
	EventPageView        = "page_view"
	EventLeadRejected    = "lead_rejected"
	EventLeadConverted   = "lead_converted"
	EventSubmissionError = "submission_error"
)

// Event is one funnel notification.
type Event struct {
	Name       string            `json:"event"`
	SessionID  string            `json:"session_id"`
	Tenant     string            `json:"cliente"`
	Params     map[string]string `json:"params,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier accepts events without reporting failures.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

// PixelEvent is a standard ad-pixel event derived from a funnel event.
type PixelEvent struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}

// PixelEvents maps a funnel event to the pixel events it triggers. Most
// funnel events have no pixel counterpart.
func PixelEvents(name string) []PixelEvent {
	switch name {
	case EventFunnelStart:
		return []PixelEvent{{Name: "ViewContent", Params: map[string]string{"content_name": "Funnel Start"}}}
	case EventLeadConverted:
		return []PixelEvent{{Name: "Lead"}, {Name: "Purchase"}}
	case EventPageView:
		return []PixelEvent{{Name: "PageView"}}
	}
	return nil
}

// Envelope is what sinks receive: the event plus its tag-manager and pixel
// renditions for the tenant.
type Envelope struct {
	Event        Event          `json:"event"`
	DataLayer    map[string]any `json:"data_layer"`
	PixelID      string         `json:"pixel_id,omitempty"`
	TagManagerID string         `json:"gtm_id,omitempty"`
	Pixel        []PixelEvent   `json:"pixel,omitempty"`
}

// NewEnvelope builds the sink payload. Pixel events are only attached when
// the tenant has a pixel id.
func NewEnvelope(event Event, pixelID, tagManagerID string) Envelope {
	layer := make(map[string]any, len(event.Params)+1)
	for k, v := range event.Params {
		layer[k] = v
	}
	layer["event"] = event.Name
	env := Envelope{
		Event:        event,
		DataLayer:    layer,
		PixelID:      pixelID,
		TagManagerID: tagManagerID,
	}
	if pixelID != "" {
		env.Pixel = PixelEvents(event.Name)
	}
	return env
}
