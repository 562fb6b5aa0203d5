package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

func sampleDraft() leads.Draft {
	q := url.Values{}
	q.Set("utm_source", "facebook")
	d := leads.NewDraft(q, "", "", time.Now())
	d.Name = "Ana Souza"
	d.Phone = "11999998888"
	d.PhoneDisplay = "(11) 99999-8888"
	d.Region = "SP"
	d.City = "Campinas"
	d.HasBusiness = leads.Yes
	d.HasStorefront = leads.No
	d.CreditAmount = 5000
	return d
}

func serraConfig() tenant.Config {
	return tenant.Config{
		Slug:        "serra",
		Destination: tenant.Destination{ListID: "901324566317", Credential: "pk_serra"},
	}
}

func TestBuildPayloadModes(t *testing.T) {
	draft := sampleDraft()

	fixed := BuildPayload(draft, serraConfig(), tenant.ModeFixed)
	assert.Empty(t, fixed.ListID)
	assert.Empty(t, fixed.Token)

	allow := BuildPayload(draft, serraConfig(), tenant.ModeAllowlist)
	assert.Equal(t, "901324566317", allow.ListID)
	assert.Empty(t, allow.Token, "tokens never leave the server in allowlist mode")

	pass := BuildPayload(draft, serraConfig(), tenant.ModePassthrough)
	assert.Equal(t, "901324566317", pass.ListID)
	assert.Equal(t, "pk_serra", pass.Token)

	assert.Equal(t, "(11) 99999-8888", allow.Phone)
	assert.Equal(t, "5000", allow.CreditAmount)
	assert.Equal(t, "sim", allow.HasBusiness)
	assert.Equal(t, "nao", allow.HasStorefront)
	assert.Equal(t, "serra", allow.Client)
	assert.Equal(t, "direct", allow.Referrer)
}

func TestBuildPayloadAlwaysCarriesAttributionKeys(t *testing.T) {
	p := BuildPayload(leads.Draft{Name: "x"}, tenant.Config{}, tenant.ModeFixed)
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"utm_source", "utm_medium", "utm_campaign", "referrer"} {
		assert.Contains(t, raw, key)
		assert.IsType(t, "", raw[key])
	}
	assert.Equal(t, DefaultClient, raw["cliente"])
	assert.NotContains(t, raw, "clickup_list_id")
	assert.NotContains(t, raw, "clickup_token")
}

func newAdapter(t *testing.T, relayURL string, timeout time.Duration) *Adapter {
	t.Helper()
	a, err := New(Config{RelayURL: relayURL, Timeout: timeout, Logger: logging.New("error")})
	require.NoError(t, err)
	return a
}

func TestSubmitSuccess(t *testing.T) {
	var got Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"taskId":"86x","taskUrl":"https://app.clickup.com/t/86x"}`))
	}))
	defer server.Close()

	err := newAdapter(t, server.URL, time.Second).Submit(context.Background(), sampleDraft(), serraConfig())
	require.NoError(t, err)
	assert.Equal(t, "901324566317", got.ListID, "submission carries the tenant destination")
	assert.Equal(t, "facebook", got.UTMSource)
}

func TestSubmitFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"upstream error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"Erro ao criar task no ClickUp"}`))
		},
		"success false": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false}`))
		},
		"missing task id": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>ok</html>`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()
			err := newAdapter(t, server.URL, time.Second).Submit(context.Background(), sampleDraft(), serraConfig())
			assert.ErrorIs(t, err, ErrSubmissionFailed)
		})
	}
}

func TestSubmitTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	err := newAdapter(t, server.URL, 50*time.Millisecond).Submit(context.Background(), sampleDraft(), serraConfig())
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewRequiresRelayURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	a, err := New(Config{RelayURL: "http://relay"})
	require.NoError(t, err)
	assert.Equal(t, tenant.ModeAllowlist, a.mode)
	assert.Equal(t, defaultTimeout, a.timeout)
}
