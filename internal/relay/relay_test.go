package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/esc-funnel/internal/clickup"
	"github.com/wolfman30/esc-funnel/internal/notify"
	"github.com/wolfman30/esc-funnel/internal/tenant"
)

type fakeClickUp struct {
	mu     sync.Mutex
	calls  int
	listID string
	token  string
	task   clickup.TaskRequest
	result *clickup.Task
	err    error
}

func (f *fakeClickUp) CreateTask(_ context.Context, listID, token string, task clickup.TaskRequest) (*clickup.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.listID, f.token, f.task = listID, token, task
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &clickup.Task{ID: "86abc", URL: "https://app.clickup.com/t/86abc"}, nil
}

type notifyRecorder struct {
	leads chan notify.Lead
}

func (n *notifyRecorder) NotifyLead(_ context.Context, lead notify.Lead) error {
	n.leads <- lead
	return nil
}

type statusRecorder struct {
	mu       sync.Mutex
	requests []int
	upstream []string
}

func (s *statusRecorder) ObserveRequest(_ string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, status)
}

func (s *statusRecorder) ObserveUpstream(outcome string, _ float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upstream = append(s.upstream, outcome)
}

const leadBody = `{"nome":"Ana Souza","whatsapp":"(11) 99999-8888","estado":"SP","cidade":"Americana","tem_cnpj":"sim","tem_fachada":"nao","valor_credito":"5000","utm_source":"Facebook Ads","referrer":"direct","cliente":"multicidades","clickup_list_id":"901324566139"}`

func newRelay(t *testing.T, client *fakeClickUp, mode tenant.DestinationMode) (*Handler, *statusRecorder) {
	t.Helper()
	rec := &statusRecorder{}
	h := NewHandler(client, Config{
		Mode:          mode,
		DefaultListID: tenant.DefaultListID,
		Destinations:  tenant.BuiltinRegistry().Destinations(tenant.DefaultConfig()),
		Metrics:       rec,
	})
	h.now = func() time.Time { return time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC) }
	return h, rec
}

func serve(h http.Handler, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/clickup", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRelayCORSAndMethods(t *testing.T) {
	h, _ := newRelay(t, &fakeClickUp{}, tenant.ModeAllowlist)

	w := serve(h, http.MethodOptions, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, w.Body.String())

	w = serve(h, http.MethodGet, "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, map[string]any{"error": "Method not allowed"}, jsonBody(t, w))
}

func TestRelayRejectsBadInput(t *testing.T) {
	client := &fakeClickUp{}
	h, _ := newRelay(t, client, tenant.ModeAllowlist)

	w := serve(h, http.MethodPost, `{"nome":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MessageInvalidJSON, jsonBody(t, w)["error"])

	w = serve(h, http.MethodPost, `{"nome":"Ana Souza","whatsapp":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MessageRequired, jsonBody(t, w)["error"])

	w = serve(h, http.MethodPost, `{"nome":"Ana Souza","whatsapp":"11999998888","clickup_list_id":"123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MessageListNotAllowed, jsonBody(t, w)["error"])

	assert.Zero(t, client.calls)
}

func TestRelayCreatesTask(t *testing.T) {
	client := &fakeClickUp{}
	h, rec := newRelay(t, client, tenant.ModeAllowlist)
	notifier := &notifyRecorder{leads: make(chan notify.Lead, 1)}
	h.notifier = notifier

	w := serve(h, http.MethodPost, leadBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"success": true, "taskId": "86abc", "taskUrl": "https://app.clickup.com/t/86abc"}, jsonBody(t, w))

	assert.Equal(t, "901324566139", client.listID)
	assert.Empty(t, client.token, "builtin tenants use the default token")
	assert.Equal(t, "Lead: Ana Souza - R$5.000,00", client.task.Name)
	assert.Equal(t, []string{"tem-cnpj", "utm-facebook-ads", "valor-medio"}, client.task.Tags)
	assert.Equal(t, clickup.PriorityNormal, client.task.Priority)
	assert.True(t, client.task.NotifyAll)
	assert.Contains(t, client.task.Description, "**Cliente/Rota:** multicidades")
	assert.Contains(t, client.task.Description, "**Data/Hora:** 01/03/2026 12:04:05")

	select {
	case lead := <-notifier.leads:
		assert.Equal(t, "multicidades", lead.Client)
		assert.Equal(t, "86abc", lead.TaskID)
		assert.True(t, lead.HasBusiness)
		assert.False(t, lead.HasStorefront)
	case <-time.After(time.Second):
		t.Fatal("lead notification not sent")
	}
	assert.Equal(t, []int{http.StatusOK}, rec.requests)
	assert.Equal(t, []string{"success"}, rec.upstream)
}

func TestRelayDestinationModes(t *testing.T) {
	t.Run("allowlist default list", func(t *testing.T) {
		client := &fakeClickUp{}
		h, _ := newRelay(t, client, tenant.ModeAllowlist)
		h.destinations["901323227565"] = "pk_default_owner"
		w := serve(h, http.MethodPost, `{"nome":"Ana Souza","whatsapp":"11999998888"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenant.DefaultListID, client.listID)
		assert.Equal(t, "pk_default_owner", client.token)
	})

	t.Run("fixed ignores client list", func(t *testing.T) {
		client := &fakeClickUp{}
		h, _ := newRelay(t, client, tenant.ModeFixed)
		w := serve(h, http.MethodPost, `{"nome":"Ana Souza","whatsapp":"11999998888","clickup_list_id":"123","clickup_token":"pk_x"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenant.DefaultListID, client.listID)
		assert.Empty(t, client.token)
	})

	t.Run("passthrough trusts client", func(t *testing.T) {
		client := &fakeClickUp{}
		h, _ := newRelay(t, client, tenant.ModePassthrough)
		w := serve(h, http.MethodPost, `{"nome":"Ana Souza","whatsapp":"11999998888","clickup_list_id":"123","clickup_token":"pk_x"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "123", client.listID)
		assert.Equal(t, "pk_x", client.token)
	})
}

func TestRelayMirrorsUpstreamStatus(t *testing.T) {
	client := &fakeClickUp{err: &clickup.APIError{StatusCode: http.StatusUnauthorized, Body: []byte(`{"err":"Token invalid","ECODE":"OAUTH_025"}`)}}
	h, rec := newRelay(t, client, tenant.ModeFixed)

	w := serve(h, http.MethodPost, leadBody)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := jsonBody(t, w)
	assert.Equal(t, MessageUpstreamRejected, body["error"])
	assert.Equal(t, map[string]any{"err": "Token invalid", "ECODE": "OAUTH_025"}, body["details"])
	assert.Equal(t, []string{"rejected"}, rec.upstream)
}

func TestRelayTransportFailure(t *testing.T) {
	client := &fakeClickUp{err: wrapTransport(&net.OpError{Op: "dial", Net: "tcp", Err: context.DeadlineExceeded})}
	h, _ := newRelay(t, client, tenant.ModeFixed)

	w := serve(h, http.MethodPost, leadBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := jsonBody(t, w)
	assert.Equal(t, MessageUpstreamDown, body["error"])
	assert.NotEmpty(t, body["message"])
}

func wrapTransport(err error) error {
	return fmt.Errorf("%w: %w", clickup.ErrTransport, err)
}

func TestRelayBreakerOpens(t *testing.T) {
	client := &fakeClickUp{err: wrapTransport(context.DeadlineExceeded)}
	h, rec := newRelay(t, client, tenant.ModeFixed)

	for range 3 {
		serve(h, http.MethodPost, leadBody)
	}
	w := serve(h, http.MethodPost, leadBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, MessageUpstreamDown, jsonBody(t, w)["error"])
	assert.Equal(t, 3, client.calls, "open breaker short-circuits ClickUp")
	assert.Equal(t, "open", rec.upstream[3])
}

func TestRelayClientErrorsDoNotTripBreaker(t *testing.T) {
	client := &fakeClickUp{err: &clickup.APIError{StatusCode: http.StatusBadRequest}}
	h, _ := newRelay(t, client, tenant.ModeFixed)

	for range 5 {
		serve(h, http.MethodPost, leadBody)
	}
	assert.Equal(t, 5, client.calls)
}

type panickingClient struct{}

func (panickingClient) CreateTask(context.Context, string, string, clickup.TaskRequest) (*clickup.Task, error) {
	panic("boom")
}

func TestRelayRecoversPanics(t *testing.T) {
	h := NewHandler(panickingClient{}, Config{Mode: tenant.ModeFixed})
	w := serve(h, http.MethodPost, leadBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]any{"error": MessageInternal, "message": "boom"}, jsonBody(t, w))
}

func TestAmountAcceptsNumbersAndStrings(t *testing.T) {
	cases := map[string]Amount{
		`5000`:      5000,
		`"10000"`:   10000,
		`"1500.75"`: 1500,
		`2000.9`:    2000,
		`"abc"`:     0,
		`null`:      0,
		`""`:        0,
	}
	for raw, want := range cases {
		var req Request
		require.NoError(t, json.Unmarshal([]byte(`{"valor_credito":`+raw+`}`), &req), raw)
		assert.Equal(t, want, req.CreditAmount, raw)
	}
}

func TestCreditTags(t *testing.T) {
	for amount, want := range map[Amount]string{
		0:     "valor-baixo",
		2000:  "valor-baixo",
		2001:  "valor-medio",
		5000:  "valor-medio",
		5001:  "valor-alto",
		20000: "valor-alto",
	} {
		tags := Tags(Request{CreditAmount: amount})
		assert.Equal(t, []string{want}, tags, amount)
	}
}

func TestBuildTaskDescription(t *testing.T) {
	task := BuildTask(Request{Name: " Jo Xu ", Phone: "21987651234", HasBusiness: "não", CreditAmount: 1000}, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, "Lead: Jo Xu - R$1.000,00", task.Name)
	for _, want := range []string{
		"**Localização:** - - -",
		"**Tem CNPJ:** Não",
		"**Cliente/Rota:** default",
		"**Origem:** Acesso direto",
		"**Mídia:** -",
		"**Data/Hora:** 02/01/2026 00:00:00",
	} {
		assert.Contains(t, task.Description, want)
	}
}

func TestRelayInlineNotificationCompletesBeforeResponse(t *testing.T) {
	client := &fakeClickUp{}
	h, _ := newRelay(t, client, tenant.ModeAllowlist)
	h.notifier = &notifyRecorder{leads: make(chan notify.Lead, 1)}
	h.notifyInline = true

	resp := h.Handle(context.Background(), http.MethodPost, []byte(leadBody))
	require.Equal(t, http.StatusOK, resp.Status)

	select {
	case lead := <-h.notifier.(*notifyRecorder).leads:
		assert.Equal(t, "multicidades", lead.Client)
	default:
		t.Fatal("expected notification to be sent before Handle returned")
	}
}
