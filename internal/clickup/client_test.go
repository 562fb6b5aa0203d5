package clickup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = server.URL
	if cfg.Token == "" {
		cfg.Token = "pk_default"
	}
	cfg.HTTPClient = server.Client()
	cfg.Backoff = time.Millisecond
	return New(cfg)
}

func TestCreateTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/list/901323227565/task" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "pk_default" {
			t.Fatalf("expected bare default token, got %q", got)
		}
		var body TaskRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Name != "Lead: Ana Souza - R$5.000,00" || body.Priority != PriorityNormal || !body.NotifyAll {
			t.Fatalf("unexpected task body %#v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"86abc","url":"https://app.clickup.com/t/86abc","name":"ignored"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	task, err := client.CreateTask(context.Background(), "901323227565", "", TaskRequest{
		Name:      "Lead: Ana Souza - R$5.000,00",
		Tags:      []string{"valor-medio"},
		Priority:  PriorityNormal,
		NotifyAll: true,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID != "86abc" || task.URL != "https://app.clickup.com/t/86abc" {
		t.Fatalf("unexpected task %#v", task)
	}
}

func TestCreateTaskUsesPerCallToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "pk_tenant" {
			t.Fatalf("expected tenant token, got %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"1","url":"u"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	if _, err := client.CreateTask(context.Background(), "42", "pk_tenant", TaskRequest{Name: "x"}); err != nil {
		t.Fatalf("create task: %v", err)
	}
}

func TestCreateTaskAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"err":"Token invalid","ECODE":"OAUTH_025"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 2})
	_, err := client.CreateTask(context.Background(), "42", "", TaskRequest{Name: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
	if apiErr.Error() != "clickup: Token invalid (OAUTH_025)" {
		t.Fatalf("unexpected message %q", apiErr.Error())
	}
	details, ok := apiErr.Details().(map[string]any)
	if !ok || details["ECODE"] != "OAUTH_025" {
		t.Fatalf("unexpected details %#v", apiErr.Details())
	}
}

func TestCreateTaskDoesNotRetryServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 3})
	_, err := client.CreateTask(context.Background(), "42", "", TaskRequest{Name: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
	if apiErr.Details() != "upstream down" {
		t.Fatalf("expected raw details, got %#v", apiErr.Details())
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestCreateTaskRetriesThrottling(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"2","url":"u"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 1})
	task, err := client.CreateTask(context.Background(), "42", "", TaskRequest{Name: "x"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID != "2" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("unexpected result task=%#v calls=%d", task, calls)
	}
}

func TestCreateTaskDoesNotRetryAfterRequestWasSent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id":"late","url":"u"}`))
	}))
	defer server.Close()

	client := New(Config{
		BaseURL:    server.URL,
		Token:      "pk_default",
		HTTPClient: &http.Client{Timeout: 50 * time.Millisecond},
		MaxRetries: 1,
		Backoff:    time.Millisecond,
	})
	_, err := client.CreateTask(context.Background(), "42", "", TaskRequest{Name: "x"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single task POST, got %d", got)
	}
}

func TestShouldRetry(t *testing.T) {
	dialErr := fmt.Errorf("post: %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	readErr := fmt.Errorf("post: %w", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("i/o timeout")})

	tests := []struct {
		name   string
		status int
		err    error
		want   bool
	}{
		{"throttled", http.StatusTooManyRequests, nil, true},
		{"server error", http.StatusBadGateway, nil, false},
		{"dial failure", 0, dialErr, true},
		{"read after write", 0, readErr, false},
		{"client timeout", 0, context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.status, tt.err); got != tt.want {
				t.Fatalf("shouldRetry(%d, %v) = %v, want %v", tt.status, tt.err, got, tt.want)
			}
		})
	}
}

func TestCreateTaskTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, server, Config{})
	server.Close()

	_, err := client.CreateTask(context.Background(), "42", "", TaskRequest{Name: "x"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestCreateTaskRequiresDestination(t *testing.T) {
	client := New(Config{})
	if _, err := client.CreateTask(context.Background(), "", "tok", TaskRequest{Name: "x"}); !errors.Is(err, ErrMissingListID) {
		t.Fatalf("expected ErrMissingListID, got %v", err)
	}
	if _, err := client.CreateTask(context.Background(), "42", "", TaskRequest{Name: "x"}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if client.HasDefaultToken() {
		t.Fatalf("expected no default token")
	}
}
