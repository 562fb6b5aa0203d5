// Package main runs smoke scenarios against a deployed funnel API.
//
// Scenarios cover the reject path, the qualifying path up to the contact
// step, tenant region restrictions, relay input validation and, only when
// E2E_SUBMIT=1, a real submission that creates a ClickUp task.
//
// Usage:
//
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go reject-path  # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	apiBase string
	client  = &http.Client{Timeout: 20 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...any) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type view struct {
	SessionID string `json:"session_id"`
	Step      int    `json:"step"`
	Rejected  bool   `json:"rejected"`
	Completed bool   `json:"completed"`
	Tenant    struct {
		Slug string `json:"slug"`
	} `json:"tenant"`
	Confirmation *struct {
		CreditDisplay string `json:"valor"`
	} `json:"confirmation"`
}

func call(method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, apiBase+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func sessionCall(t *T, method, path string, payload any) (view, int) {
	status, data, err := call(method, path, payload)
	if err != nil {
		t.fatalf("%s %s: %v", method, path, err)
		return view{}, status
	}
	var v view
	if status < 300 {
		if err := json.Unmarshal(data, &v); err != nil {
			t.fatalf("decode %s: %v", path, err)
		}
	}
	return v, status
}

func start(t *T, landing string) view {
	v, status := sessionCall(t, http.MethodPost, "/funnel/sessions", map[string]string{
		"path":  landing,
		"query": "utm_source=e2e",
	})
	t.check("session created", status == http.StatusCreated && v.SessionID != "")
	return v
}

func scenarioRejectPath(t *T) {
	v := start(t, "/")
	if v.SessionID == "" {
		return
	}
	base := "/funnel/sessions/" + v.SessionID
	v, _ = sessionCall(t, http.MethodPost, base+"/options", map[string]string{"value": "nao"})
	t.check("no CNPJ rejects the lead", v.Rejected)

	_, status := sessionCall(t, http.MethodPost, base+"/options", map[string]string{"value": "sim"})
	t.check("rejected session refuses further input", status == http.StatusConflict)
}

func scenarioQualifyingPath(t *T) {
	v := start(t, "/")
	if v.SessionID == "" {
		return
	}
	base := "/funnel/sessions/" + v.SessionID
	v, _ = sessionCall(t, http.MethodPost, base+"/options", map[string]string{"value": "sim"})
	t.check("CNPJ advances to step 2", v.Step == 2)
	v, _ = sessionCall(t, http.MethodPost, base+"/options", map[string]string{"value": "nao"})
	t.check("storefront answer advances to step 3", v.Step == 3)
	v, _ = sessionCall(t, http.MethodPost, base+"/credit", map[string]int{"amount": 5000})
	t.check("credit tier advances to contact", v.Step == 4)

	status, data, err := call(http.MethodPost, base+"/validate", map[string]any{"field": "whatsapp", "value": "11111111111"})
	if err != nil {
		t.fatalf("validate: %v", err)
		return
	}
	t.check("repeated digits phone is invalid", status == http.StatusOK && strings.Contains(string(data), `"valid":false`))
}

func scenarioTenantRegions(t *T) {
	v := start(t, "/serra")
	if v.SessionID == "" {
		return
	}
	t.check("serra landing resolves tenant", v.Tenant.Slug == "serra")
	status, data, err := call(http.MethodGet, "/funnel/sessions/"+v.SessionID+"/regions", nil)
	if err != nil {
		t.fatalf("regions: %v", err)
		return
	}
	var out struct {
		Regions []struct {
			Code string `json:"sigla"`
		} `json:"regions"`
	}
	_ = json.Unmarshal(data, &out)
	t.check("serra serves only ES", status == http.StatusOK && len(out.Regions) == 1 && out.Regions[0].Code == "ES")
}

func scenarioRelayValidation(t *T) {
	status, _, err := call(http.MethodGet, "/api/clickup", nil)
	if err != nil {
		t.fatalf("relay: %v", err)
		return
	}
	t.check("relay rejects GET", status == http.StatusMethodNotAllowed)

	status, data, _ := call(http.MethodPost, "/api/clickup", map[string]string{"nome": "Ana Souza"})
	t.check("relay requires whatsapp", status == http.StatusBadRequest && strings.Contains(string(data), "obrigatórios"))

	status, _, _ = call(http.MethodPost, "/api/clickup", map[string]string{"nome": "Ana Souza", "whatsapp": "11999998888", "clickup_list_id": "1"})
	t.check("relay refuses unknown list", status == http.StatusBadRequest)
}

func scenarioSubmit(t *T) {
	if os.Getenv("E2E_SUBMIT") != "1" {
		fmt.Println("    SKIP: set E2E_SUBMIT=1 to create a real task")
		return
	}
	v := start(t, "/")
	if v.SessionID == "" {
		return
	}
	base := "/funnel/sessions/" + v.SessionID
	sessionCall(t, http.MethodPost, base+"/options", map[string]string{"value": "sim"})
	sessionCall(t, http.MethodPost, base+"/options", map[string]string{"value": "sim"})
	sessionCall(t, http.MethodPost, base+"/credit", map[string]int{"amount": 2000})
	v, status := sessionCall(t, http.MethodPost, base+"/submit", map[string]string{
		"nome":             "Teste Automatizado",
		"whatsapp":         "11987654321",
		"whatsapp_confirm": "11987654321",
		"estado":           "SP",
		"cidade":           "Campinas",
	})
	t.check("submission accepted", status == http.StatusOK && v.Completed)
	t.check("confirmation shows credit", v.Confirmation != nil && v.Confirmation.CreditDisplay == "R$2.000,00")
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"reject-path", scenarioRejectPath},
		{"qualifying-path", scenarioQualifyingPath},
		{"tenant-regions", scenarioTenantRegions},
		{"relay-validation", scenarioRelayValidation},
		{"submit", scenarioSubmit},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed, totalFailed := 0, 0
	var results []string
	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}
		fmt.Printf("\nSCENARIO: %s\n", s.Name)
		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed
		status := "ok"
		if t.failed > 0 {
			status = "FAILED"
		}
		results = append(results, fmt.Sprintf("  %-6s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Println("\nSUMMARY")
	for _, r := range results {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
