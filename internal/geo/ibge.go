package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultIBGEBaseURL = "https://servicodados.ibge.gov.br/api/v1/localidades"

// CityLookup fetches the municipalities of a region.
type CityLookup interface {
	Municipalities(ctx context.Context, region string) ([]string, error)
}

// IBGEClient reads municipality lists from the IBGE localidades API.
type IBGEClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIBGEClient builds a client. Empty baseURL uses the public endpoint.
func NewIBGEClient(baseURL string, timeout time.Duration) *IBGEClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultIBGEBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &IBGEClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Municipalities returns the city names of region ordered by name.
func (c *IBGEClient) Municipalities(ctx context.Context, region string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/estados/%s/municipios?orderBy=nome", c.baseURL, url.PathEscape(region))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d for %s", ErrLookupFailed, resp.StatusCode, region)
	}

	var payload []struct {
		Nome string `json:"nome"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLookupFailed, err)
	}
	cities := make([]string, 0, len(payload))
	for _, m := range payload {
		if name := strings.TrimSpace(m.Nome); name != "" {
			cities = append(cities, name)
		}
	}
	if len(cities) == 0 {
		return nil, fmt.Errorf("%w: empty list for %s", ErrLookupFailed, region)
	}
	return cities, nil
}
