// Package vendorcirc implements the vendor circulation API client. The vendor
// knows its own catalog IDs, the ISBNs behind them, and circulation counts
// that become acquirability measurements.
package vendorcirc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"folio/internal/config"
	"folio/internal/identity"
	"folio/internal/sources"
)

// SourceName identifies this collaborator in coverage records and equivalencies.
const SourceName = "vendor-circulation"

// Client calls the vendor's item availability API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	pacer      *sources.Pacer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a vendor circulation client from configuration.
func New(cfg config.SourceHTTP, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("vendor circulation base url required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("vendor circulation api key required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		pacer:      sources.NewPacer(cfg.RequestsPerSecond),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the source inside the provider registry.
func (c *Client) Name() string { return SourceName }

var _ sources.Source = (*Client)(nil)

type itemResponse struct {
	VendorID        string   `json:"vendor_id"`
	Title           string   `json:"title"`
	ISBN13          string   `json:"isbn13"`
	Authors         []string `json:"authors"`
	Language        string   `json:"language"`
	CopiesOwned     float64  `json:"copies_owned"`
	CopiesAvailable float64  `json:"copies_available"`
	Holds           float64  `json:"holds"`
}

// FetchBibliographic fetches availability and bibliographic data for a vendor
// catalog ID.
func (c *Client) FetchBibliographic(ctx context.Context, id identity.Identifier, _ bool) (*sources.Bundle, bool, error) {
	if id.Type != identity.TypeVendor {
		return nil, false, sources.Wrap(sources.ErrMalformed, SourceName, "fetch", fmt.Sprintf("unsupported identifier type %q", id.Type), nil)
	}

	endpoint := c.baseURL + "/v1/items/" + url.PathEscape(id.Value) + "/availability"
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, sources.Wrap(sources.ErrUnreachable, SourceName, "fetch", "execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, false, sources.Wrap(sources.ErrChallenge, SourceName, "fetch", "api key rejected", nil)
	}
	if statusErr := sources.FromStatusCode(SourceName, "fetch", resp.StatusCode); statusErr != nil {
		return nil, false, statusErr
	}

	var item itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, false, sources.Wrap(sources.ErrUnreachable, SourceName, "fetch", "decode response", err)
	}

	bundle := &sources.Bundle{
		Title:    strings.TrimSpace(item.Title),
		Language: strings.TrimSpace(item.Language),
	}
	if isbn := strings.TrimSpace(item.ISBN13); isbn != "" {
		bundle.Identifiers = append(bundle.Identifiers, sources.Linked{
			Identifier: identity.New(identity.TypeISBN, isbn),
			Strength:   1.0,
		})
	}
	for _, name := range item.Authors {
		if name = strings.TrimSpace(name); name != "" {
			bundle.Contributors = append(bundle.Contributors, sources.Contributor{Name: name})
		}
	}
	bundle.Measurements = append(bundle.Measurements,
		sources.Measurement{Name: "copies-owned", Value: item.CopiesOwned},
		sources.Measurement{Name: "copies-available", Value: item.CopiesAvailable},
	)
	if item.Holds > 0 {
		bundle.Measurements = append(bundle.Measurements, sources.Measurement{Name: "holds", Value: item.Holds, Weight: 0.5})
	}
	return bundle, false, nil
}
