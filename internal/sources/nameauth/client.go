// Package nameauth implements the name-authority client. The authority keeps
// canonical contributor records; the resolver uses it to normalize author
// names and to resolve authority-record URIs discovered in other sources'
// contributor hints.
package nameauth

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

// SourceName identifies this collaborator in coverage records.
const SourceName = "name-authority"

// Client fetches canonical contributor records.
type Client struct {
	baseURL    string
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

// New creates a name-authority client from configuration.
func New(cfg config.SourceHTTP, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("name authority base url required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &Client{
		baseURL:    baseURL,
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

type record struct {
	URI          string   `json:"uri"`
	Name         string   `json:"name"`
	VariantNames []string `json:"variant_names"`
	Works        []struct {
		Key   string `json:"key"`
		Title string `json:"title"`
	} `json:"works"`
}

// FetchBibliographic resolves an authority-record URI into its canonical
// contributor and any catalog works the authority attributes to them.
func (c *Client) FetchBibliographic(ctx context.Context, id identity.Identifier, _ bool) (*sources.Bundle, bool, error) {
	if id.Type != identity.TypeURI {
		return nil, false, sources.Wrap(sources.ErrMalformed, SourceName, "fetch", fmt.Sprintf("unsupported identifier type %q", id.Type), nil)
	}

	rec, err := c.getRecord(ctx, c.baseURL+"/records/"+url.PathEscape(id.Value)+".json")
	if err != nil {
		return nil, false, err
	}

	bundle := &sources.Bundle{}
	if name := strings.TrimSpace(rec.Name); name != "" {
		bundle.Contributors = append(bundle.Contributors, sources.Contributor{
			Name:            name,
			IdentifierHints: []string{rec.URI},
		})
	}
	for _, work := range rec.Works {
		key := strings.TrimSpace(work.Key)
		if key == "" {
			continue
		}
		bundle.Identifiers = append(bundle.Identifiers, sources.Linked{
			Identifier: identity.New(identity.TypeWorkID, key),
			Strength:   0.6,
		})
	}
	return bundle, false, nil
}

// CanonicalName resolves a raw contributor name to its authority form. The
// empty string with a nil error means the authority has no opinion.
func (c *Client) CanonicalName(ctx context.Context, rawName string) (string, error) {
	rawName = strings.TrimSpace(rawName)
	if rawName == "" {
		return "", nil
	}

	endpoint, err := url.Parse(c.baseURL + "/search.json")
	if err != nil {
		return "", fmt.Errorf("parse authority url: %w", err)
	}
	params := url.Values{}
	params.Set("q", rawName)
	endpoint.RawQuery = params.Encode()

	rec, err := c.getRecord(ctx, endpoint.String())
	if err != nil {
		if errors.Is(err, sources.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(rec.Name), nil
}

func (c *Client) getRecord(ctx context.Context, endpoint string) (*record, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sources.Wrap(sources.ErrUnreachable, SourceName, "fetch", "execute request", err)
	}
	defer resp.Body.Close()

	if statusErr := sources.FromStatusCode(SourceName, "fetch", resp.StatusCode); statusErr != nil {
		return nil, statusErr
	}

	var rec record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, sources.Wrap(sources.ErrUnreachable, SourceName, "fetch", "decode response", err)
	}
	return &rec, nil
}
