// Package opencatalog implements the union-catalog client. The catalog
// exposes a JSON search API keyed by ISBN and per-work JSON documents keyed
// by catalog work ID.
package opencatalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"folio/internal/config"
	"folio/internal/identity"
	"folio/internal/sources"
)

// SourceName identifies this collaborator in coverage records and equivalencies.
const SourceName = "open-catalog"

// Strength assigned to catalog-asserted identifier links. The catalog states
// the work key outright, so that link is treated as identical; sibling ISBNs
// under the same work are a cross-source guess.
const (
	workLinkStrength    = 1.0
	siblingISBNStrength = 0.75
)

// Client fetches bibliographic data from the union catalog.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pacer      *sources.Pacer

	mu    sync.Mutex
	cache map[identity.Identifier]*sources.Bundle
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

// New creates a union-catalog client from configuration.
func New(cfg config.SourceHTTP, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("open catalog base url required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		pacer:      sources.NewPacer(cfg.RequestsPerSecond),
		cache:      make(map[identity.Identifier]*sources.Bundle),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the source inside the provider registry.
func (c *Client) Name() string { return SourceName }

var _ sources.Source = (*Client)(nil)

type searchResponse struct {
	NumFound int `json:"num_found"`
	Docs     []struct {
		Key            string   `json:"key"`
		Title          string   `json:"title"`
		AuthorNames    []string `json:"author_name"`
		AuthorKeys     []string `json:"author_key"`
		ISBNs          []string `json:"isbn"`
		Languages      []string `json:"language"`
		Subjects       []string `json:"subject"`
		EditionCount   float64  `json:"edition_count"`
		RatingsAverage float64  `json:"ratings_average"`
	} `json:"docs"`
}

type workResponse struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Subjects    []string `json:"subjects"`
	Description string   `json:"description"`
}

// FetchBibliographic consults the catalog for an ISBN or catalog work ID.
// Results are memoized per identifier; forceRefresh bypasses the memo.
func (c *Client) FetchBibliographic(ctx context.Context, id identity.Identifier, forceRefresh bool) (*sources.Bundle, bool, error) {
	if !forceRefresh {
		c.mu.Lock()
		cached, ok := c.cache[id]
		c.mu.Unlock()
		if ok {
			return cached, true, nil
		}
	}

	var (
		bundle *sources.Bundle
		err    error
	)
	switch id.Type {
	case identity.TypeISBN:
		bundle, err = c.fetchByISBN(ctx, id)
	case identity.TypeWorkID:
		bundle, err = c.fetchWork(ctx, id)
	default:
		return nil, false, sources.Wrap(sources.ErrMalformed, SourceName, "fetch", fmt.Sprintf("unsupported identifier type %q", id.Type), nil)
	}
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.cache[id] = bundle
	c.mu.Unlock()
	return bundle, false, nil
}

func (c *Client) fetchByISBN(ctx context.Context, id identity.Identifier) (*sources.Bundle, error) {
	if !identity.ValidISBN(id.Value) {
		return nil, sources.Wrap(sources.ErrMalformed, SourceName, "search", "isbn failed checksum", nil)
	}

	endpoint, err := url.Parse(c.baseURL + "/search.json")
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	params := url.Values{}
	params.Set("isbn", id.Value)
	endpoint.RawQuery = params.Encode()

	var payload searchResponse
	if err := c.getJSON(ctx, endpoint.String(), "search", &payload); err != nil {
		return nil, err
	}
	if payload.NumFound == 0 || len(payload.Docs) == 0 {
		return nil, sources.Wrap(sources.ErrNotFound, SourceName, "search", "no documents for isbn", nil)
	}

	doc := payload.Docs[0]
	bundle := &sources.Bundle{Title: strings.TrimSpace(doc.Title)}
	if len(doc.Languages) > 0 {
		bundle.Language = doc.Languages[0]
	}
	if key := strings.TrimSpace(doc.Key); key != "" {
		bundle.Identifiers = append(bundle.Identifiers, sources.Linked{
			Identifier: identity.New(identity.TypeWorkID, key),
			Strength:   workLinkStrength,
		})
	}
	for _, sibling := range doc.ISBNs {
		sibling = strings.TrimSpace(sibling)
		if sibling == "" {
			continue
		}
		linked := identity.New(identity.TypeISBN, sibling)
		if linked == id {
			continue
		}
		bundle.Identifiers = append(bundle.Identifiers, sources.Linked{
			Identifier: linked,
			Strength:   siblingISBNStrength,
		})
	}
	for i, name := range doc.AuthorNames {
		contributor := sources.Contributor{Name: strings.TrimSpace(name)}
		if i < len(doc.AuthorKeys) {
			contributor.IdentifierHints = []string{doc.AuthorKeys[i]}
		}
		bundle.Contributors = append(bundle.Contributors, contributor)
	}
	bundle.Tags = append(bundle.Tags, doc.Subjects...)
	if doc.RatingsAverage > 0 {
		bundle.Measurements = append(bundle.Measurements, sources.Measurement{Name: "rating", Value: doc.RatingsAverage})
	}
	if doc.EditionCount > 0 {
		bundle.Measurements = append(bundle.Measurements, sources.Measurement{Name: "edition-count", Value: doc.EditionCount, Weight: 0.5})
	}
	return bundle, nil
}

func (c *Client) fetchWork(ctx context.Context, id identity.Identifier) (*sources.Bundle, error) {
	endpoint := c.baseURL + "/works/" + url.PathEscape(id.Value) + ".json"

	var payload workResponse
	if err := c.getJSON(ctx, endpoint, "work", &payload); err != nil {
		return nil, err
	}

	bundle := &sources.Bundle{Title: strings.TrimSpace(payload.Title)}
	for _, name := range payload.Authors {
		if name = strings.TrimSpace(name); name != "" {
			bundle.Contributors = append(bundle.Contributors, sources.Contributor{Name: name})
		}
	}
	bundle.Tags = append(bundle.Tags, payload.Subjects...)
	if desc := strings.TrimSpace(payload.Description); desc != "" {
		bundle.Descriptions = append(bundle.Descriptions, desc)
	}
	return bundle, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, operation string, target any) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sources.Wrap(sources.ErrUnreachable, SourceName, operation, "execute request", err)
	}
	defer resp.Body.Close()

	if statusErr := sources.FromStatusCode(SourceName, operation, resp.StatusCode); statusErr != nil {
		return statusErr
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return sources.Wrap(sources.ErrUnreachable, SourceName, operation, "decode response", err)
	}
	return nil
}
