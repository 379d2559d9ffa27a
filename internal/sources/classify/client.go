// Package classify implements the full-text classification client. The
// service answers ISBN lookups with an XML document carrying classification
// numbers and its own work identifiers.
package classify

import (
	"context"
	"encoding/xml"
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
const SourceName = "classify"

// Client fetches classification data for ISBNs.
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

// New creates a classification client from configuration.
func New(cfg config.SourceHTTP, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("classify base url required")
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

// response models the classification service's XML payload.
type response struct {
	XMLName xml.Name `xml:"classify"`
	Status  struct {
		Code int `xml:"code,attr"`
	} `xml:"response"`
	Work struct {
		OWI    string `xml:"owi,attr"`
		Title  string `xml:"title,attr"`
		Author string `xml:"author,attr"`
	} `xml:"work"`
	Recommendations struct {
		DDC struct {
			MostPopular struct {
				Value string `xml:"sfa,attr"`
			} `xml:"mostPopular"`
		} `xml:"ddc"`
		LCC struct {
			MostPopular struct {
				Value string `xml:"sfa,attr"`
			} `xml:"mostPopular"`
		} `xml:"lcc"`
	} `xml:"recommendations"`
}

// Classification response codes documented by the service.
const (
	codeSingleWork   = 0
	codeMultiWork    = 4
	codeNotFound     = 102
	codeInvalidInput = 101
)

// FetchBibliographic looks up classification data for an ISBN.
func (c *Client) FetchBibliographic(ctx context.Context, id identity.Identifier, _ bool) (*sources.Bundle, bool, error) {
	if id.Type != identity.TypeISBN {
		return nil, false, sources.Wrap(sources.ErrMalformed, SourceName, "fetch", fmt.Sprintf("unsupported identifier type %q", id.Type), nil)
	}
	if !identity.ValidISBN(id.Value) {
		return nil, false, sources.Wrap(sources.ErrMalformed, SourceName, "fetch", "isbn failed checksum", nil)
	}

	endpoint, err := url.Parse(c.baseURL + "/classify2/Classify")
	if err != nil {
		return nil, false, fmt.Errorf("parse classify url: %w", err)
	}
	params := url.Values{}
	params.Set("isbn", id.Value)
	params.Set("summary", "true")
	endpoint.RawQuery = params.Encode()

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, sources.Wrap(sources.ErrUnreachable, SourceName, "fetch", "execute request", err)
	}
	defer resp.Body.Close()

	if statusErr := sources.FromStatusCode(SourceName, "fetch", resp.StatusCode); statusErr != nil {
		return nil, false, statusErr
	}

	var payload response
	if err := xml.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, sources.Wrap(sources.ErrUnreachable, SourceName, "fetch", "decode response", err)
	}

	switch payload.Status.Code {
	case codeSingleWork, codeMultiWork:
	case codeNotFound:
		return nil, false, sources.Wrap(sources.ErrNotFound, SourceName, "fetch", "no classification for isbn", nil)
	case codeInvalidInput:
		return nil, false, sources.Wrap(sources.ErrMalformed, SourceName, "fetch", "service rejected isbn", nil)
	default:
		return nil, false, sources.Wrap(sources.ErrUnreachable, SourceName, "fetch", fmt.Sprintf("unexpected response code %d", payload.Status.Code), nil)
	}

	bundle := &sources.Bundle{Title: strings.TrimSpace(payload.Work.Title)}
	if author := strings.TrimSpace(payload.Work.Author); author != "" {
		bundle.Contributors = append(bundle.Contributors, sources.Contributor{Name: author})
	}
	if owi := strings.TrimSpace(payload.Work.OWI); owi != "" {
		bundle.Identifiers = append(bundle.Identifiers, sources.Linked{
			Identifier: identity.New(identity.TypeWorkID, "owi:"+owi),
			Strength:   0.9,
		})
	}
	if ddc := strings.TrimSpace(payload.Recommendations.DDC.MostPopular.Value); ddc != "" {
		bundle.Tags = append(bundle.Tags, "ddc:"+ddc)
	}
	if lcc := strings.TrimSpace(payload.Recommendations.LCC.MostPopular.Value); lcc != "" {
		bundle.Tags = append(bundle.Tags, "lcc:"+lcc)
	}
	return bundle, false, nil
}
