// Package bookmart scrapes product pages from the commerce site. There is no
// API: the client fetches the product page for an ASIN or ISBN and extracts
// bibliographic details from the HTML. The site runs anti-bot protection;
// a challenge page surfaces as ErrChallenge so unattended batches record a
// persistent failure instead of blocking.
package bookmart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"folio/internal/config"
	"folio/internal/identity"
	"folio/internal/sources"
)

// SourceName identifies this collaborator in coverage records and equivalencies.
const SourceName = "bookmart"

// asinLinkStrength covers the page's own ISBN/ASIN cross-reference. The site
// conflates bindings under one product, so the link is a guess, not identity.
const asinLinkStrength = 0.7

var salesRankExpr = regexp.MustCompile(`#([\d,]+)\s+in\s+Books`)

// Client scrapes the commerce site's product pages.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pacer      *sources.Pacer
	userAgent  string
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

// New creates a commerce-site scraper from configuration.
func New(cfg config.SourceHTTP, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("bookmart base url required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		pacer:      sources.NewPacer(cfg.RequestsPerSecond),
		userAgent:  "Mozilla/5.0 (compatible; folio/1.0)",
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the source inside the provider registry.
func (c *Client) Name() string { return SourceName }

var _ sources.Source = (*Client)(nil)

// FetchBibliographic fetches and parses the product page for an ASIN or ISBN.
func (c *Client) FetchBibliographic(ctx context.Context, id identity.Identifier, _ bool) (*sources.Bundle, bool, error) {
	var path string
	switch id.Type {
	case identity.TypeASIN:
		path = "/dp/" + id.Value
	case identity.TypeISBN:
		if !identity.ValidISBN(id.Value) {
			return nil, false, sources.Wrap(sources.ErrMalformed, SourceName, "fetch", "isbn failed checksum", nil)
		}
		path = "/isbn/" + id.Value
	default:
		return nil, false, sources.Wrap(sources.ErrMalformed, SourceName, "fetch", fmt.Sprintf("unsupported identifier type %q", id.Type), nil)
	}

	doc, err := c.fetchDocument(ctx, c.baseURL+path)
	if err != nil {
		return nil, false, err
	}
	if isChallengePage(doc) {
		return nil, false, sources.Wrap(sources.ErrChallenge, SourceName, "fetch", "bot challenge served", nil)
	}

	bundle := c.extractBundle(doc, id)
	return bundle, false, nil
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sources.Wrap(sources.ErrUnreachable, SourceName, "fetch", "execute request", err)
	}
	defer resp.Body.Close()

	// The site serves challenges with a 200, so a successful status is not
	// enough; the document is inspected afterwards.
	if statusErr := sources.FromStatusCode(SourceName, "fetch", resp.StatusCode); statusErr != nil {
		return nil, statusErr
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, sources.Wrap(sources.ErrUnreachable, SourceName, "fetch", "parse html", err)
	}
	return doc, nil
}

func isChallengePage(doc *goquery.Document) bool {
	if doc.Find("form[action*='validateCaptcha']").Length() > 0 {
		return true
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").Text()))
	return strings.Contains(title, "robot check") || strings.Contains(title, "are you a human")
}

func (c *Client) extractBundle(doc *goquery.Document, id identity.Identifier) *sources.Bundle {
	bundle := &sources.Bundle{
		Title: strings.TrimSpace(doc.Find("#productTitle").First().Text()),
	}

	doc.Find(".author a, #bylineInfo .contributorNameID").Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Text())
		if name == "" {
			return
		}
		for _, existing := range bundle.Contributors {
			if existing.Name == name {
				return
			}
		}
		bundle.Contributors = append(bundle.Contributors, sources.Contributor{Name: name})
	})

	// Product detail rows carry the ASIN/ISBN cross reference.
	doc.Find("#detailBullets li, #productDetails tr").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		lower := strings.ToLower(text)
		switch {
		case strings.HasPrefix(lower, "asin"):
			if value := lastField(text); value != "" && id.Type != identity.TypeASIN {
				bundle.Identifiers = append(bundle.Identifiers, sources.Linked{
					Identifier: identity.New(identity.TypeASIN, value),
					Strength:   asinLinkStrength,
				})
			}
		case strings.HasPrefix(lower, "isbn-13"):
			if value := lastField(text); value != "" {
				linked := identity.New(identity.TypeISBN, value)
				if linked != id {
					bundle.Identifiers = append(bundle.Identifiers, sources.Linked{
						Identifier: linked,
						Strength:   asinLinkStrength,
					})
				}
			}
		}
	})

	if rank, ok := extractSalesRank(doc); ok {
		bundle.Measurements = append(bundle.Measurements, sources.Measurement{Name: "sales-rank", Value: rank, Weight: 0.3})
	}
	if rating, ok := extractRating(doc); ok {
		bundle.Measurements = append(bundle.Measurements, sources.Measurement{Name: "rating", Value: rating})
	}
	return bundle
}

func extractSalesRank(doc *goquery.Document) (float64, bool) {
	match := salesRankExpr.FindStringSubmatch(doc.Find("#SalesRank, #detailBullets").Text())
	if len(match) < 2 {
		return 0, false
	}
	rank, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return rank, true
}

func extractRating(doc *goquery.Document) (float64, bool) {
	text := strings.TrimSpace(doc.Find("#acrPopover .a-icon-alt, span[data-hook='rating-out-of-text']").First().Text())
	if text == "" {
		return 0, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false
	}
	rating, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return rating, true
}

func lastField(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], ":‎‏")
}
