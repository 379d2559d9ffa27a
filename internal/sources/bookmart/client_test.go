package bookmart_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"folio/internal/config"
	"folio/internal/identity"
	"folio/internal/sources"
	"folio/internal/sources/bookmart"
)

const productPage = `<html>
<head><title>Ancillary Justice</title></head>
<body>
  <span id="productTitle"> Ancillary Justice </span>
  <div id="bylineInfo"><span class="author"><a href="/author">Ann Leckie</a></span></div>
  <ul id="detailBullets">
    <li>ASIN : B00BAXFAOW</li>
    <li>ISBN-13 : 9780316246620</li>
    <li>Best Sellers Rank: #1,234 in Books</li>
  </ul>
  <span id="acrPopover"><span class="a-icon-alt">4.3 out of 5 stars</span></span>
</body>
</html>`

const challengePage = `<html>
<head><title>Robot Check</title></head>
<body><form action="/errors/validateCaptcha"><input type="text"></form></body>
</html>`

func newClient(t *testing.T, handler http.Handler) *bookmart.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := bookmart.New(config.SourceHTTP{BaseURL: server.URL, RequestsPerSecond: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestFetchProductPage(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dp/B00BAXFAOW" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a user agent header")
		}
		w.Write([]byte(productPage))
	}))

	id := identity.New(identity.TypeASIN, "B00BAXFAOW")
	bundle, _, err := client.FetchBibliographic(context.Background(), id, false)
	if err != nil {
		t.Fatalf("FetchBibliographic: %v", err)
	}
	if bundle.Title != "Ancillary Justice" {
		t.Fatalf("unexpected title %q", bundle.Title)
	}
	if len(bundle.Contributors) != 1 || bundle.Contributors[0].Name != "Ann Leckie" {
		t.Fatalf("unexpected contributors %+v", bundle.Contributors)
	}

	// Fetching by ASIN should surface the ISBN-13 cross reference but not
	// link the page back to its own ASIN.
	if len(bundle.Identifiers) != 1 {
		t.Fatalf("expected one linked identifier, got %+v", bundle.Identifiers)
	}
	linked := bundle.Identifiers[0]
	if linked.Identifier != identity.New(identity.TypeISBN, "9780316246620") {
		t.Fatalf("unexpected linked identifier %v", linked.Identifier)
	}
	if linked.Strength != 0.7 {
		t.Fatalf("unexpected link strength %v", linked.Strength)
	}

	measurements := map[string]float64{}
	for _, m := range bundle.Measurements {
		measurements[m.Name] = m.Value
	}
	if measurements["sales-rank"] != 1234 {
		t.Fatalf("unexpected sales rank %v", measurements["sales-rank"])
	}
	if measurements["rating"] != 4.3 {
		t.Fatalf("unexpected rating %v", measurements["rating"])
	}
}

func TestFetchByISBNPath(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/isbn/9780316246620" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(productPage))
	}))
	if _, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeISBN, "9780316246620"), false); err != nil {
		t.Fatalf("FetchBibliographic: %v", err)
	}
}

func TestChallengePageDetected(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Challenges ship with a 200, detection is content based.
		w.Write([]byte(challengePage))
	}))
	_, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeASIN, "B00BAXFAOW"), false)
	if !errors.Is(err, sources.ErrChallenge) {
		t.Fatalf("expected ErrChallenge, got %v", err)
	}
	if sources.Classify(err) != sources.KindPersistent {
		t.Fatal("challenge should classify as persistent")
	}
}

func TestUnsupportedIdentifierType(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	}))
	_, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeURI, "n79021164"), false)
	if !errors.Is(err, sources.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestNotFoundStatus(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	_, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeASIN, "B000000000"), false)
	if !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
