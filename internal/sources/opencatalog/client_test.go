package opencatalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"folio/internal/config"
	"folio/internal/identity"
	"folio/internal/sources"
	"folio/internal/sources/opencatalog"
)

const searchPayload = `{
  "num_found": 1,
  "docs": [
    {
      "key": "OL12345W",
      "title": "The Left Hand of Darkness",
      "author_name": ["Ursula K. Le Guin"],
      "author_key": ["OL26320A"],
      "isbn": ["9780441478125", "9780441007318"],
      "language": ["eng"],
      "subject": ["Science fiction"],
      "edition_count": 42,
      "ratings_average": 4.2
    }
  ]
}`

func newClient(t *testing.T, handler http.Handler) *opencatalog.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := opencatalog.New(config.SourceHTTP{BaseURL: server.URL, RequestsPerSecond: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestFetchByISBN(t *testing.T) {
	var calls atomic.Int64
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/search.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("isbn"); got != "9780441478125" {
			t.Errorf("unexpected isbn query %q", got)
		}
		w.Write([]byte(searchPayload))
	}))

	id := identity.New(identity.TypeISBN, "9780441478125")
	bundle, cached, err := client.FetchBibliographic(context.Background(), id, false)
	if err != nil {
		t.Fatalf("FetchBibliographic: %v", err)
	}
	if cached {
		t.Fatal("first fetch should not be a cache hit")
	}
	if bundle.Title != "The Left Hand of Darkness" {
		t.Fatalf("unexpected title %q", bundle.Title)
	}
	if bundle.Language != "eng" {
		t.Fatalf("unexpected language %q", bundle.Language)
	}
	if len(bundle.Contributors) != 1 || bundle.Contributors[0].Name != "Ursula K. Le Guin" {
		t.Fatalf("unexpected contributors %+v", bundle.Contributors)
	}

	wantLinks := map[identity.Identifier]float64{
		identity.New(identity.TypeWorkID, "OL12345W"):    1.0,
		identity.New(identity.TypeISBN, "9780441007318"): 0.75,
	}
	if len(bundle.Identifiers) != len(wantLinks) {
		t.Fatalf("expected %d linked identifiers, got %+v", len(wantLinks), bundle.Identifiers)
	}
	for _, linked := range bundle.Identifiers {
		strength, ok := wantLinks[linked.Identifier]
		if !ok {
			t.Fatalf("unexpected linked identifier %v", linked.Identifier)
		}
		if linked.Strength != strength {
			t.Fatalf("identifier %v strength = %v, want %v", linked.Identifier, linked.Strength, strength)
		}
	}

	// Second fetch is served from the memo, third bypasses it.
	if _, cached, err = client.FetchBibliographic(context.Background(), id, false); err != nil || !cached {
		t.Fatalf("expected cache hit, got cached=%v err=%v", cached, err)
	}
	if _, cached, err = client.FetchBibliographic(context.Background(), id, true); err != nil || cached {
		t.Fatalf("expected refresh to bypass memo, got cached=%v err=%v", cached, err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", got)
	}
}

func TestFetchByISBNRejectsBadChecksum(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for an invalid isbn")
	}))
	_, _, err := client.FetchBibliographic(context.Background(), identity.Identifier{Type: identity.TypeISBN, Value: "9780441478120"}, false)
	if !errors.Is(err, sources.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestFetchWork(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/OL12345W.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"key":"OL12345W","title":"The Dispossessed","authors":["Ursula K. Le Guin"],"subjects":["Anarchism"],"description":"An ambiguous utopia."}`))
	}))

	bundle, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeWorkID, "OL12345W"), false)
	if err != nil {
		t.Fatalf("FetchBibliographic: %v", err)
	}
	if bundle.Title != "The Dispossessed" {
		t.Fatalf("unexpected title %q", bundle.Title)
	}
	if len(bundle.Descriptions) != 1 {
		t.Fatalf("expected one description, got %+v", bundle.Descriptions)
	}
}

func TestFetchStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusNotFound, sources.ErrNotFound},
		{http.StatusTooManyRequests, sources.ErrRateLimited},
		{http.StatusInternalServerError, sources.ErrUnreachable},
	}
	for _, tc := range cases {
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeWorkID, "OL1W"), false)
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.marker, err)
		}
	}
}

func TestFetchNoResults(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"num_found":0,"docs":[]}`))
	}))
	_, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeISBN, "9780441478125"), false)
	if !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
