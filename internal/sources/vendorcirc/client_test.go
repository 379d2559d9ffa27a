package vendorcirc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"folio/internal/config"
	"folio/internal/identity"
	"folio/internal/sources"
	"folio/internal/sources/vendorcirc"
)

func newClient(t *testing.T, handler http.Handler) *vendorcirc.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := vendorcirc.New(config.SourceHTTP{BaseURL: server.URL, APIKey: "test-key", RequestsPerSecond: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestFetchAvailability(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/items/VX-2001/availability" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Error("expected api key header")
		}
		w.Write([]byte(`{
  "vendor_id": "VX-2001",
  "title": "Parable of the Sower",
  "isbn13": "9781538732182",
  "authors": ["Octavia E. Butler"],
  "language": "eng",
  "copies_owned": 12,
  "copies_available": 3,
  "holds": 7
}`))
	}))

	bundle, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeVendor, "VX-2001"), false)
	if err != nil {
		t.Fatalf("FetchBibliographic: %v", err)
	}
	if bundle.Title != "Parable of the Sower" {
		t.Fatalf("unexpected title %q", bundle.Title)
	}
	if len(bundle.Identifiers) != 1 {
		t.Fatalf("expected one linked identifier, got %+v", bundle.Identifiers)
	}
	if got := bundle.Identifiers[0]; got.Identifier != identity.New(identity.TypeISBN, "9781538732182") || got.Strength != 1.0 {
		t.Fatalf("unexpected isbn link %+v", got)
	}

	measurements := map[string]float64{}
	for _, m := range bundle.Measurements {
		measurements[m.Name] = m.Value
	}
	if measurements["copies-owned"] != 12 || measurements["copies-available"] != 3 || measurements["holds"] != 7 {
		t.Fatalf("unexpected measurements %+v", bundle.Measurements)
	}
}

func TestRejectedAPIKey(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	_, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeVendor, "VX-1"), false)
	if !errors.Is(err, sources.ErrChallenge) {
		t.Fatalf("expected ErrChallenge, got %v", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	if _, err := vendorcirc.New(config.SourceHTTP{BaseURL: "http://example.test"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestUnsupportedIdentifierType(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	}))
	_, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeISBN, "9781538732182"), false)
	if !errors.Is(err, sources.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
