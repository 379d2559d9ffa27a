package nameauth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"folio/internal/config"
	"folio/internal/identity"
	"folio/internal/sources/nameauth"
)

func newClient(t *testing.T, handler http.Handler) *nameauth.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := nameauth.New(config.SourceHTTP{BaseURL: server.URL, RequestsPerSecond: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestFetchAuthorityRecord(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/records/n79021164.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
  "uri": "n79021164",
  "name": "Tolkien, J. R. R. (John Ronald Reuel), 1892-1973",
  "variant_names": ["Tolkien, John Ronald Reuel"],
  "works": [
    {"key": "OL27516W", "title": "The Hobbit"},
    {"key": "OL14933414W", "title": "The Fellowship of the Ring"}
  ]
}`))
	}))

	bundle, _, err := client.FetchBibliographic(context.Background(), identity.New(identity.TypeURI, "n79021164"), false)
	if err != nil {
		t.Fatalf("FetchBibliographic: %v", err)
	}
	if len(bundle.Contributors) != 1 {
		t.Fatalf("expected one contributor, got %+v", bundle.Contributors)
	}
	if bundle.Contributors[0].Name != "Tolkien, J. R. R. (John Ronald Reuel), 1892-1973" {
		t.Fatalf("unexpected name %q", bundle.Contributors[0].Name)
	}
	if len(bundle.Identifiers) != 2 {
		t.Fatalf("expected two attributed works, got %+v", bundle.Identifiers)
	}
	for _, linked := range bundle.Identifiers {
		if linked.Identifier.Type != identity.TypeWorkID {
			t.Fatalf("unexpected identifier type %v", linked.Identifier.Type)
		}
		if linked.Strength != 0.6 {
			t.Fatalf("unexpected strength %v", linked.Strength)
		}
	}
}

func TestCanonicalName(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "J.R.R. Tolkien" {
			t.Errorf("unexpected query %q", got)
		}
		w.Write([]byte(`{"uri":"n79021164","name":"Tolkien, J. R. R."}`))
	}))

	name, err := client.CanonicalName(context.Background(), "J.R.R. Tolkien")
	if err != nil {
		t.Fatalf("CanonicalName: %v", err)
	}
	if name != "Tolkien, J. R. R." {
		t.Fatalf("unexpected canonical name %q", name)
	}
}

func TestCanonicalNameNoOpinion(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	name, err := client.CanonicalName(context.Background(), "Nobody In Particular")
	if err != nil {
		t.Fatalf("CanonicalName: %v", err)
	}
	if name != "" {
		t.Fatalf("expected empty name, got %q", name)
	}
}

func TestCanonicalNameEmptyInput(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	}))
	if name, err := client.CanonicalName(context.Background(), "   "); err != nil || name != "" {
		t.Fatalf("expected no-op for blank input, got %q, %v", name, err)
	}
}
