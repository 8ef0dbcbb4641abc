package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func TestUserIDStableAcrossCalls(t *testing.T) {
	p := New(NewMemoryStore())
	first := p.UserID()
	second := p.UserID()
	if first != second {
		t.Errorf("UserID changed: %q then %q", first, second)
	}
	if !strings.HasPrefix(first, "user_") {
		t.Errorf("expected user_ prefix, got %q", first)
	}
}

func TestUserIDPersistedInStore(t *testing.T) {
	store := NewMemoryStore()
	id := New(store).UserID()

	// A fresh provider over the same storage returns the stored value.
	if got := New(store).UserID(); got != id {
		t.Errorf("new provider returned %q, want %q", got, id)
	}
	if v, ok := store.Get(Key); !ok || v != id {
		t.Errorf("store[%q] = %q, %v", Key, v, ok)
	}
}

func TestUserIDUsesExistingValue(t *testing.T) {
	store := NewMemoryStore()
	store.Set(Key, "user_existing")
	if got := New(store).UserID(); got != "user_existing" {
		t.Errorf("UserID() = %q, want user_existing", got)
	}
}

type failingStore struct{ sets int }

func (s *failingStore) Get(string) (string, bool) { return "", false }
func (s *failingStore) Set(string, string) error {
	s.sets++
	return errors.New("disk full")
}

func TestUserIDSurvivesStoreFailure(t *testing.T) {
	store := &failingStore{}
	p := New(store)
	first := p.UserID()
	if first == "" {
		t.Fatal("expected an identifier even when the store fails")
	}
	if p.UserID() != first {
		t.Error("identifier must stay stable for the provider's lifetime")
	}
	if store.sets != 1 {
		t.Errorf("expected one persist attempt, got %d", store.sets)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "identity.yml")

	id := New(NewFileStore(path)).UserID()
	if got := New(NewFileStore(path)).UserID(); got != id {
		t.Errorf("file-backed identity not stable: %q vs %q", got, id)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "none.yml"))
	if _, ok := s.Get(Key); ok {
		t.Error("expected missing file to read as not yet created")
	}
}

func TestCookieStore(t *testing.T) {
	// First visit: no cookie, provider sets one.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	id := New(NewCookieStore(req, w.Header())).UserID()

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != Key || cookies[0].Value != id {
		t.Fatalf("expected %s cookie with %q, got %v", Key, id, cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("expected HttpOnly cookie")
	}

	// Second visit carries the cookie back and nothing new is set.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	w2 := httptest.NewRecorder()
	if got := New(NewCookieStore(req2, w2.Header())).UserID(); got != id {
		t.Errorf("cookie identity = %q, want %q", got, id)
	}
	if len(w2.Result().Cookies()) != 0 {
		t.Error("expected no Set-Cookie when identity already exists")
	}
}
