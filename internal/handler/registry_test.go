package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newRegistryRouter(reg *Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/v1/ops/{operation}", reg.Dispatch)
	return r
}

func TestRegistryDispatchesByName(t *testing.T) {
	reg := NewRegistry()
	called := ""
	reg.Register("Generate", func(w http.ResponseWriter, r *http.Request) {
		called = "Generate"
		w.WriteHeader(http.StatusOK)
	})
	reg.Register("GetUnlockToken", func(w http.ResponseWriter, r *http.Request) {
		called = "GetUnlockToken"
		w.WriteHeader(http.StatusOK)
	})

	router := newRegistryRouter(reg)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ops/GetUnlockToken", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if called != "GetUnlockToken" {
		t.Errorf("dispatched = %q, want GetUnlockToken", called)
	}
}

func TestRegistryUnknownOperation(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Generate", func(w http.ResponseWriter, r *http.Request) {})

	router := newRegistryRouter(reg)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ops/NoSuchOp", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "endpoint not found" {
		t.Errorf("body = %v", body)
	}
}

func TestRegistryOperationsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"Generate", "CreateCharacter", "GetUnlockToken", "CreateConversation"} {
		reg.Register(name, func(w http.ResponseWriter, r *http.Request) {})
	}

	want := []string{"CreateCharacter", "CreateConversation", "Generate", "GetUnlockToken"}
	if got := reg.Operations(); !reflect.DeepEqual(got, want) {
		t.Errorf("Operations() = %v, want %v", got, want)
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	reg.Register("Generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router := newRegistryRouter(reg)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ops/Generate", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
