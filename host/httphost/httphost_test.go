package httphost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"asl/interpreter"
)

func TestExecutePostsInputAsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"echoed": body["name"]})
	}))
	defer srv.Close()

	host := New(DefaultConfig())
	out, err := host.Execute(context.Background(), srv.URL, map[string]any{"name": "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["echoed"] != "alice" {
		t.Errorf("expected echo of posted body, got %+v", m)
	}
}

func TestExecuteGetPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	host := New(DefaultConfig())
	out, err := host.Execute(context.Background(), "GET "+srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["ok"] != true {
		t.Errorf("expected ok=true, got %+v", m)
	}
}

func TestExecuteRejectsNonHTTPResource(t *testing.T) {
	host := New(DefaultConfig())
	_, err := host.Execute(context.Background(), "arn:aws:lambda:my-fn", nil)
	if err == nil {
		t.Fatal("expected an error for a non-HTTP resource URI")
	}
}

func TestExecuteReturnsExecutionErrorOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host := New(DefaultConfig())
	_, err := host.Execute(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected an error on a 500 response")
	}
	execErr, ok := err.(*interpreter.ExecutionError)
	if !ok {
		t.Fatalf("expected *interpreter.ExecutionError, got %#v", err)
	}
	if execErr.Error != interpreter.ErrorTaskFailed {
		t.Errorf("expected States.TaskFailed, got %s", execErr.Error.String())
	}
}
