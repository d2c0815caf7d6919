package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/youruser/parley/internal/api"
	"github.com/youruser/parley/internal/session"
)

func newTestBackend(t *testing.T, models []string, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/models":
			json.NewEncoder(w).Encode(map[string][]string{"models": models})
		case "/api/chat":
			json.NewEncoder(w).Encode(map[string]string{"content": reply})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func runScript(t *testing.T, server *httptest.Server, script string) string {
	t.Helper()
	client := api.NewClient(server.URL, 5*time.Second)
	ctrl := session.NewController(client, session.Options{})

	var out bytes.Buffer
	if err := run(context.Background(), ctrl, strings.NewReader(script), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out.String()
}

func TestRunConversation(t *testing.T) {
	server := newTestBackend(t, []string{"model-a", "model-b"}, "hi from the backend")

	out := runScript(t, server, "/help\n/models\nhello\n/tokens\n/clear\n/quit\n")

	for _, want := range []string{
		"model: model-a (2 available)",
		"/attach <path>",
		"* model-a",
		"  model-b",
		"you: hello",
		"hi from the backend",
		"tokens in the next request",
		"session cleared",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\noutput:\n%s", want, out)
		}
	}
}

func TestRunModelSelection(t *testing.T) {
	server := newTestBackend(t, []string{"model-a", "model-b"}, "ok")

	out := runScript(t, server, "/model model-b\n/quit\n")
	if !strings.Contains(out, "model: model-b") {
		t.Errorf("output missing selection confirmation:\n%s", out)
	}
}

func TestRunAttach(t *testing.T) {
	server := newTestBackend(t, []string{"model-a"}, "summarized")

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta"), 0644); err != nil {
		t.Fatal(err)
	}

	out := runScript(t, server, "/attach "+path+"\nsummarize\n/quit\n")
	if !strings.Contains(out, "you: [attached: notes.txt]") {
		t.Errorf("output missing attachment placeholder:\n%s", out)
	}
	if !strings.Contains(out, "summarized") {
		t.Errorf("output missing assistant reply:\n%s", out)
	}
}

func TestRunWithoutModels(t *testing.T) {
	server := newTestBackend(t, nil, "")

	out := runScript(t, server, "hello\n/quit\n")
	if !strings.Contains(out, "no models available yet") {
		t.Errorf("output missing disabled notice:\n%s", out)
	}
	if !strings.Contains(out, "select a model before sending") {
		t.Errorf("output missing gating error:\n%s", out)
	}
	if strings.Contains(out, "you: hello") {
		t.Errorf("gated message must not render as sent:\n%s", out)
	}
}
