package translate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	t.Run("known provider with overrides", func(t *testing.T) {
		p := Resolve(ProviderGroq, "", "sk-123", "mixtral", "", 0)
		if p.Name != "Groq" {
			t.Errorf("Name = %q", p.Name)
		}
		if p.APIKey != "sk-123" || p.Model != "mixtral" {
			t.Errorf("overrides not applied: %+v", p)
		}
		if p.BaseURL != "https://api.groq.com/openai/v1" {
			t.Errorf("BaseURL = %q", p.BaseURL)
		}
	})

	t.Run("unknown id becomes custom endpoint", func(t *testing.T) {
		p := Resolve("my-gateway", "https://llm.internal", "", "m", "", 30*time.Second)
		if p.ID != "my-gateway" || p.BaseURL != "https://llm.internal" {
			t.Errorf("Resolve = %+v", p)
		}
		if p.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v", p.Timeout)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		prov    Provider
		wantErr bool
	}{
		{"google without key", Provider{ID: ProviderGoogle, Model: "m"}, true},
		{"google with key", Provider{ID: ProviderGoogle, Model: "m", APIKey: "k"}, false},
		{"groq without key", Provider{ID: ProviderGroq, Model: "m"}, true},
		{"ollama without key is fine", Provider{ID: ProviderOllama, Model: "m"}, false},
		{"custom without base URL", Provider{ID: ProviderCustomOpenAI, Model: "m"}, true},
		{"custom with base URL", Provider{ID: ProviderCustomOpenAI, Model: "m", BaseURL: "http://x"}, false},
		{"no model", Provider{ID: ProviderOllama}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prov.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildPrompts(t *testing.T) {
	system, user := buildPrompts("Execution {{label}} FAILED", "German", nil)

	if !strings.Contains(system, "German") {
		t.Errorf("system prompt missing language: %q", system)
	}
	if !strings.Contains(user, "Execution {{label}} FAILED") {
		t.Errorf("user prompt missing source text:\n%s", user)
	}
	if !strings.Contains(user, "----------") {
		t.Errorf("user prompt missing separator:\n%s", user)
	}
	// Default term list is enumerated.
	if !strings.Contains(user, `- "namespace"`) || !strings.Contains(user, `- "flow"`) {
		t.Errorf("default terms not rendered:\n%s", user)
	}
	if strings.Contains(user, "{{terms}}") || strings.Contains(user, "{{text}}") {
		t.Errorf("unreplaced placeholder:\n%s", user)
	}
	// {{targetLang}} is replaced but {{curly braces}} examples survive.
	if strings.Contains(user, "{{targetLang}}") {
		t.Errorf("targetLang not replaced:\n%s", user)
	}
	if !strings.Contains(user, "{{curly braces}}") {
		t.Errorf("rule example lost:\n%s", user)
	}
}

func TestBuildPromptsCustomTerms(t *testing.T) {
	_, user := buildPrompts("x", "French", []string{"widget", "gizmo"})
	if !strings.Contains(user, `- "widget"`) || !strings.Contains(user, `- "gizmo"`) {
		t.Errorf("custom terms not rendered:\n%s", user)
	}
	if strings.Contains(user, `- "namespace"`) {
		t.Errorf("default terms leaked into custom list:\n%s", user)
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Bonjour", "Bonjour"},
		{"whitespace", "  Bonjour\n", "Bonjour"},
		{"code fence", "```\nBonjour\n```", "Bonjour"},
		{"tagged fence", "```text\nBonjour\n```", "Bonjour"},
		{"quoted", `"Bonjour"`, "Bonjour"},
		{"quoted with escapes", `"Sagen Sie \"Hallo\""`, `Sagen Sie "Hallo"`},
		{"inner quotes kept", `Der "beste" Fall`, `Der "beste" Fall`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanResponse(tt.in); got != tt.want {
				t.Errorf("cleanResponse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractResponseText(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		body := `{"choices": [{"message": {"role": "assistant", "content": "Hallo"}}]}`
		got, err := extractResponseText([]byte(body))
		if err != nil || got != "Hallo" {
			t.Errorf("got %q, %v", got, err)
		}
	})
	t.Run("gemini", func(t *testing.T) {
		body := `{"candidates": [{"content": {"parts": [{"text": "Bonjour"}]}}]}`
		got, err := extractResponseText([]byte(body))
		if err != nil || got != "Bonjour" {
			t.Errorf("got %q, %v", got, err)
		}
	})
	t.Run("api error", func(t *testing.T) {
		body := `{"error": {"message": "quota exceeded", "code": 429}}`
		_, err := extractResponseText([]byte(body))
		if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("unknown shape", func(t *testing.T) {
		if _, err := extractResponseText([]byte(`{"data": "?"}`)); err == nil {
			t.Error("expected error for unknown response shape")
		}
	})
	t.Run("not json", func(t *testing.T) {
		if _, err := extractResponseText([]byte(`<html>`)); err == nil {
			t.Error("expected error for non-JSON response")
		}
	})
}

func TestParseRetryDelay(t *testing.T) {
	t.Run("retry info present", func(t *testing.T) {
		body := `{"error": {"details": [{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "12s"}]}}`
		if got := parseRetryDelay([]byte(body)); got != 17*time.Second {
			t.Errorf("got %v, want 17s", got)
		}
	})
	t.Run("fractional seconds", func(t *testing.T) {
		body := `{"error": {"details": [{"@type": "RetryInfo", "retryDelay": "0.5s"}]}}`
		if got := parseRetryDelay([]byte(body)); got != 5500*time.Millisecond {
			t.Errorf("got %v, want 5.5s", got)
		}
	})
	t.Run("no retry info", func(t *testing.T) {
		if got := parseRetryDelay([]byte(`{}`)); got != 65*time.Second {
			t.Errorf("got %v, want default 65s", got)
		}
	})
	t.Run("garbage body", func(t *testing.T) {
		if got := parseRetryDelay([]byte(`rate limited`)); got != 65*time.Second {
			t.Errorf("got %v, want default 65s", got)
		}
	})
}

func TestTextOpenAICompatible(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		io.WriteString(w, `{"choices": [{"message": {"content": "Willkommen"}}]}`)
	}))
	defer srv.Close()

	prov := Resolve(ProviderCustomOpenAI, srv.URL, "sk-test", "test-model", "", 5*time.Second)
	res := Text(context.Background(), prov, "Welcome", "German", nil)
	if !res.Ok() {
		t.Fatalf("Text: %v", res.Err)
	}
	if res.Text != "Willkommen" {
		t.Errorf("Text = %q", res.Text)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotReq["model"] != "test-model" {
		t.Errorf("model = %v", gotReq["model"])
	}
	if stream, ok := gotReq["stream"].(bool); !ok || stream {
		t.Errorf("stream = %v, want false", gotReq["stream"])
	}
}

func TestTextGemini(t *testing.T) {
	var gotPath, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		io.WriteString(w, `{"candidates": [{"content": {"parts": [{"text": "Bienvenue"}]}}]}`)
	}))
	defer srv.Close()

	prov := Resolve(ProviderGoogle, srv.URL, "g-key", "", "", 5*time.Second)
	res := Text(context.Background(), prov, "Welcome", "French", nil)
	if !res.Ok() {
		t.Fatalf("Text: %v", res.Err)
	}
	if res.Text != "Bienvenue" {
		t.Errorf("Text = %q", res.Text)
	}
	if !strings.HasSuffix(gotPath, ":generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "g-key" {
		t.Errorf("api key header = %q", gotKey)
	}
}

func TestTextEmptyTranslation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices": [{"message": {"content": "   "}}]}`)
	}))
	defer srv.Close()

	prov := Resolve(ProviderCustomOpenAI, srv.URL, "", "m", "", 5*time.Second)
	res := Text(context.Background(), prov, "Welcome", "German", nil)
	if res.Ok() {
		t.Errorf("expected error for empty translation, got %q", res.Text)
	}
}

func TestTextRetriesOn5xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"choices": [{"message": {"content": "Benvenuto"}}]}`)
	}))
	defer srv.Close()

	prov := Resolve(ProviderCustomOpenAI, srv.URL, "", "m", "", 5*time.Second)
	res := Text(context.Background(), prov, "Welcome", "Italian", nil)
	if !res.Ok() {
		t.Fatalf("Text: %v", res.Err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestTextClientErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error": {"message": "bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	prov := Resolve(ProviderCustomOpenAI, srv.URL, "", "m", "", 5*time.Second)
	res := Text(context.Background(), prov, "Welcome", "German", nil)
	if res.Ok() {
		t.Fatal("expected failure on 400")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestTextContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prov := Resolve(ProviderOllama, "", "", "", "", time.Second)
	res := Text(ctx, prov, "Welcome", "German", nil)
	if res.Ok() {
		t.Fatal("expected failure with cancelled context")
	}
}
