// Package translate implements AI-powered translation of single UI
// strings using HTTP API-based providers: Google AI (Gemini), Groq,
// Ollama, and custom OpenAI-compatible endpoints.
//
// The provider contract: given one source string and a target language
// display name, return only the translated text. Placeholder tokens in
// curly braces, an enumerated list of domain terms, and all-capitals
// status words are preserved verbatim. Failures are explicit in the
// returned Result; the caller decides the fallback.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderGoogle       = "google"
	ProviderGroq         = "groq"
	ProviderOllama       = "ollama"
	ProviderCustomOpenAI = "custom-openai"
)

// Provider holds the configuration for an AI translation service.
type Provider struct {
	// ID is the provider identifier (google, groq, ollama, custom-openai).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries on rate limit or
	// transient failure. Default: 3.
	MaxRetries int
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash",
			Timeout: 120 * time.Second,
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
			Timeout: 120 * time.Second,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
	}
}

// Resolve returns the provider definition for id with overrides applied.
// Unknown ids are treated as custom OpenAI-compatible endpoints.
func Resolve(id, baseURL, apiKey, model, proxy string, timeout time.Duration) Provider {
	prov, ok := DefaultProviders()[id]
	if !ok {
		prov = Provider{ID: id, Name: id, Timeout: 60 * time.Second}
	}
	if baseURL != "" {
		prov.BaseURL = baseURL
	}
	if apiKey != "" {
		prov.APIKey = apiKey
	}
	if model != "" {
		prov.Model = model
	}
	if proxy != "" {
		prov.Proxy = proxy
	}
	if timeout > 0 {
		prov.Timeout = timeout
	}
	return prov
}

// Validate reports configuration problems that would fail every request.
func (p Provider) Validate() error {
	if p.Model == "" {
		return fmt.Errorf("provider %s: no model specified", p.ID)
	}
	switch p.ID {
	case ProviderGoogle, ProviderGroq:
		if p.APIKey == "" {
			return fmt.Errorf("provider %s requires an API key", p.ID)
		}
	case ProviderCustomOpenAI:
		if p.BaseURL == "" {
			return fmt.Errorf("provider %s requires a base URL", p.ID)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Result
// ---------------------------------------------------------------------------

// Result is the outcome of a single translation request: either the
// translated text or the failure reason.
type Result struct {
	Text string
	Err  error
}

// Ok reports whether the translation succeeded.
func (r Result) Ok() bool {
	return r.Err == nil
}

// ---------------------------------------------------------------------------
// Prompt policy
// ---------------------------------------------------------------------------

// DefaultTerms is the default list of domain terms kept in English in
// every translation (case and pluralization may adjust).
var DefaultTerms = []string{
	"kv store", "tenant", "namespace", "flow", "subflow", "task", "log",
	"blueprint", "id", "trigger", "label", "key", "value", "input",
	"output", "port", "worker", "backfill", "healthcheck", "min", "max",
}

// SystemPrompt is the fixed system instruction sent with every request.
// {{targetLang}} is replaced with the language display name.
const SystemPrompt = `You are a software engineer translating textual UI elements into {{targetLang}} while keeping technical terms in English.`

// userPromptTemplate carries the translation policy. The source text is
// appended after the separator line so the model never confuses
// instructions with content.
const userPromptTemplate = `Translate the text provided after "----------" to {{targetLang}} for use in a software UI.
Only output the translated text without any extra commentary or explanation.

Rules:
- Keep variables in {{curly braces}} fully unchanged. "System {{label}}" stays "System {{label}}", never "System {{Etikett}}".
- Keep the following technical terms in English (you may adjust case or pluralization as needed):
{{terms}}
- Keep status words written in capital letters (such as WARNING, FAILED, SUCCESS, PAUSED, RUNNING) exactly as they are, in English.
- Use established software terminology in {{targetLang}}; translate for naturalness in a software UI, not word-for-word.

Here is the text to translate:
----------

{{text}}`

// buildPrompts renders the system and user prompts for one request.
func buildPrompts(text, langName string, terms []string) (system, user string) {
	if len(terms) == 0 {
		terms = DefaultTerms
	}
	var list strings.Builder
	for _, t := range terms {
		list.WriteString("  - \"")
		list.WriteString(t)
		list.WriteString("\"\n")
	}

	system = strings.ReplaceAll(SystemPrompt, "{{targetLang}}", langName)
	user = userPromptTemplate
	user = strings.ReplaceAll(user, "{{targetLang}}", langName)
	user = strings.Replace(user, "{{terms}}\n", list.String(), 1)
	user = strings.Replace(user, "{{text}}", text, 1)
	return system, user
}

// ---------------------------------------------------------------------------
// Public entry point
// ---------------------------------------------------------------------------

// Text translates a single string to the language named langName. terms
// overrides DefaultTerms when non-empty. The Result carries either the
// cleaned translated text or the error; Text never substitutes a fallback
// value itself.
func Text(ctx context.Context, prov Provider, text, langName string, terms []string) Result {
	system, user := buildPrompts(text, langName, terms)
	raw, err := callProvider(ctx, prov, system, user)
	if err != nil {
		return Result{Err: err}
	}
	cleaned := cleanResponse(raw)
	if cleaned == "" {
		return Result{Err: fmt.Errorf("provider returned an empty translation")}
	}
	return Result{Text: cleaned}
}

// ---------------------------------------------------------------------------
// HTTP client
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// ---------------------------------------------------------------------------
// Request builders
// ---------------------------------------------------------------------------

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
		Stream:      false,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: userPrompt}}},
		},
		GenerationConfig: genConfig{Temperature: temperature},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return json.Marshal(req)
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// extractResponseText tries the known response formats and returns the text.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	// OpenAI chat format: choices[0].message.content
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}

	// Gemini format: candidates[0].content.parts[0].text
	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]any); ok {
						if text, ok := part["text"].(string); ok {
							return text, nil
						}
					}
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:[a-z]*)?\\s*(.*?)\\s*```")

// cleanResponse strips the wrappers models add despite instructions:
// surrounding whitespace, markdown code fences, and a single pair of
// enclosing quotes.
func cleanResponse(text string) string {
	text = strings.TrimSpace(text)
	if m := markdownCodeBlock.FindStringSubmatch(text); len(m) > 1 {
		text = strings.TrimSpace(m[1])
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		if unquoted, err := strconv.Unquote(text); err == nil {
			text = unquoted
		}
	}
	return text
}

// parseRetryDelay extracts the retry delay from a 429 response body.
// Looks for Google's RetryInfo detail with a retryDelay field.
// Returns the delay to wait, defaulting to 60s + 5s buffer.
func parseRetryDelay(body []byte) time.Duration {
	const defaultDelay = 65 * time.Second

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultDelay
	}

	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}

	return defaultDelay
}

// ---------------------------------------------------------------------------
// Provider dispatch
// ---------------------------------------------------------------------------

// callProvider sends a prompt to the configured provider and returns the
// raw response text.
func callProvider(ctx context.Context, prov Provider, systemPrompt, userPrompt string) (string, error) {
	switch prov.ID {
	case ProviderGoogle:
		return callHTTP(ctx, prov, systemPrompt, userPrompt, buildGeminiEndpoint)
	default:
		// Groq, Ollama, custom-openai and anything unknown speak the
		// OpenAI chat completions dialect.
		return callHTTP(ctx, prov, systemPrompt, userPrompt, buildOpenAIChatEndpoint)
	}
}

// endpointBuilder constructs the URL, headers, and body for one request.
type endpointBuilder func(prov Provider, systemPrompt, userPrompt string) (string, map[string]string, []byte, error)

func buildGeminiEndpoint(prov Provider, systemPrompt, userPrompt string) (string, map[string]string, []byte, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(prov.BaseURL, "/"), prov.Model)
	headers := map[string]string{"Content-Type": "application/json"}
	if prov.APIKey != "" {
		headers["x-goog-api-key"] = prov.APIKey
	}
	body, err := buildGeminiRequest(systemPrompt, userPrompt, 0.1)
	return endpoint, headers, body, err
}

func buildOpenAIChatEndpoint(prov Provider, systemPrompt, userPrompt string) (string, map[string]string, []byte, error) {
	baseURL := strings.TrimRight(prov.BaseURL, "/")
	endpoint := baseURL + "/chat/completions"
	if strings.HasSuffix(baseURL, "/chat/completions") {
		endpoint = baseURL
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if prov.APIKey != "" {
		headers["Authorization"] = "Bearer " + prov.APIKey
	}
	body, err := buildOpenAIChatRequest(prov.Model, systemPrompt, userPrompt, 0.1)
	return endpoint, headers, body, err
}

func (p Provider) effectiveMaxRetries() int {
	if p.MaxRetries > 0 {
		return p.MaxRetries
	}
	return 3
}

// callHTTP performs the request with retries: exponential backoff on
// network errors and 5xx, rate-limit-aware waits on 429.
func callHTTP(ctx context.Context, prov Provider, systemPrompt, userPrompt string, build endpointBuilder) (string, error) {
	endpoint, headers, body, err := build(prov, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	client := makeHTTPClient(prov.Proxy, prov.Timeout)
	maxRetries := prov.effectiveMaxRetries()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if attempt < maxRetries {
				if werr := waitBackoff(ctx, attempt); werr != nil {
					return "", werr
				}
				continue
			}
			return "", fmt.Errorf("API request failed: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryDelay := parseRetryDelay(respBody)
			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(retryDelay):
				}
				continue
			}
			return "", fmt.Errorf("rate limited after %d retries: %s", maxRetries, truncate(string(respBody), 300))
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < maxRetries && resp.StatusCode >= 500 {
				if werr := waitBackoff(ctx, attempt); werr != nil {
					return "", werr
				}
				continue
			}
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		}

		return extractResponseText(respBody)
	}

	return "", fmt.Errorf("exhausted all %d retries", maxRetries)
}

func waitBackoff(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
