// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ---------- Helpers ----------

// newTestServer creates an httptest.Server that responds with the given status
// code and body bytes. The caller must call Close on the returned server.
func newTestServer(t *testing.T, statusCode int, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		w.Write(body)
	}))
}

// captureServer records the last request body and headers, then answers
// with body.
func captureServer(t *testing.T, body []byte, gotHeaders *http.Header, gotBody *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotHeaders = r.Header.Clone()
		*gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
}

func openAISuccessBody(text string) []byte {
	b, _ := json.Marshal(openAIResponse{
		Choices: []openAIChoice{{Message: openAIMessage{Role: "assistant", Content: text}}},
	})
	return b
}

func claudeSuccessBody(text string) []byte {
	b, _ := json.Marshal(claudeResponse{
		Content: []claudeContentBlock{{Type: "text", Text: text}},
	})
	return b
}

func geminiSuccessBody(text string) []byte {
	b, _ := json.Marshal(geminiResponse{
		Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{{Text: text}}}}},
	})
	return b
}

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// =====================================================================
// OpenAI-compatible providers
// =====================================================================

func TestOpenAIGenerate_Success(t *testing.T) {
	want := "Hello from OpenAI"
	srv := newTestServer(t, http.StatusOK, openAISuccessBody(want))
	defer srv.Close()

	p := newOpenAI(ProviderConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: srv.URL})

	got, err := p.Generate(context.Background(), "You are helpful.", "Say hello")
	if err != nil {
		t.Fatalf("Generate: unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("Generate: got %q, want %q", got, want)
	}
}

func TestOpenAIGenerate_VerifiesRequest(t *testing.T) {
	var headers http.Header
	var body []byte
	srv := captureServer(t, openAISuccessBody("ok"), &headers, &body)
	defer srv.Close()

	p := newOpenAI(ProviderConfig{APIKey: "sk-test-12345", Model: "gpt-4o", BaseURL: srv.URL})
	if _, err := p.Generate(context.Background(), "system prompt", "user prompt"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got := headers.Get("Authorization"); got != "Bearer sk-test-12345" {
		t.Errorf("Authorization header: got %q", got)
	}
	if got := headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type: got %q", got)
	}

	var req openAIRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	if req.Model != "gpt-4o" || len(req.Messages) != 2 {
		t.Fatalf("request = %+v", req)
	}
	if req.Messages[0].Role != "system" || req.Messages[1].Content != "user prompt" {
		t.Errorf("messages = %+v", req.Messages)
	}
	// Plain providers send neither temperature nor response_format.
	if strings.Contains(string(body), "temperature") || strings.Contains(string(body), "response_format") {
		t.Errorf("unexpected optional fields in %s", body)
	}
}

func TestOpenAIGenerate_HTTPError(t *testing.T) {
	srv := newTestServer(t, http.StatusTooManyRequests, []byte(`{"error":{"message":"slow down"}}`))
	defer srv.Close()

	p := newOpenAI(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "slow down") {
		t.Errorf("error should carry status and body, got %v", err)
	}
}

func TestOpenAIGenerate_MalformedAndEmpty(t *testing.T) {
	for name, body := range map[string]string{
		"malformed": `{not json`,
		"empty":     `{"choices":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, []byte(body))
			defer srv.Close()
			p := newOpenAI(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
			if _, err := p.Generate(context.Background(), "s", "u"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenAIGenerate_CancelledContext(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, openAISuccessBody("late"))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newOpenAI(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	if _, err := p.Generate(ctx, "s", "u"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"openai", newOpenAI(ProviderConfig{}).config.BaseURL, "https://api.openai.com/v1"},
		{"mistral", newMistral(ProviderConfig{}).config.BaseURL, "https://api.mistral.ai/v1"},
		{"deepseek", newDeepSeek(ProviderConfig{}).config.BaseURL, "https://api.deepseek.com"},
		{"zhipu", newZhipu(ProviderConfig{}).config.BaseURL, "https://open.bigmodel.cn/api/paas/v4"},
		{"claude", newClaude(ProviderConfig{}).config.BaseURL, "https://api.anthropic.com"},
		{"gemini", newGemini(ProviderConfig{}).config.BaseURL, "https://generativelanguage.googleapis.com"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s base URL = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestDeepSeekSendsTemperatureAndJSONMode(t *testing.T) {
	var headers http.Header
	var body []byte
	srv := captureServer(t, openAISuccessBody(`{"poem":["a"],"wish":"b"}`), &headers, &body)
	defer srv.Close()

	p := newDeepSeek(ProviderConfig{APIKey: "k", Model: "deepseek-chat", BaseURL: srv.URL})
	if p.Name() != "deepseek" {
		t.Errorf("Name() = %q", p.Name())
	}
	if _, err := p.Generate(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var req openAIRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Temperature == nil || *req.Temperature != 1.3 {
		t.Errorf("temperature = %v, want 1.3", req.Temperature)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", req.ResponseFormat)
	}
}

func TestOpenAIGenerateImage_Base64(t *testing.T) {
	resp, _ := json.Marshal(openAIImageResponse{
		Data: []openAIImageData{{B64JSON: base64.StdEncoding.EncodeToString(pngHeader)}},
	})
	var headers http.Header
	var body []byte
	srv := captureServer(t, resp, &headers, &body)
	defer srv.Close()

	p := newOpenAI(ProviderConfig{APIKey: "k", ModelImage: "dall-e-3", BaseURL: srv.URL})
	img, ct, err := p.GenerateImage(context.Background(), "a red horse")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if ct != "image/png" || string(img) != string(pngHeader) {
		t.Errorf("got %q %v", ct, img)
	}

	var req openAIImageRequest
	_ = json.Unmarshal(body, &req)
	if req.Model != "dall-e-3" || req.ResponseFormat != "b64_json" || req.Size != "1024x1024" {
		t.Errorf("image request = %+v", req)
	}
}

func TestOpenAIGenerateImage_RequiresModel(t *testing.T) {
	p := newMistral(ProviderConfig{APIKey: "k"})
	if _, _, err := p.GenerateImage(context.Background(), "x"); err == nil {
		t.Error("expected error without an image model")
	}
}

func TestZhipuGenerateImage_DownloadsURL(t *testing.T) {
	var gotReq openAIImageRequest
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/images/generations":
			_ = json.NewDecoder(r.Body).Decode(&gotReq)
			json.NewEncoder(w).Encode(openAIImageResponse{
				Data: []openAIImageData{{URL: srv.URL + "/files/bg.png"}},
			})
		case "/files/bg.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngHeader)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := newZhipu(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
	img, ct, err := p.GenerateImage(context.Background(), "骏马")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if ct != "image/png" || len(img) != len(pngHeader) {
		t.Errorf("got %q (%d bytes)", ct, len(img))
	}
	if gotReq.Model != "glm-image" || gotReq.Size != "1024x1024" || gotReq.ResponseFormat != "" {
		t.Errorf("zhipu image request = %+v", gotReq)
	}
}

func TestFetchImage_RejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>nope</html>"))
	}))
	defer srv.Close()

	if _, _, err := fetchImage(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Error("expected error for html response")
	}
}

// =====================================================================
// Claude
// =====================================================================

func TestClaudeGenerate_VerifiesRequest(t *testing.T) {
	var headers http.Header
	var body []byte
	srv := captureServer(t, claudeSuccessBody("Hi"), &headers, &body)
	defer srv.Close()

	p := newClaude(ProviderConfig{APIKey: "ant-key", Model: "claude-x", BaseURL: srv.URL})
	got, err := p.Generate(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Hi" {
		t.Errorf("got %q", got)
	}
	if headers.Get("x-api-key") != "ant-key" || headers.Get("anthropic-version") != "2023-06-01" {
		t.Errorf("headers = %v", headers)
	}

	var req claudeRequest
	_ = json.Unmarshal(body, &req)
	if req.System != "sys" || len(req.Messages) != 1 || req.Messages[0].Content != "usr" {
		t.Errorf("request = %+v", req)
	}
}

func TestClaudeGenerate_JSONModePrefill(t *testing.T) {
	var headers http.Header
	var body []byte
	srv := captureServer(t, claudeSuccessBody(`"wish":"x"}`), &headers, &body)
	defer srv.Close()

	p := newClaude(ProviderConfig{APIKey: "k", BaseURL: srv.URL, JSONMode: true, Temperature: 1.3})
	got, err := p.Generate(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != `{"wish":"x"}` {
		t.Errorf("got %q, want the prefilled brace restored", got)
	}

	var req claudeRequest
	_ = json.Unmarshal(body, &req)
	if len(req.Messages) != 2 || req.Messages[1].Role != "assistant" {
		t.Errorf("expected assistant prefill, got %+v", req.Messages)
	}
	if req.Temperature == nil || *req.Temperature != 1 {
		t.Errorf("temperature = %v, want clamped to 1", req.Temperature)
	}
}

func TestClaudeGenerate_NoTextContent(t *testing.T) {
	b, _ := json.Marshal(claudeResponse{Content: []claudeContentBlock{{Type: "tool_use"}}})
	srv := newTestServer(t, http.StatusOK, b)
	defer srv.Close()

	p := newClaude(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := p.Generate(context.Background(), "s", "u"); err == nil {
		t.Error("expected error when no text block is returned")
	}
}

// =====================================================================
// Gemini
// =====================================================================

func TestGeminiGenerate_VerifiesRequest(t *testing.T) {
	var headers http.Header
	var body []byte
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.Write(geminiSuccessBody("你好"))
	}))
	defer srv.Close()

	p := newGemini(ProviderConfig{APIKey: "g-key", Model: "gemini-pro", BaseURL: srv.URL, JSONMode: true})
	got, err := p.Generate(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "你好" {
		t.Errorf("got %q", got)
	}
	if path != "/v1beta/models/gemini-pro:generateContent" {
		t.Errorf("path = %q", path)
	}
	if headers.Get("x-goog-api-key") != "g-key" {
		t.Errorf("api key header missing")
	}

	var req geminiRequest
	_ = json.Unmarshal(body, &req)
	if req.GenerationConfig == nil || req.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("generationConfig = %+v", req.GenerationConfig)
	}
}

func TestGeminiGenerate_NoCandidates(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, []byte(`{"candidates":[]}`))
	defer srv.Close()

	p := newGemini(ProviderConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	if _, err := p.Generate(context.Background(), "s", "u"); err == nil {
		t.Error("expected error")
	}
}

func TestGeminiGenerateImage(t *testing.T) {
	resp, _ := json.Marshal(geminiResponse{Candidates: []geminiCandidate{{
		Content: geminiContent{Parts: []geminiPart{
			{Text: "here you go"},
			{InlineData: &geminiInlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString([]byte("jpg"))}},
		}},
	}}})
	srv := newTestServer(t, http.StatusOK, resp)
	defer srv.Close()

	p := newGemini(ProviderConfig{APIKey: "k", ModelImage: "img-model", BaseURL: srv.URL})
	img, ct, err := p.GenerateImage(context.Background(), "horse")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if ct != "image/jpeg" || string(img) != "jpg" {
		t.Errorf("got %q %q", ct, img)
	}

	noModel := newGemini(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
	if _, _, err := noModel.GenerateImage(context.Background(), "horse"); err == nil {
		t.Error("expected error without GEMINI_MODEL_IMAGE")
	}
}
