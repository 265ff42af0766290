package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// openAIProvider implements the Provider interface using the OpenAI
// chat completions API (POST /v1/chat/completions). DeepSeek, Mistral and
// Zhipu speak the same wire format and wrap this type.
type openAIProvider struct {
	name   string
	config ProviderConfig
	client *http.Client
	images *http.Client
}

// newOpenAI creates a new OpenAI provider.
func newOpenAI(cfg ProviderConfig) *openAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return newCompatible("openai", cfg)
}

// newCompatible builds a client for any OpenAI-compatible endpoint.
func newCompatible(name string, cfg ProviderConfig) *openAIProvider {
	return &openAIProvider{
		name:   name,
		config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		images: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *openAIProvider) Name() string { return p.name }

// Generate sends a chat completion request and returns the assistant's
// response text.
func (p *openAIProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body := openAIRequest{
		Model: p.config.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if p.config.Temperature != 0 {
		t := p.config.Temperature
		body.Temperature = &t
	}
	if p.config.JSONMode {
		body.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	return p.doChat(ctx, body)
}

// doChat performs the HTTP call to the chat completions endpoint.
func (p *openAIProvider) doChat(ctx context.Context, body openAIRequest) (string, error) {
	respBody, err := p.post(ctx, p.client, "/chat/completions", body)
	if err != nil {
		return "", err
	}

	var result openAIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%s unmarshal: %w", p.name, err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices returned", p.name)
	}

	return result.Choices[0].Message.Content, nil
}

// generateImage calls POST /images/generations. Providers answer either
// with inline base64 or with a URL to download.
func (p *openAIProvider) generateImage(ctx context.Context, body openAIImageRequest) ([]byte, string, error) {
	if body.Model == "" {
		return nil, "", fmt.Errorf("%s: image generation requires an image model", p.name)
	}

	respBody, err := p.post(ctx, p.images, "/images/generations", body)
	if err != nil {
		return nil, "", err
	}

	var result openAIImageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, "", fmt.Errorf("%s image unmarshal: %w", p.name, err)
	}
	if len(result.Data) == 0 {
		return nil, "", fmt.Errorf("%s image: no data returned", p.name)
	}

	d := result.Data[0]
	switch {
	case d.B64JSON != "":
		img, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, "", fmt.Errorf("%s image decode base64: %w", p.name, err)
		}
		return img, http.DetectContentType(img), nil
	case d.URL != "":
		return fetchImage(ctx, p.images, d.URL)
	}
	return nil, "", fmt.Errorf("%s image: empty result", p.name)
}

func (p *openAIProvider) post(ctx context.Context, client *http.Client, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s marshal: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.name, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s http: %w", p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", p.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s API error (status %d): %s", p.name, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// GenerateImage creates an image with the configured image model
// (e.g. "dall-e-3").
func (p *openAIProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	return p.generateImage(ctx, openAIImageRequest{
		Model:          p.config.ModelImage,
		Prompt:         prompt,
		Size:           "1024x1024",
		N:              1,
		ResponseFormat: "b64_json",
	})
}

// --- OpenAI-compatible request/response types ---

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    *float64              `json:"temperature,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size,omitempty"`
	N              int    `json:"n,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type openAIImageData struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

type openAIImageResponse struct {
	Data []openAIImageData `json:"data"`
}
