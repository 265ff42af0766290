// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import "context"

// Mistral, DeepSeek and Zhipu expose OpenAI-compatible chat endpoints at
// their own base URLs; only defaults and image support differ.

// newMistral creates a new Mistral provider.
func newMistral(cfg ProviderConfig) *openAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mistral.ai/v1"
	}
	return newCompatible("mistral", cfg)
}

// newDeepSeek creates a DeepSeek provider. Greetings need variety and a
// strict JSON shape, so it defaults to a high temperature and JSON mode.
func newDeepSeek(cfg ProviderConfig) *openAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 1.3
	}
	cfg.JSONMode = true
	return newCompatible("deepseek", cfg)
}

// zhipuProvider is the BigModel (GLM) API. Unlike the plain compatible
// providers it can also generate images.
type zhipuProvider struct {
	*openAIProvider
}

// newZhipu creates a Zhipu provider.
func newZhipu(cfg ProviderConfig) *zhipuProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://open.bigmodel.cn/api/paas/v4"
	}
	if cfg.ModelImage == "" {
		cfg.ModelImage = "glm-image"
	}
	return &zhipuProvider{newCompatible("zhipu", cfg)}
}

// GenerateImage creates a 1024x1024 image. Zhipu answers with a
// short-lived URL which is downloaded right away.
func (p *zhipuProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	return p.generateImage(ctx, openAIImageRequest{
		Model:  p.config.ModelImage,
		Prompt: prompt,
		Size:   "1024x1024",
	})
}
