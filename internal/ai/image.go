// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxImageBytes caps downloads of provider-hosted images.
const maxImageBytes = 20 << 20

// ImageGenerator is an optional interface that AI providers can implement
// to support image generation. Not all providers have this capability
// (e.g., Claude and DeepSeek are text-only).
type ImageGenerator interface {
	// GenerateImage creates an image from a text prompt. Returns the raw
	// image bytes and the MIME content type (e.g., "image/png").
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// ImageGenerator returns the named provider if it can generate images.
func (r *Registry) ImageGenerator(name string) (ImageGenerator, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	ig, ok := p.(ImageGenerator)
	if !ok {
		return nil, fmt.Errorf("ai: provider %q does not support image generation", p.Name())
	}
	return ig, nil
}

// SupportsImageGeneration reports whether the named provider can generate images.
func (r *Registry) SupportsImageGeneration(name string) bool {
	_, err := r.ImageGenerator(name)
	return err == nil
}

// fetchImage downloads a provider-hosted image.
func fetchImage(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("image download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("image download read: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, "", fmt.Errorf("image download: unexpected content type %q", ct)
	}
	return data, ct, nil
}
