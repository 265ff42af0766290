package handlers

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"newyearcard/internal/background"
	"newyearcard/internal/imagestore"
)

// Validation limits for request fields.
const (
	maxPromptLen  = 1_000
	maxWishLen    = 1_000
	maxPoemLen    = 2_000
	maxBgURLLen   = 4_096
	maxDataURILen = 64 << 10
)

// validatePrompt checks an image prompt and returns the first error found.
func validatePrompt(prompt string) string {
	if utf8.RuneCountInString(prompt) > maxPromptLen {
		return "Prompt is too long (max 1,000 characters)."
	}
	return ""
}

// validateCardText checks the free text fields of /card-image.
func validateCardText(poem, wish string) string {
	if utf8.RuneCountInString(wish) > maxWishLen {
		return "Wish is too long (max 1,000 characters)."
	}
	if utf8.RuneCountInString(poem) > maxPoemLen {
		return "Poem is too long (max 2,000 characters)."
	}
	return ""
}

// acceptBackground reports whether a client-supplied background reference
// may be placed on a card. Only backgrounds this server could have handed
// out pass: an inline image, a local generated image, a builtin, a pool
// entry, or an object in the configured storage. Arbitrary URLs would be
// fetched by the preloader and loaded by the capture browser.
func (c *Cards) acceptBackground(ctx context.Context, u string) bool {
	switch {
	case u == "":
		return false
	case strings.HasPrefix(u, "data:image/"):
		return len(u) <= maxDataURILen
	case len(u) > maxBgURLLen:
		return false
	}
	if _, ok := imagestore.NameFromURL(u); ok {
		return true
	}
	if slices.Contains(background.Builtin(), u) {
		return true
	}
	if c.Storage != nil {
		if _, ok := c.Storage.ExtractKey(u); ok {
			return true
		}
	}
	return c.Pool != nil && slices.Contains(c.Pool.List(ctx), u)
}
