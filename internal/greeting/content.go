package greeting

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed content.yaml
var contentYAML []byte

const namePlaceholder = "{name}"

// Content is the prompt material and the local fallback pool.
type Content struct {
	SystemPrompt    string   `yaml:"system_prompt"`
	ReferenceHeader string   `yaml:"reference_header"`
	ResponseFormat  string   `yaml:"response_format"`
	UserPrompt      string   `yaml:"user_prompt"`
	ReferenceCount  int      `yaml:"reference_count"`
	PlainTextWish   string   `yaml:"plain_text_wish"`
	FallbackPoem    []string `yaml:"fallback_poem"`
	WishTemplates   []string `yaml:"wish_templates"`
}

// DefaultContent returns the embedded content.
func DefaultContent() Content {
	c, err := parseContent(contentYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func parseContent(data []byte) (Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Content{}, fmt.Errorf("greeting content: %w", err)
	}
	if len(c.FallbackPoem) == 0 || len(c.WishTemplates) == 0 {
		return Content{}, fmt.Errorf("greeting content: fallback poem and wish templates are required")
	}
	for i, tpl := range c.WishTemplates {
		if !strings.Contains(tpl, namePlaceholder) {
			return Content{}, fmt.Errorf("greeting content: wish template %d lacks %s", i, namePlaceholder)
		}
	}
	if c.ReferenceCount <= 0 {
		c.ReferenceCount = 3
	}
	if c.PlainTextWish == "" {
		c.PlainTextWish = "新年快乐！"
	}
	return c, nil
}

func fill(tpl, name string) string {
	return strings.ReplaceAll(tpl, namePlaceholder, name)
}
