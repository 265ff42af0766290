package greeting

import (
	"encoding/json"
	"strings"
)

// stripFences removes a surrounding Markdown code fence such as
// ```json ... ``` that chat models like to wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// rawGreeting accepts poem either as an array of lines or as one string.
type rawGreeting struct {
	Poem json.RawMessage `json:"poem"`
	Wish string          `json:"wish"`
}

// parseReply turns a model reply into a Greeting. JSON replies are decoded;
// anything else becomes a poem of its non-blank lines with plainWish as
// the wish. The result is normalized but not validated.
func parseReply(content, plainWish string) *Greeting {
	body := stripFences(content)

	var raw rawGreeting
	if err := json.Unmarshal([]byte(body), &raw); err == nil && (raw.Poem != nil || raw.Wish != "") {
		g := &Greeting{Wish: strings.TrimSpace(raw.Wish)}
		var lines []string
		if err := json.Unmarshal(raw.Poem, &lines); err == nil {
			g.Poem = cleanLines(lines)
		} else {
			var single string
			if err := json.Unmarshal(raw.Poem, &single); err == nil {
				g.Poem = cleanLines(strings.Split(single, "\n"))
			}
		}
		return g
	}

	return &Greeting{
		Poem: cleanLines(strings.Split(body, "\n")),
		Wish: plainWish,
	}
}

func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
