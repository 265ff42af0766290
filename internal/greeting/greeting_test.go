// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package greeting

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"newyearcard/internal/ai"
)

// stubProvider returns a canned reply and records the prompts it saw.
type stubProvider struct {
	name  string
	reply string
	err   error

	mu         sync.Mutex
	calls      int
	lastSystem string
	lastUser   string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(ctx context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastSystem = system
	s.lastUser = user
	return s.reply, s.err
}

func newTestService(providers ...ai.Provider) *Service {
	return NewService(providers).WithRand(rand.New(rand.NewPCG(7, 11)))
}

func TestGenerate_NoProvidersUsesFallback(t *testing.T) {
	s := newTestService()

	g, err := s.Generate(context.Background(), "杨昊")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{"铁龙飞驰贯九州，", "马蹄声碎志未休。", "复兴号角催春意，", "万里坦途展宏图。"}
	if strings.Join(g.Poem, "|") != strings.Join(want, "|") {
		t.Errorf("poem = %v, want %v", g.Poem, want)
	}
	if !strings.Contains(g.Wish, "杨昊") {
		t.Errorf("wish %q should contain the name", g.Wish)
	}
	if g.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", g.Source)
	}
}

func TestFallbackWishComesFromTemplatePool(t *testing.T) {
	s := newTestService()
	pool := map[string]bool{}
	for _, tpl := range s.content.WishTemplates {
		pool[fill(tpl, "张三")] = true
	}
	if len(pool) != 5 {
		t.Fatalf("expected 5 wish templates, got %d", len(pool))
	}

	for i := 0; i < 50; i++ {
		g := s.Fallback("张三")
		if !pool[g.Wish] {
			t.Fatalf("wish %q not drawn from the template pool", g.Wish)
		}
		if !g.Valid() {
			t.Fatal("fallback greeting must satisfy the shape invariant")
		}
	}
}

func TestFallbackPoemIsCopied(t *testing.T) {
	s := newTestService()
	g := s.Fallback("a")
	g.Poem[0] = "changed"
	if s.Fallback("a").Poem[0] == "changed" {
		t.Error("fallback poem must not share backing storage")
	}
}

func TestGenerate_FirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "deepseek", reply: `{"poem":["钢轨延伸","骏马奔腾"],"wish":"祝李四马年大吉"}`}
	second := &stubProvider{name: "zhipu", reply: `{"poem":["x"],"wish":"y"}`}
	s := newTestService(first, second)

	g, err := s.Generate(context.Background(), "李四")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if g.Source != "deepseek" || g.Wish != "祝李四马年大吉" || len(g.Poem) != 2 {
		t.Errorf("greeting = %+v", g)
	}
	if second.calls != 0 {
		t.Error("second provider should not be called after success")
	}
	if !strings.Contains(first.lastUser, "李四") {
		t.Errorf("user prompt %q should name the user", first.lastUser)
	}
	if strings.Count(first.lastSystem, "\n1. ") != 1 || !strings.Contains(first.lastSystem, "\n3. ") {
		t.Errorf("system prompt should list three reference wishes:\n%s", first.lastSystem)
	}
	if !strings.Contains(first.lastSystem, "李四") {
		t.Error("reference wishes should carry the name")
	}
}

func TestGenerate_FallsThroughTiers(t *testing.T) {
	failing := &stubProvider{name: "deepseek", err: errors.New("503")}
	fenced := &stubProvider{name: "zhipu", reply: "```json\n{\"poem\":[\"一\",\"二\"],\"wish\":\"王五新年好\"}\n```"}
	s := newTestService(failing, fenced)

	g, err := s.Generate(context.Background(), "王五")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if g.Source != "zhipu" || g.Wish != "王五新年好" {
		t.Errorf("greeting = %+v", g)
	}
	if failing.calls != 1 || fenced.calls != 1 {
		t.Errorf("calls = %d/%d", failing.calls, fenced.calls)
	}
}

func TestGenerate_InvalidShapeCountsAsFailure(t *testing.T) {
	empty := &stubProvider{name: "deepseek", reply: `{"poem":[],"wish":"x"}`}
	blankWish := &stubProvider{name: "zhipu", reply: `{"poem":["a"],"wish":"  "}`}
	s := newTestService(empty, blankWish)

	g, err := s.Generate(context.Background(), "赵六")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if g.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback after unusable replies", g.Source)
	}
}

func TestGenerate_PlainTextReply(t *testing.T) {
	p := &stubProvider{name: "zhipu", reply: "春风十里\n\n  万象更新  \n"}
	s := newTestService(p)

	g, err := s.Generate(context.Background(), "孙七")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Join(g.Poem, "|") != "春风十里|万象更新" {
		t.Errorf("poem = %v", g.Poem)
	}
	if g.Wish != "新年快乐！" {
		t.Errorf("wish = %q, want plain text default", g.Wish)
	}
}

func TestGenerate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &stubProvider{name: "deepseek", err: context.Canceled}
	s := newTestService(p)

	g, err := s.Generate(ctx, "周八")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if g != nil {
		t.Error("cancelled generation must not return a greeting")
	}

	// Also without providers: cancellation is not turned into a fallback.
	if _, err := newTestService().Generate(ctx, "周八"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"  杨昊 ", "杨昊", false},
		{"", "", true},
		{"   ", "", true},
		{strings.Repeat("马", 32), strings.Repeat("马", 32), false},
		{strings.Repeat("马", 33), "", true},
	}
	for _, tt := range tests {
		got, err := ValidateName(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) err = %v", tt.in, err)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidName) {
			t.Errorf("err = %v, want ErrInvalidName", err)
		}
		if got != tt.want {
			t.Errorf("ValidateName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := newTestService().Generate(context.Background(), " "); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Generate(blank) err = %v", err)
	}
}

func TestParseContentRequiresNamePlaceholder(t *testing.T) {
	doc := "fallback_poem: [a]\nwish_templates: [\"no name here\"]\n"
	if _, err := parseContent([]byte(doc)); err == nil {
		t.Error("expected error for template without placeholder")
	}
}
