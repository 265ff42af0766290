package session

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"newyearcard/internal/cache"
	"newyearcard/internal/device"
	"newyearcard/internal/greeting"
)

// testValkeyKV returns a KV connected to the test Valkey.
// Skips the test if Valkey is unavailable.
func testValkeyKV(t *testing.T) cache.KV {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
		DB:       15, // Use DB 15 for tests to isolate from dev data.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, keyPrefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return cache.NewValkeyKV(client)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newCard() *Card {
	return &Card{
		Name:       "小明",
		ThemeID:    "golden-red",
		Greeting:   &greeting.Greeting{Poem: []string{"一", "二"}, Wish: "祝小明新年快乐"},
		Background: "/images/bg-1.png",
		Profile:    device.Detect(""),
	}
}

func exerciseStore(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	card := newCard()
	id, err := store.Create(ctx, card)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !ValidID(id) || card.ID != id {
		t.Fatalf("id = %q, card.ID = %q", id, card.ID)
	}
	if card.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "小明" || got.ThemeID != "golden-red" || got.Greeting.Wish != "祝小明新年快乐" {
		t.Errorf("Get() = %+v", got)
	}
	if got.Profile.PixelRatio != 2 {
		t.Errorf("profile not stored: %+v", got.Profile)
	}

	updated, err := store.SetBackground(ctx, id, "data:image/svg+xml,x")
	if err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	if updated.Background != "data:image/svg+xml,x" || updated.Greeting.Wish != got.Greeting.Wish {
		t.Errorf("SetBackground() = %+v", updated)
	}
	again, _ := store.Get(ctx, id)
	if again.Background != "data:image/svg+xml,x" {
		t.Error("background swap not persisted")
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestStoreMemory(t *testing.T) {
	exerciseStore(t, NewStore(cache.NewMemoryKV(time.Minute)))
}

func TestStoreValkey(t *testing.T) {
	exerciseStore(t, NewStore(testValkeyKV(t)))
}

func TestGetRejectsMalformedIDs(t *testing.T) {
	store := NewStore(cache.NewMemoryKV(time.Minute))
	for _, id := range []string{"", "abc", strings.Repeat("z", 32), "../" + strings.Repeat("a", 29)} {
		if _, err := store.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) err = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := store.SetBackground(context.Background(), "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetBackground unknown id err = %v", err)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id, err := generateID()
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
