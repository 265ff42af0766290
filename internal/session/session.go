// Package session stores card sessions: the state of one card view
// (name, greeting, theme, background and client profile). Sessions are
// identified by a random id in the card URL and stored as JSON in the
// key/value cache with automatic TTL expiry.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"newyearcard/internal/cache"
	"newyearcard/internal/device"
	"newyearcard/internal/greeting"
)

const (
	// DefaultTTL is how long a card session lives before automatic expiry.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces card keys to avoid collisions.
	keyPrefix = "card:"

	// idLength is the byte length of the random card ID (16 bytes = 32 hex chars).
	idLength = 16
)

// ErrNotFound is returned when a card session does not exist or expired.
var ErrNotFound = errors.New("session: card not found")

// Card holds the state of one card view. Greeting and ThemeID are set
// once at creation; Background may be swapped later.
type Card struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	ThemeID    string             `json:"theme_id"`
	Greeting   *greeting.Greeting `json:"greeting"`
	Background string             `json:"background"`
	Profile    device.Profile     `json:"profile"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Store manages card session lifecycle in the KV cache.
type Store struct {
	kv  cache.KV
	ttl time.Duration
}

// NewStore creates a card store backed by kv.
func NewStore(kv cache.KV) *Store {
	return &Store{
		kv:  kv,
		ttl: DefaultTTL,
	}
}

// Create assigns a new id to card, stores it and returns the id.
func (s *Store) Create(ctx context.Context, card *Card) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}

	card.ID = id
	card.CreatedAt = time.Now()

	if err := s.put(ctx, card); err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}
	return id, nil
}

// Get retrieves a card by id.
func (s *Store) Get(ctx context.Context, id string) (*Card, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	payload, err := s.kv.Get(ctx, keyPrefix+id)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}

	var card Card
	if err := json.Unmarshal(payload, &card); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}
	return &card, nil
}

// SetBackground replaces the background of an existing card without
// touching its greeting. Resets the TTL.
func (s *Store) SetBackground(ctx context.Context, id, background string) (*Card, error) {
	card, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	card.Background = background
	if err := s.put(ctx, card); err != nil {
		return nil, fmt.Errorf("session update: %w", err)
	}
	return card, nil
}

// Delete removes a card.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.kv.Del(ctx, keyPrefix+id); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, card *Card) error {
	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return s.kv.Set(ctx, keyPrefix+card.ID, payload, s.ttl)
}

// ValidID reports whether id has the shape of a generated card id.
func ValidID(id string) bool {
	if len(id) != idLength*2 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// generateID creates a cryptographically random card identifier.
func generateID() (string, error) {
	b := make([]byte, idLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
