// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies an event log entry.
type EventKind string

// Event kinds.
const (
	EventGreeting   EventKind = "greeting"
	EventBackground EventKind = "background"
	EventExport     EventKind = "export"
)

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventGreeting, EventBackground, EventExport:
		return true
	}
	return false
}

// Event records one generation or export. Names are never stored; only a
// short hash is kept so repeated cards for the same name can be counted.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Kind       EventKind `json:"kind"`
	Source     string    `json:"source"`   // provider name, capture tier or delivery method
	Fallback   bool      `json:"fallback"` // a local fallback was used
	Detail     string    `json:"detail,omitempty"`
	NameHash   string    `json:"name_hash,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// HashName returns the first 16 hex characters of the SHA-256 of name.
func HashName(name string) string {
	if name == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}
