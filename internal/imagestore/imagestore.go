// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imagestore keeps generated background images on local disk.
// Files are named bg-<unix millis>.<ext>; only the newest N (by
// modification time) are retained.
package imagestore

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// DefaultRetention is how many files are kept when none is configured.
const DefaultRetention = 30

// URLPrefix is where the HTTP layer serves stored files.
const URLPrefix = "/images/"

var (
	// ErrInvalidName is returned for names that could escape the directory.
	ErrInvalidName = errors.New("imagestore: invalid filename")
	// ErrNotFound is returned when the file does not exist.
	ErrNotFound = errors.New("imagestore: not found")
)

// Store is a directory of generated images.
type Store struct {
	dir  string
	keep int
	now  func() time.Time

	mu sync.Mutex // serializes Save and Rotate
}

// New creates the directory if needed.
func New(dir string, keep int) (*Store, error) {
	if keep <= 0 {
		keep = DefaultRetention
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagestore: create dir: %w", err)
	}
	return &Store{dir: dir, keep: keep, now: time.Now}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// Save writes data atomically under a fresh bg-<millis> name, prunes old
// files and returns the new file name.
func (s *Store) Save(data []byte, contentType string) (string, error) {
	ext := ".png"
	if contentType == "image/jpeg" {
		ext = ".jpg"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli()
	var name string
	for {
		name = "bg-" + strconv.FormatInt(ms, 10) + ext
		if _, err := os.Stat(filepath.Join(s.dir, name)); errors.Is(err, os.ErrNotExist) {
			break
		}
		ms++
	}

	if err := atomic.WriteFile(filepath.Join(s.dir, name), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("imagestore: write %s: %w", name, err)
	}

	if _, err := s.rotateLocked(); err != nil {
		slog.Warn("imagestore rotation failed", "error", err)
	}
	return name, nil
}

// ValidateName rejects names containing "..", "/" or "\".
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

// Read returns the file contents and content type. The name is validated
// before the filesystem is touched.
func (s *Store) Read(name string) ([]byte, string, error) {
	if err := ValidateName(name); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("imagestore: read %s: %w", name, err)
	}
	return data, ContentType(name), nil
}

// Exists reports whether a valid name refers to a stored file.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && info.Mode().IsRegular()
}

// Rotate deletes all but the newest files and returns how many were removed.
func (s *Store) Rotate() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotateLocked()
}

func (s *Store) rotateLocked() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("imagestore: list: %w", err)
	}

	type file struct {
		name  string
		mtime time.Time
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() || !isImageName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{name: e.Name(), mtime: info.ModTime()})
	}
	if len(files) <= s.keep {
		return 0, nil
	}

	// Newest first; ties broken by name so the order is stable.
	sort.Slice(files, func(i, j int) bool {
		if !files[i].mtime.Equal(files[j].mtime) {
			return files[i].mtime.After(files[j].mtime)
		}
		return files[i].name > files[j].name
	})

	removed := 0
	for _, f := range files[s.keep:] {
		if err := os.Remove(filepath.Join(s.dir, f.name)); err != nil {
			slog.Warn("failed to delete old generated image", "file", f.name, "error", err)
			continue
		}
		slog.Debug("deleted old generated image", "file", f.name)
		removed++
	}
	return removed, nil
}

// ContentType maps .jpg/.jpeg to image/jpeg and everything else to image/png.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return "image/png"
}

// URL returns the path the file is served under.
func URL(name string) string {
	return URLPrefix + name
}

// NameFromURL extracts a file name from a URL produced by URL.
func NameFromURL(u string) (string, bool) {
	name, ok := strings.CutPrefix(u, URLPrefix)
	if !ok || ValidateName(name) != nil {
		return "", false
	}
	return name, true
}

func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
