// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package images maintains the shared collection of images shown by the
// frame. The host owns the collection; addons only ever see the read-only
// View.
package images

import (
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultPatterns match the media files the frame can display.
var DefaultPatterns = []string{"*.jpg", "*.jpeg", "*.png", "*.gif", "*.mp4"}

// Image is one entry of the collection.
type Image struct {
	ID         ulid.ULID
	Path       string
	Sender     string
	Caption    string
	Starred    bool
	Unseen     bool
	ReceivedAt time.Time
}

// View is the read-only access addons get to the collection.
type View interface {
	// All returns a snapshot of the collection, oldest first.
	All() []Image
	// Count returns the number of images.
	Count() int
}

// Collection holds the images under a single directory.
type Collection struct {
	dir      string
	patterns []glob.Glob

	mu     sync.RWMutex
	images []Image
	byID   map[ulid.ULID]int
}

// Compile-time interface check.
var _ View = (*Collection)(nil)

// NewCollection creates a collection rooted at dir. Patterns are matched
// against base filenames; empty patterns fall back to DefaultPatterns.
func NewCollection(dir string, patterns []string) (*Collection, error) {
	if dir == "" {
		return nil, oops.In("images").Code("IMAGES_DIR_REQUIRED").New("image directory cannot be empty")
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	compiled := make([]glob.Glob, len(patterns))
	for i, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.In("images").Code("IMAGES_PATTERN_INVALID").With("pattern", p).Wrap(err)
		}
		compiled[i] = g
	}

	return &Collection{
		dir:      dir,
		patterns: compiled,
		byID:     make(map[ulid.ULID]int),
	}, nil
}

// Scan rebuilds the collection from the directory contents. Entries are
// ordered by modification time, oldest first, so "newest" always means the
// last element. A missing directory yields an empty collection.
func (c *Collection) Scan() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			c.mu.Lock()
			c.images = nil
			c.byID = make(map[ulid.ULID]int)
			c.mu.Unlock()
			return nil
		}
		return oops.In("images").Code("IMAGES_SCAN_FAILED").With("dir", c.dir).Wrap(err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var found []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !c.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Warn("skipping unreadable image", "file", entry.Name(), "error", err)
			continue
		}
		found = append(found, candidate{
			path: filepath.Join(c.dir, entry.Name()),
			mod:  info.ModTime(),
		})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].mod.Before(found[j].mod) })

	images := make([]Image, len(found))
	byID := make(map[ulid.ULID]int, len(found))
	for i, f := range found {
		id := ulid.MustNew(ulid.Timestamp(f.mod), entropy)
		images[i] = Image{
			ID:         id,
			Path:       f.path,
			ReceivedAt: f.mod,
		}
		byID[id] = i
	}

	c.mu.Lock()
	c.images = images
	c.byID = byID
	c.mu.Unlock()

	return nil
}

// entropy feeds ULID generation. Scan runs on a single goroutine.
var entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0) //nolint:gosec // ids need uniqueness, not secrecy

func (c *Collection) matches(name string) bool {
	for _, g := range c.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Add appends an image to the collection and returns its assigned ID.
func (c *Collection) Add(img Image) ulid.ULID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if img.ID.Compare(ulid.ULID{}) == 0 {
		img.ID = ulid.MustNew(ulid.Now(), entropy)
	}
	if img.ReceivedAt.IsZero() {
		img.ReceivedAt = time.Now()
	}
	c.byID[img.ID] = len(c.images)
	c.images = append(c.images, img)
	return img.ID
}

// Star sets the starred flag of an image.
func (c *Collection) Star(id ulid.ULID, starred bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.byID[id]
	if !ok {
		return oops.In("images").Code("IMAGES_NOT_FOUND").With("id", id.String()).New("image not found")
	}
	c.images[i].Starred = starred
	return nil
}

// Remove deletes an image from the collection. The file itself is left to
// the presentation layer.
func (c *Collection) Remove(id ulid.ULID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.byID[id]
	if !ok {
		return oops.In("images").Code("IMAGES_NOT_FOUND").With("id", id.String()).New("image not found")
	}
	c.images = append(c.images[:i], c.images[i+1:]...)
	delete(c.byID, id)
	for j := i; j < len(c.images); j++ {
		c.byID[c.images[j].ID] = j
	}
	return nil
}

// All returns a snapshot of the collection, oldest first.
func (c *Collection) All() []Image {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Image, len(c.images))
	copy(out, c.images)
	return out
}

// Count returns the number of images.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Dir returns the directory the collection is rooted at.
func (c *Collection) Dir() string {
	return c.dir
}
