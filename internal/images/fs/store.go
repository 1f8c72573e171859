package fs

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var dataURIPattern = regexp.MustCompile(`^data:image/(\w+);base64,(.+)$`)

// Store persists social-media proof images on the local filesystem and
// serves them back under a URL prefix. File names are derived from the
// order id and the entry index, so re-uploading an entry overwrites the
// previous file in place.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates a filesystem image store writing into dir and
// returning references prefixed with baseURL.
func NewStore(dir, baseURL string) *Store {
	return &Store{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Save resolves a payload to a retrievable URL. Already-resolved URLs
// pass through untouched; base64 data URIs are decoded and written to
// disk; anything else resolves to an empty URL without error.
func (s *Store) Save(_ context.Context, orderID string, index int, payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", nil
	}

	if strings.HasPrefix(payload, "http://") ||
		strings.HasPrefix(payload, "https://") ||
		strings.HasPrefix(payload, s.baseURL+"/") {
		return payload, nil
	}

	match := dataURIPattern.FindStringSubmatch(payload)
	if match == nil {
		return "", nil
	}

	ext := match[1]
	if ext == "jpeg" {
		ext = "jpg"
	}

	data, err := base64.StdEncoding.DecodeString(match[2])
	if err != nil {
		// Malformed base64 is treated like any other unusable payload.
		return "", nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	name := fmt.Sprintf("%s-social-%d.%s", orderID, index, ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", name, err)
	}

	return s.baseURL + "/" + name, nil
}
