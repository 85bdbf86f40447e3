// Package attachments stores claim supporting documents on the local filesystem or in S3.
package attachments

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/opensource-finance/heron/internal/domain"
)

// Store persists attachment objects under slash-separated keys.
type Store interface {
	// Put writes body under key and returns the stored key.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	// Delete removes an object by the key Put returned. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Allowed MIME types for supporting documents.
var AllowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
}

// DefaultMaxBytes caps each supporting document.
const DefaultMaxBytes int64 = 10 << 20

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename replaces every character outside [a-zA-Z0-9._-] with an underscore.
func SanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(path.Base(strings.ReplaceAll(name, `\`, "/")), "_")
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// ObjectKey returns "<referenceID>/<sanitized filename>".
func ObjectKey(referenceID, filename string) string {
	return referenceID + "/" + SanitizeFilename(filename)
}

// KeySet hands out object keys for one claim, suffixing repeated filenames with a ULID.
type KeySet struct {
	referenceID string
	used        map[string]bool
}

// NewKeySet creates a key set for referenceID.
func NewKeySet(referenceID string) *KeySet {
	return &KeySet{referenceID: referenceID, used: make(map[string]bool)}
}

// Next returns the key for filename.
func (k *KeySet) Next(filename string) string {
	key := ObjectKey(k.referenceID, filename)
	if k.used[key] {
		ext := path.Ext(key)
		key = strings.TrimSuffix(key, ext) + "-" + strings.ToLower(ulid.Make().String()) + ext
	}
	k.used[key] = true
	return key
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg domain.AttachmentsConfig) (Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFSStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported attachments backend: %s", cfg.Backend)
	}
}
