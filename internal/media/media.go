// Package media provides the host media library backends: a local directory
// and an S3 bucket.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"autoblog/internal/clock"
	"autoblog/pkg/host"

	"github.com/google/uuid"
)

// objectKey returns a collision-free key under a year/month prefix.
func objectKey(now time.Time, name string) string {
	return fmt.Sprintf("%s/%s-%s", now.UTC().Format("2006/01"), uuid.NewString()[:8], sanitizeName(name))
}

// sanitizeName keeps letters, digits, dots, dashes and underscores.
func sanitizeName(name string) string {
	name = strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "file"
	}
	return out
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// Local stores uploads in a directory served under baseURL.
type Local struct {
	dir     string
	baseURL string
	clock   clock.Clock
}

var _ host.MediaLibrary = (*Local)(nil)

// NewLocal creates a library rooted at dir.
func NewLocal(dir, baseURL string, c clock.Clock) *Local {
	if c == nil {
		c = clock.NewReal()
	}
	return &Local{dir: dir, baseURL: baseURL, clock: c}
}

// Dir returns the root directory, for serving files over HTTP.
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Upload(ctx context.Context, name, contentType string, r io.Reader) (host.Attachment, error) {
	key := objectKey(l.clock.Now(), name)
	full := filepath.Join(l.dir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return host.Attachment{}, fmt.Errorf("failed to create media directory: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return host.Attachment{}, fmt.Errorf("failed to create media file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		_ = os.Remove(full)
		return host.Attachment{}, fmt.Errorf("failed to write media file: %w", err)
	}

	return host.Attachment{
		Key:         key,
		URL:         joinURL(l.baseURL, key),
		ContentType: contentType,
		Size:        n,
	}, nil
}
