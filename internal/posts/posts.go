// Package posts provides the host post stores.
package posts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"autoblog/internal/clock"
	"autoblog/pkg/host"
)

// ErrNotFound is returned when a post does not exist.
var ErrNotFound = errors.New("post not found")

// Store is a host.PostStore that can also list posts.
type Store interface {
	host.PostStore
	List(ctx context.Context, limit int) ([]host.Post, error)
}

// ValidStatus reports whether status is a known post status.
func ValidStatus(status string) bool {
	switch status {
	case host.StatusDraft, host.StatusPending, host.StatusPublish, host.StatusPrivate:
		return true
	}
	return false
}

// Permalink builds the public URL of p under baseURL.
func Permalink(baseURL string, p *host.Post) string {
	if p == nil {
		return ""
	}
	base := strings.TrimRight(baseURL, "/")
	if p.Status != host.StatusPublish {
		return fmt.Sprintf("%s/?p=%d", base, p.ID)
	}
	return fmt.Sprintf("%s/%d/%s/", base, p.ID, Slug(p.Title))
}

// Slug converts a title into a lowercase, hyphenated URL segment.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Memory is an in-process post store.
type Memory struct {
	baseURL string
	clock   clock.Clock

	mu     sync.RWMutex
	nextID int64
	posts  map[int64]host.Post
	meta   map[int64]map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store whose permalinks live under baseURL.
func NewMemory(baseURL string, c clock.Clock) *Memory {
	if c == nil {
		c = clock.NewReal()
	}
	return &Memory{
		baseURL: baseURL,
		clock:   c,
		posts:   make(map[int64]host.Post),
		meta:    make(map[int64]map[string]string),
	}
}

func (m *Memory) Create(ctx context.Context, p *host.Post) (int64, error) {
	if p == nil || strings.TrimSpace(p.Title) == "" {
		return 0, fmt.Errorf("post title is required")
	}
	if p.Status == "" {
		p.Status = host.StatusDraft
	}
	if !ValidStatus(p.Status) {
		return 0, fmt.Errorf("invalid post status %q", p.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	p.ID = m.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.clock.Now().UTC()
	}
	m.posts[p.ID] = *p
	return p.ID, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (*host.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	return &p, nil
}

// List returns up to limit posts, newest first. A limit of 0 returns all.
func (m *Memory) List(ctx context.Context, limit int) ([]host.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]host.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SetStatus(ctx context.Context, id int64, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid post status %q", status)
	}
	return m.update(id, func(p *host.Post) { p.Status = status })
}

func (m *Memory) SetFeaturedImage(ctx context.Context, id int64, url string) error {
	return m.update(id, func(p *host.Post) { p.FeaturedImage = url })
}

func (m *Memory) update(id int64, fn func(p *host.Post)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok {
		return fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	fn(&p)
	m.posts[id] = p
	return nil
}

func (m *Memory) GetMeta(ctx context.Context, id int64, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.meta[id][key]
	return v, ok, nil
}

func (m *Memory) SetMeta(ctx context.Context, id int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[id]; !ok {
		return fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	if m.meta[id] == nil {
		m.meta[id] = make(map[string]string)
	}
	m.meta[id][key] = value
	return nil
}

func (m *Memory) DeleteMeta(ctx context.Context, id int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.meta[id], key)
	return nil
}

func (m *Memory) Permalink(p *host.Post) string {
	return Permalink(m.baseURL, p)
}
