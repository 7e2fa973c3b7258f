// Package host provides the public interface definitions for the services the
// blog host offers to integrations: hooks, option storage, pseudo-cron, posts,
// media, AI text generation, routing, plugin detection, outbound HTTP and
// the clock.
//
// The actual implementations live under internal/, and are handed to
// integrations through integration.Context.
package host

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultPriority is the hook priority used when a caller has no ordering needs.
const DefaultPriority = 10

// ActionFunc is called when an action fires. The payload type is defined by the
// action's owner.
type ActionFunc func(ctx context.Context, payload any)

// FilterFunc receives the current value of a filter and returns the new value.
type FilterFunc func(ctx context.Context, value any) any

// HookHandle identifies a single hook registration so it can be removed later.
type HookHandle struct {
	Name string
	ID   uint64
}

// Hooks is the host's action/filter system.
// Callbacks run synchronously in the caller's goroutine, lowest priority first,
// and in registration order within the same priority.
type Hooks interface {
	// AddAction registers fn to run whenever name fires.
	AddAction(name string, fn ActionFunc, priority int) HookHandle

	// RemoveAction removes a previously registered action or filter.
	RemoveAction(h HookHandle) bool

	// DoAction runs every callback registered for name.
	DoAction(ctx context.Context, name string, payload any)

	// DidAction reports how many times name has fired.
	DidAction(name string) int

	// HasAction reports whether any callback is registered for name.
	HasAction(name string) bool

	// AddFilter registers fn to transform values passed through name.
	AddFilter(name string, fn FilterFunc, priority int) HookHandle

	// ApplyFilters passes value through every filter registered for name.
	ApplyFilters(ctx context.Context, name string, value any) any
}

// OptionStore is the host's generic key-value option store.
// Values are flat maps that survive a JSON or YAML round trip, so numbers may
// come back as float64 or int and lists as []any.
type OptionStore interface {
	// Get returns the stored map for key. found is false when nothing was saved.
	Get(ctx context.Context, key string) (value map[string]any, found bool, err error)

	// Set replaces the stored map for key.
	Set(ctx context.Context, key string, value map[string]any) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Scheduler is the host's best-effort pseudo-cron.
type Scheduler interface {
	// ScheduleRecurring adds an event that first runs at first and then repeats
	// according to recurrence (a named schedule or a 5-field cron expression).
	ScheduleRecurring(ctx context.Context, first time.Time, recurrence, hook string, args map[string]any) error

	// ScheduleSingle adds an event that runs once at the given time.
	ScheduleSingle(ctx context.Context, at time.Time, hook string, args map[string]any) error

	// NextScheduled returns the next run time for hook.
	NextScheduled(ctx context.Context, hook string) (next time.Time, found bool, err error)

	// ClearScheduledHook removes every event for hook and returns how many were removed.
	ClearScheduledHook(ctx context.Context, hook string) (int, error)

	// NextRun computes the next run after from for recurrence.
	NextRun(ctx context.Context, recurrence string, from time.Time) (time.Time, error)
}

// Post statuses understood by the post store.
const (
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusPublish = "publish"
	StatusPrivate = "private"
)

// Post is a blog post as stored by the host.
type Post struct {
	ID            int64     `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Content       string    `json:"content" db:"content"`
	Status        string    `json:"status" db:"status"`
	Category      string    `json:"category" db:"category"`
	AuthorID      int64     `json:"author_id" db:"author_id"`
	FeaturedImage string    `json:"featured_image" db:"featured_image"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// PostStore is the host's storage for posts and post-attached metadata.
type PostStore interface {
	Create(ctx context.Context, p *Post) (int64, error)
	Get(ctx context.Context, id int64) (*Post, error)
	SetStatus(ctx context.Context, id int64, status string) error
	GetMeta(ctx context.Context, id int64, key string) (value string, found bool, err error)
	SetMeta(ctx context.Context, id int64, key, value string) error
	DeleteMeta(ctx context.Context, id int64, key string) error
	SetFeaturedImage(ctx context.Context, id int64, url string) error
	Permalink(p *Post) string
}

// Attachment describes an uploaded media file.
type Attachment struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// MediaLibrary stores uploaded media.
type MediaLibrary interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (Attachment, error)
}

// Prompt is a single text-generation request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// TextGenerator produces text from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// GenerateRequest describes a post to generate.
type GenerateRequest struct {
	Topic            string
	Tone             string
	WordCount        int
	Status           string
	AuthorID         int64
	Category         string
	UseKnowledgeBase bool
}

// PostGenerator creates a post from a topic and announces it.
type PostGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (int64, error)
}

// Router lets integrations expose HTTP endpoints under their own namespace.
type Router interface {
	Handle(namespace, method, pattern string, h http.HandlerFunc)
}

// PluginDetector reports which host plugins are active.
type PluginDetector interface {
	IsActive(plugin string) bool
}

// Clock is the time source integrations read instead of time.Now.
type Clock interface {
	Now() time.Time
}

// HTTPClient calls third-party JSON APIs. Non-2xx responses are errors.
type HTTPClient interface {
	GetJSON(ctx context.Context, rawURL string, header http.Header) (gjson.Result, error)
	PostJSON(ctx context.Context, rawURL string, header http.Header, payload any) (gjson.Result, error)
	PostForm(ctx context.Context, rawURL string, header http.Header, form url.Values) (gjson.Result, error)
	// Download returns the body and its content type.
	Download(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Metrics receives framework counters.
type Metrics interface {
	IntegrationToggled(id, action string, ok bool)
}
