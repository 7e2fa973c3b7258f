// Package social holds the sharing flow common to the social network
// integrations: message templating, post-created subscription, share
// markers and the share/verify routes.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("credentials are not configured")
	ErrNotPublished  = errors.New("post is not published")
	ErrAlreadyShared = errors.New("post was already shared")
)

const shareTimeout = 30 * time.Second

// Publisher is implemented by each network.
type Publisher interface {
	// Configured reports whether the credentials in s are present.
	Configured(s integration.Settings) bool

	// Publish posts message (and link, when the network takes it separately)
	// and returns the remote post ID.
	Publish(ctx context.Context, s integration.Settings, message, link string) (string, error)

	// Verify checks the credentials and returns the account name.
	Verify(ctx context.Context, s integration.Settings) (string, error)
}

// Marker is stored in post meta once a post has been shared.
type Marker struct {
	RemoteID string    `json:"id"`
	SharedAt time.Time `json:"shared_at"`
}

// Integration is embedded by the network integrations.
type Integration struct {
	*integration.Base
	ctx       *integration.Context
	marker    string
	secrets   []string
	publisher Publisher
}

// New creates the shared part of a network integration. marker is the post
// meta key recording a share; secrets are masked on the settings page.
func New(meta integration.Metadata, defaults integration.Settings, ctx *integration.Context, marker string, secrets ...string) *Integration {
	return &Integration{
		Base:    integration.NewBase(meta, defaults, ctx),
		ctx:     ctx,
		marker:  marker,
		secrets: secrets,
	}
}

// SetPublisher sets the network implementation.
func (i *Integration) SetPublisher(p Publisher) {
	i.publisher = p
}

// MarkerKey returns the post meta key written after a share.
func (i *Integration) MarkerKey() string {
	return i.marker
}

// SanitizeSettings trims strings and keeps stored secrets when the form
// posts back the masked placeholder.
func (i *Integration) SanitizeSettings(in integration.Settings) integration.Settings {
	out := integration.KeepSecrets(in, i.Settings(), i.secrets...)
	for k, v := range out {
		if s, ok := v.(string); ok && k != "message_template" {
			out[k] = strings.TrimSpace(s)
		}
	}
	if strings.TrimSpace(out.String("message_template")) == "" {
		out["message_template"] = i.Defaults()["message_template"]
	}
	if base := out.String("api_base"); base != "" {
		out["api_base"] = strings.TrimRight(base, "/")
	}
	out["enabled"] = in.Bool("enabled")
	out["share_on_create"] = in.Bool("share_on_create")
	return out
}

func (i *Integration) Init() {
	integration.OnPostCreated(i.ctx.Hooks, integration.PrioritySocial, i.onPostCreated)

	if i.ctx.Routes != nil {
		i.ctx.Routes.Handle(i.ID(), http.MethodPost, "share/{post_id}", i.handleShare)
		i.ctx.Routes.Handle(i.ID(), http.MethodGet, "verify", i.handleVerify)
	}
}

func (i *Integration) onPostCreated(ctx context.Context, ev integration.PostCreated) {
	if !i.Settings().Bool("share_on_create") {
		return
	}
	_, err := i.Share(ctx, ev.PostID, false)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotPublished), errors.Is(err, ErrAlreadyShared):
		i.Logger().Debug("Post not shared", zap.Int64("post_id", ev.PostID), zap.String("reason", err.Error()))
	default:
		i.Logger().Error("Failed to share post", zap.Int64("post_id", ev.PostID), zap.Error(err))
	}
}

// Share publishes the post unless it is unpublished or already shared.
// force skips the already-shared check.
func (i *Integration) Share(ctx context.Context, postID int64, force bool) (Marker, error) {
	if i.ctx.Posts == nil || i.publisher == nil {
		return Marker{}, ErrNotConfigured
	}
	settings := i.Settings()
	if !i.publisher.Configured(settings) {
		return Marker{}, ErrNotConfigured
	}

	post, err := i.ctx.Posts.Get(ctx, postID)
	if err != nil {
		return Marker{}, fmt.Errorf("failed to load post %d: %w", postID, err)
	}
	if post.Status != host.StatusPublish {
		return Marker{}, ErrNotPublished
	}
	if !force {
		if _, found, err := i.ctx.Posts.GetMeta(ctx, postID, i.marker); err != nil {
			return Marker{}, fmt.Errorf("failed to read share marker: %w", err)
		} else if found {
			return Marker{}, ErrAlreadyShared
		}
	}

	link := i.ctx.Posts.Permalink(post)
	message := RenderMessage(settings.String("message_template"), post, link)

	ctx, cancel := context.WithTimeout(ctx, shareTimeout)
	defer cancel()

	remoteID, err := i.publisher.Publish(ctx, settings, message, link)
	if err != nil {
		return Marker{}, err
	}

	marker := Marker{RemoteID: remoteID, SharedAt: i.ctx.Now().UTC()}
	data, _ := json.Marshal(marker)
	if err := i.ctx.Posts.SetMeta(ctx, postID, i.marker, string(data)); err != nil {
		i.Logger().Error("Failed to record share", zap.Int64("post_id", postID), zap.Error(err))
	}

	i.Logger().Info("Post shared", zap.Int64("post_id", postID), zap.String("remote_id", remoteID))
	return marker, nil
}

func (i *Integration) handleShare(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "post_id"), 10, 64)
	if err != nil || id <= 0 {
		integration.WriteError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	marker, err := i.Share(r.Context(), id, force)
	switch {
	case err == nil:
		integration.WriteJSON(w, http.StatusOK, marker)
	case errors.Is(err, ErrNotConfigured):
		integration.WriteError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, ErrNotPublished), errors.Is(err, ErrAlreadyShared):
		integration.WriteError(w, http.StatusConflict, err.Error())
	default:
		integration.WriteError(w, http.StatusBadGateway, err.Error())
	}
}

func (i *Integration) handleVerify(w http.ResponseWriter, r *http.Request) {
	settings := i.Settings()
	if i.publisher == nil || !i.publisher.Configured(settings) {
		integration.WriteError(w, http.StatusPreconditionFailed, ErrNotConfigured.Error())
		return
	}
	name, err := i.publisher.Verify(r.Context(), settings)
	if err != nil {
		integration.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	integration.WriteJSON(w, http.StatusOK, map[string]string{"account": name})
}

// RenderMessage fills {title}, {url} and {excerpt} in tmpl.
func RenderMessage(tmpl string, post *host.Post, link string) string {
	r := strings.NewReplacer(
		"{title}", post.Title,
		"{url}", link,
		"{excerpt}", Excerpt(post.Content, 140),
	)
	return strings.TrimSpace(r.Replace(tmpl))
}

// Excerpt returns the first n runes of content with markdown markers
// removed, cut at a word boundary.
func Excerpt(content string, n int) string {
	var words []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#>*-"))
		if line != "" {
			words = append(words, strings.Fields(line)...)
		}
	}
	text := strings.Join(words, " ")
	text = strings.NewReplacer("**", "", "__", "", "`", "").Replace(text)
	return Truncate(text, n)
}

// Truncate cuts s to at most n runes at a word boundary, adding an ellipsis
// when anything was removed.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	cut := string(runes[:n-1])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
