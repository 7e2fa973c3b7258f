// Package seo fills SEO plugin metadata for new posts. The rankmath and
// yoast integrations differ only in plugin file and meta keys.
package seo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"autoblog/internal/knowledge"
	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	MaxTitleLength       = 60
	MaxDescriptionLength = 160

	contentChars    = 1500
	optimizeTimeout = 2 * time.Minute
)

var ErrPluginInactive = errors.New("seo plugin is not active")

const systemPrompt = "You are an SEO assistant. Reply with a single JSON object and nothing else."

// Keys are the post meta keys a plugin reads.
type Keys struct {
	FocusKeyword string
	Title        string
	Description  string
}

// Meta is the generated metadata.
type Meta struct {
	FocusKeyword string `json:"focus_keyword"`
	Title        string `json:"seo_title"`
	Description  string `json:"meta_description"`
}

// Result reports which keys were written.
type Result struct {
	Meta    Meta     `json:"meta"`
	Written []string `json:"written"`
}

// Integration is embedded by the plugin-specific integrations.
type Integration struct {
	*integration.Base
	ctx    *integration.Context
	plugin string
	keys   Keys
}

// New creates an SEO integration that writes keys while plugin is active.
func New(meta integration.Metadata, ctx *integration.Context, plugin string, keys Keys) *Integration {
	meta.Category = integration.CategorySEO
	return &Integration{
		Base: integration.NewBase(meta, integration.Settings{
			"enabled":              false,
			"generate_title":       true,
			"generate_description": true,
			"generate_keyword":     true,
		}, ctx),
		ctx:    ctx,
		plugin: plugin,
		keys:   keys,
	}
}

// Plugin returns the host plugin this integration depends on.
func (i *Integration) Plugin() string { return i.plugin }

// Keys returns the meta keys written by this integration.
func (i *Integration) Keys() Keys { return i.keys }

// PluginActive reports whether the host plugin is active.
func (i *Integration) PluginActive() bool {
	return i.ctx.Plugins != nil && i.ctx.Plugins.IsActive(i.plugin)
}

// IsEnabled requires both the stored flag and the active plugin.
func (i *Integration) IsEnabled() bool {
	return i.PluginActive() && i.Base.IsEnabled()
}

// Enable refuses while the plugin is inactive.
func (i *Integration) Enable() bool {
	if !i.PluginActive() {
		i.Logger().Warn("Cannot enable without the SEO plugin", zap.String("plugin", i.plugin))
		return false
	}
	return i.Base.Enable()
}

func (i *Integration) SettingsFields() []integration.Field {
	return []integration.Field{
		{Key: "generate_keyword", Label: "Generate focus keyword", Type: integration.FieldCheckbox},
		{Key: "generate_title", Label: "Generate SEO title", Type: integration.FieldCheckbox},
		{Key: "generate_description", Label: "Generate meta description", Type: integration.FieldCheckbox},
	}
}

func (i *Integration) SanitizeSettings(in integration.Settings) integration.Settings {
	out := in.Clone()
	for _, k := range []string{"enabled", "generate_title", "generate_description", "generate_keyword"} {
		out[k] = in.Bool(k)
	}
	return out
}

func (i *Integration) Init() {
	integration.OnPostCreated(i.ctx.Hooks, integration.PrioritySEO, i.onPostCreated)
	if i.ctx.Routes != nil {
		i.ctx.Routes.Handle(i.ID(), http.MethodPost, "optimize/{post_id}", i.handleOptimize)
	}
}

func (i *Integration) onPostCreated(ctx context.Context, ev integration.PostCreated) {
	res, err := i.Optimize(ctx, ev.PostID)
	if err != nil {
		i.Logger().Error("Failed to write SEO metadata", zap.Int64("post_id", ev.PostID), zap.Error(err))
		return
	}
	if len(res.Written) > 0 {
		i.Logger().Info("SEO metadata written",
			zap.Int64("post_id", ev.PostID),
			zap.Strings("keys", res.Written))
	}
}

type target struct {
	key   string
	value func(Meta) string
}

// Optimize generates metadata for the post and writes every enabled key that
// is not already set.
func (i *Integration) Optimize(ctx context.Context, postID int64) (Result, error) {
	if !i.PluginActive() {
		return Result{}, ErrPluginInactive
	}
	if i.ctx.Posts == nil {
		return Result{}, errors.New("post store not available")
	}

	settings := i.Settings()
	var targets []target
	add := func(setting, key string, value func(Meta) string) {
		if !settings.Bool(setting) || key == "" {
			return
		}
		if v, found, err := i.ctx.Posts.GetMeta(ctx, postID, key); err == nil && found && v != "" {
			return
		}
		targets = append(targets, target{key: key, value: value})
	}
	add("generate_keyword", i.keys.FocusKeyword, func(m Meta) string { return m.FocusKeyword })
	add("generate_title", i.keys.Title, func(m Meta) string { return m.Title })
	add("generate_description", i.keys.Description, func(m Meta) string { return m.Description })
	if len(targets) == 0 {
		return Result{}, nil
	}

	post, err := i.ctx.Posts.Get(ctx, postID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load post %d: %w", postID, err)
	}

	meta := i.generate(ctx, post)

	res := Result{Meta: meta}
	for _, t := range targets {
		v := t.value(meta)
		if v == "" {
			continue
		}
		if err := i.ctx.Posts.SetMeta(ctx, postID, t.key, v); err != nil {
			return res, fmt.Errorf("failed to write %s: %w", t.key, err)
		}
		res.Written = append(res.Written, t.key)
	}
	return res, nil
}

// generate asks the AI for metadata and falls back to values derived from the
// post when it is unavailable or returns nothing usable.
func (i *Integration) generate(ctx context.Context, post *host.Post) Meta {
	fallback := Fallback(post)
	if i.ctx.AI == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, optimizeTimeout)
	defer cancel()

	text, err := i.ctx.AI.Generate(ctx, BuildPrompt(post))
	if err != nil {
		i.Logger().Warn("SEO generation failed, using fallback", zap.Int64("post_id", post.ID), zap.Error(err))
		return fallback
	}
	meta, ok := ParseMeta(text)
	if !ok {
		i.Logger().Warn("SEO response was not JSON, using fallback", zap.Int64("post_id", post.ID))
		return fallback
	}
	if meta.FocusKeyword == "" {
		meta.FocusKeyword = fallback.FocusKeyword
	}
	if meta.Title == "" {
		meta.Title = fallback.Title
	}
	if meta.Description == "" {
		meta.Description = fallback.Description
	}
	return meta
}

func (i *Integration) handleOptimize(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "post_id"), 10, 64)
	if err != nil || id <= 0 {
		integration.WriteError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	res, err := i.Optimize(r.Context(), id)
	switch {
	case err == nil:
		integration.WriteJSON(w, http.StatusOK, res)
	case errors.Is(err, ErrPluginInactive):
		integration.WriteError(w, http.StatusPreconditionFailed, err.Error())
	default:
		integration.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// BuildPrompt asks for the three fields as JSON.
func BuildPrompt(post *host.Post) host.Prompt {
	content := post.Content
	if r := []rune(content); len(r) > contentChars {
		content = string(r[:contentChars])
	}
	return host.Prompt{
		System: systemPrompt,
		User: fmt.Sprintf("Write SEO metadata for this blog post.\n\nTitle: %s\n\nContent:\n%s\n\n"+
			"Return JSON with the keys \"focus_keyword\" (2-4 words), \"seo_title\" (at most %d characters) "+
			"and \"meta_description\" (at most %d characters).",
			post.Title, content, MaxTitleLength, MaxDescriptionLength),
		MaxTokens:   300,
		Temperature: 0.3,
	}
}

// ParseMeta extracts the JSON object from an AI response, which may be
// wrapped in prose or a code fence, and clips the fields to their limits.
func ParseMeta(text string) (Meta, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return Meta{}, false
	}
	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return Meta{}, false
	}
	doc := gjson.Parse(raw)
	meta := Meta{
		FocusKeyword: strings.ToLower(clean(doc.Get("focus_keyword").String())),
		Title:        Clip(clean(doc.Get("seo_title").String()), MaxTitleLength),
		Description:  Clip(clean(doc.Get("meta_description").String()), MaxDescriptionLength),
	}
	if meta == (Meta{}) {
		return Meta{}, false
	}
	return meta, true
}

// Fallback derives metadata from the post itself.
func Fallback(post *host.Post) Meta {
	terms := knowledge.Terms(post.Title)
	if len(terms) > 3 {
		terms = terms[:3]
	}
	var body []string
	for _, line := range strings.Split(post.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		body = append(body, strings.Trim(line, "*_>- "))
	}
	text := strings.NewReplacer("**", "", "__", "", "`", "").Replace(strings.Join(body, " "))
	return Meta{
		FocusKeyword: strings.Join(terms, " "),
		Title:        Clip(post.Title, MaxTitleLength),
		Description:  Clip(strings.Join(strings.Fields(text), " "), MaxDescriptionLength),
	}
}

// Clip cuts s to at most n runes, preferring a word boundary.
func Clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	r = r[:n]
	for i := len(r) - 1; i > n/2; i-- {
		if unicode.IsSpace(r[i]) {
			r = r[:i]
			break
		}
	}
	return strings.TrimRightFunc(string(r), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func clean(s string) string {
	return strings.Join(strings.Fields(strings.Trim(s, "\"'")), " ")
}
