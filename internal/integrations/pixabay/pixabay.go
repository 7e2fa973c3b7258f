// Package pixabay sets a featured image on new posts from a Pixabay search.
package pixabay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"autoblog/internal/knowledge"
	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	ID = "pixabay"

	// MetaImage records the Pixabay hit used for the featured image.
	MetaImage = "_autoblog_pixabay_image"

	DefaultAPIBase = "https://pixabay.com"

	maxKeywords  = 4
	fetchTimeout = time.Minute
)

var (
	ErrNotConfigured = errors.New("api key is not configured")
	ErrHasImage      = errors.New("post already has a featured image")
	ErrNoResults     = errors.New("no images found")
)

func init() {
	_ = integration.RegisterBuiltin(integration.BuiltinInfo{
		ID:          ID,
		Description: "Adds featured images from Pixabay",
		Order:       20,
		Factory: func(ctx *integration.Context) (integration.Integration, error) {
			return New(ctx), nil
		},
	})
}

// Image is the stored record of a chosen hit.
type Image struct {
	PixabayID int64  `json:"id"`
	PageURL   string `json:"page_url"`
	User      string `json:"user"`
	SourceURL string `json:"source_url"`
	URL       string `json:"url"`
	Query     string `json:"query"`
}

// Pixabay is the featured image integration.
type Pixabay struct {
	*integration.Base
	ctx *integration.Context
}

// New creates the integration.
func New(ctx *integration.Context) *Pixabay {
	p := &Pixabay{ctx: ctx}
	p.Base = integration.NewBase(integration.Metadata{
		ID:          ID,
		Name:        "Pixabay Images",
		Description: "Find a free stock photo for each generated post and set it as the featured image.",
		Version:     "1.0.0",
		Author:      "autoblog",
		Icon:        "format-image",
		Category:    integration.CategoryPublishing,
		Builtin:     true,
	}, integration.Settings{
		"enabled":     false,
		"api_key":     "",
		"image_type":  "photo",
		"orientation": "horizontal",
		"safesearch":  true,
		"min_width":   1200,
		"api_base":    DefaultAPIBase,
	}, ctx)
	p.Bind(p)
	return p
}

func (p *Pixabay) SettingsFields() []integration.Field {
	return []integration.Field{
		{Key: "api_key", Label: "API key", Type: integration.FieldPassword},
		{Key: "image_type", Label: "Image type", Type: integration.FieldSelect,
			Options: []string{"all", "photo", "illustration", "vector"}},
		{Key: "orientation", Label: "Orientation", Type: integration.FieldSelect,
			Options: []string{"all", "horizontal", "vertical"}},
		{Key: "safesearch", Label: "Safe search", Type: integration.FieldCheckbox},
		{Key: "min_width", Label: "Minimum width", Type: integration.FieldNumber},
	}
}

var (
	imageTypes   = map[string]bool{"all": true, "photo": true, "illustration": true, "vector": true}
	orientations = map[string]bool{"all": true, "horizontal": true, "vertical": true}
)

func (p *Pixabay) SanitizeSettings(in integration.Settings) integration.Settings {
	out := integration.KeepSecrets(in, p.Settings(), "api_key")
	out["api_key"] = strings.TrimSpace(out.String("api_key"))
	if !imageTypes[in.String("image_type")] {
		out["image_type"] = "photo"
	}
	if !orientations[in.String("orientation")] {
		out["orientation"] = "horizontal"
	}
	out["safesearch"] = in.Bool("safesearch")
	out["enabled"] = in.Bool("enabled")
	width := in.Int("min_width")
	if width < 0 {
		width = 0
	}
	out["min_width"] = width
	out["api_base"] = strings.TrimRight(strings.TrimSpace(in.String("api_base")), "/")
	return out
}

func (p *Pixabay) Init() {
	integration.OnPostCreated(p.ctx.Hooks, integration.PriorityFeaturedImage, p.onPostCreated)
	if p.ctx.Routes != nil {
		p.ctx.Routes.Handle(ID, http.MethodPost, "fetch/{post_id}", p.handleFetch)
	}
}

func (p *Pixabay) onPostCreated(ctx context.Context, ev integration.PostCreated) {
	img, err := p.Attach(ctx, ev.PostID)
	switch {
	case err == nil:
		p.Logger().Info("Featured image set",
			zap.Int64("post_id", ev.PostID),
			zap.Int64("pixabay_id", img.PixabayID))
	case errors.Is(err, ErrHasImage), errors.Is(err, ErrNoResults):
		p.Logger().Debug("No image attached", zap.Int64("post_id", ev.PostID), zap.String("reason", err.Error()))
	default:
		p.Logger().Error("Failed to attach image", zap.Int64("post_id", ev.PostID), zap.Error(err))
	}
}

// Attach searches for an image matching the post title, uploads it to the
// media library and sets it as the featured image. Posts that already have a
// featured image are left alone.
func (p *Pixabay) Attach(ctx context.Context, postID int64) (Image, error) {
	settings := p.Settings()
	if settings.String("api_key") == "" {
		return Image{}, ErrNotConfigured
	}
	if p.ctx.Posts == nil || p.ctx.Media == nil || p.ctx.HTTP == nil {
		return Image{}, errors.New("host services not available")
	}

	post, err := p.ctx.Posts.Get(ctx, postID)
	if err != nil {
		return Image{}, fmt.Errorf("failed to load post %d: %w", postID, err)
	}
	if post.FeaturedImage != "" {
		return Image{}, ErrHasImage
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	keywords := Keywords(post.Title)
	if len(keywords) == 0 {
		return Image{}, ErrNoResults
	}
	query := strings.Join(keywords, " ")
	hit, err := p.search(ctx, settings, query)
	if errors.Is(err, ErrNoResults) && len(keywords) > 1 {
		query = keywords[0]
		hit, err = p.search(ctx, settings, query)
	}
	if err != nil {
		return Image{}, err
	}

	img := Image{
		PixabayID: hit.Get("id").Int(),
		PageURL:   hit.Get("pageURL").String(),
		User:      hit.Get("user").String(),
		SourceURL: hit.Get("largeImageURL").String(),
		Query:     query,
	}
	if img.SourceURL == "" {
		img.SourceURL = hit.Get("webformatURL").String()
	}

	data, contentType, err := p.ctx.HTTP.Download(ctx, img.SourceURL)
	if err != nil {
		return Image{}, fmt.Errorf("failed to download image: %w", err)
	}
	att, err := p.ctx.Media.Upload(ctx, fileName(post, img), contentType, bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to upload image: %w", err)
	}
	img.URL = att.URL

	if err := p.ctx.Posts.SetFeaturedImage(ctx, postID, att.URL); err != nil {
		return Image{}, fmt.Errorf("failed to set featured image: %w", err)
	}
	record, _ := json.Marshal(img)
	if err := p.ctx.Posts.SetMeta(ctx, postID, MetaImage, string(record)); err != nil {
		p.Logger().Warn("Failed to record image source", zap.Int64("post_id", postID), zap.Error(err))
	}
	return img, nil
}

func (p *Pixabay) search(ctx context.Context, settings integration.Settings, query string) (gjson.Result, error) {
	q := url.Values{
		"key":        {settings.String("api_key")},
		"q":          {query},
		"image_type": {settings.String("image_type")},
		"safesearch": {strconv.FormatBool(settings.Bool("safesearch"))},
		"per_page":   {"3"},
	}
	if o := settings.String("orientation"); o != "" && o != "all" {
		q.Set("orientation", o)
	}
	if w := settings.Int("min_width"); w > 0 {
		q.Set("min_width", strconv.Itoa(w))
	}

	base := settings.String("api_base")
	if base == "" {
		base = DefaultAPIBase
	}
	res, err := p.ctx.HTTP.GetJSON(ctx, base+"/api/?"+q.Encode(), nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("pixabay search: %w", err)
	}
	hit := res.Get("hits.0")
	if !hit.Exists() {
		return gjson.Result{}, ErrNoResults
	}
	return hit, nil
}

func (p *Pixabay) handleFetch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "post_id"), 10, 64)
	if err != nil || id <= 0 {
		integration.WriteError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	img, err := p.Attach(r.Context(), id)
	switch {
	case err == nil:
		integration.WriteJSON(w, http.StatusOK, img)
	case errors.Is(err, ErrNotConfigured):
		integration.WriteError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, ErrHasImage):
		integration.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoResults):
		integration.WriteError(w, http.StatusNotFound, err.Error())
	default:
		integration.WriteError(w, http.StatusBadGateway, err.Error())
	}
}

// Keywords returns up to four search terms from a title.
func Keywords(title string) []string {
	terms := knowledge.Terms(title)
	if len(terms) > maxKeywords {
		terms = terms[:maxKeywords]
	}
	return terms
}

func fileName(post *host.Post, img Image) string {
	ext := path.Ext(strings.SplitN(img.SourceURL, "?", 2)[0])
	if ext == "" {
		ext = ".jpg"
	}
	slug := strings.Join(Keywords(post.Title), "-")
	if slug == "" {
		slug = "image"
	}
	return fmt.Sprintf("%s-pixabay-%d%s", slug, img.PixabayID, ext)
}
