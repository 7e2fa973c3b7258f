// Package facebook shares new posts to a Facebook page through the Graph API.
package facebook

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"autoblog/internal/integrations/social"
	"autoblog/pkg/integration"
)

const (
	ID = "facebook"

	// MetaShared is the post meta key written after a successful share.
	MetaShared = "_autoblog_facebook_shared"

	DefaultAPIBase = "https://graph.facebook.com/v19.0"
)

func init() {
	_ = integration.RegisterBuiltin(integration.BuiltinInfo{
		ID:          ID,
		Description: "Shares new posts to a Facebook page",
		Order:       40,
		Factory: func(ctx *integration.Context) (integration.Integration, error) {
			return New(ctx), nil
		},
	})
}

// Facebook is the Facebook page integration.
type Facebook struct {
	*social.Integration
	ctx *integration.Context
}

// New creates the integration.
func New(ctx *integration.Context) *Facebook {
	f := &Facebook{ctx: ctx}
	f.Integration = social.New(integration.Metadata{
		ID:          ID,
		Name:        "Facebook",
		Description: "Share generated posts to a Facebook page.",
		Version:     "1.0.0",
		Author:      "autoblog",
		Icon:        "facebook",
		Category:    integration.CategorySocial,
		Builtin:     true,
	}, integration.Settings{
		"enabled":          false,
		"page_id":          "",
		"access_token":     "",
		"message_template": "{title}\n\n{url}",
		"share_on_create":  true,
		"api_base":         DefaultAPIBase,
	}, ctx, MetaShared, "access_token")
	f.SetPublisher(f)
	f.Bind(f)
	return f
}

func (f *Facebook) SettingsFields() []integration.Field {
	return []integration.Field{
		{Key: "page_id", Label: "Page ID", Type: integration.FieldText},
		{Key: "access_token", Label: "Page access token", Type: integration.FieldPassword},
		{Key: "message_template", Label: "Message template", Type: integration.FieldTextarea,
			Description: "Placeholders: {title}, {url}, {excerpt}. The link is also attached as a preview."},
		{Key: "share_on_create", Label: "Share new posts automatically", Type: integration.FieldCheckbox},
	}
}

func (f *Facebook) Configured(s integration.Settings) bool {
	return s.String("page_id") != "" && s.String("access_token") != ""
}

// Publish creates a page feed post with the link attached.
func (f *Facebook) Publish(ctx context.Context, s integration.Settings, message, link string) (string, error) {
	if f.ctx.HTTP == nil {
		return "", errors.New("http client not configured")
	}
	endpoint := apiBase(s) + "/" + url.PathEscape(s.String("page_id")) + "/feed"
	res, err := f.ctx.HTTP.PostForm(ctx, endpoint, nil, url.Values{
		"message":      {message},
		"link":         {link},
		"access_token": {s.String("access_token")},
	})
	if err != nil {
		return "", fmt.Errorf("facebook: %w", err)
	}
	id := res.Get("id").String()
	if id == "" {
		return "", fmt.Errorf("facebook: response has no post id")
	}
	return id, nil
}

// Verify looks up the page name.
func (f *Facebook) Verify(ctx context.Context, s integration.Settings) (string, error) {
	if f.ctx.HTTP == nil {
		return "", errors.New("http client not configured")
	}
	q := url.Values{"fields": {"name"}, "access_token": {s.String("access_token")}}
	endpoint := apiBase(s) + "/" + url.PathEscape(s.String("page_id")) + "?" + q.Encode()
	res, err := f.ctx.HTTP.GetJSON(ctx, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("facebook: %w", err)
	}
	return res.Get("name").String(), nil
}

func apiBase(s integration.Settings) string {
	if base := s.String("api_base"); base != "" {
		return base
	}
	return DefaultAPIBase
}
