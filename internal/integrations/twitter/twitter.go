// Package twitter posts new articles to X (Twitter) through the v2 API.
package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"autoblog/internal/integrations/social"
	"autoblog/pkg/integration"
)

const (
	ID = "twitter"

	// MetaShared is the post meta key written after a successful tweet.
	MetaShared = "_autoblog_twitter_shared"

	DefaultAPIBase = "https://api.twitter.com"

	// MaxLength is the tweet length limit in runes.
	MaxLength = 280
)

func init() {
	_ = integration.RegisterBuiltin(integration.BuiltinInfo{
		ID:          ID,
		Description: "Tweets new posts",
		Order:       41,
		Factory: func(ctx *integration.Context) (integration.Integration, error) {
			return New(ctx), nil
		},
	})
}

// Twitter is the X (Twitter) integration.
type Twitter struct {
	*social.Integration
	ctx *integration.Context
}

// New creates the integration.
func New(ctx *integration.Context) *Twitter {
	t := &Twitter{ctx: ctx}
	t.Integration = social.New(integration.Metadata{
		ID:          ID,
		Name:        "X (Twitter)",
		Description: "Tweet a link to every generated post.",
		Version:     "1.0.0",
		Author:      "autoblog",
		Icon:        "twitter",
		Category:    integration.CategorySocial,
		Builtin:     true,
	}, integration.Settings{
		"enabled":          false,
		"bearer_token":     "",
		"message_template": "{title} {url}",
		"share_on_create":  true,
		"api_base":         DefaultAPIBase,
	}, ctx, MetaShared, "bearer_token")
	t.SetPublisher(t)
	t.Bind(t)
	return t
}

func (t *Twitter) SettingsFields() []integration.Field {
	return []integration.Field{
		{Key: "bearer_token", Label: "User access token", Type: integration.FieldPassword,
			Description: "OAuth 2.0 user token with tweet.write scope."},
		{Key: "message_template", Label: "Tweet template", Type: integration.FieldTextarea,
			Description: "Placeholders: {title}, {url}, {excerpt}. Trimmed to 280 characters keeping the link."},
		{Key: "share_on_create", Label: "Tweet new posts automatically", Type: integration.FieldCheckbox},
	}
}

func (t *Twitter) Configured(s integration.Settings) bool {
	return s.String("bearer_token") != ""
}

// Publish posts a tweet. link is already part of message when the template
// uses {url}.
func (t *Twitter) Publish(ctx context.Context, s integration.Settings, message, link string) (string, error) {
	if t.ctx.HTTP == nil {
		return "", errors.New("http client not configured")
	}
	res, err := t.ctx.HTTP.PostJSON(ctx, apiBase(s)+"/2/tweets", authHeader(s), map[string]string{
		"text": FitTweet(message, link),
	})
	if err != nil {
		return "", fmt.Errorf("twitter: %w", err)
	}
	id := res.Get("data.id").String()
	if id == "" {
		return "", fmt.Errorf("twitter: response has no tweet id")
	}
	return id, nil
}

// Verify returns the authenticated user's handle.
func (t *Twitter) Verify(ctx context.Context, s integration.Settings) (string, error) {
	if t.ctx.HTTP == nil {
		return "", errors.New("http client not configured")
	}
	res, err := t.ctx.HTTP.GetJSON(ctx, apiBase(s)+"/2/users/me", authHeader(s))
	if err != nil {
		return "", fmt.Errorf("twitter: %w", err)
	}
	return "@" + res.Get("data.username").String(), nil
}

// FitTweet trims message to MaxLength runes. When link appears in message
// it is kept intact at the end and the text before it is shortened.
func FitTweet(message, link string) string {
	if len([]rune(message)) <= MaxLength {
		return message
	}
	if link == "" || !strings.Contains(message, link) {
		return social.Truncate(message, MaxLength)
	}
	text := strings.TrimSpace(strings.Replace(message, link, "", 1))
	budget := MaxLength - len([]rune(link)) - 1
	if budget <= 0 {
		return social.Truncate(link, MaxLength)
	}
	return social.Truncate(text, budget) + " " + link
}

func authHeader(s integration.Settings) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.String("bearer_token"))
	return h
}

func apiBase(s integration.Settings) string {
	if base := s.String("api_base"); base != "" {
		return base
	}
	return DefaultAPIBase
}
