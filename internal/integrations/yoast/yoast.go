// Package yoast writes Yoast SEO metadata for new posts.
package yoast

import (
	"autoblog/internal/integrations/seo"
	"autoblog/pkg/integration"
)

const (
	ID     = "yoast-seo"
	Plugin = "wordpress-seo/wp-seo.php"
)

// Keys are the Yoast post meta keys.
var Keys = seo.Keys{
	FocusKeyword: "_yoast_wpseo_focuskw",
	Title:        "_yoast_wpseo_title",
	Description:  "_yoast_wpseo_metadesc",
}

func init() {
	_ = integration.RegisterBuiltin(integration.BuiltinInfo{
		ID:          ID,
		Description: "Yoast SEO metadata",
		Order:       31,
		Factory: func(ctx *integration.Context) (integration.Integration, error) {
			return New(ctx), nil
		},
	})
}

type Yoast struct {
	*seo.Integration
}

func New(ctx *integration.Context) *Yoast {
	y := &Yoast{}
	y.Integration = seo.New(integration.Metadata{
		ID:          ID,
		Name:        "Yoast SEO",
		Description: "Generate a focus keyphrase, SEO title and meta description for Yoast.",
		Version:     "1.0.0",
		Author:      "autoblog",
		Icon:        "search",
		Builtin:     true,
	}, ctx, Plugin, Keys)
	y.Bind(y)
	return y
}
