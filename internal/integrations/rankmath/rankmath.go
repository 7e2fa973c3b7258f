// Package rankmath writes Rank Math SEO metadata for new posts.
package rankmath

import (
	"autoblog/internal/integrations/seo"
	"autoblog/pkg/integration"
)

const (
	ID     = "rankmath"
	Plugin = "seo-by-rank-math/rank-math.php"
)

// Keys are the Rank Math post meta keys.
var Keys = seo.Keys{
	FocusKeyword: "rank_math_focus_keyword",
	Title:        "rank_math_title",
	Description:  "rank_math_description",
}

func init() {
	_ = integration.RegisterBuiltin(integration.BuiltinInfo{
		ID:          ID,
		Description: "Rank Math SEO metadata",
		Order:       30,
		Factory: func(ctx *integration.Context) (integration.Integration, error) {
			return New(ctx), nil
		},
	})
}

type RankMath struct {
	*seo.Integration
}

func New(ctx *integration.Context) *RankMath {
	r := &RankMath{}
	r.Integration = seo.New(integration.Metadata{
		ID:          ID,
		Name:        "Rank Math SEO",
		Description: "Generate a focus keyword, SEO title and meta description for Rank Math.",
		Version:     "1.0.0",
		Author:      "autoblog",
		Icon:        "chart-line",
		Builtin:     true,
	}, ctx, Plugin, Keys)
	r.Bind(r)
	return r
}
