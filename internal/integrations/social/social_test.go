package social

import (
	"strings"
	"testing"
	"unicode/utf8"

	"autoblog/pkg/host"

	"github.com/stretchr/testify/assert"
)

func TestRenderMessage(t *testing.T) {
	post := &host.Post{Title: "Espresso Ratios", Content: "## Intro\n\n> Dial in *slowly*.\n- weigh `18g`"}
	got := RenderMessage("  New: {title}\n{excerpt}\n{url} {unknown}  ", post, "https://b.example/1/espresso-ratios/")

	assert.Equal(t, "New: Espresso Ratios\nIntro Dial in *slowly*. weigh 18g\nhttps://b.example/1/espresso-ratios/ {unknown}", got)
}

func TestExcerpt(t *testing.T) {
	content := strings.Repeat("alpha beta ", 30)
	got := Excerpt(content, 40)

	assert.LessOrEqual(t, utf8.RuneCountInString(got), 40)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.False(t, strings.Contains(got, "  "))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"one two three four", 10, "one two…"},
		{"trailing, comma here", 10, "trailing…"},
		{"ábcdéfghij", 5, "ábcd…"},
		{"abc", 1, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.n))
		})
	}
}
