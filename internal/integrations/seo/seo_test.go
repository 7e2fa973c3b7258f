package seo

import (
	"strings"
	"testing"
	"unicode/utf8"

	"autoblog/pkg/host"

	"github.com/stretchr/testify/assert"
)

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Meta
		ok   bool
	}{
		{
			name: "plain json",
			text: `{"focus_keyword":"Cold Brew","seo_title":"Cold Brew at Home","meta_description":"Make it overnight."}`,
			want: Meta{FocusKeyword: "cold brew", Title: "Cold Brew at Home", Description: "Make it overnight."},
			ok:   true,
		},
		{
			name: "fenced with prose",
			text: "Sure! Here you go:\n```json\n{\"focus_keyword\": \"pour over\", \"seo_title\": \"\\\"Pour Over\\\"  Guide\"}\n```",
			want: Meta{FocusKeyword: "pour over", Title: "Pour Over\" Guide"},
			ok:   true,
		},
		{name: "no json", text: "I cannot help with that.", ok: false},
		{name: "broken json", text: `{"focus_keyword": "x",`, ok: false},
		{name: "unrelated keys", text: `{"answer": 42}`, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMeta(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMetaClipsLongValues(t *testing.T) {
	long := strings.Repeat("espresso ", 40)
	got, ok := ParseMeta(`{"seo_title":"` + long + `","meta_description":"` + long + `"}`)
	assert.True(t, ok)
	assert.LessOrEqual(t, utf8.RuneCountInString(got.Title), MaxTitleLength)
	assert.LessOrEqual(t, utf8.RuneCountInString(got.Description), MaxDescriptionLength)
	assert.False(t, strings.HasSuffix(got.Title, " "))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", Clip("short", 10))
	assert.Equal(t, "one two", Clip("one two three", 10))
	assert.Equal(t, "abcdefghij", Clip("abcdefghijklmnop", 10))
	assert.Equal(t, "ñññ", Clip("ññññ", 3))
	// Word boundaries are measured in runes, not bytes.
	assert.Equal(t, "ééééé ffff", Clip("ééééé ffffffffff", 10))
	assert.Equal(t, "ééé éééé", Clip("ééé éééé ééé", 10))
	assert.Equal(t, "咖啡 手冲咖啡", Clip("咖啡 手冲咖啡 研磨度很重要", 9))
}

func TestFallback(t *testing.T) {
	post := &host.Post{
		Title:   "The Complete Guide to Espresso Machines at Home",
		Content: "# Heading\n\n**Espresso** needs pressure.\n\n- Grind fine",
	}
	got := Fallback(post)

	assert.Equal(t, "complete guide espresso", got.FocusKeyword)
	assert.Equal(t, post.Title, got.Title)
	assert.Equal(t, "Espresso needs pressure. Grind fine", got.Description)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(&host.Post{Title: "Latte Art", Content: strings.Repeat("x", 2000)})

	assert.Equal(t, systemPrompt, p.System)
	assert.Contains(t, p.User, "Title: Latte Art")
	assert.Contains(t, p.User, "at most 60 characters")
	assert.NotContains(t, p.User, strings.Repeat("x", contentChars+1))
	assert.Equal(t, 300, p.MaxTokens)
}
