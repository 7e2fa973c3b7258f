// Package postgen turns a topic into a stored post and announces it with
// the post-created event.
package postgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autoblog/internal/knowledge"
	"autoblog/internal/metrics"
	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"go.uber.org/zap"
)

// Filters applied to generated output before the post is stored.
const (
	FilterTitle   = "autoblog_generated_title"
	FilterContent = "autoblog_generated_content"
)

const (
	defaultTone      = "informative"
	defaultWordCount = 800
	knowledgeResults = 3
	knowledgeChars   = 1200
)

// ErrEmptyTopic is returned when the request has no topic.
var ErrEmptyTopic = errors.New("topic is required")

// Generator implements host.PostGenerator.
type Generator struct {
	ai        host.TextGenerator
	posts     host.PostStore
	hooks     host.Hooks
	knowledge knowledge.Searcher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

var _ host.PostGenerator = (*Generator)(nil)

// New creates a generator. kb may be nil.
func New(ai host.TextGenerator, posts host.PostStore, hooks host.Hooks, kb knowledge.Searcher, logger *zap.Logger, m *metrics.Metrics) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		ai:        ai,
		posts:     posts,
		hooks:     hooks,
		knowledge: kb,
		logger:    logger.Named("postgen"),
		metrics:   m,
	}
}

// Generate writes a post about req.Topic, stores it and fires
// integration.HookPostCreated. It returns the new post ID.
func (g *Generator) Generate(ctx context.Context, req host.GenerateRequest) (int64, error) {
	id, err := g.generate(ctx, req)
	g.metrics.PostGenerated(err == nil)
	if err != nil {
		g.logger.Error("Post generation failed", zap.String("topic", req.Topic), zap.Error(err))
		return 0, err
	}
	return id, nil
}

func (g *Generator) generate(ctx context.Context, req host.GenerateRequest) (int64, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return 0, ErrEmptyTopic
	}
	if req.Status == "" {
		req.Status = host.StatusDraft
	}

	prompt := BuildPrompt(req, g.background(ctx, req))
	text, err := g.ai.Generate(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to generate content: %w", err)
	}

	title, body := SplitTitle(text, req.Topic)
	if v, ok := g.hooks.ApplyFilters(ctx, FilterTitle, title).(string); ok {
		title = v
	}
	if v, ok := g.hooks.ApplyFilters(ctx, FilterContent, body).(string); ok {
		body = v
	}

	post := &host.Post{
		Title:    title,
		Content:  body,
		Status:   req.Status,
		Category: req.Category,
		AuthorID: req.AuthorID,
	}
	id, err := g.posts.Create(ctx, post)
	if err != nil {
		return 0, fmt.Errorf("failed to store post: %w", err)
	}

	g.logger.Info("Post generated",
		zap.Int64("post_id", id),
		zap.String("title", title),
		zap.String("status", req.Status))

	integration.FirePostCreated(ctx, g.hooks, integration.PostCreated{
		PostID:  id,
		Title:   title,
		Content: body,
	})
	return id, nil
}

// background returns knowledge-base context for the topic, or "" when the
// request does not use it or nothing matched.
func (g *Generator) background(ctx context.Context, req host.GenerateRequest) string {
	if !req.UseKnowledgeBase || g.knowledge == nil {
		return ""
	}
	results, err := g.knowledge.Search(ctx, req.Topic, knowledgeResults)
	if err != nil {
		g.logger.Warn("Knowledge search failed, generating without it",
			zap.String("topic", req.Topic),
			zap.Error(err))
		return ""
	}
	return knowledge.Context(results, knowledgeChars)
}

// BuildPrompt assembles the model prompt for req.
func BuildPrompt(req host.GenerateRequest, background string) host.Prompt {
	tone := req.Tone
	if tone == "" {
		tone = defaultTone
	}
	words := req.WordCount
	if words <= 0 {
		words = defaultWordCount
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a blog post about: %s\n\n", req.Topic)
	fmt.Fprintf(&b, "Tone: %s\nLength: about %d words\n", tone, words)
	b.WriteString("Start with the title on the first line as a markdown heading (# Title), then the body in markdown.\n")
	if background != "" {
		b.WriteString("\nUse the following reference material where relevant. Do not copy it verbatim.\n\n")
		b.WriteString(background)
		b.WriteString("\n")
	}

	return host.Prompt{
		System: "You are an experienced blog writer. You write accurate, well-structured posts.",
		User:   b.String(),
		// Roughly two tokens per word leaves room for markdown.
		MaxTokens:   words * 2,
		Temperature: 0.7,
	}
}

// SplitTitle separates a leading title line from the body. A "# " heading or
// a "Title:" line is taken as the title; otherwise fallback is used and the
// whole text is the body.
func SplitTitle(text, fallback string) (string, string) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	first = strings.TrimSpace(first)

	var title string
	switch {
	case strings.HasPrefix(first, "#"):
		title = strings.TrimSpace(strings.TrimLeft(first, "#"))
	case strings.HasPrefix(strings.ToLower(first), "title:"):
		title = strings.TrimSpace(first[len("title:"):])
	}
	title = strings.Trim(title, `"*`)
	if title == "" {
		return fallback, text
	}
	return title, strings.TrimSpace(rest)
}
