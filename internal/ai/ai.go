// Package ai provides text generators backed by Amazon Bedrock or by canned
// output for development.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autoblog/pkg/host"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no text")

// Static returns fixed text, optionally with the prompt's user message
// substituted for {prompt}. It is used when no provider is configured.
type Static struct {
	Text string
}

var _ host.TextGenerator = (*Static)(nil)

// NewStatic creates a static generator. An empty text produces a short
// markdown post about the prompt.
func NewStatic(text string) *Static {
	return &Static{Text: text}
}

func (s *Static) Generate(ctx context.Context, p host.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Text != "" {
		return strings.ReplaceAll(s.Text, "{prompt}", p.User), nil
	}
	topic := firstLine(p.User)
	return fmt.Sprintf("# Notes on %s\n\nThis is placeholder content about %s.", topic, topic), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
