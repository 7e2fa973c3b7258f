package main

import (
	"fmt"
	"strings"

	"autoblog/internal/metrics"
	"autoblog/internal/posts"
	"autoblog/pkg/host"

	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var req host.GenerateRequest
	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate one post now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Topic = strings.TrimSpace(strings.Join(args, " "))
			if req.Topic == "" {
				return fmt.Errorf("topic is required")
			}
			if req.Status != "" && !posts.ValidStatus(req.Status) {
				return fmt.Errorf("invalid post status %q", req.Status)
			}

			ctx := cmd.Context()
			deps, closeDeps, err := buildDeps(ctx, a.cfg, a.logger, metrics.New())
			if err != nil {
				return err
			}
			defer closeDeps()

			st := newScope(ctx, deps)
			id, err := st.Generator().Generate(ctx, req)
			if err != nil {
				return err
			}
			post, err := st.Posts().Get(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", id, post.Title, st.Posts().Permalink(post))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Tone, "tone", "informative", "Writing tone")
	cmd.Flags().IntVar(&req.WordCount, "words", 800, "Target word count")
	cmd.Flags().StringVar(&req.Status, "status", "draft", "Post status: draft, pending, publish or private")
	cmd.Flags().Int64Var(&req.AuthorID, "author", 1, "Author ID")
	cmd.Flags().StringVar(&req.Category, "category", "", "Post category")
	cmd.Flags().BoolVar(&req.UseKnowledgeBase, "knowledge", false, "Ground the post in the knowledge base")
	return cmd
}
