package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"autoblog/internal/metrics"
	"autoblog/pkg/integration"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newIntegrationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "integrations",
		Aliases: []string{"integration"},
		Short:   "List and manage integrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered integrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withScope(cmd, func(m *integration.Manager) error {
					return writeSummaries(cmd.OutOrStdout(), m.Summaries())
				})
			},
		},
		newToggleCmd(a, true),
		newToggleCmd(a, false),
		&cobra.Command{
			Use:   "settings <id> [key=value...]",
			Short: "Show or update integration settings",
			Long: "Without assignments, prints the settings with secrets masked. " +
				"Values are parsed as YAML scalars, so true, 42 and text all work.",
			Args: cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withScope(cmd, func(m *integration.Manager) error {
					i := m.Get(args[0])
					if i == nil {
						return fmt.Errorf("integration %q not found", args[0])
					}
					if len(args) > 1 {
						values, err := parseAssignments(args[1:])
						if err != nil {
							return err
						}
						if !i.UpdateSettings(values) {
							return fmt.Errorf("failed to save settings for %q", i.ID())
						}
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(integration.PublicSettings(i))
				})
			},
		},
	)
	return cmd
}

func newToggleCmd(a *app, enable bool) *cobra.Command {
	use, short := "disable <id>", "Disable an integration"
	if enable {
		use, short = "enable <id>", "Enable an integration"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(m *integration.Manager) error {
				id := args[0]
				if m.Get(id) == nil {
					return fmt.Errorf("integration %q not found", id)
				}
				ok := m.DisableIntegration
				if enable {
					ok = m.EnableIntegration
				}
				if !ok(id) {
					return fmt.Errorf("integration %q could not be updated", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s enabled=%t\n", id, m.Get(id).IsEnabled())
				return nil
			})
		},
	}
}

// withScope runs fn against the manager of a booted scope.
func (a *app) withScope(cmd *cobra.Command, fn func(m *integration.Manager) error) error {
	ctx := cmd.Context()
	deps, closeDeps, err := buildDeps(ctx, a.cfg, a.logger, metrics.New())
	if err != nil {
		return err
	}
	defer closeDeps()
	return fn(newScope(ctx, deps).Integrations())
}

func writeSummaries(w io.Writer, list []integration.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tVERSION\tENABLED\tBUILTIN")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\n", s.ID, s.Name, s.Category, s.Version, s.Enabled, s.Builtin)
	}
	return tw.Flush()
}

// parseAssignments turns key=value arguments into settings. The enabled flag
// is rejected; it changes only through enable and disable.
func parseAssignments(args []string) (integration.Settings, error) {
	out := integration.Settings{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", arg)
		}
		if key == "enabled" {
			return nil, fmt.Errorf("use the enable and disable commands to change enabled")
		}
		out[key] = parseScalar(raw)
	}
	return out, nil
}

func parseScalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	switch v.(type) {
	case bool, int, float64, string:
		return v
	}
	return raw
}
