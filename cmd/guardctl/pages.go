package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mbd888/guardlens/internal/apiclient"
)

func newPagesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pages",
		Short: "List dashboard pages and their mount state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().ListPages(cmd.Context())
			if err != nil {
				return err
			}
			if opts.raw {
				return printJSON(cmd.OutOrStdout(), raw)
			}

			var resp struct {
				Pages []struct {
					Slug    string   `json:"slug"`
					Path    string   `json:"path"`
					Title   string   `json:"title"`
					Panels  []string `json:"panels"`
					Mounted bool     `json:"mounted"`
				} `json:"pages"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("parse pages: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, p := range resp.Pages {
				state := yellow("unmounted")
				if p.Mounted {
					state = green("mounted")
				}
				fmt.Fprintf(out, "%-10s %-22s %-11s %s\n", bold(p.Slug), p.Title, p.Path, state)
				fmt.Fprintf(out, "           panels: %s\n", strings.Join(p.Panels, ", "))
			}
			return nil
		},
	}
}

func newPageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "page <slug>",
		Short: "Print every panel snapshot of a mounted page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().GetPage(cmd.Context(), args[0])
			if apiclient.IsStatus(err, http.StatusConflict) {
				return fmt.Errorf("page %q is not mounted (run: guardctl mount %s)", args[0], args[0])
			}
			if err != nil {
				return err
			}
			if opts.raw {
				return printJSON(cmd.OutOrStdout(), raw)
			}

			var snap struct {
				Title  string                     `json:"title"`
				Panels map[string]json.RawMessage `json:"panels"`
			}
			if err := json.Unmarshal(raw, &snap); err != nil {
				return fmt.Errorf("parse page: %w", err)
			}

			ids := make([]string, 0, len(snap.Panels))
			for id := range snap.Panels {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, bold(snap.Title))
			for _, id := range ids {
				fmt.Fprintf(out, "\n%s\n", cyan(id))
				if err := printJSON(out, snap.Panels[id]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newMountCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mount <slug>",
		Short: "Mount a page and start its simulations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := opts.client().Mount(cmd.Context(), args[0])
			if apiclient.IsStatus(err, http.StatusConflict) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is already mounted\n", yellow("!"), args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s mounted %s\n", green("✓"), bold(args[0]))
			return nil
		},
	}
}

func newUnmountCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unmount <slug>",
		Short: "Unmount a page and stop its simulations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.client().Unmount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s unmounted %s\n", green("✓"), bold(args[0]))
			return nil
		},
	}
}

func newPanelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "panel <slug> <panel>",
		Short: "Print one panel snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().GetPanel(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func newControlCmd(opts *rootOptions) *cobra.Command {
	var (
		name    string
		value   float64
		enabled bool
	)

	cmd := &cobra.Command{
		Use:   "control <slug> <panel> <action>",
		Short: "Send a control action to a panel",
		Example: `  guardctl control detection anomaly-threshold set_threshold --name typing --value 80
  guardctl control privacy federated-learning set_enabled --enabled=false
  guardctl control analytics reporting generate --name fraud-summary`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := apiclient.ControlRequest{Action: args[2], Name: name}
			if cmd.Flags().Changed("value") {
				req.Value = &value
			}
			if cmd.Flags().Changed("enabled") {
				req.Enabled = &enabled
			}

			raw, err := opts.client().Control(cmd.Context(), args[0], args[1], req)
			if err != nil {
				return err
			}
			if opts.raw {
				return printJSON(cmd.OutOrStdout(), raw)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s applied to %s/%s\n", green("✓"), bold(args[2]), args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "target name (threshold, control, report, period or range)")
	cmd.Flags().Float64Var(&value, "value", 0, "numeric value")
	cmd.Flags().BoolVar(&enabled, "enabled", false, "flag value")
	return cmd
}
