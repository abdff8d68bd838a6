package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mbd888/guardlens/internal/apiclient"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

type rootOptions struct {
	url     string
	timeout time.Duration
	raw     bool
	noColor bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "guardctl",
		Short:         "Inspect and drive a running guardlens server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	defaultURL := os.Getenv("GUARDLENS_API_URL")
	if defaultURL == "" {
		defaultURL = apiclient.DefaultURL
	}
	cmd.PersistentFlags().StringVar(&opts.url, "url", defaultURL, "guardlens server URL (env GUARDLENS_API_URL)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")
	cmd.PersistentFlags().BoolVar(&opts.raw, "json", false, "print raw JSON responses")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newHealthCmd(opts),
		newPagesCmd(opts),
		newPageCmd(opts),
		newMountCmd(opts),
		newUnmountCmd(opts),
		newPanelCmd(opts),
		newControlCmd(opts),
		newMonitorCmd(opts),
		newSessionsCmd(opts),
		newSessionCmd(opts),
	)
	return cmd
}

func (o *rootOptions) client() *apiclient.Client {
	return apiclient.New(apiclient.Config{BaseURL: o.url, Timeout: o.timeout})
}

// printJSON writes raw indented. It is used for --json and for payloads with
// no dedicated rendering.
func printJSON(w io.Writer, raw json.RawMessage) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	_, err := fmt.Fprintln(w, pretty.String())
	return err
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Health(cmd.Context())
			if apiclient.IsStatus(err, http.StatusServiceUnavailable) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", red("●"), bold("degraded"))
				return err
			}
			if err != nil {
				return err
			}
			if opts.raw {
				return printJSON(cmd.OutOrStdout(), raw)
			}

			var resp struct {
				Status  string `json:"status"`
				Version string `json:"version"`
				Checks  []struct {
					Name    string `json:"name"`
					Healthy bool   `json:"healthy"`
					Detail  string `json:"detail"`
				} `json:"checks"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("parse health: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (version %s)\n", green("●"), bold(resp.Status), resp.Version)
			for _, c := range resp.Checks {
				mark := green("✓")
				if !c.Healthy {
					mark = red("✗")
				}
				fmt.Fprintf(out, "  %s %-12s %s\n", mark, c.Name, c.Detail)
			}
			return nil
		},
	}
}
