package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type sessionSummary struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"startedAt"`
	DurationSeconds int       `json:"durationSeconds"`
	Outcome         string    `json:"outcome"`
	Anomalies       int       `json:"anomalies"`
	PeakThreat      float64   `json:"peakThreat"`
}

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded monitoring sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().ListSessions(cmd.Context(), limit, cursor)
			if err != nil {
				return err
			}
			if opts.raw {
				return printJSON(cmd.OutOrStdout(), raw)
			}

			var resp struct {
				Sessions   []sessionSummary `json:"sessions"`
				NextCursor string           `json:"nextCursor"`
				HasMore    bool             `json:"hasMore"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("parse sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(resp.Sessions) == 0 {
				fmt.Fprintln(out, "no sessions recorded")
				return nil
			}
			for _, s := range resp.Sessions {
				fmt.Fprintf(out, "%s  %s  %-9s %4ds  anomalies=%d  peak=%.1f%%\n",
					bold(s.ID), s.StartedAt.Local().Format(time.DateTime), s.Outcome,
					s.DurationSeconds, s.Anomalies, s.PeakThreat)
			}
			if resp.HasMore {
				fmt.Fprintf(out, "\n%s --cursor %s\n", cyan("more:"), resp.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list")
	cmd.Flags().StringVar(&cursor, "cursor", "", "cursor from a previous listing")
	return cmd
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session <id>",
		Short: "Print one recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}
