package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/mbd888/guardlens/internal/apiclient"
)

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show or drive the dashboard's real-time monitoring session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Monitoring(cmd.Context())
			if apiclient.IsStatus(err, http.StatusConflict) {
				return fmt.Errorf("dashboard is not mounted (run: guardctl mount dashboard)")
			}
			if err != nil {
				return err
			}
			return printMonitoring(cmd.OutOrStdout(), raw, opts.raw)
		},
	}

	for _, action := range []struct{ name, short string }{
		{"start", "Start monitoring"},
		{"pause", "Pause monitoring"},
		{"stop", "Stop monitoring and record the session"},
		{"reset", "Return monitoring to standby"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   action.name,
			Short: action.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := opts.client().Monitor(cmd.Context(), action.name)
				if err != nil {
					return err
				}
				return printMonitoring(cmd.OutOrStdout(), raw, opts.raw)
			},
		})
	}
	return cmd
}

func printMonitoring(w io.Writer, raw json.RawMessage, asJSON bool) error {
	if asJSON {
		return printJSON(w, raw)
	}

	var st struct {
		Monitoring    bool     `json:"monitoring"`
		Status        string   `json:"status"`
		Duration      int      `json:"duration"`
		DurationLabel string   `json:"durationLabel"`
		SessionID     string   `json:"sessionId"`
		ThreatLevel   *float64 `json:"threatLevel"`
		Anomalies     *int     `json:"anomalies"`
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("parse monitoring state: %w", err)
	}

	status := yellow(st.Status)
	if st.Monitoring {
		status = green(st.Status)
	}
	duration := st.DurationLabel
	if duration == "" {
		duration = fmt.Sprintf("%d:%02d", st.Duration/60, st.Duration%60)
	}

	fmt.Fprintf(w, "%s %s  %s\n", bold("monitoring"), status, duration)
	if st.SessionID != "" {
		fmt.Fprintf(w, "  session    %s\n", st.SessionID)
	}
	if st.ThreatLevel != nil {
		fmt.Fprintf(w, "  threat     %.1f%%\n", *st.ThreatLevel)
	}
	if st.Anomalies != nil {
		fmt.Fprintf(w, "  anomalies  %d\n", *st.Anomalies)
	}
	return nil
}
