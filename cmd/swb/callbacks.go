package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newCallbacksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callbacks",
		Short: "Manage scheduled callbacks and reminders",
	}
	cmd.AddCommand(newCallbacksListCmd())
	cmd.AddCommand(newCallbacksAddCmd())
	cmd.AddCommand(newCallbacksCancelCmd())
	return cmd
}

func newCallbacksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled callbacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(cmd)
			var resp struct {
				Callbacks []struct {
					ID       uint       `json:"ID"`
					Target   string     `json:"Target"`
					Body     string     `json:"Body"`
					CronExpr string     `json:"CronExpr"`
					FireAt   *time.Time `json:"FireAt"`
				} `json:"callbacks"`
			}
			if err := api.get("/api/callbacks", &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWHEN\tTARGET\tBODY")
			for _, cb := range resp.Callbacks {
				when := cb.CronExpr
				if cb.FireAt != nil {
					when = cb.FireAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", cb.ID, when, cb.Target, cb.Body)
			}
			return w.Flush()
		},
	}
}

func newCallbacksAddCmd() *cobra.Command {
	var (
		in       time.Duration
		at       string
		cronExpr string
		target   string
	)
	cmd := &cobra.Command{
		Use:   "add <body>",
		Short: "Schedule a callback (--in, --at, or --cron)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{
				"target": target,
				"body":   args[0],
			}
			switch {
			case cronExpr != "":
				body["cron"] = cronExpr
			case at != "":
				body["at"] = at
			case in > 0:
				body["at"] = time.Now().Add(in).Format(time.RFC3339)
			default:
				return fmt.Errorf("one of --in, --at or --cron is required")
			}

			api := newAPIClient(cmd)
			var resp struct {
				ID uint `json:"id"`
			}
			if err := api.post("/api/callbacks", body, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduled callback %d\n", resp.ID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&in, "in", 0, "fire after a delay (e.g. 20m)")
	cmd.Flags().StringVar(&at, "at", "", "fire at an RFC 3339 time")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "recurring 5-field cron expression")
	cmd.Flags().StringVar(&target, "target", "operator", "delivery target (session id or \"operator\")")
	return cmd
}

func newCallbacksCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a scheduled callback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(cmd)
			if err := api.delete("/api/callbacks/"+args[0], nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Canceled.")
			return nil
		},
	}
}
