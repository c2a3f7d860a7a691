package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// sessionJSON mirrors the console API session view.
type sessionJSON struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PhoneNumber  string    `json:"phone_number"`
	Permission   string    `json:"permission"`
	State        string    `json:"state"`
	Primary      bool      `json:"primary"`
	Purpose      string    `json:"purpose"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and control active sessions",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsActionCmd("suspend", "Suspend a session by id or name"))
	cmd.AddCommand(newSessionsActionCmd("resume", "Resume a suspended session by id or name"))
	cmd.AddCommand(newSessionsHangupCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(cmd)
			path := "/api/sessions"
			if all {
				path += "?all=1"
			}
			var resp struct {
				Sessions []sessionJSON `json:"sessions"`
			}
			if err := api.get(path, &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATE\tNUMBER\tPERM\tIDLE")
			for _, s := range resp.Sessions {
				name := s.Name
				if s.Primary {
					name += " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					name, s.State, s.PhoneNumber, s.Permission,
					time.Since(s.LastActivity).Round(time.Second))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include ended sessions")
	return cmd
}

func newSessionsActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id-or-name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(cmd)
			var resp struct {
				Session sessionJSON `json:"session"`
			}
			if err := api.post("/api/sessions/"+args[0]+"/"+action, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", resp.Session.Name, resp.Session.State)
			return nil
		},
	}
}

func newSessionsHangupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hangup <id-or-name>",
		Short: "End a session by id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(cmd)
			var resp struct {
				Session sessionJSON `json:"session"`
			}
			if err := api.delete("/api/sessions/"+args[0], &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ended\n", resp.Session.Name)
			return nil
		},
	}
}
