package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDialCmd() *cobra.Command {
	var (
		contact  string
		parentID string
	)
	cmd := &cobra.Command{
		Use:   "dial [number] --purpose <goal>",
		Short: "Start a goal-initiated outbound call",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			purpose, _ := cmd.Flags().GetString("purpose")
			if purpose == "" {
				return fmt.Errorf("--purpose is required")
			}

			body := map[string]string{
				"purpose":   purpose,
				"parent_id": parentID,
				"contact":   contact,
			}
			if len(args) == 1 {
				body["to"] = args[0]
			}

			api := newAPIClient(cmd)
			var resp struct {
				Session sessionJSON `json:"session"`
			}
			if err := api.post("/api/dial", body, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dialing: %s (%s)\n", resp.Session.Name, resp.Session.ID)
			return nil
		},
	}
	cmd.Flags().String("purpose", "", "goal for the call")
	cmd.Flags().StringVar(&contact, "contact", "", "dial a directory contact by name")
	cmd.Flags().StringVar(&parentID, "parent", "", "requesting session id")
	return cmd
}
