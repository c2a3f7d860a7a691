package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newAnswerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer [id-or-code] [answer]",
		Short: "List or answer pending confirmation requests",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(cmd)

			if len(args) == 0 {
				var resp struct {
					Confirmations []struct {
						ID        string    `json:"ID"`
						Code      string    `json:"Code"`
						Prompt    string    `json:"Prompt"`
						CreatedAt time.Time `json:"CreatedAt"`
					} `json:"confirmations"`
				}
				if err := api.get("/api/confirmations", &resp); err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CODE\tAGE\tPROMPT")
				for _, conf := range resp.Confirmations {
					fmt.Fprintf(w, "%s\t%s\t%s\n",
						conf.Code, time.Since(conf.CreatedAt).Round(time.Second), conf.Prompt)
				}
				return w.Flush()
			}
			if len(args) != 2 {
				return fmt.Errorf("usage: swb answer <id-or-code> <answer>")
			}

			if err := api.post("/api/confirmations/"+args[0], map[string]string{"answer": args[1]}, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Answered.")
			return nil
		},
	}
	return cmd
}
