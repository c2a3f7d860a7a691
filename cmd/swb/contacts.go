package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage the contact directory",
	}
	cmd.AddCommand(newContactsListCmd())
	cmd.AddCommand(newContactsAddCmd())
	cmd.AddCommand(newContactsRemoveCmd())
	return cmd
}

func newContactsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(cmd)
			var resp struct {
				Contacts []struct {
					PhoneNumber string `json:"PhoneNumber"`
					Name        string `json:"Name"`
					Notes       string `json:"Notes"`
				} `json:"contacts"`
			}
			if err := api.get("/api/contacts", &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tNUMBER\tNOTES")
			for _, ct := range resp.Contacts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ct.Name, ct.PhoneNumber, ct.Notes)
			}
			return w.Flush()
		},
	}
}

func newContactsAddCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "add <name> <number>",
		Short: "Add or update a contact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(cmd)
			body := map[string]string{
				"name":         args[0],
				"phone_number": args[1],
				"notes":        notes,
			}
			if err := api.post("/api/contacts", body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes for the contact")
	return cmd
}

func newContactsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <number>",
		Short: "Remove a contact by phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := newAPIClient(cmd)
			if err := api.delete("/api/contacts/"+args[0], nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed.")
			return nil
		},
	}
}
