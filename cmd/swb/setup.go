package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/MateDort/switchboard/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func newSetupCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactively write a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			return runSetup(cmd, path)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func runSetup(cmd *cobra.Command, path string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	ask := func(prompt, def string) string {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, def)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, _ := in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			return def
		}
		return line
	}
	askSecret := func(prompt string) string {
		fmt.Fprintf(out, "%s: ", prompt)
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			secret, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			if err == nil {
				return strings.TrimSpace(string(secret))
			}
		}
		line, _ := in.ReadString('\n')
		return strings.TrimSpace(line)
	}

	var cfg config.Config

	fmt.Fprintln(out, "Operator identity")
	cfg.Operator.Name = ask("Your name", "Operator")
	numbers := ask("Your phone numbers (comma separated, E.164)", "")
	for _, n := range strings.Split(numbers, ",") {
		if n = strings.TrimSpace(n); n != "" {
			cfg.Operator.Numbers = append(cfg.Operator.Numbers, n)
		}
	}

	fmt.Fprintln(out, "\nTelephony provider")
	cfg.Telephony.BaseURL = ask("API base URL", "")
	cfg.Telephony.APIKey = askSecret("API key")
	cfg.Telephony.FromNumber = ask("Outbound caller number", "")
	cfg.Telephony.WebhookToken = askSecret("Webhook token")

	fmt.Fprintln(out, "\nSpeech backend")
	cfg.Backend.URL = ask("Realtime WebSocket URL", "")
	cfg.Backend.APIKey = askSecret("API key")
	cfg.Backend.Voice = ask("Voice", "alloy")

	fmt.Fprintln(out, "\nFallback delivery")
	cfg.Fallback.Preference = ask("Preference (text, call or both)", "text")
	if token := askSecret("Slack bot token (blank to skip)"); token != "" {
		cfg.Fallback.SlackToken = token
		cfg.Fallback.SlackChannel = ask("Slack channel ID", "")
	}
	if token := askSecret("Discord bot token (blank to skip)"); token != "" {
		cfg.Fallback.DiscordToken = token
		cfg.Fallback.DiscordChannel = ask("Discord channel ID", "")
	}

	fmt.Fprintln(out, "\nStorage")
	cfg.Store.Driver = ask("Database driver (sqlite or mysql)", "sqlite")
	if cfg.Store.Driver == "sqlite" {
		cfg.Store.Path = ask("SQLite path", "switchboard.db")
	} else {
		cfg.Store.Host = ask("MySQL host", "127.0.0.1")
		cfg.Store.Database = ask("MySQL database", "switchboard")
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(out, "\nWrote %s. Run \"swb db init\" next, then \"swb serve\".\n", path)
	return nil
}
