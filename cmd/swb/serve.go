package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MateDort/switchboard/internal/audit"
	"github.com/MateDort/switchboard/internal/backend"
	"github.com/MateDort/switchboard/internal/config"
	"github.com/MateDort/switchboard/internal/courier"
	"github.com/MateDort/switchboard/internal/daemon"
	"github.com/MateDort/switchboard/internal/db"
	"github.com/MateDort/switchboard/internal/identity"
	"github.com/MateDort/switchboard/internal/notify"
	"github.com/MateDort/switchboard/internal/notify/callchan"
	"github.com/MateDort/switchboard/internal/notify/discordchan"
	"github.com/MateDort/switchboard/internal/notify/emailchan"
	"github.com/MateDort/switchboard/internal/notify/slackchan"
	"github.com/MateDort/switchboard/internal/notify/smschan"
	"github.com/MateDort/switchboard/internal/schedule"
	"github.com/MateDort/switchboard/internal/switchboard"
	"github.com/MateDort/switchboard/internal/telephony"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Switchboard daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	gdb, err := db.Connect(cfg.Store)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	directory := db.NewDirectory(gdb)
	writer := audit.NewWriter(gdb)

	resolver, err := identity.NewResolver(identity.ResolverOpts{
		OperatorName:   cfg.Operator.Name,
		TrustedNumbers: cfg.Operator.Numbers,
		Directory:      directory,
	})
	if err != nil {
		return err
	}

	registry, err := switchboard.NewRegistry(switchboard.RegistryOpts{
		Resolver:  resolver,
		MaxActive: cfg.Lines.MaxActive,
		Audit:     writer,
	})
	if err != nil {
		return err
	}

	var provider telephony.Provider
	if cfg.Telephony.BaseURL != "" {
		provider, err = telephony.NewHTTPProvider(telephony.HTTPProviderOpts{
			BaseURL:    cfg.Telephony.BaseURL,
			APIKey:     cfg.Telephony.APIKey,
			FromNumber: cfg.Telephony.FromNumber,
		})
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "swb: no telephony provider configured; outbound calls and SMS disabled\n")
	}

	gateway, err := buildGateway(cfg, provider)
	if err != nil {
		return err
	}
	if gateway == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "swb: no fallback channels configured; out-of-band delivery disabled\n")
	}

	router, err := courier.NewRouter(courier.RouterOpts{
		Registry:            registry,
		Gateway:             gateway,
		Audit:               writer,
		ConfirmationTimeout: cfg.Lines.ConfirmationTimeout.Std(),
	})
	if err != nil {
		return err
	}

	scheduler, err := schedule.NewScheduler(schedule.SchedulerOpts{DB: gdb, Router: router})
	if err != nil {
		return err
	}

	connector, err := backend.NewWSConnector(backend.WSConnectorOpts{
		URL:    cfg.Backend.URL,
		APIKey: cfg.Backend.APIKey,
	})
	if err != nil {
		return err
	}

	d, err := daemon.New(daemon.Opts{
		Config:    cfg,
		Registry:  registry,
		Router:    router,
		Scheduler: scheduler,
		Connector: connector,
		Provider:  provider,
		Directory: directory,
		Out:       cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

// buildGateway assembles the fallback delivery fan-out from configuration.
// Returns nil when no channel is configured.
func buildGateway(cfg *config.Config, provider telephony.Provider) (notify.Gateway, error) {
	var gateways []notify.Gateway

	operatorNumber := ""
	if len(cfg.Operator.Numbers) > 0 {
		operatorNumber = cfg.Operator.Numbers[0]
	}

	wantText := cfg.Fallback.Preference == "text" || cfg.Fallback.Preference == "both"
	wantCall := cfg.Fallback.Preference == "call" || cfg.Fallback.Preference == "both"

	if wantText && provider != nil && operatorNumber != "" {
		g, err := smschan.New(provider, operatorNumber)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}
	if wantCall && provider != nil && operatorNumber != "" {
		g, err := callchan.New(provider, operatorNumber)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}
	if cfg.Fallback.SlackToken != "" && cfg.Fallback.SlackChannel != "" {
		g, err := slackchan.New(slackchan.Opts{
			Token:     cfg.Fallback.SlackToken,
			ChannelID: cfg.Fallback.SlackChannel,
		})
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}
	if cfg.Fallback.DiscordToken != "" && cfg.Fallback.DiscordChannel != "" {
		g, err := discordchan.New(discordchan.Opts{
			Token:     cfg.Fallback.DiscordToken,
			ChannelID: cfg.Fallback.DiscordChannel,
		})
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}
	if cfg.Fallback.Email != "" && cfg.Fallback.SMTPAddr != "" {
		from := cfg.Fallback.SMTPFrom
		if from == "" {
			from = "switchboard@localhost"
		}
		g, err := emailchan.New(emailchan.Opts{
			Addr: cfg.Fallback.SMTPAddr,
			From: from,
			To:   cfg.Fallback.Email,
		})
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}

	if len(gateways) == 0 {
		return nil, nil
	}
	return notify.NewMulti(gateways...)
}
