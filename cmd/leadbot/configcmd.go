package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/leadbot/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(newConfigCheckCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK: %s\n", configPath)
			fmt.Fprintf(out, "  platform:   %s\n", cfg.Platform)
			if cfg.Platform == config.PlatformTelegram {
				fmt.Fprintf(out, "  telegram:   %s mode\n", cfg.Telegram.Mode)
			}
			fmt.Fprintf(out, "  sessions:   %s (thread sessions: %v)\n", cfg.Session.Store, cfg.Bot.ThreadSessionsEnabled())
			if cfg.Session.ExpireAfter > 0 {
				fmt.Fprintf(out, "  expiry:     %s (sweep %q)\n", cfg.Session.ExpireAfter, cfg.Session.SweepCron)
			}
			fmt.Fprintf(out, "  hours:      %v %s-%s %s\n", cfg.Hours.Days, cfg.Hours.Open, cfg.Hours.Close, cfg.Hours.Timezone)
			fmt.Fprintf(out, "  llm:        %s", cfg.LLM.Provider)
			if cfg.LLM.Provider != config.ProviderNone {
				fmt.Fprintf(out, " (%s)", cfg.LLM.Model)
			}
			fmt.Fprintln(out)
			leads := cfg.Leads.ChannelID
			if leads == "" {
				leads = "(not set: leads are logged only)"
			} else if cfg.Leads.TopicID != "" {
				leads += " topic " + cfg.Leads.TopicID
			}
			fmt.Fprintf(out, "  leads:      %s\n", leads)
			fmt.Fprintf(out, "  database:   %s\n", cfg.Database.Driver)
			if cfg.Dashboard.Enabled {
				fmt.Fprintf(out, "  dashboard:  :%d\n", cfg.Dashboard.Port)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "leadbot.yaml", "path to leadbot config file")
	return cmd
}
