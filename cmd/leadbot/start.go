package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/leadbot/internal/config"
	"github.com/zulandar/leadbot/internal/dashboard"
	"github.com/zulandar/leadbot/internal/db"
	"github.com/zulandar/leadbot/internal/messaging"
	"github.com/zulandar/leadbot/internal/responder"
	"github.com/zulandar/leadbot/internal/session"
	"github.com/zulandar/leadbot/internal/telegraph"
	discordadapter "github.com/zulandar/leadbot/internal/telegraph/discord"
	slackadapter "github.com/zulandar/leadbot/internal/telegraph/slack"
	telegramadapter "github.com/zulandar/leadbot/internal/telegraph/telegram"
	whatsappadapter "github.com/zulandar/leadbot/internal/telegraph/whatsapp"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func newStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bot",
		Long:  "Connects to the configured chat platform, answers customers, and forwards captured leads. Runs the dashboard when enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "leadbot.yaml", "path to leadbot config file")
	return cmd
}

func runStart(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	store, err := createStore(cfg, gormDB)
	if err != nil {
		return err
	}
	resp, err := createResponder(cfg)
	if err != nil {
		return err
	}
	sink, err := createSink(cfg, gormDB, adapter, out)
	if err != nil {
		return err
	}

	daemon, err := telegraph.NewDaemon(telegraph.DaemonOpts{
		DB:        gormDB,
		Config:    cfg,
		Adapter:   adapter,
		Store:     store,
		Responder: resp,
		Sink:      sink,
		Out:       out,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The dashboard stops with the daemon.
		defer cancel()
		return daemon.Run(ctx)
	})
	if cfg.Dashboard.Enabled {
		var hooks []telegraph.WebhookProvider
		if wp, ok := adapter.(telegraph.WebhookProvider); ok {
			hooks = append(hooks, wp)
		}
		g.Go(func() error {
			return dashboard.Start(ctx, dashboard.StartOpts{
				DB:       gormDB,
				Port:     cfg.Dashboard.Port,
				Platform: cfg.Platform,
				Webhooks: hooks,
				Out:      out,
			})
		})
	}
	return g.Wait()
}

// openDB connects and migrates the configured database.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (telegraph.Adapter, error) {
	switch cfg.Platform {
	case config.PlatformTelegram:
		return telegramadapter.New(telegramadapter.AdapterOpts{
			Token:         cfg.Telegram.Token,
			APIBase:       cfg.Telegram.APIBase,
			Mode:          cfg.Telegram.Mode,
			WebhookURL:    cfg.Telegram.WebhookURL,
			WebhookPath:   cfg.Telegram.WebhookPath,
			WebhookSecret: cfg.Telegram.WebhookSecret,
			PollTimeout:   cfg.Telegram.PollTimeout,
			ChannelID:     cfg.Leads.ChannelID,
		})
	case config.PlatformSlack:
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  cfg.Slack.AppToken,
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Leads.ChannelID,
		})
	case config.PlatformDiscord:
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Leads.ChannelID,
		})
	case config.PlatformWhatsApp:
		return whatsappadapter.New(whatsappadapter.AdapterOpts{
			AccountSID:  cfg.WhatsApp.AccountSID,
			AuthToken:   cfg.WhatsApp.AuthToken,
			From:        cfg.WhatsApp.From,
			WebhookPath: cfg.WhatsApp.WebhookPath,
			WebhookURL:  cfg.WhatsApp.WebhookURL,
			ChannelID:   cfg.Leads.ChannelID,
		})
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}

// createStore picks the session store.
func createStore(cfg *config.Config, gormDB *gorm.DB) (session.Store, error) {
	if cfg.Session.Store == config.StoreDatabase {
		return session.NewDBStore(gormDB)
	}
	return session.NewMemoryStore(), nil
}

// createResponder returns the LLM responder, or the canned one when no
// provider is configured.
func createResponder(cfg *config.Config) (telegraph.Responder, error) {
	if cfg.LLM.Provider == config.ProviderNone {
		return telegraph.CannedResponder{}, nil
	}
	return responder.New(responder.Opts{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Profile:     telegraph.ProfileFromConfig(cfg.Company),
	})
}

// createSink returns the lead sink, or nil when no leads channel is set.
func createSink(cfg *config.Config, gormDB *gorm.DB, adapter telegraph.Adapter, out io.Writer) (telegraph.LeadSink, error) {
	if cfg.Leads.ChannelID == "" {
		return nil, nil
	}
	return messaging.NewSink(messaging.SinkOpts{
		DB:         gormDB,
		Adapter:    adapter,
		ChannelID:  cfg.Leads.ChannelID,
		TopicID:    cfg.Leads.TopicID,
		RichEvents: cfg.Platform == config.PlatformSlack || cfg.Platform == config.PlatformDiscord,
		Notify:     messaging.NotifyConfig{Command: cfg.Leads.NotifyCommand},
		Out:        out,
	})
}
