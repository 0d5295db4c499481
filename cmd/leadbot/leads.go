package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/zulandar/leadbot/internal/config"
	"github.com/zulandar/leadbot/internal/messaging"
	"github.com/zulandar/leadbot/internal/models"
	"golang.org/x/term"
)

const (
	defaultTableWidth = 120
	minProjectWidth   = 16
)

func newLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Inspect captured leads",
	}

	cmd.AddCommand(newLeadsListCmd())
	cmd.AddCommand(newLeadsResendCmd())
	return cmd
}

func newLeadsListCmd() *cobra.Command {
	var (
		configPath string
		opts       messaging.ListOpts
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gormDB, err := openDB(cfg)
			if err != nil {
				return err
			}
			rows, err := messaging.ListLeads(gormDB, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printLeads(out, rows, tableWidth(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "leadbot.yaml", "path to leadbot config file")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of leads")
	cmd.Flags().StringVar(&opts.Platform, "platform", "", "only leads from this platform")
	cmd.Flags().BoolVar(&opts.Undelivered, "undelivered", false, "only leads whose notification failed")
	return cmd
}

func newLeadsResendCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Retry leads whose notification failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Leads.ChannelID == "" {
				return fmt.Errorf("leads.channel_id is not configured")
			}
			gormDB, err := openDB(cfg)
			if err != nil {
				return err
			}
			adapter, err := createAdapter(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := adapter.Connect(ctx); err != nil {
				return fmt.Errorf("connect %s: %w", cfg.Platform, err)
			}
			defer adapter.Close()

			sink, err := createSink(cfg, gormDB, adapter, out)
			if err != nil {
				return err
			}
			n, err := sink.(*messaging.Sink).Resend(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Resent %d lead(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "leadbot.yaml", "path to leadbot config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of leads to retry")
	return cmd
}

// tableWidth is the terminal width when out is a terminal.
func tableWidth(out io.Writer) int {
	if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		if w, _, err := term.GetSize(int(file.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultTableWidth
}

// printLeads renders rows as a table, truncating the project column to
// what the width leaves over.
func printLeads(out io.Writer, rows []models.Lead, width int) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No leads found.")
		return
	}
	// Fixed columns: time 16, platform 9, name 20, phone 16, status 6, gaps.
	projectWidth := width - (16 + 9 + 20 + 16 + 6 + 2*6)
	if projectWidth < minProjectWidth {
		projectWidth = minProjectWidth
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tPLATFORM\tNAME\tPHONE\tSENT\tPROJECT")
	for _, r := range rows {
		sent := "yes"
		if !r.Delivered {
			sent = "NO"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Platform,
			truncateRunes(r.Name, 20),
			r.Phone,
			sent,
			truncateRunes(oneLine(r.Project), projectWidth),
		)
	}
	w.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes shortens s to max runes, marking the cut with "…".
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
