package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/leadbot/internal/lang"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>...",
		Short: "Show which reply language a message would get",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			text := strings.Join(args, " ")
			l := lang.Classify(text)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)", l, l.Name())
			if lang.HasOverride(text) {
				fmt.Fprint(cmd.OutOrStdout(), " [explicit request]")
			}
			fmt.Fprintln(cmd.OutOrStdout())
		},
	}
}
