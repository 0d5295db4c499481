package messaging

import (
	"context"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/zulandar/leadbot/internal/lead"
)

// NotifyConfig controls the optional local hook run for every lead.
type NotifyConfig struct {
	// Command is run with sh -c. Lead values are only available as
	// environment variables, e.g. notify-send "New lead" "$LEAD_NAME $LEAD_PHONE".
	Command string
}

// Notify runs the configured command for a lead. Best-effort: errors are
// logged, not returned.
func Notify(ctx context.Context, l lead.Lead, cfg NotifyConfig) {
	if cfg.Command == "" {
		return
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", cfg.Command)
	cmd.Env = append(os.Environ(), leadEnv(l)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Printf("notify: command failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
}

// leadEnv exposes lead values to the hook. User-typed text never becomes
// part of the command line.
func leadEnv(l lead.Lead) []string {
	return []string{
		"LEAD_ID=" + l.ID,
		"LEAD_PROJECT=" + l.Project,
		"LEAD_NAME=" + l.Name,
		"LEAD_PHONE=" + l.Phone,
		"LEAD_EMAIL=" + l.Email,
		"LEAD_PLATFORM=" + l.Contact.Platform,
		"LEAD_USER_ID=" + l.Contact.UserID,
		"LEAD_LANGUAGE=" + l.Language.String(),
	}
}
