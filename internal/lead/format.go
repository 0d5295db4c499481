package lead

import (
	"fmt"
	"strings"
)

// Format renders the operations-channel notification. Labels are always
// English; captured values are copied verbatim.
func Format(l Lead) string {
	var b strings.Builder
	b.WriteString("🎯 New lead\n\n")
	fmt.Fprintf(&b, "Project: %s\n", l.Project)
	fmt.Fprintf(&b, "Name: %s\n", l.Name)
	fmt.Fprintf(&b, "Phone: %s\n", l.Phone)
	fmt.Fprintf(&b, "Email: %s\n", l.Email)
	b.WriteString("\n👤 Contact\n")
	fmt.Fprintf(&b, "User ID: %s\n", orDash(l.Contact.UserID))
	fmt.Fprintf(&b, "First Name: %s\n", orDash(l.Contact.FirstName))
	if l.Contact.LastName != "" {
		fmt.Fprintf(&b, "Last Name: %s\n", l.Contact.LastName)
	}
	if l.Contact.Handle != "" {
		fmt.Fprintf(&b, "Username: @%s\n", strings.TrimPrefix(l.Contact.Handle, "@"))
	}
	if l.Contact.Platform != "" {
		fmt.Fprintf(&b, "Platform: %s\n", l.Contact.Platform)
	}
	fmt.Fprintf(&b, "Language: %s\n", l.Language.Name())
	if !l.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Received: %s\n", l.CreatedAt.Format("2006-01-02 15:04 MST"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
