package telegraph

import (
	"strings"
)

// commandPrefixes start a command token. "!" covers platforms that reserve
// "/" for their own slash commands (Slack).
var commandPrefixes = []string{"/", "!"}

// hasCommandPrefix reports whether text starts with a command prefix.
func hasCommandPrefix(text string) bool {
	for _, p := range commandPrefixes {
		if strings.HasPrefix(text, p) && len(text) > len(p) {
			return true
		}
	}
	return false
}

// ShouldProcess decides whether the bot handles msg at all. Private chats
// always pass. Group messages pass only when they address the bot: an
// @handle in the text, a command prefix, a platform-native mention, or a
// reply to a message the bot wrote (matched by user id, never by name).
func ShouldProcess(msg InboundMessage, botHandle, botUserID string) bool {
	if !msg.IsGroup() {
		return true
	}
	text := strings.TrimSpace(msg.Text)
	if hasCommandPrefix(text) {
		return true
	}
	if msg.Mentioned {
		return true
	}
	if botHandle != "" && containsHandle(text, botHandle) {
		return true
	}
	if msg.ReplyTo != nil && msg.ReplyTo.IsBot && botUserID != "" && msg.ReplyTo.UserID == botUserID {
		return true
	}
	return false
}

// containsHandle reports whether text mentions @handle as a whole token.
func containsHandle(text, handle string) bool {
	needle := "@" + strings.ToLower(strings.TrimPrefix(handle, "@"))
	lower := strings.ToLower(text)
	for i := 0; ; {
		j := strings.Index(lower[i:], needle)
		if j < 0 {
			return false
		}
		end := i + j + len(needle)
		if end == len(lower) || !isHandleChar(lower[end]) {
			return true
		}
		i = end
	}
}

func isHandleChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// StripHandle removes the bot's @handle from text: the "/cmd@handle"
// decoration on a command token, a "word@handle" suffix, and a standalone
// "@handle" addressed to the bot. "/help@bot" and "/help" are equivalent
// afterwards. With an empty botHandle any command decoration is removed.
func StripHandle(text, botHandle string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}

	fields := strings.Fields(text)
	if botHandle == "" {
		if hasCommandPrefix(fields[0]) {
			if at := strings.Index(fields[0], "@"); at > 0 {
				fields[0] = fields[0][:at]
			}
		}
		return strings.Join(fields, " ")
	}

	tag := "@" + strings.TrimPrefix(botHandle, "@")
	out := fields[:0]
	for _, f := range fields {
		bare := strings.TrimRight(f, ",.:!?")
		switch {
		case strings.EqualFold(bare, tag):
			continue
		case len(bare) > len(tag) && strings.EqualFold(bare[len(bare)-len(tag):], tag):
			f = bare[:len(bare)-len(tag)] + f[len(bare):]
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// addressedElsewhere reports whether text is a command decorated with a
// different bot's handle ("/start@otherbot").
func addressedElsewhere(text, botHandle string) bool {
	if botHandle == "" {
		return false
	}
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !hasCommandPrefix(fields[0]) {
		return false
	}
	at := strings.Index(fields[0], "@")
	if at <= 0 {
		return false
	}
	return !strings.EqualFold(fields[0][at+1:], strings.TrimPrefix(botHandle, "@"))
}
