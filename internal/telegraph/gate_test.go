package telegraph

import "testing"

const testHandle = "optimuspremiumbot"

func groupMsg(text string) InboundMessage {
	return InboundMessage{ChannelID: "-100", ChatKind: ChatGroup, UserID: "42", Text: text}
}

func TestShouldProcess(t *testing.T) {
	tests := []struct {
		name string
		msg  InboundMessage
		want bool
	}{
		{"private always", InboundMessage{ChatKind: ChatPrivate, Text: "hello everyone"}, true},
		{"group chatter", groupMsg("hello everyone"), false},
		{"group command", groupMsg("/help"), true},
		{"group unknown command with other handle", groupMsg("/unknown@bot"), true},
		{"group bang command", groupMsg("!info"), true},
		{"bare prefix is not a command", groupMsg("/"), false},
		{"group handle mention", groupMsg("hey @optimuspremiumbot how much?"), true},
		{"group handle mention case-insensitive", groupMsg("@OptimusPremiumBot salom"), true},
		{"group handle as prefix of another handle", groupMsg("@optimuspremiumbot_fan hi"), false},
		{"platform mention", InboundMessage{ChatKind: ChatGroup, Text: "<@U1> hi", Mentioned: true}, true},
		{"reply to bot by id", InboundMessage{ChatKind: ChatGroup, Text: "ok", ReplyTo: &ReplyRef{UserID: "999", IsBot: true}}, true},
		{"reply to another bot", InboundMessage{ChatKind: ChatGroup, Text: "ok", ReplyTo: &ReplyRef{UserID: "777", IsBot: true}}, false},
		{"reply to human with bot id", InboundMessage{ChatKind: ChatGroup, Text: "ok", ReplyTo: &ReplyRef{UserID: "999", IsBot: false}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldProcess(tt.msg, testHandle, "999"); got != tt.want {
				t.Errorf("ShouldProcess(%q) = %v, want %v", tt.msg.Text, got, tt.want)
			}
		})
	}
}

func TestShouldProcess_NoBotIdentity(t *testing.T) {
	msg := InboundMessage{ChatKind: ChatGroup, Text: "ok", ReplyTo: &ReplyRef{UserID: "", IsBot: true}}
	if ShouldProcess(msg, "", "") {
		t.Error("reply must not match an unknown bot id")
	}
}

func TestStripHandle(t *testing.T) {
	tests := []struct {
		in, handle, want string
	}{
		{"/start@optimuspremiumbot", testHandle, "/start"},
		{"/help@OptimusPremiumBot", testHandle, "/help"},
		{"/help", testHandle, "/help"},
		{"hello@optimuspremiumbot", testHandle, "hello"},
		{"@optimuspremiumbot narxlar qanday?", testHandle, "narxlar qanday?"},
		{"hey @optimuspremiumbot, what do you build?", testHandle, "hey what do you build?"},
		{"write to ali@example.com", testHandle, "write to ali@example.com"},
		{"/info@anybot", "", "/info"},
		{"  ", testHandle, ""},
	}
	for _, tt := range tests {
		if got := StripHandle(tt.in, tt.handle); got != tt.want {
			t.Errorf("StripHandle(%q, %q) = %q, want %q", tt.in, tt.handle, got, tt.want)
		}
	}
}

func TestAddressedElsewhere(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"/start@otherbot", true},
		{"/start@optimuspremiumbot", false},
		{"/start", false},
		{"mail me at a@otherbot", false},
	}
	for _, tt := range tests {
		if got := addressedElsewhere(tt.in, testHandle); got != tt.want {
			t.Errorf("addressedElsewhere(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if addressedElsewhere("/start@otherbot", "") {
		t.Error("without a known handle nothing is addressed elsewhere")
	}
}
