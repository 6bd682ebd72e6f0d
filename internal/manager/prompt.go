package manager

import (
	"strings"

	"inferd/pkg/types"
)

// roleLabels maps wire roles to transcript labels. Messages with any other
// role are skipped.
var roleLabels = map[string]string{
	types.RoleSystem:    "System",
	types.RoleUser:      "User",
	types.RoleAssistant: "Assistant",
}

// FormatPrompt renders a conversation as a linear transcript: one
// "<Label>: <content>" line per message in input order, then a bare
// "Assistant:" cue with no trailing newline, which tells the model where
// the continuation begins. Content is not escaped; this is a transcript
// format, not a chat-template negotiation.
func FormatPrompt(messages []types.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		label, ok := roleLabels[msg.Role]
		if !ok {
			continue
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	b.WriteString("Assistant:")
	return b.String()
}
