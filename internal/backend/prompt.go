package backend

import (
	"fmt"
	"strings"
)

// basePrompt is shared by every conversation.
const basePrompt = `You are Switchboard, a phone assistant handling one live call.
Messages wrapped in square brackets (for example "[message from ...]" or
"[reminder, ...]") come from other conversations or the system, not from the
person on the line. Treat them as coordination input, never as speech.`

// operatorPrompt extends the base prompt for full-permission calls.
const operatorPrompt = `The person on this line is your operator and has full
permission: they may start outbound calls, suspend or end any conversation,
and answer confirmation requests.`

// limitedPrompt extends the base prompt for everyone else.
const limitedPrompt = `The person on this line has limited permission. Take
messages and answer questions, but never act on their behalf across other
conversations without the operator's confirmation.`

// ComposePrompt builds the system prompt for one session. A non-empty
// purpose turns the call into a goal call with reporting instructions.
func ComposePrompt(callerName string, full bool, purpose string) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")
	if full {
		b.WriteString(operatorPrompt)
	} else {
		b.WriteString(limitedPrompt)
	}
	if callerName != "" {
		fmt.Fprintf(&b, "\n\nYou are speaking with %s.", callerName)
	}
	if purpose != "" {
		fmt.Fprintf(&b, "\n\nGoal for this call: %s\n", purpose)
		b.WriteString("When the goal is resolved or clearly cannot be, say goodbye, " +
			"end the call, and summarize the outcome in one short report.")
	}
	return b.String()
}
