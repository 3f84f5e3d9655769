package agent

import (
	"strings"

	"github.com/soyeahso/steve/internal/domain"
)

func speaker(r domain.Role) string {
	if r == domain.RoleVisitor {
		return "Visitor"
	}
	return "Steve"
}

// transcript renders the non-tool messages with text as "[Speaker]: text".
func transcript(msgs []domain.Message) []string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == domain.RoleTool || m.Content == "" {
			continue
		}
		lines = append(lines, "["+speaker(m.Role)+"]: "+m.Content)
	}
	return lines
}

// buildMemory is the conversation memory handed to the reasoning prompt.
// With at most one message there is nothing to recall beyond the summary.
func buildMemory(summary string, msgs []domain.Message) string {
	if len(msgs) <= 1 {
		return summary
	}
	lines := transcript(msgs)
	if summary == "" {
		return strings.Join(lines, "\n\n")
	}
	return summary + "\n" + strings.Join(lines, "\n")
}
