package agent

import (
	"context"

	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/logging"
)

// DefaultSummaryThreshold is the number of non-tool messages a thread may
// hold before older ones are folded into the summary.
const DefaultSummaryThreshold = 6

// Digester produces a conversation summary.
type Digester interface {
	Summarize(ctx context.Context, prior string, msgs []domain.Message) (string, error)
}

// Summarizer prunes a thread's history into its running summary.
type Summarizer struct {
	digester  Digester
	threshold int
	log       *logging.Logger
}

// NewSummarizer creates a Summarizer. A threshold <= 0 uses the default.
func NewSummarizer(d Digester, threshold int, log *logging.Logger) *Summarizer {
	if threshold <= 0 {
		threshold = DefaultSummaryThreshold
	}
	return &Summarizer{digester: d, threshold: threshold, log: log.Sub("summarizer")}
}

// plan splits msgs into the conversational messages and the trailing run of
// tool results that the next reasoning step has not consumed yet. due
// reports whether the conversational messages should be summarized.
func (s *Summarizer) plan(msgs []domain.Message) (conv, pending []domain.Message, due bool) {
	start := len(msgs)
	for start > 0 && msgs[start-1].Role == domain.RoleTool {
		start--
	}
	pending = msgs[start:]

	for _, m := range msgs {
		if m.Role != domain.RoleTool {
			conv = append(conv, m)
		}
	}
	due = len(conv) > s.threshold && conv[len(conv)-1].Role != domain.RoleVisitor
	return conv, pending, due
}

// Apply returns st with consumed tool results dropped and, when due, the
// conversational messages replaced by an updated summary.
func (s *Summarizer) Apply(ctx context.Context, st domain.ConversationState) (domain.ConversationState, error) {
	conv, pending, due := s.plan(st.Messages)
	if !due {
		st.Messages = append(conv, pending...)
		return st, nil
	}

	digest, err := s.digester.Summarize(ctx, st.Summary, conv)
	if err != nil {
		return st, err
	}
	s.log.Debug().Int("summarized", len(conv)).Int("kept", len(pending)).Msg("history summarized")

	st.Summary = digest
	st.Messages = append([]domain.Message(nil), pending...)
	return st, nil
}
