package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/steve/internal/domain"
)

// Answerer produces a free-text answer to a question.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// AnswerFunc adapts a function to Answerer.
type AnswerFunc func(ctx context.Context, query string) (string, error)

func (f AnswerFunc) Answer(ctx context.Context, query string) (string, error) { return f(ctx, query) }

// GitHubRepo answers questions about the owner's featured repositories by
// delegating to a dedicated model prompt. Its answer ends the turn verbatim.
type GitHubRepo struct {
	answerer Answerer
}

// NewGitHubRepo creates the repository question tool.
func NewGitHubRepo(a Answerer) *GitHubRepo {
	return &GitHubRepo{answerer: a}
}

func (g *GitHubRepo) Spec() Spec {
	return Spec{
		Name:        "github-repo",
		Description: "Get comprehensive answer to a query about Jomar Talambayan's featured Github repositories.",
		Params: []Param{
			{Name: "query", Type: TypeString, Description: "The question about Jomar's featured Github repositories.", Required: true},
		},
		Route: RouteDirect,
	}
}

func (g *GitHubRepo) Invoke(ctx context.Context, args Args) (domain.Output, error) {
	answer, err := g.answerer.Answer(ctx, args.String("query"))
	if err != nil {
		return domain.Output{}, fmt.Errorf("repository agent: %w", err)
	}
	return domain.TextOutput(strings.TrimSpace(answer)), nil
}
