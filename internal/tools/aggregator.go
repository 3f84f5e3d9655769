package tools

import (
	"context"

	"github.com/soyeahso/steve/internal/domain"
)

// ProfileAggregator combines the GitHub and LinkedIn cards into one record.
// A failure in either half is reported inside the record instead of failing
// the whole call.
type ProfileAggregator struct {
	GitHub   Tool
	LinkedIn Tool
}

// NewProfileAggregator wires the aggregator to the built-in profile tools.
func NewProfileAggregator() *ProfileAggregator {
	return &ProfileAggregator{GitHub: GitHubProfile{}, LinkedIn: LinkedInProfile{}}
}

func (p *ProfileAggregator) Spec() Spec {
	return Spec{
		Name:        "profile-aggregator",
		Description: "Aggregates GitHub and LinkedIn information for a profile card.",
		Params: []Param{
			{Name: "github_username", Type: TypeString, Description: "The GitHub username.", Default: GitHubUsername},
			{Name: "linkedin_username", Type: TypeString, Description: "The LinkedIn display name.", Default: ""},
		},
		Route: RouteTerminate,
	}
}

func (p *ProfileAggregator) Invoke(ctx context.Context, args Args) (domain.Output, error) {
	gh := args.String("github_username")
	li := args.String("linkedin_username")
	return domain.RecordOutput(domain.Record{
		{Key: "github_data", Value: p.part(ctx, p.GitHub, gh)},
		{Key: "linkedin_data", Value: p.part(ctx, p.LinkedIn, li)},
	}), nil
}

func (p *ProfileAggregator) part(ctx context.Context, t Tool, username string) domain.Record {
	out, err := t.Invoke(ctx, Args{"username": username})
	if err != nil {
		return domain.Record{{Key: "error", Value: err.Error()}, {Key: "username", Value: username}}
	}
	if out.Record == nil {
		return domain.Record{{Key: "error", Value: out.Text}, {Key: "username", Value: username}}
	}
	return out.Record
}
