package tools

import (
	"context"

	"github.com/soyeahso/steve/internal/domain"
)

// Profile facts served by the profile tools.
const (
	OwnerName       = "Jomar Talambayan"
	GitHubUsername  = "rhyliieee"
	GitHubURL       = "https://github.com/rhyliieee"
	GitHubReposURL  = "https://github.com/rhyliieee?tab=repositories"
	GitHubLocation  = "Laguna, Philippines"
	GitHubRepoCount = 7
	Headline        = "Generative AI Engineer | Building Smarter AI for Healthcare and Beyond"

	LinkedInURL         = "https://www.linkedin.com/in/jomar-talambayan-52730227a/"
	LinkedInLocation    = "Santa Cruz, Laguna, Philippines"
	LinkedInConnections = "152 connections"
)

// GitHubProfile returns the owner's GitHub profile card.
type GitHubProfile struct{}

func (GitHubProfile) Spec() Spec {
	return Spec{
		Name:        "github-profile",
		Description: "Get Github profile details of Jomar Talambayan.",
		Params: []Param{
			{Name: "username", Type: TypeString, Description: "GitHub username.", Default: GitHubUsername},
		},
		Route: RouteTerminate,
	}
}

func (GitHubProfile) Invoke(_ context.Context, args Args) (domain.Output, error) {
	return domain.RecordOutput(githubRecord(args.String("username"))), nil
}

func githubRecord(username string) domain.Record {
	return domain.Record{
		{Key: "name", Value: OwnerName},
		{Key: "username", Value: username},
		{Key: "profile_url", Value: GitHubURL},
		{Key: "location", Value: GitHubLocation},
		{Key: "bio", Value: Headline},
		{Key: "num_repos", Value: GitHubRepoCount},
		{Key: "repo", Value: GitHubReposURL},
	}
}

// LinkedInProfile returns the owner's LinkedIn profile card.
type LinkedInProfile struct{}

func (LinkedInProfile) Spec() Spec {
	return Spec{
		Name:        "linkedin-profile",
		Description: "Get LinkedIn profile details of Jomar Talambayan.",
		Params: []Param{
			{Name: "username", Type: TypeString, Description: "Display name to show on the card."},
		},
		Route: RouteTerminate,
	}
}

func (LinkedInProfile) Invoke(_ context.Context, args Args) (domain.Output, error) {
	return domain.RecordOutput(linkedinRecord(args.String("username"))), nil
}

func linkedinRecord(username string) domain.Record {
	name := username
	if name == "" {
		name = OwnerName
	}
	return domain.Record{
		{Key: "name", Value: name},
		{Key: "profile_url", Value: LinkedInURL},
		{Key: "location", Value: LinkedInLocation},
		{Key: "headline", Value: Headline},
		{Key: "connections", Value: LinkedInConnections},
	}
}
