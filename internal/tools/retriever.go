package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/logging"
	"github.com/soyeahso/steve/internal/store"
)

// NoContext is returned when a search finds nothing.
const NoContext = "No context retrieved from GroundX which supports the current query."

// Searcher runs a semantic search and returns the raw matched text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// ContextRetriever searches the owner's resume and CV. Its output feeds the
// next reasoning step rather than ending the turn.
type ContextRetriever struct {
	searcher Searcher
	log      *logging.Logger
}

// NewContextRetriever creates the retriever tool over s.
func NewContextRetriever(s Searcher, log *logging.Logger) *ContextRetriever {
	return &ContextRetriever{searcher: s, log: log.Sub("tools.retriever")}
}

func (c *ContextRetriever) Spec() Spec {
	return Spec{
		Name:        "context-retriever",
		Description: "Tool to perform semantic search over Jomar's resume and curriculum vitae based on the user's query.",
		Params: []Param{
			{
				Name:        "query",
				Type:        TypeString,
				Description: "User's query used to perform semantic search over Jomar's resume and curriculum vitae.",
				Required:    true,
			},
		},
		Route: RouteReason,
	}
}

func (c *ContextRetriever) Invoke(ctx context.Context, args Args) (domain.Output, error) {
	raw, err := c.searcher.Search(ctx, args.String("query"))
	if err != nil {
		return domain.Output{}, err
	}
	cleaned := CleanContext(raw)
	if cleaned == "" {
		c.log.Warn().Msg("no context retrieved")
		return domain.TextOutput(NoContext), nil
	}
	c.log.Debug().Int("chars", len(cleaned)).Msg("context retrieved")
	return domain.TextOutput(cleaned), nil
}

var (
	reRetrievedHeader = regexp.MustCompile(`(?s)Retrieved Context: The following text excerpts.*?pdf':\s*`)
	reExcerptHeader   = regexp.MustCompile(`Text excerpt from page.*?:`)
	reFormCode        = regexp.MustCompile(`LU:AA-FO-61.*?\n`)
	reBlankRun        = regexp.MustCompile(`\n{3,}`)
)

// CleanContext strips search boilerplate from retrieved text.
func CleanContext(s string) string {
	s = reRetrievedHeader.ReplaceAllString(s, "")
	s = reExcerptHeader.ReplaceAllString(s, "")
	s = reFormCode.ReplaceAllString(s, "")
	s = reBlankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// GroundX searches a GroundX bucket.
type GroundX struct {
	fetcher  *Fetcher
	baseURL  string
	apiKey   string
	bucketID string
	topK     int
}

// NewGroundX creates a GroundX searcher.
func NewGroundX(f *Fetcher, baseURL, apiKey, bucketID string, topK int) *GroundX {
	if topK <= 0 {
		topK = 10
	}
	return &GroundX{
		fetcher:  f,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		bucketID: bucketID,
		topK:     topK,
	}
}

type groundxRequest struct {
	Query string `json:"query"`
	N     int    `json:"n"`
}

type groundxResponse struct {
	Search struct {
		Text string `json:"text"`
	} `json:"search"`
}

func (g *GroundX) Search(ctx context.Context, query string) (string, error) {
	if g.apiKey == "" || g.bucketID == "" {
		return "", fmt.Errorf("groundx: api key or bucket id not configured")
	}
	endpoint := g.baseURL + "/api/v1/search/" + url.PathEscape(g.bucketID)
	header := http.Header{}
	header.Set("X-API-Key", g.apiKey)

	var resp groundxResponse
	if err := g.fetcher.PostJSON(ctx, endpoint, header, groundxRequest{Query: query, N: g.topK}, &resp); err != nil {
		return "", fmt.Errorf("groundx search: %w", err)
	}
	return resp.Search.Text, nil
}

// KnowledgeIndex is the local full-text index.
type KnowledgeIndex interface {
	Search(ctx context.Context, query string, limit int) ([]store.Chunk, error)
}

// LocalSearcher searches the sqlite knowledge base.
type LocalSearcher struct {
	index KnowledgeIndex
	topK  int
}

// NewLocalSearcher creates a searcher over the local knowledge base.
func NewLocalSearcher(idx KnowledgeIndex, topK int) *LocalSearcher {
	if topK <= 0 {
		topK = 10
	}
	return &LocalSearcher{index: idx, topK: topK}
}

func (l *LocalSearcher) Search(ctx context.Context, query string) (string, error) {
	chunks, err := l.index.Search(ctx, query, l.topK)
	if err != nil {
		return "", fmt.Errorf("knowledge search: %w", err)
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}
