package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/steve/internal/cache"
	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/logging"
)

const maxErrorBody = 512

// Fetcher performs JSON requests against tool backends with bounded retries.
// GET responses are cached when a cache is configured.
type Fetcher struct {
	client *retryablehttp.Client
	cache  cache.Cache
	ttl    time.Duration
	log    *logging.Logger
}

// NewFetcher builds a Fetcher from the tools HTTP settings. c may be nil.
func NewFetcher(cfg config.HTTPConfig, c cache.Cache, ttl time.Duration, log *logging.Logger) *Fetcher {
	log = log.Sub("tools.http")

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Retries
	if cfg.Backoff > 0 {
		rc.RetryWaitMin = cfg.Backoff
		rc.RetryWaitMax = cfg.Backoff * 16
	}
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	rc.Logger = log.Leveled()
	// Hand the last response back so status errors carry the body.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if c == nil {
		c = cache.Nop{}
	}
	return &Fetcher{client: rc, cache: c, ttl: ttl, log: log}
}

// GetJSON fetches rawURL and decodes the JSON body into out.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, out any) error {
	key := cacheKey(http.MethodGet, rawURL)
	if data, ok, err := f.cache.Get(ctx, key); err != nil {
		f.log.Warn().Err(err).Msg("cache read failed")
	} else if ok {
		f.log.Debug().Str("url", redact(rawURL)).Msg("cache hit")
		return decode(rawURL, data, out)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	data, err := f.do(req)
	if err != nil {
		return err
	}
	if err := decode(rawURL, data, out); err != nil {
		return err
	}
	if err := f.cache.Set(ctx, key, data, f.ttl); err != nil {
		f.log.Warn().Err(err).Msg("cache write failed")
	}
	return nil
}

// PostJSON sends body as JSON and decodes the JSON response into out.
func (f *Fetcher) PostJSON(ctx context.Context, rawURL string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, rawURL, payload)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	data, err := f.do(req)
	if err != nil {
		return err
	}
	return decode(rawURL, data, out)
}

func (f *Fetcher) do(req *retryablehttp.Request) ([]byte, error) {
	target := redact(req.URL.String())
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := string(data)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{URL: target, Status: resp.StatusCode, Body: body}
	}
	return data, nil
}

func decode(rawURL string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", redact(rawURL), err)
	}
	return nil
}

// cacheKey hashes the request so API keys in query strings never reach the
// cache backend in clear text.
func cacheKey(method, rawURL string) string {
	sum := sha256.Sum256([]byte(method + " " + rawURL))
	return "http:" + hex.EncodeToString(sum[:])
}

// redact drops the query string, which may carry credentials.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
