package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gomorishita/portfolio/internal/cache"
	"github.com/gomorishita/portfolio/internal/telemetry/metrics"
	"github.com/gomorishita/portfolio/internal/telemetry/tracing"
)

const (
	MaxLimit = 100

	DefaultCacheTTL = 1800 * time.Second
	defaultTimeout  = 10 * time.Second
	maxBodyBytes    = 10 * 1024 * 1024

	opPost        = "post"
	opPostList    = "post_list"
	opIdentifiers = "identifiers"
)

var (
	// ErrConfigMissing is joined with the outcome error when the service domain or API key is not set.
	ErrConfigMissing = errors.New("content source not configured")
	// ErrUnavailable is the outcome of a failed list or identifiers fetch.
	ErrUnavailable = errors.New("content source unavailable")
	// ErrNotFound is the outcome of a single post fetch that did not produce a body.
	ErrNotFound = errors.New("post not found")

	ErrInvalidLimit  = errors.New("invalid limit")
	errMalformedBody = errors.New("response body is not valid json")
)

// StatusError is returned (wrapped) when the content source answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Client reads posts from the content API. Every failure is reported as one of
// ErrUnavailable, ErrNotFound or ErrInvalid; nothing is retried.
type Client struct {
	config         Config
	httpClient     *http.Client
	responseCache  cache.ResponseCache
	cacheTTL       time.Duration
	metricsManager *metrics.Manager
}

type NewClientParams struct {
	Config     Config
	HttpClient *http.Client
	// ResponseCache is optional, nil disables caching.
	ResponseCache  cache.ResponseCache
	CacheTTL       time.Duration
	MetricsManager *metrics.Manager
}

func NewClient(params NewClientParams) *Client {
	httpClient := params.HttpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	cacheTTL := params.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	return &Client{
		config:         params.Config.normalized(),
		httpClient:     httpClient,
		responseCache:  params.ResponseCache,
		cacheTTL:       cacheTTL,
		metricsManager: params.MetricsManager,
	}
}

func (c *Client) Configured() bool {
	return c.config.Configured()
}

func (c *Client) FetchPost(ctx context.Context, id string) (post *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cmsClient.fetchPost")
	span.SetAttributes(attribute.String("post.id", id))
	defer func() { tracing.EndSpan(span, err) }()

	if !c.config.Configured() {
		c.countFetch(opPost, metrics.FetchResultNoConfig)
		return nil, fmt.Errorf("%w: %w", ErrNotFound, ErrConfigMissing)
	}
	if id == "" {
		c.countFetch(opPost, metrics.FetchResultNotFound)
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	body, fromCache, err := c.get(ctx, opPost, c.config.postURL(id))
	if err != nil {
		log.Debugf("cms: fetch post [%s]: %s", id, err)
		if errors.Is(err, errMalformedBody) {
			c.countFetch(opPost, metrics.FetchResultInvalid)
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		c.countFetch(opPost, metrics.FetchResultNotFound)
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	post, err = ToPost(body)
	if err != nil {
		c.countFetch(opPost, metrics.FetchResultInvalid)
		return nil, err
	}

	c.countFetch(opPost, resultLabel(fromCache))
	return post, nil
}

func (c *Client) FetchPostList(ctx context.Context, limit int) (posts []PostSummary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cmsClient.fetchPostList")
	span.SetAttributes(attribute.Int("limit", limit))
	defer func() { tracing.EndSpan(span, err) }()

	body, fromCache, err := c.getList(ctx, opPostList, limit, c.config.listURL)
	if err != nil {
		return nil, err
	}

	posts = ToPostList(body)
	span.SetAttributes(attribute.Int("posts.count", len(posts)))
	c.countFetch(opPostList, resultLabel(fromCache))
	return posts, nil
}

func (c *Client) FetchIdentifiers(ctx context.Context, limit int) (ids []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cmsClient.fetchIdentifiers")
	span.SetAttributes(attribute.Int("limit", limit))
	defer func() { tracing.EndSpan(span, err) }()

	body, fromCache, err := c.getList(ctx, opIdentifiers, limit, c.config.identifiersURL)
	if err != nil {
		return nil, err
	}

	ids = ToIdentifiers(body)
	span.SetAttributes(attribute.Int("ids.count", len(ids)))
	c.countFetch(opIdentifiers, resultLabel(fromCache))
	return ids, nil
}

func (c *Client) getList(ctx context.Context, op string, limit int, urlFor func(int) string) ([]byte, bool, error) {
	if !c.config.Configured() {
		c.countFetch(op, metrics.FetchResultNoConfig)
		return nil, false, fmt.Errorf("%w: %w", ErrUnavailable, ErrConfigMissing)
	}
	if limit < 1 || limit > MaxLimit {
		c.countFetch(op, metrics.FetchResultUnavailable)
		return nil, false, fmt.Errorf("%w: %w: %d not in [1, %d]", ErrUnavailable, ErrInvalidLimit, limit, MaxLimit)
	}

	body, fromCache, err := c.get(ctx, op, urlFor(limit))
	if err != nil {
		log.Debugf("cms: %s fetch failed: %s", op, err)
		c.countFetch(op, metrics.FetchResultUnavailable)
		return nil, false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, fromCache, nil
}

// get returns the body for reqUrl, from the response cache when a fresh snapshot exists.
// Only 2xx bodies that are valid JSON are returned and cached.
func (c *Client) get(ctx context.Context, op, reqUrl string) ([]byte, bool, error) {
	if c.responseCache != nil {
		body, err := c.responseCache.Get(ctx, reqUrl)
		if err == nil {
			log.Tracef("cms: found response for [%s] in cache", reqUrl)
			return body, true, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warnf("cms: get cached response for [%s]: %s", reqUrl, err)
		}
	}

	log.Debugf("cms: calling content api: %s", reqUrl)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
	if err != nil {
		return nil, false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	defer func(begin time.Time) {
		if c.metricsManager != nil {
			c.metricsManager.HistContentFetchDuration.WithLabelValues(op).Observe(time.Since(begin).Seconds())
		}
	}(time.Now())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &StatusError{StatusCode: resp.StatusCode}
	}

	if !json.Valid(body) {
		return nil, false, errMalformedBody
	}

	if c.responseCache != nil {
		if err := c.responseCache.Set(ctx, reqUrl, body, c.cacheTTL); err != nil {
			log.Warnf("cms: cache response for [%s]: %s", reqUrl, err)
		} else {
			log.Tracef("cms: response cache set for [%s]", reqUrl)
		}
	}

	return body, false, nil
}

func (c *Client) countFetch(op, result string) {
	if c.metricsManager == nil {
		return
	}
	c.metricsManager.CounterContentFetches.WithLabelValues(op, result).Inc()
}

func resultLabel(fromCache bool) string {
	if fromCache {
		return metrics.FetchResultCached
	}
	return metrics.FetchResultOK
}
