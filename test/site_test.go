package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gomorishita/portfolio/internal/misc"
	"github.com/gomorishita/portfolio/internal/pages"
)

func (s *IntegrationTestSuite) get(ctx context.Context, path string, headers map[string]string) (*http.Response, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverEndpoint+path, nil)
	s.Require().NoError(err)
	req.Header.Set("User-Agent", "test-agent")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, string(body)
}

func (s *IntegrationTestSuite) TestHealth() {
	resp, body := s.get(context.Background(), "/health", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var health misc.HealthResponse
	s.Require().NoError(json.Unmarshal([]byte(body), &health))
	s.Equal("ok", health.Status)
	s.True(health.ContentConfigured)
	s.Equal(2, health.KnownPosts)
	s.Equal("ok", health.Redis)
}

func (s *IntegrationTestSuite) TestHomePage() {
	resp, body := s.get(context.Background(), "/", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "text/html")
	s.Contains(body, "Hello there")
	s.Contains(body, "Jan 1, 2024")
	s.Contains(body, "Nov 20, 2023")
	s.Contains(body, `href="/blog/hello"`)
	s.NotContains(body, pages.FeedNotice)
}

func (s *IntegrationTestSuite) TestPostPages() {
	ctx := context.Background()

	resp, body := s.get(ctx, "/blog/hello", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "<p>hello body</p>")
	s.Contains(body, `href="/"`)

	// listed, but the content api no longer has it
	resp, body = s.get(ctx, "/blog/gone", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Contains(body, "This page could not be found.")

	// the content api has it, but it was never enumerated
	resp, _ = s.get(ctx, "/blog/secret", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _ = s.get(ctx, "/no/such/page", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestResponsesCachedInRedis() {
	ctx := context.Background()

	resp, _ := s.get(ctx, "/blog", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	callsAfterFirst := s.contentCalls.Load()
	s.Equal(int32(1), callsAfterFirst)

	keys, err := s.redisClient.Keys(ctx, "cms-response::*").Result()
	s.Require().NoError(err)
	s.Len(keys, 1)

	resp, _ = s.get(ctx, "/blog", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(callsAfterFirst, s.contentCalls.Load())
}

func (s *IntegrationTestSuite) TestApi() {
	ctx := context.Background()

	resp, body := s.get(ctx, "/api/blog-ids", map[string]string{"Origin": "http://localhost:3000"})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	var ids struct {
		IDs []string `json:"ids"`
	}
	s.Require().NoError(json.Unmarshal([]byte(body), &ids))
	s.Equal([]string{"hello", "gone"}, ids.IDs)

	resp, body = s.get(ctx, "/api/blog/hello", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var post pages.PostPage
	s.Require().NoError(json.Unmarshal([]byte(body), &post))
	s.Equal("Hello there", post.Title)
	s.Equal("Jan 1, 2024", post.Date)

	resp, _ = s.get(ctx, "/api/blog/secret", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestApiRateLimit() {
	ctx := context.Background()

	for i := 0; i < testRateLimit; i++ {
		resp, _ := s.get(ctx, "/api/home", nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode, "request %d", i)
	}

	resp, _ := s.get(ctx, "/api/home", nil)
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.NotEmpty(resp.Header.Get("Retry-After"))

	// pages outside /api are not limited
	resp, _ = s.get(ctx, "/", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}
