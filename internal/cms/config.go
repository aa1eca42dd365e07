package cms

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultEndpoint    = "blog"
	DefaultContentHost = "microcms.io"

	apiKeyHeader = "X-MICROCMS-API-KEY"
)

// Config holds the content source settings. It is resolved once at startup
// and passed to NewClient; nothing in this package reads the environment.
type Config struct {
	ServiceDomain string
	APIKey        string
	// Endpoint is the content API name, "blog" when empty.
	Endpoint string
	// ContentHost is the API host suffix, "microcms.io" when empty.
	ContentHost string
	// BaseURL replaces https://{ServiceDomain}.{ContentHost} when set (self-hosted mirrors, tests).
	BaseURL string
}

func NewConfig(serviceDomain, apiKey, endpoint string) Config {
	return Config{
		ServiceDomain: strings.TrimSpace(serviceDomain),
		APIKey:        strings.TrimSpace(apiKey),
		Endpoint:      strings.TrimSpace(endpoint),
	}.normalized()
}

func (c Config) normalized() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.ContentHost == "" {
		c.ContentHost = DefaultContentHost
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Configured reports whether both the service domain and the API key are set.
func (c Config) Configured() bool {
	return c.ServiceDomain != "" && c.APIKey != ""
}

func (c Config) endpointURL() string {
	base := c.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.%s", c.ServiceDomain, c.ContentHost)
	}
	return fmt.Sprintf("%s/api/v1/%s", base, url.PathEscape(c.Endpoint))
}

func (c Config) postURL(id string) string {
	return c.endpointURL() + "/" + url.PathEscape(id)
}

func (c Config) listURL(limit int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return c.endpointURL() + "?" + q.Encode()
}

func (c Config) identifiersURL(limit int) string {
	q := url.Values{}
	q.Set("fields", "id")
	q.Set("limit", strconv.Itoa(limit))
	return c.endpointURL() + "?" + q.Encode()
}
