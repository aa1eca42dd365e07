package prerender

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomorishita/portfolio/internal/cms"
	"github.com/gomorishita/portfolio/internal/pages"
	"github.com/gomorishita/portfolio/internal/profile"
	"github.com/gomorishita/portfolio/internal/telemetry/metrics"
)

const testApiKey = "prerender-key"

func newTestContentServer(t *testing.T, ids string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-MICROCMS-API-KEY") != testApiKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v1/blog" && r.URL.Query().Get("fields") == "id":
			fmt.Fprint(w, ids)
		case r.URL.Path == "/api/v1/blog":
			fmt.Fprint(w, `{"contents": [{"id": "a", "title": "First", "publishedAt": "2024-01-01T00:00:00.000Z"}]}`)
		case r.URL.Path == "/api/v1/blog/a":
			fmt.Fprint(w, `{"id": "a", "title": "First", "content": "<p>first post</p>", "publishedAt": "2024-01-01T00:00:00.000Z"}`)
		case r.URL.Path == "/api/v1/blog/b":
			fmt.Fprint(w, `{"id": "b", "title": "Second", "content": "<p>second post</p>", "createdAt": "2024-02-10T00:00:00.000Z"}`)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestBuilder(t *testing.T, contentConfig cms.Config, httpClient *http.Client) *Builder {
	t.Helper()

	metricsManager := metrics.NewTestManager()
	client := cms.NewClient(cms.NewClientParams{
		Config:         contentConfig,
		HttpClient:     httpClient,
		MetricsManager: metricsManager,
	})

	siteProfile, err := profile.Default()
	require.NoError(t, err)

	renderer, err := pages.NewRenderer()
	require.NoError(t, err)

	knownIDs := pages.NewKnownIDs()
	assembler := pages.NewAssembler(pages.NewAssemblerParams{
		Source:         client,
		KnownIDs:       knownIDs,
		Profile:        siteProfile,
		MetricsManager: metricsManager,
	})
	enumerator := pages.NewEnumerator(client, pages.DefaultKnownIDsLimit, metricsManager)

	return NewBuilder(assembler, enumerator, renderer)
}

func TestBuilder_Build(t *testing.T) {
	server := newTestContentServer(t, `{"contents": [{"id": "a"}, {"id": "b"}, {"id": "broken"}, {"id": "x/y"}]}`)
	builder := newTestBuilder(t, cms.Config{
		ServiceDomain: "test",
		APIKey:        testApiKey,
		BaseURL:       server.URL,
	}, server.Client())

	outDir := t.TempDir()
	result, err := builder.Build(context.Background(), outDir)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{
		"index.html",
		"blog/index.html",
		"blog/a/index.html",
		"blog/b/index.html",
		"404.html",
	}, result.Files)

	skipped := append([]string{}, result.SkippedPosts...)
	sort.Strings(skipped)
	assert.Equal(t, []string{"broken", "x/y"}, skipped)

	home, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(home), "First")
	assert.Contains(t, string(home), "Jan 1, 2024")

	postA, err := os.ReadFile(filepath.Join(outDir, "blog", "a", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(postA), "<p>first post</p>")

	postB, err := os.ReadFile(filepath.Join(outDir, "blog", "b", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(postB), "Feb 10, 2024")

	notFound, err := os.ReadFile(filepath.Join(outDir, "404.html"))
	require.NoError(t, err)
	assert.Contains(t, string(notFound), "This page could not be found.")

	assert.NoDirExists(t, filepath.Join(outDir, "blog", "broken"))
}

func TestBuilder_Build_ContentNotConfigured(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	builder := newTestBuilder(t, cms.Config{BaseURL: server.URL}, server.Client())

	outDir := t.TempDir()
	result, err := builder.Build(context.Background(), outDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"index.html", "blog/index.html", "404.html"}, result.Files)
	assert.Empty(t, result.SkippedPosts)
	assert.Zero(t, requests)

	blogIndex, err := os.ReadFile(filepath.Join(outDir, "blog", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(blogIndex), pages.FeedNotice)
}

func TestArchive(t *testing.T) {
	outDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "blog", "a"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "index.html"), []byte("home"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "blog", "a", "index.html"), []byte("post a"), 0644))

	archivePath := filepath.Join(t.TempDir(), "site.tar.gz")
	require.NoError(t, Archive(outDir, archivePath))

	archiveFile, err := os.Open(archivePath)
	require.NoError(t, err)
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	require.NoError(t, err)
	tarReader := tar.NewReader(gzipReader)

	files := map[string]string{}
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if header.Typeflag != tar.TypeReg {
			continue
		}
		content, err := io.ReadAll(tarReader)
		require.NoError(t, err)
		files[header.Name] = string(content)
	}

	assert.Equal(t, map[string]string{
		"index.html":        "home",
		"blog/a/index.html": "post a",
	}, files)
}

func TestArchive_MissingDir(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "site.tar.gz")
	assert.Error(t, Archive(filepath.Join(t.TempDir(), "nope"), archivePath))
}

func TestIsPathSegment(t *testing.T) {
	for id, want := range map[string]bool{
		"abc123": true,
		"a.b":    true,
		"":       false,
		".":      false,
		"..":     false,
		"a/b":    false,
		`a\b`:    false,
	} {
		assert.Equal(t, want, isPathSegment(id), id)
	}
}
