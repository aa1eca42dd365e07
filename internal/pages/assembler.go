package pages

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gomorishita/portfolio/internal/cms"
	"github.com/gomorishita/portfolio/internal/profile"
	"github.com/gomorishita/portfolio/internal/telemetry/metrics"
	"github.com/gomorishita/portfolio/internal/telemetry/tracing"
)

const (
	DefaultHomePostsLimit = 5
	DefaultBlogIndexLimit = 50
	DefaultKnownIDsLimit  = 50

	FeedNotice = "Blog feed not available. Set MICROCMS_SERVICE_DOMAIN, MICROCMS_API_KEY, and optional MICROCMS_ENDPOINT."

	PageHome      = "home"
	PageBlogIndex = "blog_index"
	PagePost      = "post"
	PageNotFound  = "not_found"

	outcomeOK          = "ok"
	outcomeFallback    = "fallback"
	outcomeNotFound    = "not_found"
	outcomeUnknownPost = "unknown_id"
)

var ErrPostNotFound = errors.New("post not found")

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=pages_test
type contentSource interface {
	FetchPost(ctx context.Context, id string) (*cms.Post, error)
	FetchPostList(ctx context.Context, limit int) ([]cms.PostSummary, error)
	FetchIdentifiers(ctx context.Context, limit int) ([]string, error)
}

// PostEntry is one card of a post listing.
type PostEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
	Href  string `json:"href"`
}

type HomePage struct {
	Profile *profile.Profile `json:"profile"`
	Posts   []PostEntry      `json:"posts"`
	// FeedUnavailable is set when the post list could not be fetched.
	FeedUnavailable bool   `json:"feedUnavailable"`
	FeedNotice      string `json:"feedNotice,omitempty"`
}

type BlogIndexPage struct {
	Posts           []PostEntry `json:"posts"`
	FeedUnavailable bool        `json:"feedUnavailable"`
	FeedNotice      string      `json:"feedNotice,omitempty"`
}

type PostPage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
	// Content is rendered unescaped.
	Content   template.HTML `json:"content"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
}

// Assembler builds the data of the home, blog index and post pages.
type Assembler struct {
	source         contentSource
	knownIDs       *KnownIDs
	profile        *profile.Profile
	location       *time.Location
	sanitizer      *bluemonday.Policy
	homeLimit      int
	indexLimit     int
	metricsManager *metrics.Manager
}

type NewAssemblerParams struct {
	Source   contentSource
	KnownIDs *KnownIDs
	Profile  *profile.Profile
	// Location used for display dates, UTC when nil.
	Location *time.Location
	// SanitizeContent runs post content through a UGC policy before rendering.
	SanitizeContent bool
	HomeLimit       int
	IndexLimit      int
	MetricsManager  *metrics.Manager
}

func NewAssembler(params NewAssemblerParams) *Assembler {
	a := &Assembler{
		source:         params.Source,
		knownIDs:       params.KnownIDs,
		profile:        params.Profile,
		location:       params.Location,
		homeLimit:      params.HomeLimit,
		indexLimit:     params.IndexLimit,
		metricsManager: params.MetricsManager,
	}

	if a.knownIDs == nil {
		a.knownIDs = NewKnownIDs()
	}
	if a.profile == nil {
		a.profile = &profile.Profile{}
	}
	if a.location == nil {
		a.location = time.UTC
	}
	if a.homeLimit <= 0 {
		a.homeLimit = DefaultHomePostsLimit
	}
	if a.indexLimit <= 0 {
		a.indexLimit = DefaultBlogIndexLimit
	}
	if params.SanitizeContent {
		a.sanitizer = bluemonday.UGCPolicy()
	}

	return a
}

func (a *Assembler) KnownIDs() *KnownIDs {
	return a.knownIDs
}

// BuildHome never fails: when the feed cannot be read the page carries no posts
// and the feed notice.
func (a *Assembler) BuildHome(ctx context.Context) *HomePage {
	ctx, span := tracing.GlobalTracer.Start(ctx, "assembler.buildHome")
	defer span.End()

	posts, unavailable := a.listPosts(ctx, a.homeLimit)
	span.SetAttributes(
		attribute.Int("posts.count", len(posts)),
		attribute.Bool("feed.unavailable", unavailable),
	)

	page := &HomePage{
		Profile:         a.profile,
		Posts:           posts,
		FeedUnavailable: unavailable,
	}
	if len(posts) == 0 {
		page.FeedNotice = FeedNotice
	}

	a.countPage(PageHome, fallbackOutcome(unavailable))
	return page
}

// BuildBlogIndex follows the same fallback policy as BuildHome.
func (a *Assembler) BuildBlogIndex(ctx context.Context) *BlogIndexPage {
	ctx, span := tracing.GlobalTracer.Start(ctx, "assembler.buildBlogIndex")
	defer span.End()

	posts, unavailable := a.listPosts(ctx, a.indexLimit)
	span.SetAttributes(
		attribute.Int("posts.count", len(posts)),
		attribute.Bool("feed.unavailable", unavailable),
	)

	page := &BlogIndexPage{
		Posts:           posts,
		FeedUnavailable: unavailable,
	}
	if len(posts) == 0 {
		page.FeedNotice = FeedNotice
	}

	a.countPage(PageBlogIndex, fallbackOutcome(unavailable))
	return page
}

// BuildPost returns ErrPostNotFound for ids outside the known set and for posts
// the source cannot deliver.
func (a *Assembler) BuildPost(ctx context.Context, id string) (page *PostPage, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "assembler.buildPost")
	span.SetAttributes(attribute.String("post.id", id))
	defer func() { tracing.EndSpan(span, err) }()

	if !a.knownIDs.Contains(id) {
		a.countPage(PagePost, outcomeUnknownPost)
		return nil, fmt.Errorf("%w: unknown id [%s]", ErrPostNotFound, id)
	}

	post, err := a.source.FetchPost(ctx, id)
	if err != nil {
		a.countPage(PagePost, outcomeNotFound)
		return nil, fmt.Errorf("%w: %w", ErrPostNotFound, err)
	}

	content := post.Content
	if a.sanitizer != nil {
		content = a.sanitizer.Sanitize(content)
	}

	a.countPage(PagePost, outcomeOK)
	return &PostPage{
		ID:        post.ID,
		Title:     post.Title,
		Date:      DisplayDate(post.PostSummary, a.location),
		Content:   template.HTML(content),
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}, nil
}

func (a *Assembler) listPosts(ctx context.Context, limit int) ([]PostEntry, bool) {
	summaries, err := a.source.FetchPostList(ctx, limit)
	if err != nil {
		logFeedError("list posts", err)
		return []PostEntry{}, true
	}

	entries := make([]PostEntry, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, PostEntry{
			ID:    s.ID,
			Title: s.Title,
			Date:  DisplayDate(s, a.location),
			Href:  PostPath(s.ID),
		})
	}
	return entries, false
}

func (a *Assembler) countPage(page, outcome string) {
	if a.metricsManager == nil {
		return
	}
	a.metricsManager.CounterPagesRendered.WithLabelValues(page, outcome).Inc()
}

func fallbackOutcome(unavailable bool) string {
	if unavailable {
		return outcomeFallback
	}
	return outcomeOK
}

func PostPath(id string) string {
	return "/blog/" + url.PathEscape(id)
}
