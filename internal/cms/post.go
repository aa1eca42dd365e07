package cms

// PostSummary is a post without its content, as used in listings.
// Timestamps are ISO-8601 strings exactly as the content source sent them.
type PostSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	PublishedAt string `json:"publishedAt"`
	RevisedAt   string `json:"revisedAt"`
}

// Post is a single blog entry. Content is HTML coming from the content source.
type Post struct {
	PostSummary
	Content string `json:"content"`
}

// DisplayTimestamp is the timestamp shown to readers: publishedAt, or createdAt for never-published drafts.
func (p PostSummary) DisplayTimestamp() string {
	if p.PublishedAt != "" {
		return p.PublishedAt
	}
	return p.CreatedAt
}
