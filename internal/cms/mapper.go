package cms

import (
	"encoding/json"
	"errors"
)

var ErrInvalid = errors.New("content is not a post")

// ToPost narrows a single-post body into a Post.
// The body must be a JSON object with a non-empty string id; any other field
// that is missing or not a string is left empty.
func ToPost(raw []byte) (*Post, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, ErrInvalid
	}

	summary, ok := toSummary(fields)
	if !ok {
		return nil, ErrInvalid
	}

	return &Post{
		PostSummary: summary,
		Content:     stringField(fields, "content"),
	}, nil
}

// ToPostList never fails: a body without a "contents" array yields an empty list,
// and elements without a non-empty string id are dropped. Source order is kept.
func ToPostList(raw []byte) []PostSummary {
	var envelope struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return []PostSummary{}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(envelope.Contents, &elements); err != nil {
		return []PostSummary{}
	}

	posts := make([]PostSummary, 0, len(elements))
	for _, element := range elements {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(element, &fields); err != nil {
			continue
		}
		if summary, ok := toSummary(fields); ok {
			posts = append(posts, summary)
		}
	}
	return posts
}

// ToIdentifiers extracts the ids of a list body, following the ToPostList rules.
func ToIdentifiers(raw []byte) []string {
	posts := ToPostList(raw)
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func toSummary(fields map[string]json.RawMessage) (PostSummary, bool) {
	id := stringField(fields, "id")
	if id == "" {
		return PostSummary{}, false
	}
	return PostSummary{
		ID:          id,
		Title:       stringField(fields, "title"),
		CreatedAt:   stringField(fields, "createdAt"),
		UpdatedAt:   stringField(fields, "updatedAt"),
		PublishedAt: stringField(fields, "publishedAt"),
		RevisedAt:   stringField(fields, "revisedAt"),
	}, true
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
