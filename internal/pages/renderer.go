package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer executes the page templates. Every page is the "layout" template
// with its own "title" and "content" definitions.
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
	}

	for _, page := range []string{PageHome, PageBlogIndex, PagePost, PageNotFound} {
		tmpl, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", page, err)
		}
		r.templates[page] = tmpl
	}

	return r, nil
}

// Render writes the whole page to w, or nothing if the template fails.
func (r *Renderer) Render(w io.Writer, page string, data any) error {
	tmpl, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown page: %s", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute %s template: %w", page, err)
	}

	_, err := buf.WriteTo(w)
	return err
}

func (r *Renderer) RenderBytes(page string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, page, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
