package prerender

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gomorishita/portfolio/internal/pages"
	"github.com/gomorishita/portfolio/internal/telemetry/tracing"
	"github.com/gomorishita/portfolio/pkg"
)

const (
	homeFile      = "index.html"
	blogIndexFile = "blog/index.html"
	notFoundFile  = "404.html"
)

type Result struct {
	OutDir string
	// Files are relative to OutDir, in write order.
	Files        []string
	SkippedPosts []string
}

// Builder writes every page of the site as static html.
type Builder struct {
	assembler  *pages.Assembler
	enumerator *pages.Enumerator
	renderer   *pages.Renderer
}

func NewBuilder(
	assembler *pages.Assembler,
	enumerator *pages.Enumerator,
	renderer *pages.Renderer,
) *Builder {
	return &Builder{
		assembler:  assembler,
		enumerator: enumerator,
		renderer:   renderer,
	}
}

// Build enumerates the known post ids first; only those get a page. A post
// that cannot be fetched is skipped, the rest of the build goes on.
func (b *Builder) Build(ctx context.Context, outDir string) (result *Result, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "prerender.build")
	defer func() { tracing.EndSpan(span, err) }()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}

	knownIDs := b.assembler.KnownIDs()
	if err := b.enumerator.Refresh(ctx, knownIDs); err != nil {
		log.Warnf("enumerate post ids: %s; no post pages will be built", err)
		knownIDs.Replace(nil)
	}

	result = &Result{OutDir: outDir}

	if err := b.writePage(result, homeFile, pages.PageHome, b.assembler.BuildHome(ctx)); err != nil {
		return nil, err
	}
	if err := b.writePage(result, blogIndexFile, pages.PageBlogIndex, b.assembler.BuildBlogIndex(ctx)); err != nil {
		return nil, err
	}

	for _, id := range knownIDs.List() {
		if !isPathSegment(id) {
			log.Warnf("post id [%s] cannot be a directory name, skipping", id)
			result.SkippedPosts = append(result.SkippedPosts, id)
			continue
		}

		page, err := b.assembler.BuildPost(ctx, id)
		if err != nil {
			log.Warnf("build post [%s]: %s", id, err)
			result.SkippedPosts = append(result.SkippedPosts, id)
			continue
		}

		if err := b.writePage(result, filepath.Join("blog", id, "index.html"), pages.PagePost, page); err != nil {
			return nil, err
		}
	}

	if err := b.writePage(result, notFoundFile, pages.PageNotFound, nil); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("files.count", len(result.Files)),
		attribute.Int("posts.skipped", len(result.SkippedPosts)),
	)
	return result, nil
}

func (b *Builder) writePage(result *Result, relPath, page string, data any) error {
	pageBytes, err := b.renderer.RenderBytes(page, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", relPath, err)
	}

	path := filepath.Join(result.OutDir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", relPath, err)
	}
	if err := os.WriteFile(path, pageBytes, 0644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}

	log.Debugf("written %s [%d bytes]", relPath, len(pageBytes))
	result.Files = append(result.Files, filepath.ToSlash(relPath))
	return nil
}

// Archive packs the built site into a .tar.gz file at archivePath.
func Archive(outDir, archivePath string) (err error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		if closeErr := archiveFile.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive file: %w", closeErr)
		}
	}()

	if err := pkg.Compress(outDir, archiveFile); err != nil {
		return fmt.Errorf("compress %s: %w", outDir, err)
	}
	return nil
}

func isPathSegment(id string) bool {
	return id != "" &&
		id != "." &&
		id != ".." &&
		!strings.ContainsAny(id, `/\`) &&
		!strings.ContainsRune(id, 0)
}
