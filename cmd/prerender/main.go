package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/gomorishita/portfolio/internal/cache"
	"github.com/gomorishita/portfolio/internal/cms"
	"github.com/gomorishita/portfolio/internal/config"
	"github.com/gomorishita/portfolio/internal/logging"
	"github.com/gomorishita/portfolio/internal/pages"
	"github.com/gomorishita/portfolio/internal/prerender"
	"github.com/gomorishita/portfolio/internal/profile"
	"github.com/gomorishita/portfolio/internal/telemetry/metrics"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file with secrets")
	outDir := flag.String("out", "./out", "output directory for the static site")
	archivePath := flag.String("archive", "", "optional path of a .tar.gz archive of the built site")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("load env file %s: %s", *envFile, err)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogToStdout:   true,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
		Environment:   cfg.Environment,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	result, err := build(ctx, cfg, *outDir)
	if err != nil {
		log.Fatalf("prerender: %s", err)
	}

	log.Printf("built %d files into %s in %s", len(result.Files), result.OutDir, time.Since(start))
	for _, id := range result.SkippedPosts {
		log.Warnf("skipped post: %s", id)
	}

	if *archivePath != "" {
		if err := prerender.Archive(result.OutDir, *archivePath); err != nil {
			log.Fatalf("archive: %s", err)
		}
		log.Printf("archive written to %s", *archivePath)
	}
}

func build(ctx context.Context, cfg *config.Config, outDir string) (*prerender.Result, error) {
	contentConfig := cms.NewConfig(
		os.Getenv("MICROCMS_SERVICE_DOMAIN"),
		os.Getenv("MICROCMS_API_KEY"),
		os.Getenv("MICROCMS_ENDPOINT"),
	)
	contentConfig.ContentHost = cfg.ContentHost
	contentConfig.BaseURL = cfg.ContentBaseURL
	if !contentConfig.Configured() {
		log.Warnln("content source not configured, building without blog posts (set MICROCMS_SERVICE_DOMAIN and MICROCMS_API_KEY)")
	}

	metricsManager := metrics.NewManager("portfolio", "prerender", prometheus.NewRegistry())

	// one build, one process: the list requests of home and blog index share the cache
	contentClient := cms.NewClient(cms.NewClientParams{
		Config:         contentConfig,
		HttpClient:     &http.Client{Timeout: cfg.ContentTimeout()},
		ResponseCache:  cache.NewMemoryCache(cfg.CacheSizeMB),
		CacheTTL:       cfg.ContentCacheTTL(),
		MetricsManager: metricsManager,
	})

	siteProfile, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	renderer, err := pages.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("new renderer: %w", err)
	}

	assembler := pages.NewAssembler(pages.NewAssemblerParams{
		Source:          contentClient,
		KnownIDs:        pages.NewKnownIDs(),
		Profile:         siteProfile,
		Location:        cfg.DisplayLocation(),
		SanitizeContent: cfg.SanitizeContent,
		HomeLimit:       cfg.HomePostsLimit,
		IndexLimit:      cfg.BlogIndexLimit,
		MetricsManager:  metricsManager,
	})
	enumerator := pages.NewEnumerator(contentClient, cfg.KnownIDsLimit, metricsManager)

	return prerender.NewBuilder(assembler, enumerator, renderer).Build(ctx, outDir)
}
