package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gomorishita/portfolio/internal/cache"
	"github.com/gomorishita/portfolio/internal/cms"
	"github.com/gomorishita/portfolio/internal/config"
	"github.com/gomorishita/portfolio/internal/middleware"
	"github.com/gomorishita/portfolio/internal/misc"
	"github.com/gomorishita/portfolio/internal/pages"
	"github.com/gomorishita/portfolio/internal/profile"
	"github.com/gomorishita/portfolio/internal/telemetry/metrics"
	"github.com/gomorishita/portfolio/internal/telemetry/tracing"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config        *config.Config
	redisClient   *redis.Client
	contentClient *cms.Client
	knownIDs      *pages.KnownIDs
	enumerator    *pages.Enumerator
	assembler     *pages.Assembler
	renderer      *pages.Renderer

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()

	stopRefresh context.CancelFunc
}

type NewServerParams struct {
	Config *config.Config
	// ContentConfig comes from the MICROCMS_* environment; host and base url are taken from Config.
	ContentConfig           cms.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("portfolio", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: params.RedisPassword,
			DB:       0, // use default DB
		})
		rdb.AddHook(redisotel.NewTracingHook())

		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
	}

	responseCache, err := newResponseCache(cfg, rdb)
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.ContentTimeout(),
	}

	contentConfig := params.ContentConfig
	contentConfig.ContentHost = cfg.ContentHost
	contentConfig.BaseURL = cfg.ContentBaseURL
	contentClient := cms.NewClient(cms.NewClientParams{
		Config:         contentConfig,
		HttpClient:     tracedHttpClient,
		ResponseCache:  responseCache,
		CacheTTL:       cfg.ContentCacheTTL(),
		MetricsManager: metricsManager,
	})
	if !contentClient.Configured() {
		log.Warnln("content source not configured, blog feed disabled (set MICROCMS_SERVICE_DOMAIN and MICROCMS_API_KEY)")
	}

	siteProfile, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	renderer, err := pages.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("new renderer: %w", err)
	}

	knownIDs := pages.NewKnownIDs()

	return &Server{
		config:        cfg,
		versionInfo:   params.VersionInfo,
		redisClient:   rdb,
		contentClient: contentClient,
		knownIDs:      knownIDs,
		enumerator:    pages.NewEnumerator(contentClient, cfg.KnownIDsLimit, metricsManager),
		assembler: pages.NewAssembler(pages.NewAssemblerParams{
			Source:          contentClient,
			KnownIDs:        knownIDs,
			Profile:         siteProfile,
			Location:        cfg.DisplayLocation(),
			SanitizeContent: cfg.SanitizeContent,
			HomeLimit:       cfg.HomePostsLimit,
			IndexLimit:      cfg.BlogIndexLimit,
			MetricsManager:  metricsManager,
		}),
		renderer: renderer,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func newResponseCache(cfg *config.Config, rdb *redis.Client) (cache.ResponseCache, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		log.Debugf("using in-memory response cache [%d MB]", cfg.CacheSizeMB)
		return cache.NewMemoryCache(cfg.CacheSizeMB), nil
	case config.CacheBackendRedis:
		if rdb == nil {
			return nil, errors.New("redis cache backend requires redis_host")
		}
		log.Debugln("using redis response cache")
		return cache.NewRedisCache(rdb), nil
	case config.CacheBackendNone:
		log.Debugln("response cache disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.CacheBackend)
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("portfolio-router"))

	var redisPinger misc.Pinger
	if s.redisClient != nil {
		redisPinger = &redisPing{client: s.redisClient}
	}
	miscHandler := misc.NewHandler(s.versionInfo, s.contentClient.Configured(), s.knownIDs, redisPinger)
	miscHandler.SetupRoutes(r)

	pagesHandler := pages.NewHandler(s.assembler, s.renderer)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.Cors(s.config.AllowedOrigins))
	if s.redisClient != nil && s.config.APIRateLimitPerMin > 0 {
		apiRouter.Use(middleware.RateLimit(
			redis_rate.NewLimiter(s.redisClient),
			"api",
			s.config.APIRateLimitPerMin,
			s.metricsManager,
		))
	}
	pagesHandler.SetupApiRoutes(apiRouter)
	pagesHandler.SetupRoutes(r)

	// all the rest - unhandled paths
	r.NotFoundHandler = http.HandlerFunc(pagesHandler.HandleNotFound)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// LoadKnownIDs enumerates the servable post ids once and, when configured,
// keeps refreshing them in the background until GracefulShutdown.
func (s *Server) LoadKnownIDs(ctx context.Context) {
	if err := s.enumerator.Refresh(ctx, s.knownIDs); err != nil {
		log.Warnf("initial known post ids load: %s", err)
	}
	log.Infof("known post ids: %d", s.knownIDs.Len())

	interval := s.config.KnownIDsRefreshInterval()
	if interval <= 0 {
		return
	}

	refreshCtx, cancel := context.WithCancel(ctx)
	s.stopRefresh = cancel
	go s.enumerator.RefreshEvery(refreshCtx, s.knownIDs, interval)
	log.Debugf("known post ids refresh every %s", interval)
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	s.LoadKnownIDs(ctx)

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.stopRefresh != nil {
		s.stopRefresh()
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	// after the http server, in-flight requests may still hit the cache
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}

type redisPing struct {
	client *redis.Client
}

func (p *redisPing) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
