package misc

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/gomorishita/portfolio/internal/telemetry/tracing"
	"github.com/gomorishita/portfolio/pkg"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

type knownPosts interface {
	Len() int
}

// Pinger is satisfied by a wrapped redis client; nil means no redis is used.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status            string `json:"status"`
	ContentConfigured bool   `json:"contentConfigured"`
	KnownPosts        int    `json:"knownPosts"`
	Redis             string `json:"redis,omitempty"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

type Handler struct {
	versionInfo       string
	contentConfigured bool
	knownPosts        knownPosts
	redisPinger       Pinger
}

func NewHandler(
	versionInfo string,
	contentConfigured bool,
	knownPosts knownPosts,
	redisPinger Pinger,
) *Handler {
	return &Handler{
		versionInfo:       versionInfo,
		contentConfigured: contentConfigured,
		knownPosts:        knownPosts,
		redisPinger:       redisPinger,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/health", handler.handleHealth).Methods("GET", "HEAD").Name("health")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")
}

// handleHealth always answers 200 while the process serves; a missing content
// configuration or an unreachable redis only degrade the reported status.
func (handler *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.health")
	defer span.End()

	resp := HealthResponse{
		Status:            statusOK,
		ContentConfigured: handler.contentConfigured,
		KnownPosts:        handler.knownPosts.Len(),
	}
	if !handler.contentConfigured {
		resp.Status = statusDegraded
	}

	if handler.redisPinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := handler.redisPinger.Ping(pingCtx); err != nil {
			log.Warnf("health: redis ping: %s", err)
			resp.Redis = "unreachable"
			resp.Status = statusDegraded
		} else {
			resp.Redis = statusOK
		}
	}

	pkg.WriteJSON(w, resp, http.StatusOK)
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSON(w, VersionResponse{Version: handler.versionInfo}, http.StatusOK)
}
