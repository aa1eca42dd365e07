package pages

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/gomorishita/portfolio/pkg"
)

type idsResponse struct {
	IDs []string `json:"ids"`
}

type Handler struct {
	assembler *Assembler
	renderer  *Renderer
}

func NewHandler(assembler *Assembler, renderer *Renderer) *Handler {
	return &Handler{
		assembler: assembler,
		renderer:  renderer,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/", handler.handleHome).Methods("GET", "HEAD").Name("home")
	router.HandleFunc("/blog", handler.handleBlogIndex).Methods("GET", "HEAD").Name("blog-index")
	router.HandleFunc("/blog/{id}", handler.handlePost).Methods("GET", "HEAD").Name("blog-post")
}

// SetupApiRoutes registers the json variants of the pages, router is expected to be the /api subrouter.
func (handler *Handler) SetupApiRoutes(router *mux.Router) {
	router.HandleFunc("/home", handler.handleApiHome).Methods("GET", "OPTIONS").Name("api-home")
	router.HandleFunc("/blog", handler.handleApiBlogIndex).Methods("GET", "OPTIONS").Name("api-blog-index")
	router.HandleFunc("/blog-ids", handler.handleApiKnownIDs).Methods("GET", "OPTIONS").Name("api-blog-ids")
	router.HandleFunc("/blog/{id}", handler.handleApiPost).Methods("GET", "OPTIONS").Name("api-blog-post")
}

func (handler *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	handler.renderPage(w, PageHome, handler.assembler.BuildHome(r.Context()), http.StatusOK)
}

func (handler *Handler) handleBlogIndex(w http.ResponseWriter, r *http.Request) {
	handler.renderPage(w, PageBlogIndex, handler.assembler.BuildBlogIndex(r.Context()), http.StatusOK)
}

func (handler *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	page, err := handler.assembler.BuildPost(r.Context(), id)
	if err != nil {
		log.Debugf("post page [%s]: %s", id, err)
		handler.HandleNotFound(w, r)
		return
	}

	handler.renderPage(w, PagePost, page, http.StatusOK)
}

// HandleNotFound renders the standard 404 page.
func (handler *Handler) HandleNotFound(w http.ResponseWriter, _ *http.Request) {
	handler.renderPage(w, PageNotFound, nil, http.StatusNotFound)
}

func (handler *Handler) handleApiHome(w http.ResponseWriter, r *http.Request) {
	pkg.WriteJSON(w, handler.assembler.BuildHome(r.Context()), http.StatusOK)
}

func (handler *Handler) handleApiBlogIndex(w http.ResponseWriter, r *http.Request) {
	pkg.WriteJSON(w, handler.assembler.BuildBlogIndex(r.Context()), http.StatusOK)
}

func (handler *Handler) handleApiKnownIDs(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSON(w, idsResponse{IDs: handler.assembler.KnownIDs().List()}, http.StatusOK)
}

func (handler *Handler) handleApiPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	page, err := handler.assembler.BuildPost(r.Context(), id)
	if err != nil {
		log.Debugf("api post [%s]: %s", id, err)
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}

	pkg.WriteJSON(w, page, http.StatusOK)
}

func (handler *Handler) renderPage(w http.ResponseWriter, page string, data any, statusCode int) {
	pageBytes, err := handler.renderer.RenderBytes(page, data)
	if err != nil {
		log.Errorf("render page %s: %s", page, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, pageBytes, statusCode)
}
