package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ingredient-catalog-service/internal/assets"
	"ingredient-catalog-service/internal/auth"
	"ingredient-catalog-service/internal/catalog"
	"ingredient-catalog-service/internal/domain"
	"ingredient-catalog-service/internal/notify"
	"ingredient-catalog-service/internal/store"
)

// Searcher runs a merged catalog search. Satisfied by *catalog.Aggregator.
type Searcher interface {
	Search(ctx context.Context, q catalog.Query) (*catalog.Result, error)
}

// Deps are the collaborators of HTTPHandler. Optional backends default to
// their no-op implementations.
type Deps struct {
	Searcher      Searcher
	Products      store.ProductStorer
	Submissions   store.SubmissionStorer
	Sheets        assets.SheetStore
	Events        notify.Publisher
	Badges        notify.Badges
	AdminAuth     func(http.Handler) http.Handler
	FormLimiter   func(http.Handler) http.Handler
	Logger        *zap.Logger
	DefaultLocale string
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	searcher      Searcher
	productStore  store.ProductStorer
	submissions   store.SubmissionStorer
	sheets        assets.SheetStore
	events        notify.Publisher
	badges        notify.Badges
	adminAuth     func(http.Handler) http.Handler
	formLimiter   func(http.Handler) http.Handler
	logger        *zap.Logger
	defaultLocale string
	validate      *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(d Deps) *HTTPHandler {
	h := &HTTPHandler{
		searcher:      d.Searcher,
		productStore:  d.Products,
		submissions:   d.Submissions,
		sheets:        d.Sheets,
		events:        d.Events,
		badges:        d.Badges,
		adminAuth:     d.AdminAuth,
		formLimiter:   d.FormLimiter,
		logger:        d.Logger,
		defaultLocale: d.DefaultLocale,
		validate:      validator.New(),
	}
	if h.sheets == nil {
		h.sheets = assets.Disabled{}
	}
	if h.events == nil {
		h.events = notify.NopPublisher{}
	}
	if h.badges == nil {
		h.badges = notify.NopBadges{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.defaultLocale == "" {
		h.defaultLocale = "fr"
	}
	if h.adminAuth == nil {
		h.adminAuth = denyAll
	}
	if h.formLimiter == nil {
		h.formLimiter = passThrough
	}
	return h
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Pagination is the paging block of admin list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ListResponse wraps one page of an admin listing.
type ListResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.logger.Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// adminField names the admin behind a mutation, taken from the verified token.
func adminField(r *http.Request) zap.Field {
	if claims, ok := auth.FromContext(r.Context()); ok {
		return zap.String("admin", claims.Email)
	}
	return zap.Skip()
}

// pageParams reads page/limit with the admin defaults (10, max 100).
func pageParams(r *http.Request) (page, limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	page, err = strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}
	// Keeps the offset from overflowing; such a page is past any real table.
	page = min(page, math.MaxInt/limit)
	return page, limit, (page - 1) * limit
}

func newListResponse[T any](items []T, total, page, limit int) ListResponse[T] {
	return ListResponse[T]{
		Data: items,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			TotalItems: total,
			TotalPages: catalog.TotalPages(total, limit),
		},
	}
}

// partitionParam parses the {partition} URL segment, writing a 400 on failure.
func (h *HTTPHandler) partitionParam(w http.ResponseWriter, r *http.Request) (domain.Partition, bool) {
	p, err := domain.ParsePartition(chi.URLParam(r, "partition"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return p, true
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"admin API not configured"}` + "\n"))
	})
}

func passThrough(next http.Handler) http.Handler { return next }

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/search", h.SearchCatalog)
		r.Get("/{partition}/{code}", h.GetCatalogProduct)
		r.Get("/{partition}/{code}/sheet", h.GetProductSheet)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.formLimiter)
		r.Post("/api/v1/contact", h.CreateContact)
		r.Post("/api/v1/samples", h.CreateSampleRequest)
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(h.adminAuth)

		r.Route("/products/{partition}", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Post("/import", h.ImportProducts)
			r.Get("/export", h.ExportProducts)
			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", h.GetProduct)
				r.Put("/", h.UpdateProduct)
				r.Delete("/", h.DeleteProduct)
				r.Put("/sheet", h.UploadProductSheet)
			})
		})

		r.Get("/contacts", h.ListContacts)
		r.Patch("/contacts/{id}/read", h.MarkContactRead)
		r.Delete("/contacts/{id}", h.DeleteContact)

		r.Get("/samples", h.ListSampleRequests)
		r.Patch("/samples/{id}", h.UpdateSampleRequest)
		r.Delete("/samples/{id}", h.DeleteSampleRequest)

		r.Get("/notifications", h.GetNotifications)
		r.Post("/notifications/{kind}/ack", h.AckNotification)
	})
}
