package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ingredient-catalog-service/internal/assets"
	"ingredient-catalog-service/internal/catalog"
	"ingredient-catalog-service/internal/config"
	"ingredient-catalog-service/internal/domain"
	"ingredient-catalog-service/internal/store"
)

// --- Public catalog handlers ---

// SearchCatalog serves the merged, paginated product search.
func (h *HTTPHandler) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()

	q := catalog.Query{
		Term:   strings.TrimSpace(qParams.Get("search")),
		Range:  optionalParam(qParams.Get("range")),
		Origin: optionalParam(qParams.Get("origin")),
		Locale: h.defaultLocale,
	}

	if category := strings.TrimSpace(qParams.Get("category")); category != "" && !strings.EqualFold(category, "all") {
		p, err := domain.ParsePartition(category)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid category: "+category)
			return
		}
		q.Category = &p
	}

	// A missing or malformed page means the first page; values below 1 are
	// clamped by the aggregator.
	if page, err := strconv.Atoi(qParams.Get("page")); err == nil {
		q.Page = page
	} else {
		q.Page = 1
	}

	if lang := qParams.Get("lang"); lang != "" && config.SupportedLocale(lang) {
		q.Locale = strings.ToLower(lang)
	}

	result, err := h.searcher.Search(r.Context(), q)
	if err != nil {
		h.logger.Error("catalog search failed", zap.Error(err))
		if errors.Is(err, catalog.ErrPartitionUnavailable) {
			h.respondWithError(w, http.StatusServiceUnavailable, "Catalog temporarily unavailable")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, "Failed to search catalog")
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// GetCatalogProduct returns one active product.
func (h *HTTPHandler) GetCatalogProduct(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}
	product, err := h.productStore.GetActiveProduct(r.Context(), partition, chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
			return
		}
		h.logger.Error("GetActiveProduct store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

// GetProductSheet redirects to a short-lived download link of the technical sheet.
func (h *HTTPHandler) GetProductSheet(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}
	product, err := h.productStore.GetActiveProduct(r.Context(), partition, chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
			return
		}
		h.logger.Error("GetActiveProduct store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}
	if !product.HasSheet {
		h.respondWithError(w, http.StatusNotFound, "No technical sheet for this product")
		return
	}

	u, err := h.sheets.PresignedURL(r.Context(), *product.SheetKey)
	if err != nil {
		if errors.Is(err, assets.ErrDisabled) {
			h.respondWithError(w, http.StatusNotFound, "No technical sheet for this product")
			return
		}
		h.logger.Error("failed to presign sheet", zap.String("key", *product.SheetKey), zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve technical sheet")
		return
	}
	http.Redirect(w, r, u.String(), http.StatusTemporaryRedirect)
}

func optionalParam(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
