package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ingredient-catalog-service/internal/assets"
	"ingredient-catalog-service/internal/domain"
	"ingredient-catalog-service/internal/notify"
	"ingredient-catalog-service/internal/store"
)

const maxSheetSize = 10 << 20

// --- Admin product handlers ---

// ProductCreateInput defines the expected input for creating a product.
type ProductCreateInput struct {
	Code string `json:"code" validate:"required,max=64"`
	ProductUpdateInput
}

// ProductUpdateInput defines the expected input for updating a product.
// The code is taken from the URL and cannot be changed.
type ProductUpdateInput struct {
	CommercialName string  `json:"commercial_name" validate:"required,max=255"`
	Range          *string `json:"range" validate:"omitempty,max=128"`
	Origin         *string `json:"origin" validate:"omitempty,max=128"`
	Solubility     *string `json:"solubility" validate:"omitempty,max=128"`
	Certifications *string `json:"certifications" validate:"omitempty"`
	Benefits       *string `json:"benefits" validate:"omitempty"`
	Description    *string `json:"description" validate:"omitempty"`
	Status         *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// toProduct maps the input onto a product. A missing status is left empty,
// which the store reads as "keep the current one" on update.
func (in ProductUpdateInput) toProduct(partition domain.Partition, code string) *domain.Product {
	var status domain.ProductStatus
	if in.Status != nil {
		status = domain.ProductStatus(*in.Status)
	}
	return &domain.Product{
		Partition:      partition,
		Code:           code,
		CommercialName: strings.TrimSpace(in.CommercialName),
		Range:          in.Range,
		Origin:         in.Origin,
		Solubility:     in.Solubility,
		Certifications: in.Certifications,
		Benefits:       in.Benefits,
		Description:    in.Description,
		Status:         status,
	}
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}

	var input ProductCreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	product := input.toProduct(partition, strings.TrimSpace(input.Code))
	if product.Status == "" {
		product.Status = domain.StatusActive
	}
	created, err := h.productStore.CreateProduct(r.Context(), product)
	if err != nil {
		if errors.Is(err, store.ErrProductCodeExists) {
			h.respondWithError(w, http.StatusConflict, store.ErrProductCodeExists.Error())
			return
		}
		h.logger.Error("CreateProduct store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	h.logger.Info("product created", zap.String("partition", string(partition)), zap.String("code", created.Code), adminField(r))
	h.events.Publish(r.Context(), notify.NewEvent(notify.KindProduct, notify.ActionCreated, partition, created.Code))
	h.respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}
	page, limit, offset := pageParams(r)
	params := store.ListProductsParams{Limit: limit, Offset: offset}

	if search := r.URL.Query().Get("search"); search != "" {
		params.SearchQuery = &search
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.ProductStatus(strings.ToLower(statusStr))
		if !status.Valid() {
			h.respondWithError(w, http.StatusBadRequest, "Invalid status: "+statusStr)
			return
		}
		params.Status = &status
	}

	products, totalCount, err := h.productStore.ListProducts(r.Context(), partition, params)
	if err != nil {
		h.logger.Error("ListProducts store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve products")
		return
	}
	h.respondWithJSON(w, http.StatusOK, newListResponse(products, totalCount, page, limit))
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}
	product, err := h.productStore.GetProduct(r.Context(), partition, chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
			return
		}
		h.logger.Error("GetProduct store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")

	var input ProductUpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	updated, err := h.productStore.UpdateProduct(r.Context(), input.toProduct(partition, code))
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
			return
		}
		h.logger.Error("UpdateProduct store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}

	h.logger.Info("product updated", zap.String("partition", string(partition)), zap.String("code", code), adminField(r))
	h.events.Publish(r.Context(), notify.NewEvent(notify.KindProduct, notify.ActionUpdated, partition, code))
	h.respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")

	// Look the product up first so its sheet can be removed too.
	product, err := h.productStore.GetProduct(r.Context(), partition, code)
	if err == nil {
		err = h.productStore.DeleteProduct(r.Context(), partition, code)
	}
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
			return
		}
		h.logger.Error("DeleteProduct store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	if product.HasSheet {
		if err := h.sheets.Delete(r.Context(), *product.SheetKey); err != nil && !errors.Is(err, assets.ErrDisabled) {
			h.logger.Warn("failed to delete technical sheet", zap.String("key", *product.SheetKey), zap.Error(err))
		}
	}

	h.logger.Info("product deleted", zap.String("partition", string(partition)), zap.String("code", code), adminField(r))
	h.events.Publish(r.Context(), notify.NewEvent(notify.KindProduct, notify.ActionDeleted, partition, code))
	w.WriteHeader(http.StatusNoContent)
}

// UploadProductSheet stores a PDF technical sheet for a product.
func (h *HTTPHandler) UploadProductSheet(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")

	product, err := h.productStore.GetProduct(r.Context(), partition, code)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
			return
		}
		h.logger.Error("GetProduct store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSheetSize+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondWithError(w, http.StatusRequestEntityTooLarge, "Technical sheet exceeds 10 MiB")
			return
		}
		h.respondWithError(w, http.StatusBadRequest, "Missing multipart field \"file\"")
		return
	}
	defer file.Close()

	if header.Size > maxSheetSize {
		h.respondWithError(w, http.StatusRequestEntityTooLarge, "Technical sheet exceeds 10 MiB")
		return
	}
	sniff := make([]byte, 512)
	n, _ := io.ReadFull(file, sniff)
	if http.DetectContentType(sniff[:n]) != "application/pdf" {
		h.respondWithError(w, http.StatusBadRequest, "Technical sheet must be a PDF")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.logger.Error("failed to rewind upload", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	key, err := h.sheets.Upload(r.Context(), partition, code, file, header.Size)
	if err != nil {
		if errors.Is(err, assets.ErrDisabled) {
			h.respondWithError(w, http.StatusServiceUnavailable, "Technical sheet storage is not configured")
			return
		}
		h.logger.Error("sheet upload failed", zap.Error(err))
		h.respondWithError(w, http.StatusBadGateway, "Failed to store technical sheet")
		return
	}
	if err := h.productStore.SetProductSheet(r.Context(), partition, code, &key); err != nil {
		h.logger.Error("SetProductSheet store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to attach technical sheet")
		return
	}

	product.SheetKey = &key
	product.HasSheet = true
	h.logger.Info("product updated", zap.String("partition", string(partition)), zap.String("code", code), adminField(r))
	h.events.Publish(r.Context(), notify.NewEvent(notify.KindProduct, notify.ActionUpdated, partition, code))
	h.respondWithJSON(w, http.StatusOK, product)
}
