package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ingredient-catalog-service/internal/csvio"
	"ingredient-catalog-service/internal/notify"
)

const maxImportSize = 20 << 20

// ImportResponse reports the outcome of a CSV import.
type ImportResponse struct {
	Imported int              `json:"imported"`
	Errors   []csvio.RowError `json:"errors"`
}

// ImportProducts upserts the valid rows of a CSV file into one partition.
// Accepts a raw CSV body or a multipart "file" field.
func (h *HTTPHandler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}

	var opts csvio.ReadOptions
	switch enc := strings.ToLower(r.URL.Query().Get("encoding")); enc {
	case "", "utf-8", "utf8":
	case "windows-1252", "cp1252":
		opts.Windows1252 = true
	default:
		h.respondWithError(w, http.StatusBadRequest, "Unsupported encoding: "+enc)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Missing multipart field \"file\"")
			return
		}
		defer file.Close()
		body = file
	}

	parsed, err := csvio.Read(body, opts)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondWithError(w, http.StatusRequestEntityTooLarge, "Import file too large")
			return
		}
		h.respondWithError(w, http.StatusBadRequest, "Invalid CSV: "+err.Error())
		return
	}

	imported, err := h.productStore.UpsertProducts(r.Context(), partition, parsed.Products)
	if err != nil {
		h.logger.Error("UpsertProducts store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to import products")
		return
	}

	rowErrors := parsed.Errors
	if rowErrors == nil {
		rowErrors = []csvio.RowError{}
	}
	if imported > 0 {
		h.events.Publish(r.Context(), notify.NewEvent(notify.KindProduct, notify.ActionImported, partition, strconv.Itoa(imported)))
	}
	h.logger.Info("products imported",
		zap.String("partition", partition.String()),
		zap.Int("imported", imported),
		zap.Int("rejected", len(rowErrors)),
	)
	h.respondWithJSON(w, http.StatusOK, ImportResponse{Imported: imported, Errors: rowErrors})
}

// ExportProducts streams every product of a partition as a CSV attachment.
func (h *HTTPHandler) ExportProducts(w http.ResponseWriter, r *http.Request) {
	partition, ok := h.partitionParam(w, r)
	if !ok {
		return
	}

	products, err := h.productStore.AllProducts(r.Context(), partition)
	if err != nil {
		h.logger.Error("AllProducts store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to export products")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-products.csv"`, partition))
	w.WriteHeader(http.StatusOK)
	if err := csvio.Write(w, products); err != nil {
		h.logger.Error("failed to write CSV export", zap.Error(err))
	}
}
