package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ingredient-catalog-service/internal/domain"
	"ingredient-catalog-service/internal/notify"
	"ingredient-catalog-service/internal/store"
)

// --- Public form handlers ---

// ContactCreateInput defines the expected input of the contact form.
type ContactCreateInput struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Company *string `json:"company" validate:"omitempty,max=255"`
	Email   string  `json:"email" validate:"required,email,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=64"`
	Subject string  `json:"subject" validate:"required,max=255"`
	Message string  `json:"message" validate:"required,max=5000"`
	Locale  string  `json:"locale" validate:"omitempty,oneof=fr en"`
}

// SampleRequestCreateInput defines the expected input of the sample request form.
type SampleRequestCreateInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Company     string  `json:"company" validate:"required,max=255"`
	Email       string  `json:"email" validate:"required,email,max=255"`
	Phone       *string `json:"phone" validate:"omitempty,max=64"`
	Partition   string  `json:"partition" validate:"required"`
	ProductCode string  `json:"product_code" validate:"required,max=64"`
	Quantity    *string `json:"quantity" validate:"omitempty,max=64"`
	Message     *string `json:"message" validate:"omitempty,max=5000"`
}

// SampleStatusInput is the body of a sample request status change.
type SampleStatusInput struct {
	Status string `json:"status" validate:"required,oneof=pending sent cancelled"`
}

func (h *HTTPHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var input ContactCreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	locale := input.Locale
	if locale == "" {
		locale = h.defaultLocale
	}

	created, err := h.submissions.CreateContact(r.Context(), &domain.ContactSubmission{
		Name:    strings.TrimSpace(input.Name),
		Company: input.Company,
		Email:   strings.TrimSpace(input.Email),
		Phone:   input.Phone,
		Subject: strings.TrimSpace(input.Subject),
		Message: input.Message,
		Locale:  locale,
	})
	if err != nil {
		h.logger.Error("CreateContact store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to save message")
		return
	}

	h.announceSubmission(r, notify.KindContact, notify.BadgeContacts, created.ID)
	h.respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) CreateSampleRequest(w http.ResponseWriter, r *http.Request) {
	var input SampleRequestCreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	partition, err := domain.ParsePartition(input.Partition)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Samples can only be requested for products currently on the catalog.
	if _, err := h.productStore.GetActiveProduct(r.Context(), partition, input.ProductCode); err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			h.respondWithError(w, http.StatusBadRequest, "Unknown product: "+input.ProductCode)
			return
		}
		h.logger.Error("GetActiveProduct store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to save sample request")
		return
	}

	created, err := h.submissions.CreateSampleRequest(r.Context(), &domain.SampleRequest{
		Name:        strings.TrimSpace(input.Name),
		Company:     strings.TrimSpace(input.Company),
		Email:       strings.TrimSpace(input.Email),
		Phone:       input.Phone,
		Partition:   partition,
		ProductCode: input.ProductCode,
		Quantity:    input.Quantity,
		Message:     input.Message,
		Status:      domain.SamplePending,
	})
	if err != nil {
		h.logger.Error("CreateSampleRequest store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to save sample request")
		return
	}

	h.announceSubmission(r, notify.KindSampleRequest, notify.BadgeSamples, created.ID)
	h.respondWithJSON(w, http.StatusCreated, created)
}

// announceSubmission bumps the admin badge and emits the change event.
// Neither may fail the submission.
func (h *HTTPHandler) announceSubmission(r *http.Request, kind notify.Kind, badge notify.Badge, id string) {
	if err := h.badges.Increment(r.Context(), badge); err != nil {
		h.logger.Warn("failed to increment badge", zap.String("badge", string(badge)), zap.Error(err))
	}
	h.events.Publish(r.Context(), notify.NewEvent(kind, notify.ActionCreated, "", id))
}

// --- Admin submission handlers ---

func (h *HTTPHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r)
	params := store.ListContactsParams{Limit: limit, Offset: offset}
	if unreadStr := r.URL.Query().Get("unread"); unreadStr != "" {
		unread, err := strconv.ParseBool(unreadStr)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid unread value: "+unreadStr)
			return
		}
		params.Unread = &unread
	}

	contacts, total, err := h.submissions.ListContacts(r.Context(), params)
	if err != nil {
		h.logger.Error("ListContacts store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve contacts")
		return
	}
	h.respondWithJSON(w, http.StatusOK, newListResponse(contacts, total, page, limit))
}

func (h *HTTPHandler) MarkContactRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.submissions.MarkContactRead(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrContactNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrContactNotFound.Error())
			return
		}
		h.logger.Error("MarkContactRead store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to update contact")
		return
	}
	h.events.Publish(r.Context(), notify.NewEvent(notify.KindContact, notify.ActionUpdated, "", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.submissions.DeleteContact(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrContactNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrContactNotFound.Error())
			return
		}
		h.logger.Error("DeleteContact store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to delete contact")
		return
	}
	h.events.Publish(r.Context(), notify.NewEvent(notify.KindContact, notify.ActionDeleted, "", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListSampleRequests(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r)
	params := store.ListSamplesParams{Limit: limit, Offset: offset}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.SampleStatus(strings.ToLower(statusStr))
		if !status.Valid() {
			h.respondWithError(w, http.StatusBadRequest, "Invalid status: "+statusStr)
			return
		}
		params.Status = &status
	}

	requests, total, err := h.submissions.ListSampleRequests(r.Context(), params)
	if err != nil {
		h.logger.Error("ListSampleRequests store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve sample requests")
		return
	}
	h.respondWithJSON(w, http.StatusOK, newListResponse(requests, total, page, limit))
}

func (h *HTTPHandler) UpdateSampleRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input SampleStatusInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	updated, err := h.submissions.UpdateSampleStatus(r.Context(), id, domain.SampleStatus(input.Status))
	if err != nil {
		if errors.Is(err, store.ErrSampleRequestNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrSampleRequestNotFound.Error())
			return
		}
		h.logger.Error("UpdateSampleStatus store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to update sample request")
		return
	}
	h.events.Publish(r.Context(), notify.NewEvent(notify.KindSampleRequest, notify.ActionUpdated, "", id))
	h.respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteSampleRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.submissions.DeleteSampleRequest(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrSampleRequestNotFound) {
			h.respondWithError(w, http.StatusNotFound, store.ErrSampleRequestNotFound.Error())
			return
		}
		h.logger.Error("DeleteSampleRequest store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to delete sample request")
		return
	}
	h.events.Publish(r.Context(), notify.NewEvent(notify.KindSampleRequest, notify.ActionDeleted, "", id))
	w.WriteHeader(http.StatusNoContent)
}

// --- Admin notification badges ---

func (h *HTTPHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	counts, err := h.badges.Counts(r.Context())
	if err != nil {
		h.logger.Error("failed to read badges", zap.Error(err))
		h.respondWithError(w, http.StatusServiceUnavailable, "Notifications unavailable")
		return
	}
	h.respondWithJSON(w, http.StatusOK, counts)
}

func (h *HTTPHandler) AckNotification(w http.ResponseWriter, r *http.Request) {
	badge, err := notify.ParseBadge(chi.URLParam(r, "kind"))
	if err != nil {
		h.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := h.badges.Ack(r.Context(), badge); err != nil {
		h.logger.Error("failed to reset badge", zap.String("badge", string(badge)), zap.Error(err))
		h.respondWithError(w, http.StatusServiceUnavailable, "Notifications unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
