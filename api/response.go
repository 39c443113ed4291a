package api

import (
	"encoding/json"
	"net/http"

	"github.com/Ayush8555/SVD-college-sub000/models"
	"github.com/apex/log"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorDetail the failure description of a REST response
type ErrorDetail struct {
	// Code machine-readable failure category
	Code models.ErrorCategoryENUMType `json:"code"`
	// Message caller-facing description
	Message string `json:"message"`
}

// Response the REST response envelope
type Response struct {
	// Success whether the request succeeded
	Success bool `json:"success"`
	// Data the response payload
	Data interface{} `json:"data,omitempty"`
	// Error the failure, when not successful
	Error *ErrorDetail `json:"error,omitempty"`
}

// httpStatusFor the HTTP status reported for a failure category
func httpStatusFor(category models.ErrorCategoryENUMType) int {
	switch category {
	case models.ErrorCategoryValidation:
		return http.StatusBadRequest
	case models.ErrorCategoryAuthorization:
		return http.StatusForbidden
	case models.ErrorCategoryNotFound:
		return http.StatusNotFound
	case models.ErrorCategoryAlreadyVerified,
		models.ErrorCategoryAlreadyTerminal,
		models.ErrorCategoryConflict:
		return http.StatusConflict
	case models.ErrorCategoryIntegrity, models.ErrorCategoryDecryptionFailed:
		return http.StatusUnprocessableEntity
	case models.ErrorCategoryKeyUnavailable, models.ErrorCategoryStorage:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeJSON write a successful response
func (h *restHandler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	h.writeResponse(w, r, status, Response{Success: true, Data: data})
}

// writeError write a failure response. The internal cause is logged, never returned.
func (h *restHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	category := models.CategoryOf(err)
	public := models.PublicCategory(category)
	status := httpStatusFor(public)

	entry := log.WithError(err).
		WithFields(h.LogTags).
		WithField("request-id", middleware.GetReqID(r.Context())).
		WithField("category", category)
	if status >= http.StatusInternalServerError {
		entry.Error("Request processing failed")
	} else {
		entry.Debug("Request refused")
	}

	h.writeResponse(w, r, status, Response{
		Error: &ErrorDetail{Code: public, Message: models.PublicMessage(public)},
	})
}

// writeUnauthenticated write the response for a request without a usable identity
func (h *restHandler) writeUnauthenticated(w http.ResponseWriter, r *http.Request, reason error) {
	log.WithError(reason).
		WithFields(h.LogTags).
		WithField("request-id", middleware.GetReqID(r.Context())).
		Info("Request not authenticated")

	w.Header().Set("WWW-Authenticate", `Bearer realm="docvault"`)
	h.writeResponse(w, r, http.StatusUnauthorized, Response{
		Error: &ErrorDetail{
			Code:    models.ErrorCategoryAuthorization,
			Message: "authentication required",
		},
	})
}

func (h *restHandler) writeResponse(
	w http.ResponseWriter, r *http.Request, status int, resp Response,
) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).
			WithFields(h.LogTags).
			WithField("request-id", middleware.GetReqID(r.Context())).
			Error("Failed to write response")
	}
}
