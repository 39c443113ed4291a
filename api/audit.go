package api

import (
	"net/http"
	"time"

	"github.com/Ayush8555/SVD-college-sub000/models"
	"github.com/go-chi/chi/v5"
)

// defaultAuditWindow how far back audit queries look without an explicit `since`
const defaultAuditWindow = 24 * time.Hour

// ActionCountsResponse actions of an actor within a time window
type ActionCountsResponse struct {
	// ActorID the actor
	ActorID string `json:"actor_id"`
	// Since start of the time window
	Since time.Time `json:"since"`
	// Counts count per action
	Counts map[models.AuditActionENUMType]int64 `json:"counts"`
}

// auditWindow read the `since` and `limit` parameters of an audit query
func auditWindow(r *http.Request) (time.Time, int, error) {
	query := r.URL.Query()

	since := time.Now().UTC().Add(-defaultAuditWindow)
	if raw := query.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, 0, models.NewError(
				models.ErrorCategoryValidation, err, "since must be an RFC3339 timestamp",
			)
		}
		since = parsed
	}

	limit, err := optionalInt(query.Get("limit"))
	if err != nil {
		return time.Time{}, 0, err
	}
	if limit == nil {
		return since, 0, nil
	}
	return since, *limit, nil
}

// GetDocumentAuditTrail handles GET /v1/documents/{documentID}/audit
func (h *restHandler) GetDocumentAuditTrail(w http.ResponseWriter, r *http.Request) {
	_, limit, err := auditWindow(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.vault.AuditTrail(r.Context(), callerOf(r), chi.URLParam(r, "documentID"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, records)
}

// ListRecentFailures handles GET /v1/audit/failures
func (h *restHandler) ListRecentFailures(w http.ResponseWriter, r *http.Request) {
	since, limit, err := auditWindow(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.vault.RecentFailures(r.Context(), callerOf(r), since, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, records)
}

// ListActorActivity handles GET /v1/audit/actors/{actorID}
func (h *restHandler) ListActorActivity(w http.ResponseWriter, r *http.Request) {
	since, limit, err := auditWindow(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.vault.ActorActivity(
		r.Context(), callerOf(r), chi.URLParam(r, "actorID"), since, limit,
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, records)
}

// CountActorActions handles GET /v1/audit/actors/{actorID}/counts
func (h *restHandler) CountActorActions(w http.ResponseWriter, r *http.Request) {
	since, _, err := auditWindow(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actorID := chi.URLParam(r, "actorID")
	counts, err := h.vault.ActionCounts(r.Context(), callerOf(r), actorID, since)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ActionCountsResponse{ActorID: actorID, Since: since, Counts: counts})
}

// PurgeExpiredDocuments handles POST /v1/admin/purge
func (h *restHandler) PurgeExpiredDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := optionalInt(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	maxDocs := 0
	if limit != nil {
		maxDocs = *limit
	}
	report, err := h.vault.PurgeExpired(r.Context(), callerOf(r), maxDocs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, report)
}
