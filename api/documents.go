package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Ayush8555/SVD-college-sub000/db"
	"github.com/Ayush8555/SVD-college-sub000/models"
	"github.com/Ayush8555/SVD-college-sub000/store"
	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PublicKeyResponse the vault public key
type PublicKeyResponse struct {
	// PublicKey PEM encoded RSA public key
	PublicKey string `json:"public_key"`
	// Algorithm how symmetric keys must be wrapped with it
	Algorithm string `json:"algorithm"`
}

// ReviewRequest the body of verify and reject calls
type ReviewRequest struct {
	// Note verification note
	Note string `json:"note,omitempty"`
	// Reason rejection reason
	Reason string `json:"reason,omitempty"`
}

// DeleteResponse outcome of a delete call
type DeleteResponse struct {
	// ID the document
	ID string `json:"id"`
	// Permanent whether the document was removed for good
	Permanent bool `json:"permanent"`
	// Document the soft deleted document
	Document *models.Document `json:"document,omitempty"`
}

// GetPublicKey handles GET /v1/keys/public
func (h *restHandler) GetPublicKey(w http.ResponseWriter, r *http.Request) {
	pem, err := h.vault.PublicKeyPEM()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, PublicKeyResponse{PublicKey: pem, Algorithm: "RSA-OAEP-256"})
}

// readUploadForm parse a multipart upload body within the size ceiling
func (h *restHandler) readUploadForm(w http.ResponseWriter, r *http.Request, filePart string) (
	[]byte, *multipart.FileHeader, error,
) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, models.NewError(
				models.ErrorCategoryValidation, err, "upload exceeds %d bytes", tooLarge.Limit,
			)
		}
		return nil, nil, models.NewError(models.ErrorCategoryValidation, err, "malformed upload form")
	}

	file, header, err := r.FormFile(filePart)
	if err != nil {
		return nil, nil, models.NewError(
			models.ErrorCategoryValidation, err, "upload is missing the '%s' part", filePart,
		)
	}
	defer func() {
		_ = file.Close()
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, models.NewError(
			models.ErrorCategoryValidation, err, "failed to read the '%s' part", filePart,
		)
	}
	return content, header, nil
}

// parseConsent read the consent fields of an upload form
func parseConsent(r *http.Request) (bool, time.Time, error) {
	consent, err := strconv.ParseBool(r.FormValue("consent"))
	if err != nil {
		return false, time.Time{}, models.NewError(
			models.ErrorCategoryValidation, err, "consent must be a boolean",
		)
	}
	consentAt, err := time.Parse(time.RFC3339, r.FormValue("consent_at"))
	if err != nil {
		return false, time.Time{}, models.NewError(
			models.ErrorCategoryValidation, err, "consent_at must be an RFC3339 timestamp",
		)
	}
	return consent, consentAt, nil
}

// UploadDocument handles POST /v1/documents
func (h *restHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ciphertext, _, err := h.readUploadForm(w, r, "ciphertext")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	originalSize, err := strconv.ParseInt(r.FormValue("original_size"), 10, 64)
	if err != nil {
		h.writeError(w, r, models.NewError(
			models.ErrorCategoryValidation, err, "original_size must be an integer",
		))
		return
	}
	consent, consentAt, err := parseConsent(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	doc, err := h.vault.Upload(r.Context(), callerOf(r), store.UploadRequest{
		DocumentType: models.DocumentTypeENUMType(r.FormValue("document_type")),
		OriginalName: r.FormValue("original_name"),
		MimeType:     r.FormValue("mime_type"),
		SizeBytes:    originalSize,
		Ciphertext:   ciphertext,
		WrappedKey:   r.FormValue("wrapped_key"),
		IV:           r.FormValue("iv"),
		AuthTag:      r.FormValue("auth_tag"),
		Checksum:     r.FormValue("checksum"),
		Nonce:        r.FormValue("nonce"),
		ConsentGiven: consent,
		ConsentAt:    consentAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, doc)
}

// UploadPlaintextDocument handles POST /v1/documents/plaintext
func (h *restHandler) UploadPlaintextDocument(w http.ResponseWriter, r *http.Request) {
	content, header, err := h.readUploadForm(w, r, "file")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer clear(content)

	consent, consentAt, err := parseConsent(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	mimeType := r.FormValue("mime_type")
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}
	originalName := r.FormValue("original_name")
	if originalName == "" {
		originalName = header.Filename
	}

	doc, err := h.vault.UploadPlaintext(r.Context(), callerOf(r), store.PlaintextUploadRequest{
		DocumentType: models.DocumentTypeENUMType(r.FormValue("document_type")),
		OriginalName: originalName,
		MimeType:     mimeType,
		Content:      content,
		Nonce:        r.FormValue("nonce"),
		ConsentGiven: consent,
		ConsentAt:    consentAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, doc)
}

// ListDocuments handles GET /v1/documents
func (h *restHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filters := db.DocumentQueryFilter{}
	var err error
	if filters.Limit, err = optionalInt(query.Get("limit")); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filters.Offset, err = optionalInt(query.Get("offset")); err != nil {
		h.writeError(w, r, err)
		return
	}
	for _, status := range splitList(query["status"]) {
		filters.TargetStatus = append(filters.TargetStatus, models.DocumentStatusENUMType(status))
	}
	for _, docType := range splitList(query["type"]) {
		if !models.IsValidDocumentType(docType) {
			h.writeError(w, r, models.NewError(
				models.ErrorCategoryValidation, nil, "unknown document type '%s'", docType,
			))
			return
		}
		filters.TargetTypes = append(filters.TargetTypes, models.DocumentTypeENUMType(docType))
	}

	docs, err := h.vault.ListForReview(r.Context(), callerOf(r), filters)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, docs)
}

// GetDocument handles GET /v1/documents/{documentID}
func (h *restHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.vault.GetMetadata(r.Context(), callerOf(r), chi.URLParam(r, "documentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, doc)
}

// ClaimDocument handles POST /v1/documents/{documentID}/claim
func (h *restHandler) ClaimDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.vault.ClaimForReview(r.Context(), callerOf(r), chi.URLParam(r, "documentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, doc)
}

// GetDocumentContent handles GET /v1/documents/{documentID}/content
func (h *restHandler) GetDocumentContent(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	documentID := chi.URLParam(r, "documentID")

	allowDegraded := false
	if raw := r.URL.Query().Get("degraded"); raw != "" {
		var err error
		if allowDegraded, err = strconv.ParseBool(raw); err != nil {
			h.writeError(w, r, models.NewError(
				models.ErrorCategoryValidation, err, "degraded must be a boolean",
			))
			return
		}
	}

	opened, err := h.vault.DecryptForReview(
		r.Context(), caller, documentID, store.DecryptOptions{AllowDegraded: allowDegraded},
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer clear(opened.Content)

	headers := w.Header()
	headers.Set("Content-Type", opened.Document.MimeType)
	headers.Set("Content-Length", strconv.Itoa(len(opened.Content)))
	headers.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	headers.Set("Pragma", "no-cache")
	headers.Set("Expires", "0")
	headers.Set(
		"Content-Disposition", fmt.Sprintf("inline; filename=%q", opened.Document.OriginalName),
	)
	headers.Set("X-Content-Type-Options", "nosniff")
	headers.Set("X-Accessed-By", caller.ActorID)
	headers.Set("X-Document-Id", opened.Document.ID)
	headers.Set("X-Accessed-At", opened.AccessedAt.Format(time.RFC3339))
	if opened.Degraded {
		headers.Set("X-Decrypt-Degraded", "true")
	}
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(opened.Content); err != nil {
		log.WithError(err).
			WithFields(h.LogTags).
			WithField("request-id", middleware.GetReqID(r.Context())).
			WithField("document-id", documentID).
			Error("Failed to stream document content")
	}
}

// readReviewRequest decode the optional JSON body of a review call
func readReviewRequest(r *http.Request) (ReviewRequest, error) {
	var request ReviewRequest
	if r.Body == nil || r.ContentLength == 0 {
		return request, nil
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, multipartOverheadBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		return request, models.NewError(models.ErrorCategoryValidation, err, "malformed review request")
	}
	return request, nil
}

// VerifyDocument handles POST /v1/documents/{documentID}/verify
func (h *restHandler) VerifyDocument(w http.ResponseWriter, r *http.Request) {
	request, err := readReviewRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := h.vault.Verify(r.Context(), callerOf(r), chi.URLParam(r, "documentID"), request.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, doc)
}

// RejectDocument handles POST /v1/documents/{documentID}/reject
func (h *restHandler) RejectDocument(w http.ResponseWriter, r *http.Request) {
	request, err := readReviewRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := h.vault.Reject(r.Context(), callerOf(r), chi.URLParam(r, "documentID"), request.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /v1/documents/{documentID}
//
// Owners remove their pending documents permanently, reviewers soft delete.
func (h *restHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	documentID := chi.URLParam(r, "documentID")

	if caller.ActorRole == models.ActorRoleStudent {
		if err := h.vault.HardDelete(r.Context(), caller, documentID); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, r, http.StatusOK, DeleteResponse{ID: documentID, Permanent: true})
		return
	}

	doc, err := h.vault.SoftDelete(r.Context(), caller, documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, DeleteResponse{ID: documentID, Document: &doc})
}

// RestoreDocument handles POST /v1/documents/{documentID}/restore
func (h *restHandler) RestoreDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.vault.Restore(r.Context(), callerOf(r), chi.URLParam(r, "documentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, doc)
}

// ======================================================================================
// Query parameter helpers

func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return nil, models.NewError(
			models.ErrorCategoryValidation, err, "'%s' is not a non-negative integer", raw,
		)
	}
	return &value, nil
}

// splitList flatten repeated and comma separated query values
func splitList(values []string) []string {
	result := []string{}
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}
