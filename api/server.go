// Package api - REST interface of the document vault
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Ayush8555/SVD-college-sub000/models"
	"github.com/Ayush8555/SVD-college-sub000/store"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// multipartOverheadBytes allowance for the non-file fields of an upload form
const multipartOverheadBytes = 64 * 1024

// ServerParams REST interface parameters
type ServerParams struct {
	// Vault the document vault
	Vault store.DocumentVault `validate:"required"`
	// TokenSecret HMAC secret bearer tokens are signed with
	TokenSecret []byte `validate:"required,min=32"`
	// Metrics where the /metrics endpoint reads from
	Metrics prometheus.Gatherer `validate:"required"`
	// MaxUploadBytes largest accepted upload request body. Defaults to the document size
	// limit plus form overhead.
	MaxUploadBytes int64 `validate:"gte=0"`
}

// restHandler the REST request handlers
type restHandler struct {
	goutils.Component

	vault          store.DocumentVault
	validator      *validator.Validate
	tokenSecret    []byte
	maxUploadBytes int64
}

/*
NewServer define the REST interface router

	@param params ServerParams - interface parameters
	@returns the router
*/
func NewServer(params ServerParams) (http.Handler, error) {
	v, err := models.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}
	if err := v.Struct(&params); err != nil {
		return nil, fmt.Errorf("REST server parameters are not valid [%w]", err)
	}
	if params.MaxUploadBytes == 0 {
		params.MaxUploadBytes = models.MaxDocumentSizeBytes + multipartOverheadBytes
	}

	logTags := log.Fields{"package": "docvault", "module": "api", "component": "rest-handler"}

	handler := &restHandler{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		vault:          params.Vault,
		validator:      v,
		tokenSecret:    params.TokenSecret,
		maxUploadBytes: params.MaxUploadBytes,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(handler.logRequests)
	router.Use(middleware.Recoverer)

	router.Method(
		http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}),
	)

	router.Route("/v1", func(r chi.Router) {
		r.Get("/keys/public", handler.GetPublicKey)

		r.Group(func(r chi.Router) {
			r.Use(handler.authenticate)

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", handler.UploadDocument)
				r.Post("/plaintext", handler.UploadPlaintextDocument)
				r.Get("/", handler.ListDocuments)

				r.Route("/{documentID}", func(r chi.Router) {
					r.Get("/", handler.GetDocument)
					r.Delete("/", handler.DeleteDocument)
					r.Post("/claim", handler.ClaimDocument)
					r.Get("/content", handler.GetDocumentContent)
					r.Post("/verify", handler.VerifyDocument)
					r.Post("/reject", handler.RejectDocument)
					r.Post("/restore", handler.RestoreDocument)
					r.Get("/audit", handler.GetDocumentAuditTrail)
				})
			})

			r.Route("/audit", func(r chi.Router) {
				r.Get("/failures", handler.ListRecentFailures)
				r.Get("/actors/{actorID}", handler.ListActorActivity)
				r.Get("/actors/{actorID}/counts", handler.CountActorActions)
			})

			r.Post("/admin/purge", handler.PurgeExpiredDocuments)
		})
	})

	return router, nil
}

// logRequests log each request once it completes
func (h *restHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		entry := log.WithFields(h.LogTags).
			WithField("request-id", middleware.GetReqID(r.Context())).
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", wrapped.Status()).
			WithField("bytes", wrapped.BytesWritten()).
			WithField("duration", time.Since(started).String())
		if wrapped.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
		} else {
			entry.Debug("Request served")
		}
	})
}
