package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/promoworks/voucher-redemption-service/internal/api/handlers"
)

// NewRouter builds the HTTP router for the redemption service.
func NewRouter(h *handlers.RedemptionHandler) http.Handler {
	r := chi.NewRouter()

	// Issuance endpoints (admin/provider tooling)
	r.Route("/codes", func(r chi.Router) {
		r.Post("/qr", h.IssueQR)
		r.Post("/qr/batch", h.IssueBatch)
		r.Post("/short", h.IssueShortCode)
	})

	// Point-of-redemption endpoints
	r.Route("/redemptions", func(r chi.Router) {
		r.Post("/validate", h.Validate)
		r.Post("/", h.Redeem)
		r.Post("/sync", h.SyncOffline)
	})

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
