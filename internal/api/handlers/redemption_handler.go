package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/promoworks/voucher-redemption-service/internal/models"
	"github.com/promoworks/voucher-redemption-service/internal/service"
	"github.com/promoworks/voucher-redemption-service/internal/token"
)

// --- Request / Response DTOs ---

type IssueQRRequest struct {
	VoucherID  string `json:"voucher_id"`
	ProviderID string `json:"provider_id"`
	CustomerID string `json:"customer_id,omitempty"`
	BatchID    string `json:"batch_id,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type IssueQRResponse struct {
	Payload string `json:"payload"`
}

type IssueBatchRequest struct {
	BatchID string `json:"batch_id,omitempty"`
	Items   []struct {
		VoucherID  string `json:"voucher_id"`
		ProviderID string `json:"provider_id"`
	} `json:"items"`
}

type IssueShortCodeRequest struct {
	VoucherID string `json:"voucher_id"`
	ExpiresAt string `json:"expires_at,omitempty"` // RFC3339
}

type ValidateRequest struct {
	Code       string `json:"code"`
	ProviderID string `json:"provider_id"`
	CustomerID string `json:"customer_id,omitempty"`
}

type ValidateResponse struct {
	Valid        bool   `json:"valid"`
	Code         string `json:"code,omitempty"`
	Message      string `json:"message"`
	VoucherID    string `json:"voucher_id,omitempty"`
	VoucherTitle string `json:"voucher_title,omitempty"`
	Discount     string `json:"discount,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

type RedeemRequest struct {
	Code       string           `json:"code"`
	ProviderID string           `json:"provider_id"`
	CustomerID string           `json:"customer_id,omitempty"`
	OperatorID string           `json:"operator_id,omitempty"`
	Location   *models.GeoPoint `json:"location,omitempty"`
	DeviceID   string           `json:"device_id,omitempty"`
}

type RedeemResponse struct {
	Success      bool   `json:"success"`
	Code         string `json:"code,omitempty"`
	Message      string `json:"message"`
	RedemptionID string `json:"redemption_id,omitempty"`
}

type SyncRequest struct {
	ProviderID string               `json:"provider_id"`
	OperatorID string               `json:"operator_id,omitempty"`
	Items      []models.OfflineItem `json:"items"`
}

// --- Handler struct & constructor ---

type RedemptionHandler struct {
	issuer      *token.Issuer
	validator   *service.Validator
	coordinator *service.Coordinator
	reconciler  *service.Reconciler
}

func NewRedemptionHandler(issuer *token.Issuer, validator *service.Validator, coordinator *service.Coordinator, reconciler *service.Reconciler) *RedemptionHandler {
	return &RedemptionHandler{
		issuer:      issuer,
		validator:   validator,
		coordinator: coordinator,
		reconciler:  reconciler,
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func parseUUID(s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	return id, err == nil
}

func parseOptionalUUID(s string) (*uuid.UUID, bool) {
	if s == "" {
		return nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// --- Handlers ---

// IssueQR handles POST /codes/qr
func (h *RedemptionHandler) IssueQR(w http.ResponseWriter, r *http.Request) {
	var req IssueQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	voucherID, ok := parseUUID(req.VoucherID)
	if !ok {
		writeError(w, http.StatusBadRequest, "voucher_id required")
		return
	}
	providerID, ok := parseUUID(req.ProviderID)
	if !ok {
		writeError(w, http.StatusBadRequest, "provider_id required")
		return
	}
	customerID, ok := parseOptionalUUID(req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid customer_id")
		return
	}

	payload, err := h.issuer.IssueQR(r.Context(), voucherID, providerID, token.QROptions{
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
		BatchID:    req.BatchID,
		CustomerID: customerID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issue_failed")
		return
	}
	writeJSON(w, http.StatusOK, IssueQRResponse{Payload: payload})
}

// IssueBatch handles POST /codes/qr/batch
func (h *RedemptionHandler) IssueBatch(w http.ResponseWriter, r *http.Request) {
	var req IssueBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	items := make([]token.BatchItem, 0, len(req.Items))
	for _, it := range req.Items {
		voucherID, ok := parseUUID(it.VoucherID)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid voucher_id in items")
			return
		}
		providerID, ok := parseUUID(it.ProviderID)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid provider_id in items")
			return
		}
		items = append(items, token.BatchItem{VoucherID: voucherID, ProviderID: providerID})
	}

	payloads, err := h.issuer.IssueBatch(r.Context(), items, req.BatchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "batch_failed")
		return
	}
	out := make(map[string]string, len(payloads))
	for id, p := range payloads {
		out[id.String()] = p
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payloads": out})
}

// IssueShortCode handles POST /codes/short
func (h *RedemptionHandler) IssueShortCode(w http.ResponseWriter, r *http.Request) {
	var req IssueShortCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	voucherID, ok := parseUUID(req.VoucherID)
	if !ok {
		writeError(w, http.StatusBadRequest, "voucher_id required")
		return
	}
	var opts token.ShortCodeOptions
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expires_at; use RFC3339")
			return
		}
		opts.ExpiresAt = t
	}

	sc, err := h.issuer.IssueShortCode(r.Context(), voucherID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issue_failed")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// Validate handles POST /redemptions/validate
func (h *RedemptionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	providerID, ok := parseUUID(req.ProviderID)
	if !ok {
		writeError(w, http.StatusBadRequest, "provider_id required")
		return
	}
	customerID, ok := parseOptionalUUID(req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid customer_id")
		return
	}

	res, err := h.validator.Validate(r.Context(), req.Code, providerID, customerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	out := ValidateResponse{
		Valid:   res.Valid,
		Code:    string(res.Code),
		Message: res.Message,
	}
	if res.Valid {
		out.VoucherID = res.Voucher.ID.String()
		out.VoucherTitle = res.Voucher.Title
		out.Discount = res.Voucher.DiscountValue.String()
		if res.Provider != nil {
			out.ProviderName = res.Provider.Name
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Redeem handles POST /redemptions
func (h *RedemptionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	providerID, ok := parseUUID(req.ProviderID)
	if !ok {
		writeError(w, http.StatusBadRequest, "provider_id required")
		return
	}
	customerID, ok := parseOptionalUUID(req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid customer_id")
		return
	}
	operatorID, ok := parseOptionalUUID(req.OperatorID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid operator_id")
		return
	}

	res, err := h.coordinator.Redeem(r.Context(), service.RedeemRequest{
		Code:       req.Code,
		ProviderID: providerID,
		CustomerID: customerID,
		OperatorID: operatorID,
		Location:   req.Location,
		DeviceID:   req.DeviceID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	out := RedeemResponse{
		Success: res.Success,
		Code:    string(res.Code),
		Message: res.Message,
	}
	if res.Success {
		out.RedemptionID = res.Redemption.ID.String()
	}
	writeJSON(w, http.StatusOK, out)
}

// SyncOffline handles POST /redemptions/sync
func (h *RedemptionHandler) SyncOffline(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	providerID, ok := parseUUID(req.ProviderID)
	if !ok {
		writeError(w, http.StatusBadRequest, "provider_id required")
		return
	}
	operatorID, ok := parseOptionalUUID(req.OperatorID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid operator_id")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "empty batch")
		return
	}

	results, err := h.reconciler.Reconcile(r.Context(), providerID, operatorID, req.Items)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
