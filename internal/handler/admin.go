package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/validation"
)

type vendorStatusResponse struct {
	Message string       `json:"message"`
	Vendor  userResponse `json:"vendor"`
}

type auditEntryResponse struct {
	ID        string    `json:"id"`
	VendorID  string    `json:"vendorId"`
	AdminID   string    `json:"adminId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"createdAt"`
}

type statsResponse struct {
	TotalVendorRequests int `json:"totalVendorRequests"`
	ApprovedVendorCount int `json:"approvedVendorCount"`
	RejectedVendorCount int `json:"rejectedVendorCount"`
	PendingVendorCount  int `json:"pendingVendorCount"`
	TotalUserCount      int `json:"totalUserCount"`
}

func (h *Handler) listVendors(status account.VendorStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendors, err := h.accounts.ListVendors(r.Context(), status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toUsers(vendors))
	}
}

func (h *Handler) setVendorStatus(status account.VendorStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := h.accounts.SetVendorStatus(r.Context(), principal(r).UserID, chi.URLParam(r, "id"), status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, vendorStatusResponse{
			Message: "vendor " + string(status),
			Vendor:  toUser(u),
		})
	}
}

func (h *Handler) vendorAudit(w http.ResponseWriter, r *http.Request) {
	var limit int64
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, r, validation.New("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.accounts.VendorAudit(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]auditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = auditEntryResponse{
			ID:        e.ID,
			VendorID:  e.VendorID,
			AdminID:   e.AdminID,
			From:      string(e.From),
			To:        string(e.To),
			CreatedAt: e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.accounts.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalVendorRequests: st.TotalVendorRequests,
		ApprovedVendorCount: st.ApprovedVendors,
		RejectedVendorCount: st.RejectedVendors,
		PendingVendorCount:  st.PendingVendors,
		TotalUserCount:      st.TotalCustomers,
	})
}
