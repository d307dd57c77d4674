package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/marketplace/internal/domain/auth"
	"github.com/xenking/marketplace/internal/domain/order"
	"github.com/xenking/marketplace/internal/domain/validation"
)

const idempotencyHeader = "Idempotency-Key"

type updateOrderStatusRequest struct {
	OrderStatus   string `json:"orderStatus"`
	PaymentStatus string `json:"paymentStatus"`
}

type orderSummaryResponse struct {
	Pending    int     `json:"pending"`
	Processing int     `json:"processing"`
	Delivered  int     `json:"delivered"`
	Cancelled  int     `json:"cancelled"`
	Revenue    float64 `json:"revenue"`
}

type allOrdersResponse struct {
	Orders  []orderResponse      `json:"orders"`
	Total   int                  `json:"total"`
	Summary orderSummaryResponse `json:"summary"`
}

// createOrder converts the caller's cart into an order. A repeated
// Idempotency-Key returns the original order with 200 instead of 201.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sd := req.ShippingDetails
	res, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		CustomerID: principal(r).UserID,
		CartID:     req.CartID,
		Shipping: order.Address{
			FullName:   sd.FullName,
			Address:    sd.Address,
			City:       sd.City,
			State:      sd.State,
			Country:    sd.Country,
			PostalCode: sd.PostalCode,
			Phone:      sd.Phone,
		},
		PaymentMethod:  order.PaymentMethod(sd.PaymentMethod),
		DeclaredTotal:  req.TotalAmount,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if res.Replayed {
		writeJSON(w, http.StatusOK, toOrder(res.Order))
		return
	}
	h.ordersPlaced.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("payment_method", string(res.Order.PaymentMethod)),
	))
	writeJSON(w, http.StatusCreated, toOrder(res.Order))
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForCustomer(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

func (h *Handler) vendorOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForVendor(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]vendorOrderResponse, len(orders))
	for i := range orders {
		out[i] = toVendorOrder(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) allOrders(w http.ResponseWriter, r *http.Request) {
	ov, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allOrdersResponse{
		Orders: toOrders(ov.Orders),
		Total:  len(ov.Orders),
		Summary: orderSummaryResponse{
			Pending:    ov.ByStatus[order.StatusPending],
			Processing: ov.ByStatus[order.StatusProcessing],
			Delivered:  ov.ByStatus[order.StatusDelivered],
			Cancelled:  ov.ByStatus[order.StatusCancelled],
			Revenue:    ov.Revenue.InexactFloat64(),
		},
	})
}

// getOrder returns the caller's view of one order.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	id := chi.URLParam(r, "id")

	switch p.Role {
	case auth.RoleCustomer:
		o, err := h.orders.GetForCustomer(r.Context(), p.UserID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrder(o))
	case auth.RoleVendor:
		if err := checkApprovedVendor(p); err != nil {
			writeError(w, r, err)
			return
		}
		vo, err := h.orders.GetForVendor(r.Context(), p.UserID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toVendorOrder(vo))
	case auth.RoleAdmin:
		o, err := h.orders.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrder(o))
	default:
		writeError(w, r, errForbidden)
	}
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.OrderStatus == "" && req.PaymentStatus == "" {
		writeError(w, r, validation.Required("orderStatus"))
		return
	}

	var (
		status  order.Status
		payment order.PaymentStatus
		err     error
	)
	if req.OrderStatus != "" {
		if status, err = order.ParseStatus(req.OrderStatus); err != nil {
			writeError(w, r, validation.New("orderStatus", err.Error()))
			return
		}
	}
	if req.PaymentStatus != "" {
		if payment, err = order.ParsePaymentStatus(req.PaymentStatus); err != nil {
			writeError(w, r, validation.New("paymentStatus", err.Error()))
			return
		}
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, payment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}
