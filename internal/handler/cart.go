package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/marketplace/internal/domain/product"
)

type addToCartRequest struct {
	ProductID string `json:"productId"`
	// Quantity defaults to 1. Negative values decrement.
	Quantity *int `json:"quantity"`
}

type wishlistRequest struct {
	ProductID string `json:"productId"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.Get(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCart(v))
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	v, err := h.carts.Add(r.Context(), principal(r).UserID, req.ProductID, qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCart(v))
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.Remove(r.Context(), principal(r).UserID, chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCart(v))
}

func (h *Handler) getWishlist(w http.ResponseWriter, r *http.Request) {
	products, err := h.wishlists.Get(r.Context(), principal(r).UserID)
	h.writeWishlist(w, r, products, err)
}

func (h *Handler) addToWishlist(w http.ResponseWriter, r *http.Request) {
	var req wishlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	products, err := h.wishlists.Add(r.Context(), principal(r).UserID, req.ProductID)
	h.writeWishlist(w, r, products, err)
}

func (h *Handler) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	products, err := h.wishlists.Remove(r.Context(), principal(r).UserID, chi.URLParam(r, "productId"))
	h.writeWishlist(w, r, products, err)
}

func (h *Handler) writeWishlist(w http.ResponseWriter, r *http.Request, products []product.Product, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": h.toProducts(products)})
}
