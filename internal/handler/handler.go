// Package handler exposes the marketplace domain services over a chi-routed
// JSON API.
package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/auth"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/order"
	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/wishlist"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image references in product
	// responses. Absolute URLs are returned unchanged.
	ImageBaseURL string
}

// Services groups the domain services served over HTTP.
type Services struct {
	Accounts  *account.Service
	Products  *product.Service
	Carts     *cart.Service
	Wishlists *wishlist.Service
	Orders    *order.Service
}

// Handler serves the REST API, delegating business logic to the domain
// services.
type Handler struct {
	accounts  *account.Service
	products  *product.Service
	carts     *cart.Service
	wishlists *wishlist.Service
	orders    *order.Service

	ordersPlaced metric.Int64Counter
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, svc Services, meter metric.Meter) (*Handler, error) {
	ordersPlaced, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders created by checkout"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders.placed counter")
	}

	return &Handler{
		accounts:     svc.Accounts,
		products:     svc.Products,
		carts:        svc.Carts,
		wishlists:    svc.Wishlists,
		orders:       svc.Orders,
		ordersPlaced: ordersPlaced,
		imageBaseURL: cfg.ImageBaseURL,
	}, nil
}

// Mount registers every API route on r. Callers usually mount it under /api.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/trending", h.highlights(product.HighlightTrending))
		r.Get("/new-arrival", h.highlights(product.HighlightNewArrival))
		r.Get("/best-seller", h.highlights(product.HighlightBestSeller))
		r.Get("/{id}", h.getProduct)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Get("/user/profile", h.profile)

		r.Route("/vendor", func(r chi.Router) {
			r.Use(requireApprovedVendor)
			r.Get("/profile", h.profile)
			r.Get("/products", h.listVendorProducts)
			r.Post("/products", h.createProduct)
			r.Get("/products/{id}", h.getVendorProduct)
			r.Put("/products/{id}", h.updateProduct)
			r.Delete("/products/{id}", h.deleteProduct)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(requireRole(auth.RoleCustomer))
			r.Get("/", h.getCart)
			r.Post("/add", h.addToCart)
			r.Delete("/remove/{productId}", h.removeFromCart)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Use(requireRole(auth.RoleCustomer))
			r.Get("/", h.getWishlist)
			r.Post("/add", h.addToWishlist)
			r.Delete("/remove/{productId}", h.removeFromWishlist)
		})

		r.Route("/order", func(r chi.Router) {
			r.With(requireRole(auth.RoleCustomer)).Post("/create", h.createOrder)
			r.With(requireRole(auth.RoleCustomer)).Get("/my", h.myOrders)
			r.With(requireApprovedVendor).Get("/vendor", h.vendorOrders)
			r.With(requireRole(auth.RoleAdmin)).Get("/all", h.allOrders)
			r.Get("/{id}", h.getOrder)
			r.With(requireRole(auth.RoleAdmin)).Put("/{id}/status", h.updateOrderStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(auth.RoleAdmin))
			r.Get("/vendors/pending", h.listVendors(account.VendorPending))
			r.Get("/vendors/approved", h.listVendors(account.VendorApproved))
			r.Get("/vendors/rejected", h.listVendors(account.VendorRejected))
			r.Put("/vendors/approve/{id}", h.setVendorStatus(account.VendorApproved))
			r.Put("/vendors/reject/{id}", h.setVendorStatus(account.VendorRejected))
			r.Get("/vendors/{id}/audit", h.vendorAudit)
			r.Get("/dashboard/stats", h.dashboardStats)
		})
	})
}
