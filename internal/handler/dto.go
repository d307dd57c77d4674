package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/order"
	"github.com/xenking/marketplace/internal/domain/product"
)

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	BusinessName    string    `json:"businessName,omitempty"`
	BusinessAddress string    `json:"businessAddress,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	VendorStatus    string    `json:"vendorStatus,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toUser(u *account.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            string(u.Role),
		BusinessName:    u.BusinessName,
		BusinessAddress: u.BusinessAddress,
		Phone:           u.Phone,
		VendorStatus:    string(u.VendorStatus),
		CreatedAt:       u.CreatedAt,
	}
}

func toUsers(users []account.User) []userResponse {
	out := make([]userResponse, len(users))
	for i := range users {
		out[i] = toUser(&users[i])
	}
	return out
}

type productRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	MRP          decimal.Decimal `json:"mrp"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Images       []string        `json:"images"`
	Categories   []string        `json:"categories"`
	IsTrending   bool            `json:"isTrending"`
	IsNewArrival bool            `json:"isNewArrival"`
	IsBestSeller bool            `json:"isBestSeller"`
	ReleaseDate  *time.Time      `json:"releaseDate"`
}

func (p productRequest) input() product.Input {
	return product.Input{
		Name:         p.Name,
		Description:  p.Description,
		MRP:          p.MRP,
		SellingPrice: p.SellingPrice,
		Images:       p.Images,
		Categories:   p.Categories,
		IsTrending:   p.IsTrending,
		IsNewArrival: p.IsNewArrival,
		IsBestSeller: p.IsBestSeller,
		ReleaseDate:  p.ReleaseDate,
	}
}

type productResponse struct {
	ID           string    `json:"id"`
	VendorID     string    `json:"vendorId"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	MRP          float64   `json:"mrp"`
	SellingPrice float64   `json:"sellingPrice"`
	Images       []string  `json:"images"`
	Categories   []string  `json:"categories"`
	IsTrending   bool      `json:"isTrending"`
	IsNewArrival bool      `json:"isNewArrival"`
	IsBestSeller bool      `json:"isBestSeller"`
	ReleaseDate  time.Time `json:"releaseDate"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// toProduct converts a domain product into its response form. Relative image
// references are prefixed with imageBaseURL.
func (h *Handler) toProduct(p *product.Product) productResponse {
	images := make([]string, len(p.Images))
	for i, img := range p.Images {
		images[i] = h.imageURL(img)
	}
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	return productResponse{
		ID:           p.ID,
		VendorID:     p.VendorID,
		Name:         p.Name,
		Description:  p.Description,
		MRP:          p.MRP.InexactFloat64(),
		SellingPrice: p.SellingPrice.InexactFloat64(),
		Images:       images,
		Categories:   categories,
		IsTrending:   p.IsTrending,
		IsNewArrival: p.IsNewArrival,
		IsBestSeller: p.IsBestSeller,
		ReleaseDate:  p.ReleaseDate,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (h *Handler) toProducts(products []product.Product) []productResponse {
	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = h.toProduct(&products[i])
	}
	return out
}

func (h *Handler) imageURL(ref string) string {
	if h.imageBaseURL == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimRight(h.imageBaseURL, "/") + "/" + strings.TrimLeft(ref, "/")
}

type cartLineResponse struct {
	ProductID    string   `json:"productId"`
	Quantity     int      `json:"quantity"`
	Name         string   `json:"name,omitempty"`
	SellingPrice float64  `json:"sellingPrice"`
	MRP          float64  `json:"mrp"`
	Image        string   `json:"image,omitempty"`
	LineTotal    float64  `json:"lineTotal"`
	Unavailable  bool     `json:"unavailable"`
	Categories   []string `json:"categories,omitempty"`
}

type cartResponse struct {
	ID       string             `json:"id,omitempty"`
	Items    []cartLineResponse `json:"items"`
	Subtotal float64            `json:"subtotal"`
	Version  int64              `json:"version"`
}

func (h *Handler) toCart(v *cart.View) cartResponse {
	items := make([]cartLineResponse, len(v.Lines))
	for i, l := range v.Lines {
		line := cartLineResponse{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal.InexactFloat64(),
			Unavailable: l.Product == nil,
		}
		if p := l.Product; p != nil {
			line.Name = p.Name
			line.SellingPrice = p.SellingPrice.InexactFloat64()
			line.MRP = p.MRP.InexactFloat64()
			line.Categories = p.Categories
			if len(p.Images) > 0 {
				line.Image = h.imageURL(p.Images[0])
			}
		}
		items[i] = line
	}
	return cartResponse{
		ID:       v.CartID,
		Items:    items,
		Subtotal: v.Subtotal.InexactFloat64(),
		Version:  v.Version,
	}
}

type shippingRequest struct {
	FullName      string `json:"fullName"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	PostalCode    string `json:"postalCode"`
	Phone         string `json:"phone"`
	PaymentMethod string `json:"paymentMethod"`
}

type createOrderRequest struct {
	CartID          string           `json:"cartId"`
	ShippingDetails shippingRequest  `json:"shippingDetails"`
	TotalAmount     *decimal.Decimal `json:"totalAmount"`
}

type addressResponse struct {
	FullName   string `json:"fullName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

type contactResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type orderItemResponse struct {
	ProductID       string  `json:"productId"`
	ProductName     string  `json:"productName"`
	VendorID        string  `json:"vendorId"`
	VendorName      string  `json:"vendorName"`
	Quantity        int     `json:"quantity"`
	PriceAtPurchase float64 `json:"priceAtPurchase"`
	Subtotal        float64 `json:"subtotal"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customerId"`
	Customer        contactResponse     `json:"customer"`
	Items           []orderItemResponse `json:"items"`
	ShippingDetails addressResponse     `json:"shippingDetails"`
	PaymentMethod   string              `json:"paymentMethod"`
	OrderStatus     string              `json:"orderStatus"`
	PaymentStatus   string              `json:"paymentStatus"`
	TotalAmount     float64             `json:"totalAmount"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type vendorOrderResponse struct {
	ID              string              `json:"id"`
	Customer        contactResponse     `json:"customer"`
	Items           []orderItemResponse `json:"items"`
	ShippingDetails addressResponse     `json:"shippingDetails"`
	PaymentMethod   string              `json:"paymentMethod"`
	OrderStatus     string              `json:"orderStatus"`
	PaymentStatus   string              `json:"paymentStatus"`
	VendorSubtotal  float64             `json:"vendorSubtotal"`
	CreatedAt       time.Time           `json:"createdAt"`
}

func toItems(items []order.Item) []orderItemResponse {
	out := make([]orderItemResponse, len(items))
	for i, it := range items {
		out[i] = orderItemResponse{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			VendorID:        it.VendorID,
			VendorName:      it.VendorName,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase.InexactFloat64(),
			Subtotal:        it.Subtotal().InexactFloat64(),
		}
	}
	return out
}

func toAddress(a order.Address) addressResponse {
	return addressResponse(a)
}

func toOrder(o *order.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Customer:        contactResponse(o.Customer),
		Items:           toItems(o.Items),
		ShippingDetails: toAddress(o.Shipping),
		PaymentMethod:   string(o.PaymentMethod),
		OrderStatus:     string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		TotalAmount:     o.Total.InexactFloat64(),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrders(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrder(&orders[i])
	}
	return out
}

func toVendorOrder(vo *order.VendorOrder) vendorOrderResponse {
	return vendorOrderResponse{
		ID:              vo.ID,
		Customer:        contactResponse(vo.Customer),
		Items:           toItems(vo.Items),
		ShippingDetails: toAddress(vo.Shipping),
		PaymentMethod:   string(vo.PaymentMethod),
		OrderStatus:     string(vo.Status),
		PaymentStatus:   string(vo.PaymentStatus),
		VendorSubtotal:  vo.Subtotal.InexactFloat64(),
		CreatedAt:       vo.CreatedAt,
	}
}
