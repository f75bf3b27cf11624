// Package api exposes the application over JSON HTTP. Handlers are thin:
// they decode requests, delegate to the domain services, and map domain
// errors to status codes.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/cardshop/api/internal/auth"
	"github.com/cardshop/api/internal/domain/customer"
	"github.com/cardshop/api/internal/domain/order"
	"github.com/cardshop/api/internal/domain/product"
	"github.com/cardshop/api/internal/domain/user"
)

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	users     *user.Service
	customers *customer.Service
	products  *product.Service
	orders    *order.Service
	tokens    *auth.TokenIssuer
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	users *user.Service,
	customers *customer.Service,
	products *product.Service,
	orders *order.Service,
	tokens *auth.TokenIssuer,
) *Handler {
	return &Handler{
		users:     users,
		customers: customers,
		products:  products,
		orders:    orders,
		tokens:    tokens,
	}
}

// Routes returns a mux with every API route registered. All routes live
// under /api; everything except register/login requires a bearer token, and
// destructive or administrative routes additionally require the ADMIN role.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("GET /api/auth/me", h.authed(h.handleMe))

	mux.HandleFunc("POST /api/customers", h.authed(h.handleCreateCustomer))
	mux.HandleFunc("GET /api/customers", h.authed(h.handleListCustomers))
	mux.HandleFunc("GET /api/customers/search", h.authed(h.handleSearchCustomers))
	mux.HandleFunc("GET /api/customers/count", h.authed(h.handleCountCustomers))
	mux.HandleFunc("GET /api/customers/{id}", h.authed(h.handleGetCustomer))
	mux.HandleFunc("PUT /api/customers/{id}", h.authed(h.handleUpdateCustomer))
	mux.HandleFunc("DELETE /api/customers/{id}", h.admin(h.handleDeleteCustomer))

	mux.HandleFunc("POST /api/products", h.admin(h.handleCreateProduct))
	mux.HandleFunc("GET /api/products", h.authed(h.handleListProducts))
	mux.HandleFunc("GET /api/products/search", h.authed(h.handleSearchProducts))
	mux.HandleFunc("GET /api/products/count", h.authed(h.handleCountProducts))
	mux.HandleFunc("GET /api/products/{id}", h.authed(h.handleGetProduct))
	mux.HandleFunc("PUT /api/products/{id}", h.admin(h.handleUpdateProduct))
	mux.HandleFunc("PUT /api/products/{id}/image", h.admin(h.handleAttachProductImage))
	mux.HandleFunc("DELETE /api/products/{id}", h.admin(h.handleDeleteProduct))

	mux.HandleFunc("POST /api/orders", h.authed(h.handleCreateOrder))
	mux.HandleFunc("GET /api/orders", h.authed(h.handleListOrders))
	mux.HandleFunc("GET /api/orders/count", h.authed(h.handleCountOrders))
	mux.HandleFunc("GET /api/orders/{id}", h.authed(h.handleGetOrder))
	mux.HandleFunc("GET /api/orders/customer/{customerId}", h.authed(h.handleListOrdersByCustomer))
	mux.HandleFunc("PUT /api/orders/{id}/status", h.admin(h.handleUpdateOrderStatus))
	mux.HandleFunc("DELETE /api/orders/{id}", h.admin(h.handleDeleteOrder))

	return mux
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zctx.From(r.Context()).Error("Encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, r, status, map[string]string{"error": message})
}

// decode parses the request body into v, enforcing a 1 MiB limit.
func decode(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
}
