package api

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/cardshop/api/internal/domain/customer"
)

type customerView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCustomerView(c *customer.Customer) customerView {
	return customerView{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toCustomerViews(customers []customer.Customer) []customerView {
	out := make([]customerView, len(customers))
	for i := range customers {
		out[i] = toCustomerView(&customers[i])
	}
	return out
}

type createCustomerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" {
		h.writeError(w, r, http.StatusBadRequest, "name and email are required")
		return
	}

	claims, _ := callerFromContext(r.Context())
	c, err := h.customers.Create(r.Context(), customer.CreateRequest{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		UserID:  claims.Subject,
	})
	if err != nil {
		switch {
		case errors.Is(err, customer.ErrEmailTaken):
			h.writeError(w, r, http.StatusConflict, "email already registered")
		case errors.Is(err, customer.ErrUserLinked):
			h.writeError(w, r, http.StatusConflict, "user already has a customer record")
		default:
			zctx.From(r.Context()).Error("Create customer", zap.Error(err))
			h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, r, http.StatusCreated, toCustomerView(c))
}

func (h *Handler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("List customers", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, toCustomerViews(customers))
}

func (h *Handler) handleSearchCustomers(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		h.writeError(w, r, http.StatusBadRequest, "name query parameter required")
		return
	}

	customers, err := h.customers.SearchByName(r.Context(), name)
	if err != nil {
		zctx.From(r.Context()).Error("Search customers", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, toCustomerViews(customers))
}

func (h *Handler) handleCountCustomers(w http.ResponseWriter, r *http.Request) {
	n, err := h.customers.Count(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("Count customers", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]int64{"total": n})
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "customer not found")
			return
		}
		zctx.From(r.Context()).Error("Get customer", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, toCustomerView(c))
}

type updateCustomerRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (h *Handler) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req updateCustomerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.customers.Update(r.Context(), r.PathValue("id"), customer.UpdateRequest{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		switch {
		case errors.Is(err, customer.ErrNotFound):
			h.writeError(w, r, http.StatusNotFound, "customer not found")
		case errors.Is(err, customer.ErrEmailTaken):
			h.writeError(w, r, http.StatusConflict, "email already registered")
		default:
			zctx.From(r.Context()).Error("Update customer", zap.Error(err))
			h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, r, http.StatusOK, toCustomerView(c))
}

func (h *Handler) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.customers.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "customer not found")
			return
		}
		zctx.From(r.Context()).Error("Delete customer", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"message": "customer deleted"})
}
