package api

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/cardshop/api/internal/domain/customer"
	"github.com/cardshop/api/internal/domain/inventory"
	"github.com/cardshop/api/internal/domain/order"
)

type orderItemView struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

type orderView struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	CreatedAt  time.Time       `json:"created_at"`
	Status     string          `json:"status"`
	Total      float64         `json:"total"`
	Items      []orderItemView `json:"items"`
}

func toOrderView(o *order.Order) orderView {
	items := make([]orderItemView, len(o.Items))
	for i, li := range o.Items {
		items[i] = orderItemView{
			ID:        li.ID,
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice.InexactFloat64(),
			Subtotal:  li.Subtotal().InexactFloat64(),
		}
	}
	return orderView{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		CreatedAt:  o.CreatedAt,
		Status:     string(o.Status),
		Total:      o.Total.InexactFloat64(),
		Items:      items,
	}
}

func toOrderViews(orders []order.Order) []orderView {
	out := make([]orderView, len(orders))
	for i := range orders {
		out[i] = toOrderView(&orders[i])
	}
	return out
}

type createOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	Items      []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" {
		h.writeError(w, r, http.StatusBadRequest, "customer_id is required")
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.orders.Create(r.Context(), req.CustomerID, items)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, toOrderView(o))
}

// writeOrderError maps create-order failures to status codes. Every failure
// leaves stock and orders untouched, so these are safe to retry client-side.
func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr *inventory.InsufficientStockError
		qtyErr   *order.InvalidQuantityError
	)
	switch {
	case errors.Is(err, customer.ErrNotFound):
		h.writeError(w, r, http.StatusUnprocessableEntity, "customer not found")
	case errors.Is(err, order.ErrEmptyItems):
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &qtyErr):
		h.writeError(w, r, http.StatusBadRequest, qtyErr.Error())
	case errors.As(err, &stockErr):
		h.writeError(w, r, http.StatusConflict, stockErr.Error())
	case errors.Is(err, order.ErrTxConflict):
		h.writeError(w, r, http.StatusConflict, "order conflicted with a concurrent request, try again")
	default:
		zctx.From(r.Context()).Error("Create order", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("List orders", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, toOrderViews(orders))
}

func (h *Handler) handleCountOrders(w http.ResponseWriter, r *http.Request) {
	n, err := h.orders.Count(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("Count orders", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]int64{"total": n})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("Get order", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, toOrderView(o))
}

func (h *Handler) handleListOrdersByCustomer(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByCustomer(r.Context(), r.PathValue("customerId"))
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "customer not found")
			return
		}
		zctx.From(r.Context()).Error("List orders by customer", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, toOrderViews(orders))
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), order.Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, order.ErrEmptyStatus):
			h.writeError(w, r, http.StatusBadRequest, "status is required")
		case errors.Is(err, order.ErrNotFound):
			h.writeError(w, r, http.StatusNotFound, "order not found")
		default:
			zctx.From(r.Context()).Error("Update order status", zap.Error(err))
			h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, r, http.StatusOK, toOrderView(o))
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("Delete order", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"message": "order deleted"})
}
