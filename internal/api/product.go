package api

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cardshop/api/internal/domain/product"
)

// maxImageSize caps product image uploads at 8 MiB.
const maxImageSize = 8 << 20

type productView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         float64   `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	ImageURL      string    `json:"image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (h *Handler) toProductView(p *product.Product) productView {
	return productView{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.InexactFloat64(),
		StockQuantity: p.StockQuantity,
		ImageURL:      h.products.ImageURL(p.ImageKey),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (h *Handler) toProductViews(products []product.Product) []productView {
	out := make([]productView, len(products))
	for i := range products {
		out[i] = h.toProductView(&products[i])
	}
	return out
}

type createProductRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	p, err := h.products.Create(r.Context(), product.CreateRequest{
		Name:          req.Name,
		Description:   req.Description,
		Price:         decimal.NewFromFloat(req.Price),
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		switch {
		case errors.Is(err, product.ErrNegativePrice), errors.Is(err, product.ErrNegativeStock):
			h.writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			zctx.From(r.Context()).Error("Create product", zap.Error(err))
			h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, r, http.StatusCreated, h.toProductView(p))
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("List products", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.toProductViews(products))
}

func (h *Handler) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, r, http.StatusBadRequest, "q query parameter required")
		return
	}

	products, err := h.products.Search(r.Context(), query)
	if err != nil {
		zctx.From(r.Context()).Error("Search products", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.toProductViews(products))
}

func (h *Handler) handleCountProducts(w http.ResponseWriter, r *http.Request) {
	n, err := h.products.Count(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("Count products", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]int64{"total": n})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("Get product", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.toProductView(p))
}

type updateProductRequest struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price"`
	StockQuantity *int     `json:"stock_quantity"`
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	var price *decimal.Decimal
	if req.Price != nil {
		d := decimal.NewFromFloat(*req.Price)
		price = &d
	}

	p, err := h.products.Update(r.Context(), r.PathValue("id"), product.UpdateRequest{
		Name:          req.Name,
		Description:   req.Description,
		Price:         price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		switch {
		case errors.Is(err, product.ErrNotFound):
			h.writeError(w, r, http.StatusNotFound, "product not found")
		case errors.Is(err, product.ErrNegativePrice), errors.Is(err, product.ErrNegativeStock):
			h.writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			zctx.From(r.Context()).Error("Update product", zap.Error(err))
			h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, r, http.StatusOK, h.toProductView(p))
}

func (h *Handler) handleAttachProductImage(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := http.MaxBytesReader(w, r.Body, maxImageSize)
	p, err := h.products.AttachImage(r.Context(), r.PathValue("id"), body, r.ContentLength, contentType)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("Attach product image", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, r, http.StatusOK, h.toProductView(p))
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("Delete product", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"message": "product deleted"})
}
