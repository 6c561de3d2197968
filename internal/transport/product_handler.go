package transport

import (
	"net/http"

	"parts-depot/internal/domain"
	"parts-depot/internal/middleware"
	"parts-depot/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest represents the create and update payload of a product.
// Stock is only honoured on creation.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Category    string          `json:"category" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

func (req ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	}
}

// StockAdjustmentRequest represents a manual stock movement
type StockAdjustmentRequest struct {
	ChangeType string `json:"change_type" validate:"required,stock_change"`
	Quantity   *int   `json:"quantity" validate:"required,gte=0"`
	Reason     string `json:"reason" validate:"max=500"`
}

// ProductHandler handles catalog administration
type ProductHandler struct {
	productService service.ProductService
	pricingService service.PricingService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, pricingService service.PricingService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		pricingService: pricingService,
		logger:         logger,
	}
}

// RegisterRoutes registers the product admin routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin/products", func(r chi.Router) {
		r.Use(authMiddleware, adminMiddleware)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/stock", h.AdjustStock)
		r.Get("/{id}/inventory", h.History)
		r.Get("/{id}/price-breakdown", h.Breakdown)
	})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	product, err := h.productService.Create(r.Context(), req.input(), actor(r))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "create product")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("by", actor(r)))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	product, err := h.productService.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.productService.Delete(r.Context(), id); err != nil {
		respondWithServiceError(w, h.logger, err, "delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id), zap.String("by", actor(r)))
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock handles POST /api/admin/products/{id}/stock
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req StockAdjustmentRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	change, err := h.productService.AdjustStock(r.Context(), id, domain.StockChangeType(req.ChangeType), *req.Quantity, actor(r), req.Reason)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "adjust stock")
		return
	}

	h.logger.Info("Stock adjusted",
		zap.String("product_id", id),
		zap.String("change_type", req.ChangeType),
		zap.Int("previous_stock", change.PreviousStock),
		zap.Int("new_stock", change.NewStock),
	)
	middleware.RespondWithJSON(w, http.StatusOK, change)
}

// History handles GET /api/admin/products/{id}/inventory
func (h *ProductHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	history, err := h.productService.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "list inventory history")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// Breakdown handles GET /api/admin/products/{id}/price-breakdown
func (h *ProductHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.pricingService.Breakdown(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "explain price")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, breakdown)
}
