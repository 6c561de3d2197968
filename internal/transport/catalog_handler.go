package transport

import (
	"net/http"
	"strconv"

	"parts-depot/internal/middleware"
	"parts-depot/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuoteRequest represents the cart quote request payload
type QuoteRequest struct {
	Items []QuoteItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

type QuoteItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

var catalogSortFields = map[string]bool{"": true, "price": true, "name": true, "created_at": true}

// CatalogHandler serves the storefront's priced catalog.
type CatalogHandler struct {
	pricingService service.PricingService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(pricingService service.PricingService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		pricingService: pricingService,
		logger:         logger,
	}
}

// RegisterRoutes registers the public catalog routes and the signed-in
// customer's pricing preview.
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})

	r.Post("/api/cart/quote", h.Quote)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/me/pricing", h.MyPricing)
	})
}

// ListProducts handles GET /api/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := service.CatalogQuery{
		Category:  q.Get("category"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if !catalogSortFields[query.SortBy] {
		middleware.RespondWithError(w, http.StatusBadRequest, "sort_by must be one of price, name, created_at")
		return
	}
	if query.SortOrder != "" && query.SortOrder != "asc" && query.SortOrder != "desc" {
		middleware.RespondWithError(w, http.StatusBadRequest, "sort_order must be asc or desc")
		return
	}

	var ok bool
	if query.Page, ok = intParam(w, q.Get("page"), "page"); !ok {
		return
	}
	if query.PageSize, ok = intParam(w, q.Get("page_size"), "page_size"); !ok {
		return
	}

	page, err := h.pricingService.ListProducts(r.Context(), query)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// GetProduct handles GET /api/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.pricingService.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Quote handles POST /api/cart/quote
func (h *CatalogHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	items := make([]service.QuoteItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.QuoteItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	quote, err := h.pricingService.Quote(r.Context(), items)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "quote cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, quote)
}

// MyPricing handles GET /api/me/pricing?price=N
func (h *CatalogHandler) MyPricing(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("price")
	if raw == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "price is required")
		return
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "price must be a number")
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	result, err := h.pricingService.GradePrice(r.Context(), userID, middleware.GetCustomerGrade(r.Context()), price)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "price for customer")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// intParam parses an optional integer query parameter. Empty means zero.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}
