package transport

import (
	"net/http"
	"time"

	"parts-depot/internal/domain"
	"parts-depot/internal/middleware"
	"parts-depot/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceRuleRequest represents the create and update payload of a price rule
type PriceRuleRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Type          string          `json:"type" validate:"required,discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	ProductIDs    []string        `json:"product_ids" validate:"max=500"`
	Category      string          `json:"category" validate:"max=100"`
	StartDate     *time.Time      `json:"start_date" validate:"required"`
	EndDate       *time.Time      `json:"end_date"`
	Priority      *int            `json:"priority" validate:"omitempty,gte=0"`
	Exclusive     bool            `json:"exclusive"`
}

func (req PriceRuleRequest) input() service.PriceRuleInput {
	return service.PriceRuleInput{
		Name:          req.Name,
		Type:          domain.DiscountType(req.Type),
		DiscountValue: req.DiscountValue,
		ProductIDs:    req.ProductIDs,
		Category:      req.Category,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Priority:      req.Priority,
		Exclusive:     req.Exclusive,
	}
}

// PriceRuleHandler handles administration of price rules
type PriceRuleHandler struct {
	ruleService service.PriceRuleService
	logger      *zap.Logger
}

// NewPriceRuleHandler creates a new PriceRuleHandler
func NewPriceRuleHandler(ruleService service.PriceRuleService, logger *zap.Logger) *PriceRuleHandler {
	return &PriceRuleHandler{
		ruleService: ruleService,
		logger:      logger,
	}
}

// RegisterRoutes registers the price rule admin routes
func (h *PriceRuleHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin/price-rules", func(r chi.Router) {
		r.Use(authMiddleware, adminMiddleware)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *PriceRuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ruleService.List(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "list price rules")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

func (h *PriceRuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.ruleService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "get price rule")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, rule)
}

func (h *PriceRuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req PriceRuleRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	rule, err := h.ruleService.Create(r.Context(), req.input())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "create price rule")
		return
	}

	h.logger.Info("Price rule created",
		zap.String("rule_id", rule.ID),
		zap.String("type", rule.Type.String()),
		zap.String("by", actor(r)),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, rule)
}

func (h *PriceRuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req PriceRuleRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	rule, err := h.ruleService.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "update price rule")
		return
	}

	h.logger.Info("Price rule updated", zap.String("rule_id", rule.ID), zap.String("by", actor(r)))
	middleware.RespondWithJSON(w, http.StatusOK, rule)
}

func (h *PriceRuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ruleService.Delete(r.Context(), id); err != nil {
		respondWithServiceError(w, h.logger, err, "delete price rule")
		return
	}

	h.logger.Info("Price rule deleted", zap.String("rule_id", id), zap.String("by", actor(r)))
	w.WriteHeader(http.StatusNoContent)
}
