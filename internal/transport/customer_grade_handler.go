package transport

import (
	"net/http"

	"parts-depot/internal/domain"
	"parts-depot/internal/middleware"
	"parts-depot/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SetGradeRequest struct {
	Grade string `json:"grade" validate:"required,customer_grade"`
}

// CustomerGradeHandler handles administration of customer grades
type CustomerGradeHandler struct {
	gradeService service.CustomerGradeService
	logger       *zap.Logger
}

func NewCustomerGradeHandler(gradeService service.CustomerGradeService, logger *zap.Logger) *CustomerGradeHandler {
	return &CustomerGradeHandler{
		gradeService: gradeService,
		logger:       logger,
	}
}

func (h *CustomerGradeHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin/customers", func(r chi.Router) {
		r.Use(authMiddleware, adminMiddleware)
		r.Get("/grades", h.List)
		r.Get("/{userID}/grade", h.Get)
		r.Put("/{userID}/grade", h.Set)
	})
}

func (h *CustomerGradeHandler) List(w http.ResponseWriter, r *http.Request) {
	grades, err := h.gradeService.List(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "list customer grades")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"grades": grades})
}

func (h *CustomerGradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	grade, err := h.gradeService.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "get customer grade")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, grade)
}

func (h *CustomerGradeHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req SetGradeRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	userID := chi.URLParam(r, "userID")
	assignment, err := h.gradeService.Set(r.Context(), userID, domain.CustomerGrade(req.Grade), actor(r))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "set customer grade")
		return
	}

	h.logger.Info("Customer grade set",
		zap.String("user_id", userID),
		zap.String("grade", string(assignment.Grade)),
		zap.String("by", actor(r)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, assignment)
}
