package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/babyshield/crownsafe-backend/internal/http/response"
	"github.com/babyshield/crownsafe-backend/internal/search"
)

type RecallHandler struct {
	svc *search.Service
}

func NewRecallHandler(svc *search.Service) *RecallHandler {
	return &RecallHandler{svc: svc}
}

// GET /api/recalls/:id
func (h *RecallHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("id must be a uuid"))
		return
	}

	detail, err := h.svc.GetRecall(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if detail == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", errors.New("recall not found"))
		return
	}
	response.RespondOK(c, detail)
}
