package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/babyshield/crownsafe-backend/internal/cache"
	"github.com/babyshield/crownsafe-backend/internal/data/repos"
	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/http/response"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

type AgencyHandler struct {
	recalls repos.RecallRepo
	cache   *cache.Cache
	log     *logger.Logger
}

func NewAgencyHandler(recalls repos.RecallRepo, c *cache.Cache, baseLog *logger.Logger) *AgencyHandler {
	return &AgencyHandler{recalls: recalls, cache: c, log: baseLog.With("component", "AgencyHandler")}
}

type agencyView struct {
	domain.Agency
	RecallCount int64 `json:"recall_count"`
}

// GET /api/agencies
func (h *AgencyHandler) List(c *gin.Context) {
	const cacheKey = "agencies:v1"
	var cached []agencyView
	if hit, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && hit {
		response.RespondOK(c, gin.H{"agencies": cached})
		return
	}

	counts, err := h.recalls.CountByAgency(c.Request.Context(), nil)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	out := make([]agencyView, 0, len(domain.Agencies))
	for _, a := range domain.Agencies {
		out = append(out, agencyView{Agency: a, RecallCount: counts[a.Code]})
	}
	if err := h.cache.Set(c.Request.Context(), cacheKey, out, 5*time.Minute); err != nil {
		h.log.Warn("Cache write failed", "key", cacheKey, "error", err)
	}
	response.RespondOK(c, gin.H{"agencies": out})
}
