package handlers

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/babyshield/crownsafe-backend/internal/cache"
	"github.com/babyshield/crownsafe-backend/internal/data/repos"
	"github.com/babyshield/crownsafe-backend/internal/http/response"
	"github.com/babyshield/crownsafe-backend/internal/ingest"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

type AdminHandler struct {
	orchestrator *ingest.Orchestrator
	registry     *ingest.Registry
	runs         repos.IngestionRunRepo
	recalls      repos.RecallRepo
	cache        *cache.Cache
	log          *logger.Logger
}

func NewAdminHandler(orchestrator *ingest.Orchestrator, registry *ingest.Registry, runs repos.IngestionRunRepo, recalls repos.RecallRepo, c *cache.Cache, baseLog *logger.Logger) *AdminHandler {
	return &AdminHandler{
		orchestrator: orchestrator,
		registry:     registry,
		runs:         runs,
		recalls:      recalls,
		cache:        c,
		log:          baseLog.With("component", "AdminHandler"),
	}
}

// POST /api/admin/agencies/:agency/runs?mode=delta|full
func (h *AdminHandler) TriggerRun(c *gin.Context) {
	agency := c.Param("agency")
	mode := c.DefaultQuery("mode", "delta")

	run, err := h.orchestrator.StartRun(c.Request.Context(), agency, mode)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnknownAgency):
			response.RespondError(c, http.StatusNotFound, "not_found", err)
		case errors.Is(err, ingest.ErrRunActive):
			response.RespondError(c, http.StatusConflict, "conflict", err)
		default:
			response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	response.RespondAccepted(c, gin.H{"run": run})
}

// POST /api/admin/ingest?mode=delta|full
// Queues a run for every registered agency. Agencies whose slot is busy are
// reported, not failed.
func (h *AdminHandler) TriggerAll(c *gin.Context) {
	mode := c.DefaultQuery("mode", "delta")
	agencies := h.registry.Agencies()

	type outcome struct {
		Agency string `json:"agency"`
		RunID  string `json:"run_id,omitempty"`
		Error  string `json:"error,omitempty"`
	}
	results := make([]outcome, len(agencies))

	g, ctx := errgroup.WithContext(c.Request.Context())
	for i, agency := range agencies {
		g.Go(func() error {
			run, err := h.orchestrator.StartRun(ctx, agency, mode)
			switch {
			case err == nil:
				results[i] = outcome{Agency: agency, RunID: run.ID.String()}
			case errors.Is(err, ingest.ErrRunActive):
				results[i] = outcome{Agency: agency, Error: "run already active"}
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	response.RespondAccepted(c, gin.H{"results": results})
}

// GET /api/admin/runs?limit=...
func (h *AdminHandler) ListRuns(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	runs, err := h.runs.GetRecent(c.Request.Context(), nil, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// GET /api/admin/runs/:id
func (h *AdminHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("id must be a uuid"))
		return
	}
	run, err := h.runs.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if run == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", errors.New("run not found"))
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// POST /api/admin/runs/:id/cancel
func (h *AdminHandler) CancelRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("id must be a uuid"))
		return
	}
	run, err := h.orchestrator.CancelRun(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrRunNotFound):
			response.RespondError(c, http.StatusNotFound, "not_found", err)
		case errors.Is(err, ingest.ErrRunNotCancellable):
			response.RespondError(c, http.StatusConflict, "conflict", err)
		default:
			response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// GET /api/admin/freshness
func (h *AdminHandler) Freshness(c *gin.Context) {
	const cacheKey = "freshness:v1"
	var cached []repos.AgencyFreshness
	if hit, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && hit {
		response.RespondOK(c, gin.H{"freshness": cached})
		return
	}

	var (
		latest map[string]time.Time
		counts map[string]int64
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		latest, err = h.runs.LatestSuccessPerAgency(ctx, nil)
		return err
	})
	g.Go(func() (err error) {
		counts, err = h.recalls.CountByAgency(ctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}

	agencies := make(map[string]bool)
	for a := range latest {
		agencies[a] = true
	}
	for a := range counts {
		agencies[a] = true
	}
	out := make([]repos.AgencyFreshness, 0, len(agencies))
	for a := range agencies {
		f := repos.AgencyFreshness{Agency: a, RecallCount: counts[a]}
		if t, ok := latest[a]; ok {
			lastAt := t
			f.LastSuccessAt = &lastAt
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agency < out[j].Agency })
	if err := h.cache.Set(c.Request.Context(), cacheKey, out, 30*time.Second); err != nil {
		h.log.Warn("Cache write failed", "key", cacheKey, "error", err)
	}
	response.RespondOK(c, gin.H{"freshness": out})
}
