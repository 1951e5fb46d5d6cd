package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/babyshield/crownsafe-backend/internal/http/response"
	"github.com/babyshield/crownsafe-backend/internal/search"
)

type SearchHandler struct {
	svc *search.Service
}

func NewSearchHandler(svc *search.Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// GET /api/search?product=...&brand=...&agency=...&date_from=...&date_to=...&limit=...&offset=...&cursor=...
// An empty cursor param ("cursor=") starts keyset pagination from the newest
// recall; omitting it entirely selects offset mode.
func (h *SearchHandler) Search(c *gin.Context) {
	q := search.Query{
		Product:        c.Query("product"),
		Brand:          c.Query("brand"),
		Agencies:       agencyList(c),
		Severity:       c.Query("severity"),
		RiskCategory:   c.Query("risk_category"),
		HazardCategory: c.Query("hazard_category"),
		Cursor:         cursorParam(c),
	}

	var err error
	if q.Limit, err = limitQuery(c); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if q.Offset, err = intQuery(c, "offset"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if q.Offset == 0 {
		// skip is the legacy name for offset
		if q.Offset, err = intQuery(c, "skip"); err != nil {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
	}
	if q.DateFrom, err = dateQuery(c, "date_from"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if q.DateTo, err = dateQuery(c, "date_to"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	result, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, search.ErrInvalidQuery) {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	response.RespondOK(c, result)
}

// POST /api/search
// body: { "product": "...", "agencies": [...], "date_from": "YYYY-MM-DD", ... }
func (h *SearchHandler) SearchPost(c *gin.Context) {
	var req struct {
		Product        string   `json:"product"`
		Brand          string   `json:"brand"`
		Agencies       []string `json:"agencies"`
		Severity       string   `json:"severity"`
		RiskCategory   string   `json:"risk_category"`
		HazardCategory string   `json:"hazard_category"`
		DateFrom       string   `json:"date_from"`
		DateTo         string   `json:"date_to"`
		Limit          *int     `json:"limit"`
		Skip           int      `json:"skip"`
		Cursor         *string  `json:"cursor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	q := search.Query{
		Product:        req.Product,
		Brand:          req.Brand,
		Agencies:       req.Agencies,
		Severity:       req.Severity,
		RiskCategory:   req.RiskCategory,
		HazardCategory: req.HazardCategory,
		Offset:         req.Skip,
	}
	if req.Limit != nil {
		if *req.Limit == 0 {
			response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("limit must be positive"))
			return
		}
		q.Limit = *req.Limit
	}
	if req.Cursor != nil {
		if *req.Cursor == "" {
			q.Cursor = search.FirstPageCursor()
		} else {
			q.Cursor = *req.Cursor
		}
	}
	var err error
	if q.DateFrom, err = parseDay("date_from", req.DateFrom); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if q.DateTo, err = parseDay("date_to", req.DateTo); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	result, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, search.ErrInvalidQuery) {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	response.RespondOK(c, result)
}

// POST /api/search/barcode
// body: { "barcode": "012345678905" }
func (h *SearchHandler) Barcode(c *gin.Context) {
	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	details, err := h.svc.LookupBarcode(c.Request.Context(), req.Barcode)
	if err != nil {
		if errors.Is(err, search.ErrInvalidQuery) {
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	response.RespondOK(c, gin.H{"matches": details})
}

// agencyList accepts both repeated agency params and one comma-separated value.
func agencyList(c *gin.Context) []string {
	var out []string
	for _, raw := range c.QueryArray("agency") {
		for _, part := range strings.Split(raw, ",") {
			if a := strings.TrimSpace(part); a != "" {
				out = append(out, a)
			}
		}
	}
	return out
}

// cursorParam maps a present-but-empty cursor to the first keyset page so
// clients can enter cursor mode without a prior response in hand.
func cursorParam(c *gin.Context) string {
	raw, ok := c.GetQuery("cursor")
	if ok && raw == "" {
		return search.FirstPageCursor()
	}
	return raw
}

// limitQuery parses the limit param. An explicit zero is rejected; only an
// absent limit falls back to the default page size.
func limitQuery(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if v == 0 {
		return 0, errors.New("limit must be positive")
	}
	return v, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

func dateQuery(c *gin.Context, name string) (*time.Time, error) {
	return parseDay(name, c.Query(name))
}

func parseDay(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errors.New(name + " must be formatted YYYY-MM-DD")
	}
	return &d, nil
}
