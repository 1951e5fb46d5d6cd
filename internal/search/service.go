package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/cache"
	"github.com/babyshield/crownsafe-backend/internal/data/repos"
	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

// Config tunes ranking and caching.
type Config struct {
	// MinSimilarity is the trigram floor below which a row is not considered
	// a match at all, mirroring the pg_trgm index behavior.
	MinSimilarity float64
	CacheTTL      time.Duration
}

func DefaultServiceConfig() Config {
	return Config{MinSimilarity: 0.15, CacheTTL: 60 * time.Second}
}

// Item is one search hit: the recall row, its trigram score against the
// query, and its dedup cluster when it has one.
type Item struct {
	Recall     domain.Recall `json:"recall"`
	Similarity float64       `json:"similarity"`
	ClusterID  *uuid.UUID    `json:"cluster_id,omitempty"`
}

// Result is one page of hits. Total is present only in offset mode; counting
// under a moving keyset would lie.
type Result struct {
	Results    []Item `json:"results"`
	Total      *int64 `json:"total,omitempty"`
	NextCursor string `json:"nextCursor,omitempty"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

// RecallDetail is one recall plus the other members of its cluster.
type RecallDetail struct {
	Recall         domain.Recall   `json:"recall"`
	ClusterID      *uuid.UUID      `json:"cluster_id,omitempty"`
	ClusterMembers []domain.Recall `json:"cluster_members,omitempty"`
}

type Service struct {
	db       *gorm.DB
	log      *logger.Logger
	recalls  repos.RecallRepo
	clusters repos.RecallClusterRepo
	cache    *cache.Cache
	cfg      Config
}

func NewService(db *gorm.DB, baseLog *logger.Logger, recalls repos.RecallRepo, clusters repos.RecallClusterRepo, c *cache.Cache, cfg Config) *Service {
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = DefaultServiceConfig().MinSimilarity
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultServiceConfig().CacheTTL
	}
	return &Service{
		db:       db,
		log:      baseLog.With("component", "SearchService"),
		recalls:  recalls,
		clusters: clusters,
		cache:    c,
		cfg:      cfg,
	}
}

type searchRow struct {
	domain.Recall `gorm:"embedded"`
	Sim           float64    `gorm:"column:sim"`
	ClusterID     *uuid.UUID `gorm:"column:cluster_id"`
}

// Search runs a validated query. Offset pages are ranked: exact product name
// first, then substring matches, then trigram similarity. Cursor pages trade
// ranking for a stable (recall_date, id) keyset so ingestion running in the
// background cannot shift rows between pages.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if cached, ok := s.cacheGet(ctx, q); ok {
		return cached, nil
	}

	keywords := strings.ToLower(strings.TrimSpace(q.Product + " " + q.Brand))
	where, args := s.buildFilter(q, keywords)

	var result *Result
	var err error
	if q.Cursor != "" {
		result, err = s.searchCursor(ctx, q, where, args)
	} else {
		result, err = s.searchOffset(ctx, q, keywords, where, args)
	}
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, q, result)
	return result, nil
}

func (s *Service) buildFilter(q Query, keywords string) (string, map[string]interface{}) {
	args := map[string]interface{}{
		"kw":   keywords,
		"like": "%" + q.Product + "%",
		"min":  s.cfg.MinSimilarity,
	}
	conds := []string{
		"recall.deleted_at IS NULL",
		"(similarity(recall.search_keywords, @kw) >= @min OR recall.product_name ILIKE @like OR recall.brand ILIKE @like)",
	}
	if q.Brand != "" {
		conds = append(conds, "recall.brand ILIKE @brand")
		args["brand"] = "%" + q.Brand + "%"
	}
	if len(q.Agencies) > 0 {
		upper := make([]string, 0, len(q.Agencies))
		for _, a := range q.Agencies {
			upper = append(upper, strings.ToUpper(strings.TrimSpace(a)))
		}
		conds = append(conds, "recall.source_agency IN @agencies")
		args["agencies"] = upper
	}
	if q.Severity != "" {
		conds = append(conds, "recall.severity = @severity")
		args["severity"] = strings.ToLower(q.Severity)
	}
	if q.RiskCategory != "" {
		conds = append(conds, "recall.risk_category = @risk")
		args["risk"] = strings.ToLower(q.RiskCategory)
	}
	if q.HazardCategory != "" {
		conds = append(conds, "recall.hazard_category = @hazcat")
		args["hazcat"] = strings.ToLower(q.HazardCategory)
	}
	if q.DateFrom != nil {
		conds = append(conds, "recall.recall_date >= @from")
		args["from"] = *q.DateFrom
	}
	if q.DateTo != nil {
		conds = append(conds, "recall.recall_date <= @to")
		args["to"] = *q.DateTo
	}
	return strings.Join(conds, " AND "), args
}

func (s *Service) searchOffset(ctx context.Context, q Query, keywords, where string, args map[string]interface{}) (*Result, error) {
	args["exact"] = strings.ToLower(q.Product)
	args["limit"] = q.Limit
	args["offset"] = q.Offset

	var total int64
	countSQL := "SELECT count(*) FROM recall WHERE " + where
	if err := s.db.WithContext(ctx).Raw(countSQL, args).Scan(&total).Error; err != nil {
		return nil, err
	}

	sql := `
SELECT recall.*, recall_cluster_member.cluster_id AS cluster_id,
       similarity(recall.search_keywords, @kw) AS sim,
       CASE WHEN lower(recall.product_name) = @exact THEN 3
            WHEN recall.product_name ILIKE @like THEN 2
            ELSE 1 END AS tier
FROM recall
LEFT JOIN recall_cluster_member ON recall_cluster_member.recall_id = recall.id
WHERE ` + where + `
ORDER BY tier DESC, sim DESC, recall.recall_date DESC, recall.id DESC
LIMIT @limit OFFSET @offset`

	var rows []searchRow
	if err := s.db.WithContext(ctx).Raw(sql, args).Scan(&rows).Error; err != nil {
		return nil, err
	}

	return &Result{
		Results: itemsFromRows(rows),
		Total:  &total,
		Limit:  q.Limit,
		Offset: q.Offset,
	}, nil
}

func (s *Service) searchCursor(ctx context.Context, q Query, where string, args map[string]interface{}) (*Result, error) {
	cur, err := DecodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}
	args["cdate"] = cur.RecallDate
	args["cid"] = cur.ID
	args["limit"] = q.Limit

	sql := `
SELECT recall.*, recall_cluster_member.cluster_id AS cluster_id,
       similarity(recall.search_keywords, @kw) AS sim
FROM recall
LEFT JOIN recall_cluster_member ON recall_cluster_member.recall_id = recall.id
WHERE ` + where + ` AND (recall.recall_date, recall.id) < (@cdate, @cid)
ORDER BY recall.recall_date DESC, recall.id DESC
LIMIT @limit`

	var rows []searchRow
	if err := s.db.WithContext(ctx).Raw(sql, args).Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := &Result{Results: itemsFromRows(rows), Limit: q.Limit}
	if len(rows) == q.Limit {
		last := rows[len(rows)-1]
		result.NextCursor = EncodeCursor(Cursor{RecallDate: last.RecallDate, ID: last.Recall.ID})
	}
	return result, nil
}

// FirstPageCursor returns the cursor for the first keyset page, pointing
// just past the newest possible row.
func FirstPageCursor() string {
	return EncodeCursor(Cursor{
		RecallDate: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC),
		ID:         uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff"),
	})
}

// LookupBarcode finds recalls carrying the exact barcode and expands each hit
// to its full dedup cluster, so a scan surfaces every agency's notice.
func (s *Service) LookupBarcode(ctx context.Context, code string) ([]RecallDetail, error) {
	code = strings.TrimSpace(code)
	digits := make([]rune, 0, len(code))
	for _, r := range code {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 {
		return nil, fmt.Errorf("%w: barcode must contain digits", ErrInvalidQuery)
	}

	hits, err := s.recalls.FindByBarcode(ctx, nil, string(digits))
	if err != nil {
		return nil, err
	}
	out := make([]RecallDetail, 0, len(hits))
	for _, hit := range hits {
		detail, dErr := s.expandCluster(ctx, hit)
		if dErr != nil {
			return nil, dErr
		}
		out = append(out, *detail)
	}
	return out, nil
}

// GetRecall loads one recall with its cluster siblings.
func (s *Service) GetRecall(ctx context.Context, id uuid.UUID) (*RecallDetail, error) {
	recs, err := s.recalls.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return s.expandCluster(ctx, recs[0])
}

func (s *Service) expandCluster(ctx context.Context, rec *domain.Recall) (*RecallDetail, error) {
	detail := &RecallDetail{Recall: *rec}

	members, err := s.clusters.GetByRecallIDs(ctx, nil, []uuid.UUID{rec.ID})
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return detail, nil
	}
	clusterID := members[0].ClusterID
	detail.ClusterID = &clusterID

	siblings, err := s.clusters.GetByClusterIDs(ctx, nil, []uuid.UUID{clusterID})
	if err != nil {
		return nil, err
	}
	siblingIDs := make([]uuid.UUID, 0, len(siblings))
	for _, m := range siblings {
		if m.RecallID != rec.ID {
			siblingIDs = append(siblingIDs, m.RecallID)
		}
	}
	if len(siblingIDs) > 0 {
		recs, rErr := s.recalls.GetByIDs(ctx, nil, siblingIDs)
		if rErr != nil {
			return nil, rErr
		}
		for _, r := range recs {
			detail.ClusterMembers = append(detail.ClusterMembers, *r)
		}
	}
	return detail, nil
}

func itemsFromRows(rows []searchRow) []Item {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, Item{
			Recall:     row.Recall,
			Similarity: row.Sim,
			ClusterID:  row.ClusterID,
		})
	}
	return items
}

func (s *Service) cacheKey(q Query) string {
	raw, _ := json.Marshal(q)
	sum := sha256.Sum256(raw)
	return "search:" + hex.EncodeToString(sum[:16])
}

func (s *Service) cacheGet(ctx context.Context, q Query) (*Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	var out Result
	ok, err := s.cache.Get(ctx, s.cacheKey(q), &out)
	if err != nil {
		s.log.Warn("Cache read failed", "error", err)
		return nil, false
	}
	return &out, ok
}

func (s *Service) cacheSet(ctx context.Context, q Query, r *Result) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(q), r, s.cfg.CacheTTL); err != nil {
		s.log.Warn("Cache write failed", "error", err)
	}
}
