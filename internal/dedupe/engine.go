package dedupe

import (
	"time"

	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

// Config holds the tunable matching constants. The defaults were picked
// against cross-agency republication behavior: agencies mirror international
// recalls with slightly reworded product names within a few weeks, so the
// similarity bar sits well below exact-match while the date window absorbs
// publication lag.
type Config struct {
	// SimilarityThreshold is the minimum trigram similarity between two
	// records' search keyword blobs for a fuzzy match.
	SimilarityThreshold float64
	// DateWindow is how far apart two recall dates may be for a fuzzy match
	// to count. Exact identifier matches ignore it.
	DateWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.65,
		DateWindow:          90 * 24 * time.Hour,
	}
}

// Cluster is a set of recall records judged to describe one safety event.
type Cluster struct {
	Records []*domain.Recall
	Primary *domain.Recall
}

type Engine struct {
	cfg Config
	log *logger.Logger
}

func NewEngine(cfg Config, baseLog *logger.Logger) *Engine {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.DateWindow <= 0 {
		cfg.DateWindow = DefaultConfig().DateWindow
	}
	return &Engine{cfg: cfg, log: baseLog.With("component", "DedupeEngine")}
}

// Cluster groups records describing the same underlying recall event. The
// input is a batch plus the store's candidate window; output clusters may mix
// both. Records that cannot be compared at all (no identifiers and no search
// keywords) are excluded from clustering and returned separately so the run
// can count them without aborting.
func (e *Engine) Cluster(records []*domain.Recall) ([]Cluster, []*domain.Recall) {
	usable := make([]*domain.Recall, 0, len(records))
	var excluded []*domain.Recall
	for _, r := range records {
		if r == nil {
			continue
		}
		if r.SearchKeywords == "" && r.IdentifierCount() == 0 {
			e.log.Warn("Record excluded from clustering: nothing to compare",
				"source_agency", r.SourceAgency, "recall_id", r.RecallID)
			excluded = append(excluded, r)
			continue
		}
		usable = append(usable, r)
	}

	uf := newUnionFind(len(usable))
	e.unionExactIdentifiers(usable, uf)
	e.unionFuzzyMatches(usable, uf)

	groups := uf.Groups()
	clusters := make([]Cluster, 0, len(groups))
	for _, idxs := range groups {
		c := Cluster{Records: make([]*domain.Recall, 0, len(idxs))}
		for _, i := range idxs {
			c.Records = append(c.Records, usable[i])
		}
		c.Primary = pickPrimary(c.Records)
		clusters = append(clusters, c)
	}
	return clusters, excluded
}

// unionExactIdentifiers links records sharing a hard identifier: UPC, GTIN,
// EAN, or a (lot number, brand) pair. These match unconditionally.
func (e *Engine) unionExactIdentifiers(records []*domain.Recall, uf *unionFind) {
	buckets := make(map[string]int)
	link := func(key string, i int) {
		if key == "" {
			return
		}
		if first, ok := buckets[key]; ok {
			uf.Union(first, i)
			return
		}
		buckets[key] = i
	}
	for i, r := range records {
		if r.UPC != "" {
			link("upc:"+r.UPC, i)
		}
		if r.GTIN != "" {
			link("gtin:"+r.GTIN, i)
		}
		if r.EANCode != "" {
			link("ean:"+r.EANCode, i)
		}
		if r.LotNumber != "" && r.Brand != "" {
			link("lot:"+r.LotNumber+"|brand:"+r.Brand, i)
		}
	}
}

// unionFuzzyMatches links records whose keyword blobs are similar enough and
// whose recall dates fall inside the window. Pairwise comparison is bounded
// by the date window, so records are scanned in date order and each inner
// loop stops at the first record outside the window.
func (e *Engine) unionFuzzyMatches(records []*domain.Recall, uf *unionFind) {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	// insertion sort by recall date; batches are small and mostly presorted
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && records[order[j]].RecallDate.Before(records[order[j-1]].RecallDate); j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	for a := 0; a < len(order); a++ {
		ra := records[order[a]]
		if ra.SearchKeywords == "" {
			continue
		}
		for b := a + 1; b < len(order); b++ {
			rb := records[order[b]]
			if rb.RecallDate.Sub(ra.RecallDate) > e.cfg.DateWindow {
				break
			}
			if rb.SearchKeywords == "" {
				continue
			}
			if uf.Find(order[a]) == uf.Find(order[b]) {
				continue
			}
			if TrigramSimilarity(ra.SearchKeywords, rb.SearchKeywords) >= e.cfg.SimilarityThreshold {
				uf.Union(order[a], order[b])
			}
		}
	}
}

// pickPrimary chooses the record shown to users when a cluster spans
// agencies: richest identifier coverage wins, then the earliest recall date,
// then the lowest (agency, recall id) pair for determinism.
func pickPrimary(records []*domain.Recall) *domain.Recall {
	var best *domain.Recall
	for _, r := range records {
		if best == nil {
			best = r
			continue
		}
		bc, rc := best.IdentifierCount(), r.IdentifierCount()
		switch {
		case rc > bc:
			best = r
		case rc == bc && r.RecallDate.Before(best.RecallDate):
			best = r
		case rc == bc && r.RecallDate.Equal(best.RecallDate) &&
			r.SourceAgency+r.RecallID < best.SourceAgency+best.RecallID:
			best = r
		}
	}
	return best
}
