package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/data/repos"
	"github.com/babyshield/crownsafe-backend/internal/dedupe"
	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

var (
	ErrUnknownAgency     = errors.New("unknown agency")
	ErrRunActive         = errors.New("an active run already exists for this agency")
	ErrRunNotFound       = errors.New("ingestion run not found")
	ErrRunNotCancellable = errors.New("run already reached a terminal state")

	errRunCancelled = errors.New("run cancelled")
)

// deltaOverlap is re-fetched on every delta run so records the agency
// backdates or amends near the last watermark are not missed.
const deltaOverlap = 7 * 24 * time.Hour

// Orchestrator owns the ingestion run lifecycle: queueing runs, executing the
// fetch, normalize, dedupe, store pipeline, and moving runs to a terminal
// state. Exactly one active run per agency at a time; the partial unique
// index on ingestion_run backs that up under concurrent queueing.
type Orchestrator struct {
	db       *gorm.DB
	log      *logger.Logger
	recalls  repos.RecallRepo
	clusters repos.RecallClusterRepo
	runs     repos.IngestionRunRepo
	registry *Registry
	norm     *Normalizer
	engine   *dedupe.Engine
	window   time.Duration
}

func NewOrchestrator(
	db *gorm.DB,
	baseLog *logger.Logger,
	recalls repos.RecallRepo,
	clusters repos.RecallClusterRepo,
	runs repos.IngestionRunRepo,
	registry *Registry,
	norm *Normalizer,
	engine *dedupe.Engine,
	dedupeWindow time.Duration,
) *Orchestrator {
	if dedupeWindow <= 0 {
		dedupeWindow = dedupe.DefaultConfig().DateWindow
	}
	return &Orchestrator{
		db:       db,
		log:      baseLog.With("component", "IngestOrchestrator"),
		recalls:  recalls,
		clusters: clusters,
		runs:     runs,
		registry: registry,
		norm:     norm,
		engine:   engine,
		window:   dedupeWindow,
	}
}

// StartRun queues a run for the agency. Returns ErrRunActive when a queued or
// running run already holds the agency slot.
func (o *Orchestrator) StartRun(ctx context.Context, agency, mode string) (*domain.IngestionRun, error) {
	if _, ok := o.registry.Get(agency); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgency, agency)
	}
	if mode != domain.RunModeFull {
		mode = domain.RunModeDelta
	}

	active, err := o.runs.GetActiveByAgency(ctx, nil, agency)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunActive, active.ID, active.Status)
	}

	run := &domain.IngestionRun{
		Agency: agency,
		Mode:   mode,
		Status: domain.RunStatusQueued,
	}
	created, err := o.runs.Create(ctx, nil, run)
	if err != nil {
		// unique index violation means another request won the slot
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: concurrent start", ErrRunActive)
		}
		return nil, err
	}
	o.log.Info("Queued ingestion run", "run_id", created.ID, "agency", agency, "mode", mode)
	return created, nil
}

// CancelRun requests cancellation. Queued runs are cancelled immediately;
// running runs are flagged and the pipeline stops at its next checkpoint.
func (o *Orchestrator) CancelRun(ctx context.Context, id uuid.UUID) (*domain.IngestionRun, error) {
	run, err := o.runs.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunNotCancellable, run.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{"status": domain.RunStatusCancelled}
	if run.Status == domain.RunStatusQueued {
		updates["finished_at"] = now
	}
	if err := o.runs.UpdateFields(ctx, nil, run.ID, updates); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatusCancelled
	if run.StartedAt == nil {
		run.FinishedAt = &now
	}
	o.log.Info("Cancellation requested", "run_id", run.ID, "agency", run.Agency)
	return run, nil
}

// Execute runs the pipeline for a claimed run and always leaves the run in a
// terminal state. The returned error reports pipeline failure for logging;
// run bookkeeping has already happened by then.
func (o *Orchestrator) Execute(ctx context.Context, run *domain.IngestionRun) error {
	log := o.log.With("run_id", run.ID, "agency", run.Agency, "mode", run.Mode)

	err := o.executePipeline(ctx, run, log)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errRunCancelled):
		o.finishRun(run.ID, domain.RunStatusCancelled, "")
		log.Info("Run cancelled")
		return nil
	default:
		o.finishRun(run.ID, domain.RunStatusFailed, err.Error())
		log.Error("Run failed", "error", err)
		return err
	}
}

func (o *Orchestrator) executePipeline(ctx context.Context, run *domain.IngestionRun, log *logger.Logger) error {
	conn, ok := o.registry.Get(run.Agency)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgency, run.Agency)
	}

	var since time.Time
	if run.Mode == domain.RunModeDelta {
		latest, err := o.runs.LatestSuccessPerAgency(ctx, nil)
		if err != nil {
			return fmt.Errorf("load delta watermark: %w", err)
		}
		if last, ok := latest[run.Agency]; ok {
			since = last.Add(-deltaOverlap)
		}
	}

	raws, err := conn.Fetch(ctx, FetchRequest{Since: since})
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	log.Info("Fetched feed", "records", len(raws))

	if err := o.checkCancelled(ctx, run.ID); err != nil {
		return err
	}

	batch := make([]*domain.Recall, 0, len(raws))
	failed := 0
	for _, raw := range raws {
		rec, nErr := o.norm.Normalize(raw)
		if nErr != nil {
			failed++
			log.Warn("Record rejected during normalization", "error", nErr)
			continue
		}
		batch = append(batch, rec)
	}
	if failed > 0 {
		if err := o.runs.IncrementCounts(ctx, nil, run.ID, 0, 0, 0, failed); err != nil {
			return err
		}
	}
	if len(batch) == 0 {
		if failed > 0 {
			o.finishRun(run.ID, domain.RunStatusFailed, "every record failed normalization")
			return nil
		}
		o.finishRun(run.ID, domain.RunStatusSuccess, "")
		log.Info("Run finished with an empty feed window")
		return nil
	}

	inserted, updated, skipped, err := o.storeBatch(ctx, run, batch, log)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := o.runs.IncrementCounts(ctx, nil, run.ID, inserted, updated, skipped, 0); err != nil {
		return err
	}

	if err := o.checkCancelled(ctx, run.ID); err != nil {
		return err
	}

	if err := o.recluster(ctx, batch, log); err != nil {
		// stored rows are good; clustering can catch up on the next run
		log.Warn("Clustering failed, recalls stored without cluster update", "error", err)
		o.finishRun(run.ID, domain.RunStatusPartial, "clustering failed: "+err.Error())
		return nil
	}

	status := domain.RunStatusSuccess
	if failed > 0 {
		status = domain.RunStatusPartial
	}
	o.finishRun(run.ID, status, "")
	log.Info("Run finished", "status", status,
		"inserted", inserted, "updated", updated, "skipped", skipped, "failed", failed)
	return nil
}

// storeBatch upserts normalized records by (source_agency, recall_id).
// Unchanged existing rows count as skipped.
func (o *Orchestrator) storeBatch(ctx context.Context, run *domain.IngestionRun, batch []*domain.Recall, log *logger.Logger) (inserted, updated, skipped int, err error) {
	recallIDs := make([]string, 0, len(batch))
	for _, rec := range batch {
		recallIDs = append(recallIDs, rec.RecallID)
	}
	existing, err := o.recalls.GetByAgencyAndRecallIDs(ctx, nil, run.Agency, recallIDs)
	if err != nil {
		return 0, 0, 0, err
	}
	byRecallID := make(map[string]*domain.Recall, len(existing))
	for _, e := range existing {
		byRecallID[e.RecallID] = e
	}

	var toInsert []*domain.Recall
	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range batch {
			prev, found := byRecallID[rec.RecallID]
			if !found {
				toInsert = append(toInsert, rec)
				continue
			}
			rec.ID = prev.ID
			if !recallChanged(prev, rec) {
				skipped++
				continue
			}
			if uErr := o.recalls.UpdateFields(ctx, tx, prev.ID, recallUpdateMap(rec)); uErr != nil {
				return uErr
			}
			updated++
		}
		if len(toInsert) > 0 {
			if _, cErr := o.recalls.Create(ctx, tx, toInsert); cErr != nil {
				return cErr
			}
			inserted = len(toInsert)
		}
		return nil
	})
	if err != nil {
		return 0, 0, 0, err
	}
	return inserted, updated, skipped, nil
}

// recluster rebuilds dedup clusters around the batch: the batch plus the
// store's candidate window go through the engine, and membership rows are
// upserted. Existing cluster ids are kept when a cluster already has one.
func (o *Orchestrator) recluster(ctx context.Context, batch []*domain.Recall, log *logger.Logger) error {
	minDate, maxDate := batch[0].RecallDate, batch[0].RecallDate
	identifiers := make([]string, 0, len(batch))
	batchIDs := make(map[uuid.UUID]bool, len(batch))
	for _, rec := range batch {
		if rec.RecallDate.Before(minDate) {
			minDate = rec.RecallDate
		}
		if rec.RecallDate.After(maxDate) {
			maxDate = rec.RecallDate
		}
		for _, id := range []string{rec.UPC, rec.EANCode, rec.GTIN, rec.LotNumber} {
			if id != "" {
				identifiers = append(identifiers, id)
			}
		}
		batchIDs[rec.ID] = true
	}

	candidates, err := o.recalls.FindDedupeCandidates(ctx, nil,
		minDate.Add(-o.window), maxDate.Add(o.window), identifiers)
	if err != nil {
		return err
	}

	pool := make([]*domain.Recall, 0, len(batch)+len(candidates))
	pool = append(pool, batch...)
	for _, c := range candidates {
		if !batchIDs[c.ID] {
			pool = append(pool, c)
		}
	}

	clusters, excluded := o.engine.Cluster(pool)
	if len(excluded) > 0 {
		log.Warn("Records excluded from clustering", "count", len(excluded))
	}

	poolIDs := make([]uuid.UUID, 0, len(pool))
	for _, rec := range pool {
		poolIDs = append(poolIDs, rec.ID)
	}
	existingMembers, err := o.clusters.GetByRecallIDs(ctx, nil, poolIDs)
	if err != nil {
		return err
	}
	clusterIDByRecall := make(map[uuid.UUID]uuid.UUID, len(existingMembers))
	for _, m := range existingMembers {
		clusterIDByRecall[m.RecallID] = m.ClusterID
	}

	var members []*domain.RecallClusterMember
	for _, c := range clusters {
		clusterID := uuid.Nil
		for _, rec := range c.Records {
			if cid, ok := clusterIDByRecall[rec.ID]; ok {
				clusterID = cid
				break
			}
		}
		if clusterID == uuid.Nil {
			clusterID = uuid.New()
		}
		for _, rec := range c.Records {
			members = append(members, &domain.RecallClusterMember{
				RecallID:  rec.ID,
				ClusterID: clusterID,
				IsPrimary: rec == c.Primary,
			})
		}
	}
	return o.clusters.UpsertMembers(ctx, nil, members)
}

func (o *Orchestrator) checkCancelled(ctx context.Context, id uuid.UUID) error {
	run, err := o.runs.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if run != nil && run.Status == domain.RunStatusCancelled {
		return errRunCancelled
	}
	return ctx.Err()
}

// finishRun moves the run to a terminal state. Uses a background context so
// a cancelled request context cannot strand the run in running.
func (o *Orchestrator) finishRun(id uuid.UUID, status, errText string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": time.Now(),
	}
	if errText != "" {
		updates["error_text"] = errText
	}
	if err := o.runs.UpdateFields(ctx, nil, id, updates); err != nil {
		o.log.Error("Failed to finalize run", "run_id", id, "status", status, "error", err)
	}
}

func recallChanged(prev, next *domain.Recall) bool {
	return prev.ProductName != next.ProductName ||
		prev.Brand != next.Brand ||
		prev.Manufacturer != next.Manufacturer ||
		prev.UPC != next.UPC ||
		prev.EANCode != next.EANCode ||
		prev.GTIN != next.GTIN ||
		prev.ArticleNumber != next.ArticleNumber ||
		prev.LotNumber != next.LotNumber ||
		prev.BatchNumber != next.BatchNumber ||
		prev.SerialNumber != next.SerialNumber ||
		prev.PartNumber != next.PartNumber ||
		prev.ModelNumber != next.ModelNumber ||
		!prev.RecallDate.Equal(next.RecallDate) ||
		prev.Hazard != next.Hazard ||
		prev.HazardCategory != next.HazardCategory ||
		prev.Severity != next.Severity ||
		prev.RiskCategory != next.RiskCategory ||
		prev.RecallClass != next.RecallClass ||
		prev.Description != next.Description ||
		prev.RecallReason != next.RecallReason ||
		prev.Remedy != next.Remedy ||
		prev.URL != next.URL ||
		prev.Country != next.Country ||
		string(prev.RegionsAffected) != string(next.RegionsAffected) ||
		string(prev.AgencySpecificData) != string(next.AgencySpecificData) ||
		prev.SearchKeywords != next.SearchKeywords
}

func recallUpdateMap(rec *domain.Recall) map[string]interface{} {
	return map[string]interface{}{
		"product_name":         rec.ProductName,
		"brand":                rec.Brand,
		"manufacturer":         rec.Manufacturer,
		"upc":                  rec.UPC,
		"ean_code":             rec.EANCode,
		"gtin":                 rec.GTIN,
		"article_number":       rec.ArticleNumber,
		"lot_number":           rec.LotNumber,
		"batch_number":         rec.BatchNumber,
		"serial_number":        rec.SerialNumber,
		"part_number":          rec.PartNumber,
		"model_number":         rec.ModelNumber,
		"recall_date":          rec.RecallDate,
		"expiry_date":          rec.ExpiryDate,
		"best_before_date":     rec.BestBeforeDate,
		"production_date":      rec.ProductionDate,
		"hazard":               rec.Hazard,
		"hazard_category":      rec.HazardCategory,
		"severity":             rec.Severity,
		"risk_category":        rec.RiskCategory,
		"recall_class":         rec.RecallClass,
		"description":          rec.Description,
		"recall_reason":        rec.RecallReason,
		"remedy":               rec.Remedy,
		"url":                  rec.URL,
		"country":              rec.Country,
		"regions_affected":     rec.RegionsAffected,
		"agency_specific_data": rec.AgencySpecificData,
		"search_keywords":      rec.SearchKeywords,
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx wraps the sqlstate into the message
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key value")
}
