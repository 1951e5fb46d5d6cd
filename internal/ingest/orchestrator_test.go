package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/dedupe"
	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

type fakeRunRepo struct {
	runs map[uuid.UUID]*domain.IngestionRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[uuid.UUID]*domain.IngestionRun)}
}

func (f *fakeRunRepo) Create(ctx context.Context, tx *gorm.DB, run *domain.IngestionRun) (*domain.IngestionRun, error) {
	for _, existing := range f.runs {
		if existing.Agency == run.Agency && existing.Active() {
			return nil, errors.New("duplicate key value violates unique constraint")
		}
	}
	run.ID = uuid.New()
	run.CreatedAt = time.Now()
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.IngestionRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

func (f *fakeRunRepo) GetActiveByAgency(ctx context.Context, tx *gorm.DB, agency string) (*domain.IngestionRun, error) {
	for _, run := range f.runs {
		if run.Agency == agency && run.Active() {
			copied := *run
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRunRepo) GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.IngestionRun, error) {
	out := make([]*domain.IngestionRun, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	return out, nil
}

func (f *fakeRunRepo) ClaimNextQueued(ctx context.Context, tx *gorm.DB) (*domain.IngestionRun, error) {
	for _, run := range f.runs {
		if run.Status == domain.RunStatusQueued {
			now := time.Now()
			run.Status = domain.RunStatusRunning
			run.StartedAt = &now
			copied := *run
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	run, ok := f.runs[id]
	if !ok {
		return nil
	}
	if v, ok := updates["status"]; ok {
		run.Status = v.(string)
	}
	if v, ok := updates["finished_at"]; ok {
		t := v.(time.Time)
		run.FinishedAt = &t
	}
	if v, ok := updates["error_text"]; ok {
		run.ErrorText = v.(string)
	}
	return nil
}

func (f *fakeRunRepo) IncrementCounts(ctx context.Context, tx *gorm.DB, id uuid.UUID, inserted, updated, skipped, failed int) error {
	run, ok := f.runs[id]
	if !ok {
		return nil
	}
	run.ItemsInserted += inserted
	run.ItemsUpdated += updated
	run.ItemsSkipped += skipped
	run.ItemsFailed += failed
	return nil
}

func (f *fakeRunRepo) LatestSuccessPerAgency(ctx context.Context, tx *gorm.DB) (map[string]time.Time, error) {
	return map[string]time.Time{}, nil
}

type fakeConnector struct {
	agency  string
	records []RawRecord
	err     error
}

func (f *fakeConnector) Agency() string { return f.agency }
func (f *fakeConnector) Fetch(ctx context.Context, req FetchRequest) ([]RawRecord, error) {
	return f.records, f.err
}

func testOrchestrator(t *testing.T, runs *fakeRunRepo, conn Connector) *Orchestrator {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	registry := NewRegistry()
	if conn != nil {
		registry.Register(conn)
	}
	engine := dedupe.NewEngine(dedupe.DefaultConfig(), log)
	return NewOrchestrator(nil, log, nil, nil, runs, registry, NewNormalizer(log), engine, 0)
}

func TestStartRunUnknownAgency(t *testing.T) {
	o := testOrchestrator(t, newFakeRunRepo(), nil)
	_, err := o.StartRun(context.Background(), "NOT_AN_AGENCY", "delta")
	if !errors.Is(err, ErrUnknownAgency) {
		t.Fatalf("expected ErrUnknownAgency, got %v", err)
	}
}

func TestStartRunQueues(t *testing.T) {
	runs := newFakeRunRepo()
	o := testOrchestrator(t, runs, &fakeConnector{agency: "CPSC"})
	run, err := o.StartRun(context.Background(), "CPSC", "full")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != domain.RunStatusQueued {
		t.Fatalf("expected queued, got %s", run.Status)
	}
	if run.Mode != domain.RunModeFull {
		t.Fatalf("expected full mode, got %s", run.Mode)
	}
}

func TestStartRunDefaultsToDelta(t *testing.T) {
	runs := newFakeRunRepo()
	o := testOrchestrator(t, runs, &fakeConnector{agency: "CPSC"})
	run, err := o.StartRun(context.Background(), "CPSC", "bogus-mode")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Mode != domain.RunModeDelta {
		t.Fatalf("expected delta mode, got %s", run.Mode)
	}
}

func TestStartRunRejectsSecondActiveRun(t *testing.T) {
	runs := newFakeRunRepo()
	o := testOrchestrator(t, runs, &fakeConnector{agency: "CPSC"})
	if _, err := o.StartRun(context.Background(), "CPSC", "delta"); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	_, err := o.StartRun(context.Background(), "CPSC", "delta")
	if !errors.Is(err, ErrRunActive) {
		t.Fatalf("expected ErrRunActive, got %v", err)
	}
}

func TestStartRunAllowedAfterTerminalRun(t *testing.T) {
	runs := newFakeRunRepo()
	o := testOrchestrator(t, runs, &fakeConnector{agency: "CPSC"})
	first, err := o.StartRun(context.Background(), "CPSC", "delta")
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	runs.runs[first.ID].Status = domain.RunStatusSuccess
	if _, err := o.StartRun(context.Background(), "CPSC", "delta"); err != nil {
		t.Fatalf("expected new run after terminal run, got %v", err)
	}
}

func TestCancelQueuedRun(t *testing.T) {
	runs := newFakeRunRepo()
	o := testOrchestrator(t, runs, &fakeConnector{agency: "FDA"})
	run, err := o.StartRun(context.Background(), "FDA", "delta")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancelled, err := o.CancelRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.RunStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if runs.runs[run.ID].Status != domain.RunStatusCancelled {
		t.Fatalf("expected stored run cancelled, got %s", runs.runs[run.ID].Status)
	}
}

func TestCancelTerminalRunRejected(t *testing.T) {
	runs := newFakeRunRepo()
	o := testOrchestrator(t, runs, &fakeConnector{agency: "FDA"})
	run, _ := o.StartRun(context.Background(), "FDA", "delta")
	runs.runs[run.ID].Status = domain.RunStatusFailed
	if _, err := o.CancelRun(context.Background(), run.ID); !errors.Is(err, ErrRunNotCancellable) {
		t.Fatalf("expected ErrRunNotCancellable, got %v", err)
	}
}

func TestCancelMissingRun(t *testing.T) {
	o := testOrchestrator(t, newFakeRunRepo(), nil)
	if _, err := o.CancelRun(context.Background(), uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestExecuteFetchFailureMarksRunFailed(t *testing.T) {
	runs := newFakeRunRepo()
	conn := &fakeConnector{agency: "CPSC", err: errors.New("feed unreachable")}
	o := testOrchestrator(t, runs, conn)
	run, _ := o.StartRun(context.Background(), "CPSC", "delta")
	runs.runs[run.ID].Status = domain.RunStatusRunning

	if err := o.Execute(context.Background(), runs.runs[run.ID]); err == nil {
		t.Fatalf("expected pipeline error")
	}
	final := runs.runs[run.ID]
	if final.Status != domain.RunStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorText == "" {
		t.Fatalf("expected error_text set")
	}
	if final.FinishedAt == nil {
		t.Fatalf("expected finished_at set")
	}
}

func TestExecuteAllRecordsRejected(t *testing.T) {
	runs := newFakeRunRepo()
	conn := &fakeConnector{agency: "CPSC", records: []RawRecord{
		{RecallID: "R-1", SourceAgency: "CPSC", ProductName: "Crib"},
		{RecallID: "R-2", SourceAgency: "CPSC", RecallDate: "2024-01-01"},
	}}
	o := testOrchestrator(t, runs, conn)
	run, _ := o.StartRun(context.Background(), "CPSC", "delta")
	runs.runs[run.ID].Status = domain.RunStatusRunning

	if err := o.Execute(context.Background(), runs.runs[run.ID]); err != nil {
		t.Fatalf("rejected records are a data problem, not a pipeline error: %v", err)
	}
	final := runs.runs[run.ID]
	if final.Status != domain.RunStatusFailed {
		t.Fatalf("expected failed when every record is rejected, got %s", final.Status)
	}
	if final.ItemsFailed != 2 {
		t.Fatalf("expected 2 failed items, got %d", final.ItemsFailed)
	}
}

func TestExecuteEmptyFeedSucceeds(t *testing.T) {
	runs := newFakeRunRepo()
	conn := &fakeConnector{agency: "CPSC"}
	o := testOrchestrator(t, runs, conn)
	run, _ := o.StartRun(context.Background(), "CPSC", "delta")
	runs.runs[run.ID].Status = domain.RunStatusRunning

	if err := o.Execute(context.Background(), runs.runs[run.ID]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := runs.runs[run.ID].Status; got != domain.RunStatusSuccess {
		t.Fatalf("expected success on empty feed, got %s", got)
	}
}

func TestChangeDetectionCoversJSONPayloads(t *testing.T) {
	prev := &domain.Recall{
		RecallID:     "R-1",
		SourceAgency: "CPSC",
		ProductName:  "Crib",
		RecallDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	same := *prev
	if recallChanged(prev, &same) {
		t.Fatalf("identical records must not count as changed")
	}

	withPayload := *prev
	withPayload.AgencySpecificData = datatypes.JSON(`{"units_sold":250}`)
	if !recallChanged(prev, &withPayload) {
		t.Fatalf("a new agency payload must count as changed")
	}
	if _, ok := recallUpdateMap(&withPayload)["agency_specific_data"]; !ok {
		t.Fatalf("agency payload missing from the update map")
	}

	withRegions := *prev
	withRegions.RegionsAffected = datatypes.JSON(`["ontario"]`)
	if !recallChanged(prev, &withRegions) {
		t.Fatalf("a regions change must count as changed")
	}
}

func TestExecuteStopsAtCancellationCheckpoint(t *testing.T) {
	runs := newFakeRunRepo()
	conn := &fakeConnector{agency: "CPSC", records: []RawRecord{
		{RecallID: "R-1", SourceAgency: "CPSC", ProductName: "Crib", RecallDate: "2024-01-01"},
	}}
	o := testOrchestrator(t, runs, conn)
	run, _ := o.StartRun(context.Background(), "CPSC", "delta")
	// flag cancellation before the pipeline reaches its first checkpoint
	runs.runs[run.ID].Status = domain.RunStatusCancelled

	if err := o.Execute(context.Background(), runs.runs[run.ID]); err != nil {
		t.Fatalf("cancellation is not an error: %v", err)
	}
	if got := runs.runs[run.ID].Status; got != domain.RunStatusCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}
}
