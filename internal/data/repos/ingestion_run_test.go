package repos_test

import (
	"context"
	"testing"

	"github.com/babyshield/crownsafe-backend/internal/data/repos"
	"github.com/babyshield/crownsafe-backend/internal/data/repos/testutil"
	"github.com/babyshield/crownsafe-backend/internal/domain"
)

func TestIngestionRunLifecycle(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewIngestionRunRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, nil, &domain.IngestionRun{
		Agency: "CPSC", Mode: domain.RunModeDelta, Status: domain.RunStatusQueued,
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	active, err := repo.GetActiveByAgency(ctx, nil, "CPSC")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active == nil || active.ID != created.ID {
		t.Fatalf("expected queued run to be active")
	}

	claimed, err := repo.ClaimNextQueued(ctx, nil)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != created.ID {
		t.Fatalf("expected to claim the queued run")
	}
	if claimed.Status != domain.RunStatusRunning || claimed.StartedAt == nil {
		t.Fatalf("expected claim to mark running with started_at")
	}

	again, err := repo.ClaimNextQueued(ctx, nil)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Fatalf("expected nothing left to claim, got %v", again.ID)
	}
}

func TestIngestionRunIncrementCounts(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewIngestionRunRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	run, err := repo.Create(ctx, nil, &domain.IngestionRun{
		Agency: "FDA", Mode: domain.RunModeFull, Status: domain.RunStatusRunning,
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	if err := repo.IncrementCounts(ctx, nil, run.ID, 3, 1, 0, 2); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := repo.IncrementCounts(ctx, nil, run.ID, 2, 0, 4, 0); err != nil {
		t.Fatalf("second increment: %v", err)
	}

	got, err := repo.GetByID(ctx, nil, run.ID)
	if err != nil || got == nil {
		t.Fatalf("reload run: %v", err)
	}
	if got.ItemsInserted != 5 || got.ItemsUpdated != 1 || got.ItemsSkipped != 4 || got.ItemsFailed != 2 {
		t.Fatalf("unexpected counters: %+v", got)
	}
}

func TestIngestionRunActiveUniquePerAgency(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewIngestionRunRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	if _, err := repo.Create(ctx, nil, &domain.IngestionRun{
		Agency: "CFIA", Mode: domain.RunModeDelta, Status: domain.RunStatusQueued,
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := repo.Create(ctx, nil, &domain.IngestionRun{
		Agency: "CFIA", Mode: domain.RunModeDelta, Status: domain.RunStatusQueued,
	})
	if err == nil {
		t.Fatalf("expected the partial unique index to reject a second active run")
	}
}

func TestIngestionRunLatestSuccessPerAgency(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewIngestionRunRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	mk := func(agency, status, finished string) {
		t.Helper()
		run, err := repo.Create(ctx, nil, &domain.IngestionRun{
			Agency: agency, Mode: domain.RunModeDelta, Status: status,
		})
		if err != nil {
			t.Fatalf("create %s run: %v", agency, err)
		}
		if finished != "" {
			if err := repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
				"finished_at": mustDate(t, finished),
			}); err != nil {
				t.Fatalf("set finished_at: %v", err)
			}
		}
	}

	mk("CPSC", domain.RunStatusSuccess, "2024-01-01")
	mk("CPSC", domain.RunStatusPartial, "2024-02-01")
	mk("CPSC", domain.RunStatusFailed, "2024-03-01")
	mk("FDA", domain.RunStatusSuccess, "2024-01-15")

	latest, err := repo.LatestSuccessPerAgency(ctx, nil)
	if err != nil {
		t.Fatalf("latest success: %v", err)
	}
	if got := latest["CPSC"].Format("2006-01-02"); got != "2024-02-01" {
		t.Fatalf("expected partial to count as data-bearing, got %s", got)
	}
	if got := latest["FDA"].Format("2006-01-02"); got != "2024-01-15" {
		t.Fatalf("unexpected FDA watermark %s", got)
	}
}
