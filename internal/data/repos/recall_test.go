package repos_test

import (
	"context"
	"testing"
	"time"

	"github.com/babyshield/crownsafe-backend/internal/data/repos"
	"github.com/babyshield/crownsafe-backend/internal/data/repos/testutil"
	"github.com/babyshield/crownsafe-backend/internal/domain"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func seedRecall(t *testing.T, repo repos.RecallRepo, rec *domain.Recall) *domain.Recall {
	t.Helper()
	created, err := repo.Create(context.Background(), nil, []*domain.Recall{rec})
	if err != nil {
		t.Fatalf("seed recall: %v", err)
	}
	return created[0]
}

func TestRecallCreateAndGetByAgency(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewRecallRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	seedRecall(t, repo, &domain.Recall{
		RecallID: "CPSC-1", SourceAgency: "CPSC",
		ProductName: "Crib", RecallDate: mustDate(t, "2024-01-05"),
	})
	seedRecall(t, repo, &domain.Recall{
		RecallID: "CPSC-2", SourceAgency: "CPSC",
		ProductName: "Stroller", RecallDate: mustDate(t, "2024-01-06"),
	})

	got, err := repo.GetByAgencyAndRecallIDs(ctx, nil, "CPSC", []string{"CPSC-1", "CPSC-2", "CPSC-404"})
	if err != nil {
		t.Fatalf("get by agency: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
}

func TestRecallDuplicateAgencyExternalIDRejected(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewRecallRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	seedRecall(t, repo, &domain.Recall{
		RecallID: "FDA-1", SourceAgency: "FDA",
		ProductName: "Formula", RecallDate: mustDate(t, "2024-02-01"),
	})
	_, err := repo.Create(ctx, nil, []*domain.Recall{{
		RecallID: "FDA-1", SourceAgency: "FDA",
		ProductName: "Formula again", RecallDate: mustDate(t, "2024-02-02"),
	}})
	if err == nil {
		t.Fatalf("expected unique violation for duplicate (agency, recall_id)")
	}
}

func TestRecallFindByBarcode(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewRecallRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	seedRecall(t, repo, &domain.Recall{
		RecallID: "HC-1", SourceAgency: "HEALTH_CANADA",
		ProductName: "Teether", UPC: "012345678905",
		RecallDate: mustDate(t, "2024-03-05"),
	})
	seedRecall(t, repo, &domain.Recall{
		RecallID: "HC-2", SourceAgency: "HEALTH_CANADA",
		ProductName: "Bottle", EANCode: "4006381333931",
		RecallDate: mustDate(t, "2024-03-06"),
	})

	byUPC, err := repo.FindByBarcode(ctx, nil, "012345678905")
	if err != nil {
		t.Fatalf("find by upc: %v", err)
	}
	if len(byUPC) != 1 || byUPC[0].RecallID != "HC-1" {
		t.Fatalf("expected HC-1 for UPC lookup, got %v", byUPC)
	}

	byEAN, err := repo.FindByBarcode(ctx, nil, "4006381333931")
	if err != nil {
		t.Fatalf("find by ean: %v", err)
	}
	if len(byEAN) != 1 || byEAN[0].RecallID != "HC-2" {
		t.Fatalf("expected HC-2 for EAN lookup, got %v", byEAN)
	}

	none, err := repo.FindByBarcode(ctx, nil, "000000000000")
	if err != nil {
		t.Fatalf("find unknown barcode: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no hits, got %d", len(none))
	}
}

func TestRecallFindDedupeCandidates(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewRecallRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	inWindow := seedRecall(t, repo, &domain.Recall{
		RecallID: "W-1", SourceAgency: "CPSC",
		ProductName: "Chair", RecallDate: mustDate(t, "2024-04-10"),
	})
	outOfWindow := seedRecall(t, repo, &domain.Recall{
		RecallID: "W-2", SourceAgency: "CPSC",
		ProductName: "Old Chair", RecallDate: mustDate(t, "2020-01-01"),
	})
	sharedID := seedRecall(t, repo, &domain.Recall{
		RecallID: "W-3", SourceAgency: "FDA",
		ProductName: "Ancient Teether", UPC: "012345678905",
		RecallDate: mustDate(t, "2019-06-01"),
	})

	got, err := repo.FindDedupeCandidates(ctx, nil,
		mustDate(t, "2024-04-01"), mustDate(t, "2024-04-30"),
		[]string{"012345678905"})
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}

	found := map[string]bool{}
	for _, r := range got {
		found[r.RecallID] = true
	}
	if !found[inWindow.RecallID] {
		t.Fatalf("expected in-window row in candidates")
	}
	if !found[sharedID.RecallID] {
		t.Fatalf("expected identifier match outside the window in candidates")
	}
	if found[outOfWindow.RecallID] {
		t.Fatalf("did not expect out-of-window row without identifier match")
	}
}

func TestRecallCountByAgency(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewRecallRepo(tx, testutil.Logger(t))
	ctx := context.Background()

	seedRecall(t, repo, &domain.Recall{
		RecallID: "C-1", SourceAgency: "ACCC",
		ProductName: "Scooter", RecallDate: mustDate(t, "2024-05-01"),
	})
	seedRecall(t, repo, &domain.Recall{
		RecallID: "C-2", SourceAgency: "ACCC",
		ProductName: "Helmet", RecallDate: mustDate(t, "2024-05-02"),
	})

	counts, err := repo.CountByAgency(ctx, nil)
	if err != nil {
		t.Fatalf("count by agency: %v", err)
	}
	if counts["ACCC"] != 2 {
		t.Fatalf("expected 2 ACCC rows, got %d", counts["ACCC"])
	}
}
