package search

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/babyshield/crownsafe-backend/internal/data/repos"
	"github.com/babyshield/crownsafe-backend/internal/data/repos/testutil"
	"github.com/babyshield/crownsafe-backend/internal/domain"
)

func searchFixture(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)
	recallRepo := repos.NewRecallRepo(tx, log)
	clusterRepo := repos.NewRecallClusterRepo(tx, log)
	svc := NewService(tx, log, recallRepo, clusterRepo, nil, DefaultServiceConfig())

	seed := []*domain.Recall{
		{
			RecallID: "S-1", SourceAgency: "CPSC", ProductName: "Baby Teether",
			Brand: "Acme", UPC: "012345678905",
			RecallDate:     mustDay(t, "2024-03-01"),
			SearchKeywords: "baby teether acme 012345678905",
		},
		{
			RecallID: "S-2", SourceAgency: "HEALTH_CANADA", ProductName: "Baby Teether Ring",
			Brand: "Acme", UPC: "012345678905",
			RecallDate:     mustDay(t, "2024-03-05"),
			SearchKeywords: "baby teether ring acme 012345678905",
		},
		{
			RecallID: "S-3", SourceAgency: "FDA", ProductName: "Teething Biscuit",
			Brand:          "SnackCo",
			RecallDate:     mustDay(t, "2024-02-20"),
			SearchKeywords: "teething biscuit snackco",
		},
		{
			RecallID: "S-4", SourceAgency: "FDA", ProductName: "Lawn Mower Blade",
			Brand:          "YardWorks",
			RecallDate:     mustDay(t, "2024-03-02"),
			SearchKeywords: "lawn mower blade yardworks",
		},
	}
	if _, err := recallRepo.Create(context.Background(), nil, seed); err != nil {
		t.Fatalf("seed recalls: %v", err)
	}
	return svc, tx
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func TestSearchExactNameRanksFirst(t *testing.T) {
	svc, _ := searchFixture(t)

	res, err := svc.Search(context.Background(), Query{Product: "Baby Teether"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Results) < 2 {
		t.Fatalf("expected at least the two teether rows, got %d", len(res.Results))
	}
	if res.Results[0].Recall.RecallID != "S-1" {
		t.Fatalf("expected the exact name match first, got %s", res.Results[0].Recall.RecallID)
	}
	if res.Total == nil || *res.Total < 2 {
		t.Fatalf("expected a total in offset mode")
	}
}

func TestSearchExcludesUnrelatedRows(t *testing.T) {
	svc, _ := searchFixture(t)

	res, err := svc.Search(context.Background(), Query{Product: "baby teether"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, item := range res.Results {
		if item.Recall.RecallID == "S-4" {
			t.Fatalf("lawn mower must not match a teether query")
		}
	}
}

func TestSearchAgencyAndDateFilters(t *testing.T) {
	svc, _ := searchFixture(t)
	from := mustDay(t, "2024-03-01")
	to := mustDay(t, "2024-03-31")

	res, err := svc.Search(context.Background(), Query{
		Product: "teether", Agencies: []string{"HEALTH_CANADA"}, DateFrom: &from, DateTo: &to,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Recall.RecallID != "S-2" {
		t.Fatalf("expected only the Health Canada march row, got %+v", res.Results)
	}
}

func TestSearchCursorPagination(t *testing.T) {
	svc, _ := searchFixture(t)

	first, err := svc.Search(context.Background(), Query{
		Product: "teether", Limit: 1, Cursor: FirstPageCursor(),
	})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Results) != 1 {
		t.Fatalf("expected 1 item on first page, got %d", len(first.Results))
	}
	if first.NextCursor == "" {
		t.Fatalf("expected a next cursor on a full page")
	}
	// keyset order is recall_date desc, so the newest teether row leads
	if first.Results[0].Recall.RecallID != "S-2" {
		t.Fatalf("expected S-2 first in keyset order, got %s", first.Results[0].Recall.RecallID)
	}

	second, err := svc.Search(context.Background(), Query{
		Product: "teether", Limit: 1, Cursor: first.NextCursor,
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Results) != 1 {
		t.Fatalf("expected 1 item on second page, got %d", len(second.Results))
	}
	if second.Results[0].Recall.ID == first.Results[0].Recall.ID {
		t.Fatalf("cursor page repeated a row")
	}
}

func TestBarcodeLookupExpandsCluster(t *testing.T) {
	svc, tx := searchFixture(t)
	ctx := context.Background()

	// cluster the two teether rows
	var rows []*domain.Recall
	if err := tx.Where("recall_id IN ?", []string{"S-1", "S-2"}).Find(&rows).Error; err != nil || len(rows) != 2 {
		t.Fatalf("load seeded rows: %v", err)
	}
	clusterID := rows[0].ID
	members := []*domain.RecallClusterMember{
		{RecallID: rows[0].ID, ClusterID: clusterID, IsPrimary: true},
		{RecallID: rows[1].ID, ClusterID: clusterID, IsPrimary: false},
	}
	clusterRepo := repos.NewRecallClusterRepo(tx, testutil.Logger(t))
	if err := clusterRepo.UpsertMembers(ctx, nil, members); err != nil {
		t.Fatalf("seed cluster: %v", err)
	}

	details, err := svc.LookupBarcode(ctx, "0-12345-67890-5")
	if err != nil {
		t.Fatalf("barcode lookup: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected both recalls carrying the UPC, got %d", len(details))
	}
	for _, d := range details {
		if d.ClusterID == nil {
			t.Fatalf("expected cluster id on barcode hits")
		}
		if len(d.ClusterMembers) != 1 {
			t.Fatalf("expected one cluster sibling, got %d", len(d.ClusterMembers))
		}
	}
}
