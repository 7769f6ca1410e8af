package sqlite

import (
	"context"
	"reflect"
	"testing"
	"time"

	domain "github.com/bryanwahyu/palmview/internal/domain/history"
	"github.com/bryanwahyu/palmview/internal/domain/property"
)

func setupRepo(t *testing.T) *HistoryRepository {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewHistoryRepository(db)
}

func sample(id, url string, at time.Time) *domain.Record {
	return &domain.Record{
		ID:        domain.RecordID(id),
		SessionID: "sess-1",
		URL:       url,
		Status:    domain.StatusSuccess,
		Details: &property.Details{
			Title:     "Villa " + id,
			Amenities: []string{"Pool"},
			InvestmentAnalysis: property.InvestmentAnalysis{
				ROIEstimate: "5%",
				Score:       72,
			},
			Sources: []property.Source{{Title: "Property Finder", URI: url}},
		},
		ArchiveURL: "http://minio/x/" + id + ".json",
		CreatedAt:  at,
	}
}

func TestSaveAndLatestByURL(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	older := sample("a", "https://example.com/listing-1", base)
	newer := sample("b", "https://example.com/listing-1", base.Add(time.Minute))
	other := sample("c", "https://example.com/listing-2", base.Add(2*time.Minute))
	for _, r := range []*domain.Record{older, newer, other} {
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("Save(%s) error = %v", r.ID, err)
		}
	}

	got, err := repo.LatestByURL(ctx, "https://example.com/listing-1")
	if err != nil {
		t.Fatalf("LatestByURL() error = %v", err)
	}
	if got == nil || got.ID != "b" {
		t.Fatalf("LatestByURL() = %+v, want b", got)
	}
	if !reflect.DeepEqual(got.Details, newer.Details) {
		t.Errorf("details round trip:\n got %+v\nwant %+v", got.Details, newer.Details)
	}
	if !got.CreatedAt.Equal(newer.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, newer.CreatedAt)
	}
	if got.SessionID != "sess-1" || got.ArchiveURL != newer.ArchiveURL {
		t.Errorf("record = %+v", got)
	}

	missing, err := repo.LatestByURL(ctx, "https://example.com/none")
	if err != nil || missing != nil {
		t.Errorf("LatestByURL(missing) = %v, %v", missing, err)
	}
}

func TestSaveFailedRecordWithoutSession(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	rec := &domain.Record{
		ID:        "f1",
		URL:       "https://example.com/bad",
		Status:    domain.StatusFailed,
		Error:     "Failed to extract property details. Please ensure the link is valid and public.",
		CreatedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := repo.LatestByURL(ctx, rec.URL)
	if err != nil {
		t.Fatal(err)
	}
	if got.Details != nil || got.SessionID != "" || got.Status != domain.StatusFailed || got.Error != rec.Error {
		t.Errorf("record = %+v", got)
	}
}

func TestPaginate(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		if err := repo.Save(ctx, sample(id, "https://example.com/"+id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	if n, err := repo.Count(ctx); err != nil || n != 5 {
		t.Fatalf("Count() = %d, %v", n, err)
	}

	tests := []struct {
		page, size int
		want       []domain.RecordID
	}{
		{page: 1, size: 2, want: []domain.RecordID{"r5", "r4"}},
		{page: 2, size: 2, want: []domain.RecordID{"r3", "r2"}},
		{page: 3, size: 2, want: []domain.RecordID{"r1"}},
		{page: 4, size: 2, want: nil},
		{page: 0, size: 0, want: []domain.RecordID{"r5", "r4", "r3", "r2", "r1"}},
	}
	for _, tt := range tests {
		recs, err := repo.Paginate(ctx, tt.page, tt.size)
		if err != nil {
			t.Fatalf("Paginate(%d,%d) error = %v", tt.page, tt.size, err)
		}
		var ids []domain.RecordID
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
		if !reflect.DeepEqual(ids, tt.want) {
			t.Errorf("Paginate(%d,%d) = %v, want %v", tt.page, tt.size, ids, tt.want)
		}
	}
}

func TestSaveUpserts(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	rec := sample("u1", "https://example.com/u", time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.ArchiveURL = "http://minio/moved.json"
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	recs, err := repo.Paginate(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ArchiveURL != "http://minio/moved.json" {
		t.Errorf("records = %+v", recs)
	}
}
