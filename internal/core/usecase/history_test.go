package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/leafwatch/plant-admin/internal/core/domain"
)

type recordStoreFake struct {
	listAll     func(ascending bool) ([]domain.ClassificationRecord, error)
	listSince   func(since time.Time) ([]domain.ClassificationRecord, error)
	listBetween func(from, to time.Time) ([]domain.ClassificationRecord, error)
	listRecent  func(limit int) ([]domain.ClassificationRecord, error)

	deletedIDs  []string
	deleteErr   error
	bulkDeleted [][]string
	bulkErr     error
}

func (f *recordStoreFake) ListAll(_ context.Context, ascending bool) ([]domain.ClassificationRecord, error) {
	if f.listAll == nil {
		return nil, nil
	}
	return f.listAll(ascending)
}

func (f *recordStoreFake) ListSince(_ context.Context, since time.Time) ([]domain.ClassificationRecord, error) {
	if f.listSince == nil {
		return nil, nil
	}
	return f.listSince(since)
}

func (f *recordStoreFake) ListBetween(_ context.Context, from, to time.Time) ([]domain.ClassificationRecord, error) {
	if f.listBetween == nil {
		return nil, nil
	}
	return f.listBetween(from, to)
}

func (f *recordStoreFake) ListRecent(_ context.Context, limit int) ([]domain.ClassificationRecord, error) {
	if f.listRecent == nil {
		return nil, nil
	}
	return f.listRecent(limit)
}

func (f *recordStoreFake) Create(context.Context, domain.ClassificationRecord) error { return nil }

func (f *recordStoreFake) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *recordStoreFake) DeleteMany(_ context.Context, ids []string) (int, error) {
	if f.bulkErr != nil {
		return 0, f.bulkErr
	}
	f.bulkDeleted = append(f.bulkDeleted, ids)
	return len(ids), nil
}

type geocoderFake struct {
	resolve func(lat, lon float64) (string, error)
	calls   int
}

func (f *geocoderFake) ReverseGeocode(_ context.Context, lat, lon float64) (string, error) {
	f.calls++
	if f.resolve == nil {
		return "", errors.New("no responder")
	}
	return f.resolve(lat, lon)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testRecords(n int) []domain.ClassificationRecord {
	out := make([]domain.ClassificationRecord, 0, n)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		classification := domain.ClassificationHealthy
		if i%2 == 1 {
			classification = domain.ClassificationUnhealthy
		}
		out = append(out, domain.ClassificationRecord{
			ID:             fmt.Sprintf("rec-%02d", i),
			Classification: classification,
			Confidence:     0.9,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
			Location:       fmt.Sprintf("greenhouse %d", i),
		})
	}
	return out
}

func newHistoryForTest(store *recordStoreFake, geocoder *geocoderFake) *HistoryAggregator {
	if geocoder == nil {
		geocoder = &geocoderFake{}
	}
	return NewHistoryAggregator(store, geocoder, testLogger(), 10)
}

func TestHistoryLoadResolvesCoordinateLocations(t *testing.T) {
	records := []domain.ClassificationRecord{
		{ID: "a", Classification: domain.ClassificationHealthy, Location: "Latitude: 51.96, Longitude: 5.66"},
		{ID: "b", Classification: domain.ClassificationHealthy, Location: "back field"},
	}
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return records, nil
	}}
	geocoder := &geocoderFake{resolve: func(float64, float64) (string, error) {
		return "Wageningen, Netherlands", nil
	}}
	h := newHistoryForTest(store, geocoder)

	if err := h.Load(context.Background(), false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	view := h.View(1)
	if view.Records[0].Location != "Wageningen, Netherlands" {
		t.Fatalf("expected resolved location, got %q", view.Records[0].Location)
	}
	if view.Records[1].Location != "back field" {
		t.Fatalf("expected plain location untouched, got %q", view.Records[1].Location)
	}
	if geocoder.calls != 1 {
		t.Fatalf("expected 1 geocode call, got %d", geocoder.calls)
	}
}

func TestHistoryLoadKeepsRawCoordinatesOnGeocodeFailure(t *testing.T) {
	raw := "Latitude: 1.5, Longitude: 2.5"
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return []domain.ClassificationRecord{{ID: "a", Classification: domain.ClassificationHealthy, Location: raw}}, nil
	}}
	geocoder := &geocoderFake{resolve: func(float64, float64) (string, error) {
		return "", errors.New("provider down")
	}}
	h := newHistoryForTest(store, geocoder)

	if err := h.Load(context.Background(), false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := h.View(1).Records[0].Location; got != raw {
		t.Fatalf("expected raw location retained, got %q", got)
	}
}

func TestHistoryFilterMatchesClassificationExactlyButSubstringsElsewhere(t *testing.T) {
	records := []domain.ClassificationRecord{
		{ID: "a", Classification: domain.ClassificationHealthy, Location: "field 3", CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "b", Classification: domain.ClassificationUnhealthy, Location: "Healthy Acres Farm", CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		{ID: "c", Classification: domain.ClassificationUnhealthy, Location: "barn", CreatedAt: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)},
	}
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return records, nil
	}}
	h := newHistoryForTest(store, nil)
	if err := h.Load(context.Background(), false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// "healthy" is a substring of "Unhealthy", but the classification
	// clause is an equality check: record c must not match. Record b
	// matches only through its location.
	h.SetSearch("healthy")
	view := h.View(1)
	if view.TotalCount != 2 {
		t.Fatalf("expected 2 matches, got %d", view.TotalCount)
	}
	gotIDs := []string{view.Records[0].ID, view.Records[1].ID}
	if gotIDs[0] != "a" || gotIDs[1] != "b" {
		t.Fatalf("expected records a and b, got %v", gotIDs)
	}

	// The formatted timestamp participates in the containment match.
	h.SetSearch("3/3/2026")
	view = h.View(1)
	if view.TotalCount != 1 || view.Records[0].ID != "c" {
		t.Fatalf("expected timestamp match on record c, got %+v", view.Records)
	}
}

func TestHistoryPagination(t *testing.T) {
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return testRecords(25), nil
	}}
	h := newHistoryForTest(store, nil)
	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	page1 := h.View(1)
	if len(page1.Records) != 10 || page1.TotalPages != 3 {
		t.Fatalf("page 1: expected 10 records over 3 pages, got %d over %d", len(page1.Records), page1.TotalPages)
	}
	if page1.Records[0].ID != "rec-00" || page1.Records[9].ID != "rec-09" {
		t.Fatalf("page 1 bounds wrong: %s..%s", page1.Records[0].ID, page1.Records[9].ID)
	}

	page3 := h.View(3)
	if len(page3.Records) != 5 {
		t.Fatalf("page 3: expected 5 records, got %d", len(page3.Records))
	}
	if page3.Records[0].ID != "rec-20" || page3.Records[4].ID != "rec-24" {
		t.Fatalf("page 3 bounds wrong: %s..%s", page3.Records[0].ID, page3.Records[4].ID)
	}

	if got := h.View(4); len(got.Records) != 0 {
		t.Fatalf("page past the end should be empty, got %d records", len(got.Records))
	}
}

func TestHistorySelectAllIsPageScoped(t *testing.T) {
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return testRecords(25), nil
	}}
	h := newHistoryForTest(store, nil)
	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	view := h.View(1)
	h.ToggleSelectAllOnPage()
	view = h.View(1)
	if len(view.Selected) != 10 || !view.AllSelected {
		t.Fatalf("expected page 1 fully selected, got %d selected, all=%v", len(view.Selected), view.AllSelected)
	}

	// Moving to page 2 must not auto-select the new page's records, even
	// though the header checkbox flag is a bare count comparison.
	view = h.View(2)
	for _, record := range view.Records {
		for _, id := range view.Selected {
			if id == record.ID {
				t.Fatalf("page 2 record %s unexpectedly selected", id)
			}
		}
	}

	// Toggling again on page 1 clears exactly that page.
	h.View(1)
	h.ToggleSelectAllOnPage()
	if view = h.View(1); len(view.Selected) != 0 {
		t.Fatalf("expected selection cleared, got %v", view.Selected)
	}
}

func TestHistoryDeleteSelectedRemovesExactlyTheSelection(t *testing.T) {
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return testRecords(25), nil
	}}
	h := newHistoryForTest(store, nil)
	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	h.View(1)
	h.ToggleSelect("rec-01")
	h.ToggleSelect("rec-03")
	if err := h.DeleteSelected(context.Background()); err != nil {
		t.Fatalf("DeleteSelected() error = %v", err)
	}

	if len(store.bulkDeleted) != 1 {
		t.Fatalf("expected one bulk delete call, got %d", len(store.bulkDeleted))
	}
	if got := store.bulkDeleted[0]; len(got) != 2 || got[0] != "rec-01" || got[1] != "rec-03" {
		t.Fatalf("expected bulk delete of rec-01, rec-03, got %v", got)
	}

	view := h.View(1)
	if view.TotalCount != 23 {
		t.Fatalf("expected 23 records left, got %d", view.TotalCount)
	}
	if len(view.Selected) != 0 {
		t.Fatalf("expected selection cleared, got %v", view.Selected)
	}
	for _, record := range view.Records {
		if record.ID == "rec-01" || record.ID == "rec-03" {
			t.Fatalf("deleted record %s still present", record.ID)
		}
	}

	// A later select-all on another page must not resurrect old ids.
	h.View(2)
	h.ToggleSelectAllOnPage()
	view = h.View(2)
	for _, id := range view.Selected {
		if id == "rec-01" || id == "rec-03" {
			t.Fatalf("stale id %s in fresh selection", id)
		}
	}
}

func TestHistoryDeleteSelectedWithEmptySelectionIsNoOp(t *testing.T) {
	store := &recordStoreFake{}
	h := newHistoryForTest(store, nil)
	if err := h.DeleteSelected(context.Background()); err != nil {
		t.Fatalf("DeleteSelected() error = %v", err)
	}
	if len(store.bulkDeleted) != 0 {
		t.Fatalf("expected no store call for empty selection")
	}
}

func TestHistoryDeleteFailureLeavesStateUnchanged(t *testing.T) {
	store := &recordStoreFake{
		listAll: func(bool) ([]domain.ClassificationRecord, error) {
			return testRecords(3), nil
		},
		deleteErr: errors.New("store down"),
	}
	h := newHistoryForTest(store, nil)
	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := h.Delete(context.Background(), "rec-00"); err == nil {
		t.Fatalf("expected delete error")
	}
	view := h.View(1)
	if view.TotalCount != 3 {
		t.Fatalf("failed delete must not mutate the working set, got %d records", view.TotalCount)
	}
	if view.Notice != "" {
		t.Fatalf("failed delete must not set a notice, got %q", view.Notice)
	}
}

func TestHistoryDeleteNoticeSelfClearsAfterThreeSeconds(t *testing.T) {
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return testRecords(3), nil
	}}
	h := newHistoryForTest(store, nil)

	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return current }

	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := h.Delete(context.Background(), "rec-00"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if got := h.View(1).Notice; got != "Item successfully deleted!" {
		t.Fatalf("expected fresh notice, got %q", got)
	}
	current = current.Add(2 * time.Second)
	if got := h.View(1).Notice; got == "" {
		t.Fatalf("notice should still be visible at 2s")
	}
	current = current.Add(time.Second)
	if got := h.View(1).Notice; got != "" {
		t.Fatalf("notice should clear at 3s, got %q", got)
	}
}

func TestHistoryLoadPrunesStaleSelectionAndDetail(t *testing.T) {
	first := testRecords(3)
	second := first[1:]
	loads := 0
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		loads++
		if loads == 1 {
			return first, nil
		}
		return second, nil
	}}
	h := newHistoryForTest(store, nil)

	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	h.ToggleSelect("rec-00")
	h.ToggleSelect("rec-01")
	if _, ok := h.OpenDetail("rec-00"); !ok {
		t.Fatalf("expected detail for rec-00")
	}

	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	view := h.View(1)
	if len(view.Selected) != 1 || view.Selected[0] != "rec-01" {
		t.Fatalf("expected stale id pruned, got %v", view.Selected)
	}
	if h.detailID != "" {
		t.Fatalf("expected detail cleared for vanished record")
	}
}

func TestHistoryStaleLoadCannotOverwriteNewerData(t *testing.T) {
	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})
	loads := 0
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		loads++
		if loads == 1 {
			close(slowStarted)
			<-slowRelease
			return testRecords(1), nil // stale payload
		}
		return testRecords(5), nil
	}}
	h := newHistoryForTest(store, nil)

	done := make(chan error, 1)
	go func() {
		done <- h.Load(context.Background(), true)
	}()
	<-slowStarted

	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	close(slowRelease)
	if err := <-done; err != nil {
		t.Fatalf("first Load() error = %v", err)
	}

	if got := h.View(1).TotalCount; got != 5 {
		t.Fatalf("stale load overwrote fresh data: %d records", got)
	}
}

func TestHistoryViewIsStableAfterDelete(t *testing.T) {
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return testRecords(3), nil
	}}
	h := newHistoryForTest(store, nil)
	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	held := h.View(1)
	if held.Records[0].ID != "rec-00" {
		t.Fatalf("unexpected first record: %s", held.Records[0].ID)
	}

	// Deleting compacts the working set in place; a view handed out
	// earlier must keep its own copy.
	if err := h.Delete(context.Background(), "rec-00"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if held.Records[0].ID != "rec-00" || len(held.Records) != 3 {
		t.Fatalf("previously returned view mutated: %+v", held.Records)
	}

	fresh := h.View(1)
	if fresh.TotalCount != 2 || fresh.Records[0].ID != "rec-01" {
		t.Fatalf("fresh view should reflect the delete: %+v", fresh)
	}
}

func TestHistoryLoadFailureIsTemporary(t *testing.T) {
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return nil, errors.New("store down")
	}}
	h := newHistoryForTest(store, nil)

	err := h.Load(context.Background(), true)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestHistoryOpenAndCloseDetail(t *testing.T) {
	store := &recordStoreFake{listAll: func(bool) ([]domain.ClassificationRecord, error) {
		return testRecords(2), nil
	}}
	h := newHistoryForTest(store, nil)
	if err := h.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	detail, ok := h.OpenDetail("rec-01")
	if !ok || detail.ID != "rec-01" {
		t.Fatalf("expected detail for rec-01, got %+v ok=%v", detail, ok)
	}
	if _, ok := h.OpenDetail("missing"); ok {
		t.Fatalf("expected no detail for unknown id")
	}
	h.CloseDetail()
	if h.detailID != "" {
		t.Fatalf("expected detail cleared")
	}
}
