package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leafwatch/plant-admin/internal/core/domain"
	"github.com/leafwatch/plant-admin/internal/core/ports"
)

const noticeTTL = 3 * time.Second

// HistoryAggregator is the stateful view model behind the history table:
// it owns the loaded working set, the search term, the selection set, and
// the transient delete notice.
type HistoryAggregator struct {
	store    ports.RecordStore
	geocoder ports.Geocoder
	logger   *slog.Logger
	pageSize int
	now      func() time.Time

	mu       sync.Mutex
	records  []domain.ClassificationRecord
	search   string
	selected map[string]struct{}
	page     int
	detailID string
	notice   string
	noticeAt time.Time
	loadSeq  uint64
}

func NewHistoryAggregator(
	store ports.RecordStore,
	geocoder ports.Geocoder,
	logger *slog.Logger,
	pageSize int,
) *HistoryAggregator {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &HistoryAggregator{
		store:    store,
		geocoder: geocoder,
		logger:   logger,
		pageSize: pageSize,
		now:      time.Now,
		selected: make(map[string]struct{}),
		page:     1,
	}
}

// Load replaces the working set with all records in the requested sort
// order, reverse-geocoding raw coordinate locations best-effort. A load
// that finishes after a newer one started is discarded, so a slow response
// can never overwrite fresher data. The selection set is intersected with
// the fresh id set.
func (h *HistoryAggregator) Load(ctx context.Context, ascending bool) error {
	h.mu.Lock()
	h.loadSeq++
	seq := h.loadSeq
	h.mu.Unlock()

	records, err := h.store.ListAll(ctx, ascending)
	if err != nil {
		h.logger.Error("history_load_failed", "error", err)
		return domain.WrapError(domain.ErrTemporary, "load history", err)
	}
	h.resolveLocations(ctx, records)

	h.mu.Lock()
	defer h.mu.Unlock()
	if seq != h.loadSeq {
		h.logger.Debug("history_load_superseded", "seq", seq)
		return nil
	}

	h.records = records
	h.notice = ""
	loaded := make(map[string]struct{}, len(records))
	for _, record := range records {
		loaded[record.ID] = struct{}{}
	}
	for id := range h.selected {
		if _, ok := loaded[id]; !ok {
			delete(h.selected, id)
		}
	}
	if h.detailID != "" {
		if _, ok := loaded[h.detailID]; !ok {
			h.detailID = ""
		}
	}
	return nil
}

func (h *HistoryAggregator) resolveLocations(ctx context.Context, records []domain.ClassificationRecord) {
	for i := range records {
		coords, ok := domain.ParseCoordinates(records[i].Location)
		if !ok {
			continue
		}
		name, err := h.geocoder.ReverseGeocode(ctx, coords.Latitude, coords.Longitude)
		if err != nil {
			// Degrade silently: the raw coordinate text stays in place.
			h.logger.Warn("geocode_failed", "record_id", records[i].ID, "error", err)
			continue
		}
		records[i].Location = name
	}
}

func (h *HistoryAggregator) SetSearch(term string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.search = term
}

// View renders one page of the filtered working set and moves the current
// page marker, which scopes ToggleSelectAllOnPage.
func (h *HistoryAggregator) View(page int) ports.HistoryView {
	h.mu.Lock()
	defer h.mu.Unlock()

	if page < 1 {
		page = 1
	}
	h.page = page

	filtered := h.filteredLocked()
	totalPages := (len(filtered) + h.pageSize - 1) / h.pageSize

	// Snapshot the page: the filtered set can alias h.records, whose
	// backing array is compacted in place by deletes. A view handed out
	// earlier must never change under its holder.
	pageSlice := h.pageSliceLocked(filtered, page)
	pageRecords := make([]domain.ClassificationRecord, len(pageSlice))
	copy(pageRecords, pageSlice)

	selected := make([]string, 0, len(h.selected))
	for id := range h.selected {
		selected = append(selected, id)
	}
	sort.Strings(selected)

	return ports.HistoryView{
		Records:     pageRecords,
		Page:        page,
		TotalPages:  totalPages,
		TotalCount:  len(filtered),
		Selected:    selected,
		AllSelected: len(pageRecords) > 0 && len(h.selected) == len(pageRecords),
		Notice:      h.noticeLocked(),
	}
}

// filteredLocked applies the search rule: the classification must equal the
// term (case-insensitive), while location and the formatted timestamp only
// need to contain it. The asymmetry is intentional and load-bearing:
// searching "healthy" must not match "Unhealthy" on the classification
// clause, even though "Unhealthy" contains it.
func (h *HistoryAggregator) filteredLocked() []domain.ClassificationRecord {
	term := strings.ToLower(h.search)
	if term == "" {
		// An empty term matches every record through the location clause.
		return h.records
	}

	out := make([]domain.ClassificationRecord, 0, len(h.records))
	for _, record := range h.records {
		switch {
		case strings.ToLower(string(record.Classification)) == term:
		case strings.Contains(strings.ToLower(record.Location), term):
		case strings.Contains(domain.FormatTimestamp(record.CreatedAt), term):
		default:
			continue
		}
		out = append(out, record)
	}
	return out
}

func (h *HistoryAggregator) pageSliceLocked(filtered []domain.ClassificationRecord, page int) []domain.ClassificationRecord {
	start := (page - 1) * h.pageSize
	if start >= len(filtered) {
		return []domain.ClassificationRecord{}
	}
	end := start + h.pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end]
}

func (h *HistoryAggregator) ToggleSelect(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.selected[id]; ok {
		delete(h.selected, id)
		return
	}
	h.selected[id] = struct{}{}
}

// ToggleSelectAllOnPage toggles only the identifiers on the current page.
// Selecting all and then changing page does not auto-select the new page.
func (h *HistoryAggregator) ToggleSelectAllOnPage() {
	h.mu.Lock()
	defer h.mu.Unlock()

	pageRecords := h.pageSliceLocked(h.filteredLocked(), h.page)
	if len(pageRecords) == 0 {
		return
	}
	if len(h.selected) == len(pageRecords) {
		for _, record := range pageRecords {
			delete(h.selected, record.ID)
		}
		return
	}
	for _, record := range pageRecords {
		h.selected[record.ID] = struct{}{}
	}
}

// Delete removes one record. The store confirms first; local state only
// changes after success, so the view never diverges from the store.
func (h *HistoryAggregator) Delete(ctx context.Context, id string) error {
	if err := h.store.Delete(ctx, id); err != nil {
		h.logger.Error("history_delete_failed", "record_id", id, "error", err)
		return fmt.Errorf("delete record: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(map[string]struct{}{id: {}})
	h.setNoticeLocked("Item successfully deleted!")
	return nil
}

// DeleteSelected removes the whole selection set in one store call and
// clears it on success.
func (h *HistoryAggregator) DeleteSelected(ctx context.Context) error {
	h.mu.Lock()
	ids := make([]string, 0, len(h.selected))
	for id := range h.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	h.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	if _, err := h.store.DeleteMany(ctx, ids); err != nil {
		h.logger.Error("history_bulk_delete_failed", "count", len(ids), "error", err)
		return fmt.Errorf("delete selected records: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}
	h.removeLocked(gone)
	h.selected = make(map[string]struct{})
	h.setNoticeLocked("Selected items successfully deleted!")
	return nil
}

func (h *HistoryAggregator) removeLocked(gone map[string]struct{}) {
	kept := h.records[:0]
	for _, record := range h.records {
		if _, ok := gone[record.ID]; ok {
			delete(h.selected, record.ID)
			if h.detailID == record.ID {
				h.detailID = ""
			}
			continue
		}
		kept = append(kept, record)
	}
	h.records = kept
}

func (h *HistoryAggregator) OpenDetail(id string) (*domain.ClassificationRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, record := range h.records {
		if record.ID == id {
			h.detailID = id
			detail := record
			return &detail, true
		}
	}
	return nil, false
}

func (h *HistoryAggregator) CloseDetail() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detailID = ""
}

// FilteredRecords snapshots the current filtered working set, newest filter
// applied. Used by the spreadsheet export.
func (h *HistoryAggregator) FilteredRecords() []domain.ClassificationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	filtered := h.filteredLocked()
	out := make([]domain.ClassificationRecord, len(filtered))
	copy(out, filtered)
	return out
}

func (h *HistoryAggregator) setNoticeLocked(text string) {
	h.notice = text
	h.noticeAt = h.now()
}

// noticeLocked returns the transient success notice while it is still
// fresh; it self-clears 3 seconds after being set.
func (h *HistoryAggregator) noticeLocked() string {
	if h.notice == "" {
		return ""
	}
	if h.now().Sub(h.noticeAt) >= noticeTTL {
		h.notice = ""
		return ""
	}
	return h.notice
}

var _ ports.HistoryService = (*HistoryAggregator)(nil)
