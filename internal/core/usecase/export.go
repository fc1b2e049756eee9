package usecase

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/leafwatch/plant-admin/internal/core/domain"
)

const exportSheet = "History"

var exportHeader = []string{"ID", "Classification", "Confidence", "Location", "Date", "Image URL"}

// HistoryExporter writes the current filtered history view as an XLSX
// workbook, one row per record.
type HistoryExporter struct {
	history *HistoryAggregator
}

func NewHistoryExporter(history *HistoryAggregator) *HistoryExporter {
	return &HistoryExporter{history: history}
}

func (e *HistoryExporter) WriteXLSX(w io.Writer) (int, error) {
	records := e.history.FilteredRecords()

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()
	if err := file.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("rename export sheet: %w", err)
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return 0, fmt.Errorf("header cell name: %w", err)
		}
		if err := file.SetCellValue(exportSheet, cell, title); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
	}

	for i, record := range records {
		if err := writeExportRow(file, i+2, record); err != nil {
			return 0, err
		}
	}

	if err := file.Write(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(records), nil
}

func writeExportRow(file *excelize.File, row int, record domain.ClassificationRecord) error {
	values := []any{
		record.ID,
		string(record.Classification),
		record.Confidence,
		record.Location,
		domain.FormatTimestamp(record.CreatedAt),
		record.ImageURL,
	}
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("export cell name: %w", err)
		}
		if err := file.SetCellValue(exportSheet, cell, value); err != nil {
			return fmt.Errorf("write export row %d: %w", row, err)
		}
	}
	return nil
}
