package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

// ErrSourceUnreadable means the master spreadsheet itself is unusable.
// It is the only fatal error of the pipeline.
var ErrSourceUnreadable = errors.New("source spreadsheet unreadable")

type Extractor struct {
	linkKeywords []string
	headerRow    int
}

func New(linkKeywords []string, headerRow int) *Extractor {
	if len(linkKeywords) == 0 {
		linkKeywords = []string{"link", "sheet"}
	}
	if headerRow <= 0 {
		headerRow = 1
	}
	return &Extractor{linkKeywords: linkKeywords, headerRow: headerRow}
}

// Extract reads the spreadsheet and returns its hyperlink entries in row
// order. Cells without a hyperlink are skipped. A workbook with no link
// column or no hyperlink cells yields an empty slice, not an error.
// limit <= 0 means no limit. Extract never mutates the file; calling it
// again restarts the sequence.
func (e *Extractor) Extract(path string, limit int) ([]models.LinkEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	linkCol := e.findLinkColumn(rows)
	if linkCol < 0 {
		logger.Warn("No link column found in spreadsheet", zap.String("path", path))
		return nil, nil
	}

	var entries []models.LinkEntry
	for rowIdx := e.headerRow + 1; rowIdx <= len(rows); rowIdx++ {
		if limit > 0 && len(entries) >= limit {
			break
		}

		cell, err := excelize.CoordinatesToCellName(linkCol, rowIdx)
		if err != nil {
			continue
		}

		hasLink, target, err := f.GetCellHyperLink(sheet, cell)
		if err != nil || !hasLink || target == "" {
			continue
		}

		label, _ := f.GetCellValue(sheet, cell)
		entries = append(entries, models.LinkEntry{
			Label:     strings.TrimSpace(label),
			Reference: target,
		})
	}

	logger.Info("Links extracted",
		zap.String("path", path),
		zap.Int("count", len(entries)),
	)

	return entries, nil
}

// findLinkColumn returns the 1-based column whose header matches one of
// the link keywords, or -1.
func (e *Extractor) findLinkColumn(rows [][]string) int {
	if len(rows) < e.headerRow {
		return -1
	}

	for idx, header := range rows[e.headerRow-1] {
		lower := strings.ToLower(strings.TrimSpace(header))
		if lower == "" {
			continue
		}
		for _, kw := range e.linkKeywords {
			if strings.Contains(lower, kw) {
				return idx + 1
			}
		}
	}
	return -1
}
