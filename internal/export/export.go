// Package export writes alert history to spreadsheet files.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/dedup"
)

var headerRow = []string{"Record ID", "Category", "Agency", "Headline", "Distance (mi)", "Notified At"}

const metersPerMile = 1609.34

// WriteXLSX exports up to limit history entries, newest first, to path.
func WriteXLSX(ctx context.Context, hist dedup.History, path string, limit int) (int, error) {
	entries, err := hist.ListHistory(ctx, limit)
	if err != nil {
		return 0, eris.Wrap(err, "export: list history")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Alerts")
	if err != nil {
		return 0, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range headerRow {
		header.AddCell().SetString(h)
	}

	for _, e := range entries {
		row := sheet.AddRow()
		row.AddCell().SetString(e.RecordID)
		row.AddCell().SetString(e.Category)
		row.AddCell().SetString(e.Agency)
		row.AddCell().SetString(e.Headline)
		row.AddCell().SetString(fmt.Sprintf("%.1f", e.DistanceMeters/metersPerMile))
		row.AddCell().SetString(e.NotifiedAt.UTC().Format(time.RFC3339))
	}

	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}

	zap.L().Info("export: wrote spreadsheet", zap.String("path", path), zap.Int("rows", len(entries)))
	return len(entries), nil
}
