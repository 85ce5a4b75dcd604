// Package export writes decision history to spreadsheet files.
package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/scanlock/internal/model"
)

var decisionHeader = []string{"ID", "Session", "Text", "Score", "Elapsed (ms)", "Source", "Decided At"}

// WriteDecisions writes decisions to an XLSX workbook at path, one row
// per decision under a header row.
func WriteDecisions(path string, decisions []model.Decision) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Decisions")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range decisionHeader {
		header.AddCell().SetString(col)
	}

	for _, dec := range decisions {
		row := sheet.AddRow()
		row.AddCell().SetString(dec.ID)
		row.AddCell().SetString(dec.SessionID)
		row.AddCell().SetString(dec.Text)
		row.AddCell().SetFloatWithFormat(dec.Score, "0.000")
		row.AddCell().SetString(strconv.FormatInt(dec.Elapsed.Milliseconds(), 10))
		row.AddCell().SetString(string(dec.Source))
		row.AddCell().SetString(dec.DecidedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
