package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/entity"
)

const (
	sheetPredictions = "Predictions"
	sheetConfusion   = "Confusion Matrix"
	sheetSummary     = "Summary"
)

// ReportXLSX returns a workbook with the Predictions, Confusion Matrix and Summary sheets.
func ReportXLSX(rows []entity.Prediction, sum Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetPredictions); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, name := range []string{sheetConfusion, sheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx sheet: %w", err)
		}
	}
	f.SetActiveSheet(0)

	writePredictions(f, rows)
	writeConfusion(f, ConfusionMatrix(rows), sum.Accuracy)
	writeSummary(f, sum)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func set(f *excelize.File, sheet string, col, row int, v any) {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	_ = f.SetCellValue(sheet, cell, v)
}

func writePredictions(f *excelize.File, rows []entity.Prediction) {
	headers := []string{"Image", "True Label", "Predicted", "Confidence", "Method", "Processing Time (s)", "Error"}
	for i, h := range headers {
		set(f, sheetPredictions, i+1, 1, h)
	}
	for i, r := range rows {
		row := i + 2
		set(f, sheetPredictions, 1, row, r.Image)
		set(f, sheetPredictions, 2, row, r.TrueLabel)
		set(f, sheetPredictions, 3, row, string(r.PredLabel))
		set(f, sheetPredictions, 4, row, r.Confidence)
		set(f, sheetPredictions, 5, row, string(r.Method))
		set(f, sheetPredictions, 6, row, r.ProcessingTime.Seconds())
		set(f, sheetPredictions, 7, row, truncate(r.Error, 240))
	}

	_ = f.SetColWidth(sheetPredictions, "A", "A", 48) // image
	_ = f.SetColWidth(sheetPredictions, "B", "C", 12) // labels
	_ = f.SetColWidth(sheetPredictions, "D", "D", 12)
	_ = f.SetColWidth(sheetPredictions, "E", "E", 26) // method
	_ = f.SetColWidth(sheetPredictions, "F", "F", 18)
	_ = f.SetColWidth(sheetPredictions, "G", "G", 60) // error
}

// writeConfusion lays out true labels down column A and predictions across row 1.
func writeConfusion(f *excelize.File, m [][]int, accuracy float64) {
	cats := constants.AllCategories()
	set(f, sheetConfusion, 1, 1, "true \\ pred")
	for j, c := range cats {
		set(f, sheetConfusion, j+2, 1, c.String())
	}
	for i, c := range cats {
		set(f, sheetConfusion, 1, i+2, c.String())
		for j := range cats {
			set(f, sheetConfusion, j+2, i+2, m[i][j])
		}
	}
	set(f, sheetConfusion, 1, len(cats)+3, fmt.Sprintf("Accuracy: %.3f", accuracy))
	_ = f.SetColWidth(sheetConfusion, "A", "A", 16)
}

func writeSummary(f *excelize.File, s Summary) {
	rows := [][2]any{
		{"Images", s.Images},
		{"Known-label images", s.Labeled},
		{"Failures", s.Failures},
		{"Correct", s.Correct},
		{"Accuracy", s.Accuracy},
	}
	for i, r := range rows {
		set(f, sheetSummary, 1, i+1, r[0])
		set(f, sheetSummary, 2, i+1, r[1])
	}
	_ = f.SetColWidth(sheetSummary, "A", "A", 22)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
