package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/joseph-ayodele/docparse/internal/entity"
)

var predictionHeader = []string{"image", "true_label", "pred_label", "confidence", "method", "processing_time", "error"}

// WritePredictionsCSV writes one row per prediction. processing_time is in seconds.
func WritePredictionsCSV(w io.Writer, rows []entity.Prediction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(predictionHeader); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Image,
			r.TrueLabel,
			string(r.PredLabel),
			strconv.FormatFloat(r.Confidence, 'f', 3, 64),
			string(r.Method),
			strconv.FormatFloat(r.ProcessingTime.Seconds(), 'f', 3, 64),
			r.Error,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the plain-text batch summary.
func WriteSummary(w io.Writer, s Summary) error {
	_, err := fmt.Fprintf(w, "Images: %d\nKnown-label images: %d\nFailures: %d\nAccuracy: %.3f\n",
		s.Images, s.Labeled, s.Failures, s.Accuracy)
	return err
}
