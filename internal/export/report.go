package export

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/entity"
)

// Paths lists the files a report wrote.
type Paths struct {
	CSV     string
	Summary string
	XLSX    string
}

// WriteReport writes predictions.csv, summary.txt and report.xlsx under <outDir>/metrics.
func WriteReport(outDir string, rows []entity.Prediction, logger *slog.Logger) (Paths, Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Join(outDir, constants.DirMetrics)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, Summary{}, common.WrapError(err, "create metrics dir")
	}
	sum := Summarize(rows)
	paths := Paths{
		CSV:     filepath.Join(dir, "predictions.csv"),
		Summary: filepath.Join(dir, "summary.txt"),
		XLSX:    filepath.Join(dir, "report.xlsx"),
	}

	var csvBuf, sumBuf bytes.Buffer
	if err := WritePredictionsCSV(&csvBuf, rows); err != nil {
		return Paths{}, sum, err
	}
	if err := WriteSummary(&sumBuf, sum); err != nil {
		return Paths{}, sum, err
	}
	xlsx, err := ReportXLSX(rows, sum)
	if err != nil {
		return Paths{}, sum, err
	}

	for path, data := range map[string][]byte{
		paths.CSV:     csvBuf.Bytes(),
		paths.Summary: sumBuf.Bytes(),
		paths.XLSX:    xlsx,
	} {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return Paths{}, sum, common.WrapError(err, "write "+filepath.Base(path))
		}
	}

	logger.Info("export.report.ok",
		"dir", dir,
		"images", sum.Images,
		"known_label", sum.Labeled,
		"failures", sum.Failures,
		"accuracy", sum.Accuracy,
	)
	return paths, sum, nil
}
