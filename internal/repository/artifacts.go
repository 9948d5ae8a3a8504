package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/entity"
)

const artifactTimeLayout = "20060102T150405.000000000Z"

// ArtifactWriter stores one indented JSON file per document under <outdir>/json.
type ArtifactWriter struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

func NewArtifactWriter(outDir string, logger *slog.Logger) *ArtifactWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactWriter{
		dir:    filepath.Join(outDir, constants.DirJSON),
		logger: logger,
		now:    time.Now,
	}
}

func (w *ArtifactWriter) Dir() string { return w.dir }

// Save writes the record and returns the file path. The file appears atomically.
func (w *ArtifactWriter) Save(ctx context.Context, a entity.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(a.Record, "", "  ")
	if err != nil {
		return "", common.WrapError(err, "marshal record")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", common.WrapError(err, "create artifact dir")
	}

	path := filepath.Join(w.dir, w.fileName(a.Record))
	tmp, err := os.CreateTemp(w.dir, ".tmp-*.json")
	if err != nil {
		return "", common.WrapError(err, "create temp artifact")
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", common.WrapError(err, "write artifact")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", common.WrapError(err, "close artifact")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", common.WrapError(err, "rename artifact")
	}

	w.logger.Debug("repository.artifact.saved", "path", path, "bytes", len(data))
	return path, nil
}

func (w *ArtifactWriter) fileName(rec entity.ProcessingRecord) string {
	return ArtifactStem(w.now(), rec.Meta.SourceImage, rec.Meta.RunID) + ".json"
}

// ArtifactStem is <UTC ns timestamp>_<image base>_<run id prefix>. Every file written for a
// document (record JSON, annotated image) shares this naming.
func ArtifactStem(at time.Time, sourceImage, runID string) string {
	base := strings.TrimSuffix(filepath.Base(sourceImage), filepath.Ext(sourceImage))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document"
	}
	name := at.UTC().Format(artifactTimeLayout) + "_" + base
	if runID != "" {
		if len(runID) > 8 {
			runID = runID[:8]
		}
		name += "_" + runID
	}
	return name
}

// ReadRecord loads a record written by ArtifactWriter.
func ReadRecord(path string) (entity.ProcessingRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entity.ProcessingRecord{}, fmt.Errorf("%w: %s", common.ErrNotFound, path)
		}
		return entity.ProcessingRecord{}, common.WrapError(err, "read record")
	}
	var rec entity.ProcessingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return entity.ProcessingRecord{}, fmt.Errorf("%w: decode %s: %v", common.ErrInvalidInput, path, err)
	}
	return rec, nil
}
