package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/entity"
)

func sampleRecord() entity.ProcessingRecord {
	return entity.ProcessingRecord{
		DocumentType: constants.Receipt,
		Fields:       entity.Fields{"store": entity.Str("Shop"), "total": entity.Str("9.99"), "date": nil},
		OCRText:      "Shop\nTotal 9.99",
		Meta: entity.Meta{
			SourceImage:              "dataset/receipt/r1.png",
			RunID:                    "0123456789abcdef",
			ProcessedAt:              time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			OCREngine:                "tesseract",
			Language:                 "en",
			OCRConfidence:            0.91,
			ClassificationConfidence: 0.8,
			ClassificationMethod:     constants.MethodRules,
			ExtractionMethod:         constants.MethodRules,
			DurationsMS:              map[string]int64{"ocr": 120, "classify": 1, "extract": 2},
		},
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	out := t.TempDir()
	w := NewArtifactWriter(out, nil)
	w.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 42, time.UTC) }

	rec := sampleRecord()
	path, err := w.Save(context.Background(), entity.Artifact{Record: rec})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, constants.DirJSON), filepath.Dir(path))
	assert.Equal(t, "20240501T100000.000000042Z_r1_01234567.json", filepath.Base(path))

	got, err := ReadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"document_type\": \"receipt\"")
	assert.Contains(t, string(raw), "\"date\": null")

	entries, err := os.ReadDir(w.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestArtifactNamesDoNotCollide(t *testing.T) {
	w := NewArtifactWriter(t.TempDir(), nil)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		rec := sampleRecord()
		rec.Meta.RunID = strings.Repeat(string(rune('a'+i)), 10)
		path, err := w.Save(context.Background(), entity.Artifact{Record: rec})
		require.NoError(t, err)
		assert.False(t, seen[path], path)
		seen[path] = true
	}
}

func TestReadRecordErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadRecord(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, common.ErrNotFound)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"document_type":"memo"}`), 0o644))
	_, err = ReadRecord(bad)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "runs", "docparse.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.HealthCheck(ctx, time.Second))

	require.NoError(t, s.StartRun(ctx, Run{ID: "run-1", Source: "dataset", Mode: "rules"}))

	rec := sampleRecord()
	rec.Meta.RunID = "run-1"
	rec.Meta.DurationsMS["persist"] = 3
	id, err := s.Save(ctx, entity.Artifact{Record: rec, Path: "out/json/a.json", TrueLabel: "receipt"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, s.RecordFailure(ctx, "run-1", "dataset/news/broken.png", "news", errors.New("unreadable image")))
	require.NoError(t, s.FinishRun(ctx, "run-1", 2, 1, 1.0))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "dataset", run.Source)
	assert.Equal(t, 2, run.Documents)
	assert.Equal(t, 1, run.Failures)
	assert.InDelta(t, 1.0, run.Accuracy, 1e-9)
	assert.False(t, run.StartedAt.IsZero())
	assert.False(t, run.FinishedAt.IsZero())

	preds, err := s.Predictions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, preds, 2)

	var ok, failed StoredPrediction
	for _, p := range preds {
		if p.Stage == constants.StageFailed {
			failed = p
		} else {
			ok = p
		}
	}
	assert.Equal(t, constants.StagePersisted, ok.Stage)
	assert.Equal(t, "receipt", ok.PredLabel)
	assert.Equal(t, "receipt", ok.TrueLabel)
	assert.Equal(t, "out/json/a.json", ok.RecordPath)
	assert.Equal(t, int64(3), ok.DurationsMS["persist"])
	assert.Equal(t, "unreadable image", failed.Error)
	assert.Empty(t, failed.DurationsMS)
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, "nope", 0, 0, 0), common.ErrNotFound)

	preds, err := s.Predictions(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestStoreListRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.StartRun(ctx, Run{ID: id, Source: "dataset", Mode: "rules", StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.True(t, runs[0].FinishedAt.IsZero())

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOpenStoreReopensExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docparse.db")

	s, err := OpenStore(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.StartRun(ctx, Run{ID: "kept", Source: "dataset", Mode: "rules"}))
	require.NoError(t, s.Close())

	s, err = OpenStore(ctx, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	run, err := s.GetRun(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "rules", run.Mode)
	assert.True(t, run.FinishedAt.IsZero())
}

func TestOpenStoreRequiresDSN(t *testing.T) {
	_, err := OpenStore(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
