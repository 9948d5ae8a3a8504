package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/entity"
)

const (
	tableRuns        = "runs"
	tablePredictions = "predictions"
)

// Run is one process or batch invocation.
type Run struct {
	ID         string
	Source     string
	Mode       string // model | rules
	Model      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Documents  int
	Failures   int
	Accuracy   float64
}

// StoredPrediction is one document row of a run.
type StoredPrediction struct {
	ID                   string
	RunID                string
	Image                string
	TrueLabel            string
	PredLabel            string
	Confidence           float64
	ClassificationMethod string
	ExtractionMethod     string
	Stage                constants.Stage
	RecordPath           string
	DurationsMS          map[string]int64
	Error                string
	ProcessedAt          time.Time
}

// Store keeps run history in SQLite or Postgres. Queries go through ent's SQL builder.
type Store struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// OpenStore connects by DSN: postgres:// and postgresql:// use pgx, anything else is a SQLite path
// (an optional sqlite:// prefix is stripped).
func OpenStore(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: store dsn is required", common.ErrInvalidInput)
	}

	s := &Store{logger: logger}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if err := s.openPostgres(ctx, dsn); err != nil {
			return nil, err
		}
	} else if err := s.openSQLite(strings.TrimPrefix(dsn, "sqlite://")); err != nil {
		return nil, err
	}

	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	logger.Info("repository.store.ready", "dialect", s.dialect)
	return s, nil
}

func (s *Store) openPostgres(ctx context.Context, dsn string) error {
	s.logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("%w: parse dsn: %v", common.ErrDatabase, err)
	}
	pc.MaxConns = 8
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = "docparse"

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return fmt.Errorf("%w: connect: %v", common.ErrDatabase, err)
	}

	s.pool = pool
	s.dialect = dialect.Postgres
	s.drv = entsql.OpenDB(dialect.Postgres, stdlib.OpenDBFromPool(pool))
	return nil
}

func (s *Store) openSQLite(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return common.WrapError(err, "create store dir")
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("%w: open sqlite: %v", common.ErrDatabase, err)
	}
	s.dialect = dialect.SQLite
	s.drv = entsql.OpenDB(dialect.SQLite, db)
	return nil
}

// Both dialects accept these column types, so one DDL serves SQLite and Postgres.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS ` + tableRuns + ` (
	id TEXT NOT NULL PRIMARY KEY,
	source TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL DEFAULT '',
	finished_at TEXT NOT NULL DEFAULT '',
	documents BIGINT NOT NULL DEFAULT 0,
	failures BIGINT NOT NULL DEFAULT 0,
	accuracy DOUBLE PRECISION NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS ` + tablePredictions + ` (
	id TEXT NOT NULL PRIMARY KEY,
	run_id TEXT NOT NULL,
	image TEXT NOT NULL DEFAULT '',
	true_label TEXT NOT NULL DEFAULT '',
	pred_label TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	classification_method TEXT NOT NULL DEFAULT '',
	extraction_method TEXT NOT NULL DEFAULT '',
	stage TEXT NOT NULL DEFAULT '',
	record_path TEXT NOT NULL DEFAULT '',
	durations_ms TEXT NOT NULL DEFAULT '{}',
	error TEXT NOT NULL DEFAULT '',
	processed_at TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS predictions_run_id ON ` + tablePredictions + ` (run_id)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, q := range migrations {
		if err := s.drv.Exec(ctx, q, []any{}, nil); err != nil {
			return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
		}
	}
	s.logger.Debug("repository.store.migrated", "dialect", s.dialect, "statements", len(migrations))
	return nil
}

// StartRun inserts the run row.
func (s *Store) StartRun(ctx context.Context, r Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	q, args := entsql.Dialect(s.dialect).
		Insert(tableRuns).
		Columns("id", "source", "mode", "model", "started_at", "finished_at", "documents", "failures", "accuracy").
		Values(r.ID, r.Source, r.Mode, r.Model, formatTime(r.StartedAt), "", 0, 0, 0.0).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		s.logger.Error("repository.run.start_failed", "run_id", r.ID, "error", err)
		return fmt.Errorf("%w: start run: %v", common.ErrDatabase, err)
	}
	return nil
}

// FinishRun stamps the run's totals.
func (s *Store) FinishRun(ctx context.Context, runID string, documents, failures int, accuracy float64) error {
	q, args := entsql.Dialect(s.dialect).
		Update(tableRuns).
		Set("finished_at", formatTime(time.Now())).
		Set("documents", documents).
		Set("failures", failures).
		Set("accuracy", accuracy).
		Where(entsql.EQ("id", runID)).
		Query()
	var res sql.Result
	if err := s.drv.Exec(ctx, q, args, &res); err != nil {
		return fmt.Errorf("%w: finish run: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: run %s", common.ErrNotFound, runID)
	}
	return nil
}

// Save records a persisted document. It makes Store usable as a pipeline sink.
func (s *Store) Save(ctx context.Context, a entity.Artifact) (string, error) {
	rec := a.Record
	p := StoredPrediction{
		ID:                   uuid.NewString(),
		RunID:                rec.Meta.RunID,
		Image:                rec.Meta.SourceImage,
		TrueLabel:            a.TrueLabel,
		PredLabel:            string(rec.DocumentType),
		Confidence:           rec.Meta.ClassificationConfidence,
		ClassificationMethod: string(rec.Meta.ClassificationMethod),
		ExtractionMethod:     string(rec.Meta.ExtractionMethod),
		Stage:                constants.StagePersisted,
		RecordPath:           a.Path,
		DurationsMS:          rec.Meta.DurationsMS,
		ProcessedAt:          rec.Meta.ProcessedAt,
	}
	if err := s.insertPrediction(ctx, p); err != nil {
		return "", err
	}
	return p.ID, nil
}

// RecordFailure stores a document that never reached persistence.
func (s *Store) RecordFailure(ctx context.Context, runID, image, trueLabel string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.insertPrediction(ctx, StoredPrediction{
		ID:          uuid.NewString(),
		RunID:       runID,
		Image:       image,
		TrueLabel:   trueLabel,
		Stage:       constants.StageFailed,
		Error:       msg,
		ProcessedAt: time.Now(),
	})
}

func (s *Store) insertPrediction(ctx context.Context, p StoredPrediction) error {
	durations := "{}"
	if len(p.DurationsMS) > 0 {
		b, err := json.Marshal(p.DurationsMS)
		if err != nil {
			return common.WrapError(err, "marshal durations")
		}
		durations = string(b)
	}
	q, args := entsql.Dialect(s.dialect).
		Insert(tablePredictions).
		Columns("id", "run_id", "image", "true_label", "pred_label", "confidence",
			"classification_method", "extraction_method", "stage", "record_path",
			"durations_ms", "error", "processed_at").
		Values(p.ID, p.RunID, p.Image, p.TrueLabel, p.PredLabel, p.Confidence,
			p.ClassificationMethod, p.ExtractionMethod, string(p.Stage), p.RecordPath,
			durations, p.Error, formatTime(p.ProcessedAt)).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		s.logger.Error("repository.prediction.insert_failed", "run_id", p.RunID, "image", p.Image, "error", err)
		return fmt.Errorf("%w: insert prediction: %v", common.ErrDatabase, err)
	}
	return nil
}

// GetRun returns common.ErrNotFound for unknown ids.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	b := entsql.Dialect(s.dialect)
	q, args := b.
		Select(runColumns...).
		From(b.Table(tableRuns)).
		Where(entsql.EQ("id", id)).
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return Run{}, fmt.Errorf("%w: get run: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Run{}, fmt.Errorf("%w: get run: %v", common.ErrDatabase, err)
		}
		return Run{}, fmt.Errorf("%w: run %s", common.ErrNotFound, id)
	}
	return scanRun(&rows)
}

// ListRuns returns the most recent runs first. limit <= 0 returns all of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	b := entsql.Dialect(s.dialect)
	sel := b.
		Select(runColumns...).
		From(b.Table(tableRuns)).
		OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(&rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", common.ErrDatabase, err)
	}
	return out, nil
}

var runColumns = []string{"id", "source", "mode", "model", "started_at", "finished_at", "documents", "failures", "accuracy"}

func scanRun(rows *entsql.Rows) (Run, error) {
	var (
		r                 Run
		started, finished string
	)
	if err := rows.Scan(&r.ID, &r.Source, &r.Mode, &r.Model, &started, &finished, &r.Documents, &r.Failures, &r.Accuracy); err != nil {
		return Run{}, fmt.Errorf("%w: scan run: %v", common.ErrDatabase, err)
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}

// Predictions lists a run's rows in insertion time order.
func (s *Store) Predictions(ctx context.Context, runID string) ([]StoredPrediction, error) {
	b := entsql.Dialect(s.dialect)
	q, args := b.
		Select("id", "run_id", "image", "true_label", "pred_label", "confidence",
			"classification_method", "extraction_method", "stage", "record_path",
			"durations_ms", "error", "processed_at").
		From(b.Table(tablePredictions)).
		Where(entsql.EQ("run_id", runID)).
		OrderBy("processed_at", "image").
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: list predictions: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []StoredPrediction
	for rows.Next() {
		var (
			p                    StoredPrediction
			stage, durs, created string
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.Image, &p.TrueLabel, &p.PredLabel, &p.Confidence,
			&p.ClassificationMethod, &p.ExtractionMethod, &stage, &p.RecordPath,
			&durs, &p.Error, &created); err != nil {
			return nil, fmt.Errorf("%w: scan prediction: %v", common.ErrDatabase, err)
		}
		p.Stage = constants.Stage(stage)
		p.ProcessedAt = parseTime(created)
		if durs != "" && durs != "{}" {
			if err := json.Unmarshal([]byte(durs), &p.DurationsMS); err != nil {
				s.logger.Warn("repository.prediction.bad_durations", "id", p.ID, "error", err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list predictions: %v", common.ErrDatabase, err)
	}
	return out, nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return s.drv.DB().PingContext(ctx)
}

// Close closes the database connections.
func (s *Store) Close() error {
	var errs []error
	if s.drv != nil {
		errs = append(errs, s.drv.Close())
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("database connections closed")
	return errors.Join(errs...)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
