package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/docparse/internal/pipeline"
)

var ErrClosed = errors.New("pool is shutting down")

// Job is one document to push through the pipeline.
type Job struct {
	Path        string
	Label       string // true label, when the dataset layout provides one
	SubmittedAt time.Time
}

// Result is a finished job. Index is the job's submission position.
type Result struct {
	Index   int
	Job     Job
	Output  pipeline.Result
	Err     error
	Elapsed time.Duration
}

// Handler processes one job under the per-job context.
type Handler func(ctx context.Context, job Job) (pipeline.Result, error)

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context) []Result
}
