package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codeready-toolchain/mswim/pkg/clock"
)

// trainingCounter is the narrow slice of *store.TrainingStore the job
// needs.
type trainingCounter interface {
	CountSince(ctx context.Context, from sql.NullTime) (int, error)
}

// trainingExportJob implements drift.NightlyBatchJob: it summarizes how
// many training rows were written in the prior 24h, exercising
// TrainingStore.CountSince outside the snapshotter's own idempotency path.
type trainingExportJob struct {
	training trainingCounter
	clock    clock.Clock
}

func newTrainingExportJob(training trainingCounter, clk clock.Clock) *trainingExportJob {
	return &trainingExportJob{training: training, clock: clk}
}

func (j *trainingExportJob) Run(ctx context.Context) (string, error) {
	since := j.clock.Now().Add(-24 * time.Hour)
	count, err := j.training.CountSince(ctx, sql.NullTime{Time: since, Valid: true})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("exported %d training row(s) from the last 24h", count), nil
}
