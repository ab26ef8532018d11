package main

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/clock"
)

type fakeTrainingCounter struct {
	count int
	since time.Time
}

func (f *fakeTrainingCounter) CountSince(_ context.Context, from sql.NullTime) (int, error) {
	f.since = from.Time
	return f.count, nil
}

func TestTrainingExportJob_ReportsCountSinceTwentyFourHoursAgo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fc := &fakeTrainingCounter{count: 7}
	job := newTrainingExportJob(fc, clock.NewFixed(now))

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, summary, "7 training row")
	assert.True(t, fc.since.Equal(now.Add(-24*time.Hour)))
}
