package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	runs     int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return nil
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)

	require.NoError(t, s.AddJob(&fakeJob{name: "tracking", schedule: "0 0 18 * * *"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "tracking", schedule: "0 0 19 * * *"}))
	assert.Equal(t, []string{"tracking"}, s.Jobs())
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)
	assert.Error(t, s.AddJob(&fakeJob{name: "broken", schedule: "not a cron line"}))
	assert.Empty(t, s.Jobs())
}

func TestRunJobByName(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)
	job := &fakeJob{name: "pipeline", schedule: "0 0,20,40 9-15 * * 1-5"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("pipeline"))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&job.runs) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Error(t, s.RunJob("missing"))
}
