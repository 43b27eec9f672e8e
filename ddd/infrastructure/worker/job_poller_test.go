package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jencoder/ddd/domain/entity"
	"jencoder/ddd/domain/vo"
	"jencoder/ddd/infrastructure/queue"
)

type fakeSource struct {
	kinds []vo.JobKind
	err   error
}

func (f *fakeSource) Poll(ctx context.Context, ticketFn func() string) ([]*entity.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	var jobs []*entity.Job
	for _, kind := range f.kinds {
		jobs = append(jobs, &entity.Job{TicketID: ticketFn(), Kind: kind})
	}
	return jobs, nil
}

func TestPollOnceClassifiesJobs(t *testing.T) {
	source := &fakeSource{kinds: []vo.JobKind{
		vo.JobKindRecording,
		vo.JobKindArchive,
		vo.JobKindIn,
		vo.JobKindOut,
		vo.JobKindDownload,
	}}
	general := queue.NewJobQueue()
	archive := queue.NewJobQueue()
	poller := NewJobPoller(source, general, archive, time.Hour)

	poller.pollOnce(context.Background())

	// 归档和下载走独占队列，其余走通用队列
	assert.Equal(t, 3, general.Size())
	assert.Equal(t, 2, archive.Size())

	assert.Equal(t, vo.JobKindArchive, archive.TryDequeue().Kind)
	assert.Equal(t, vo.JobKindDownload, archive.TryDequeue().Kind)
}

func TestPollOnceTicketSequence(t *testing.T) {
	source := &fakeSource{kinds: []vo.JobKind{vo.JobKindRecording, vo.JobKindRecording}}
	general := queue.NewJobQueue()
	archive := queue.NewJobQueue()
	poller := NewJobPoller(source, general, archive, time.Hour)

	poller.pollOnce(context.Background())
	poller.pollOnce(context.Background())

	assert.Equal(t, "J000001", general.TryDequeue().TicketID)
	assert.Equal(t, "J000002", general.TryDequeue().TicketID)
	assert.Equal(t, "J000003", general.TryDequeue().TicketID)
	assert.Equal(t, "J000004", general.TryDequeue().TicketID)
}

func TestPollOnceSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("backend unreachable")}
	general := queue.NewJobQueue()
	archive := queue.NewJobQueue()
	poller := NewJobPoller(source, general, archive, time.Hour)

	poller.pollOnce(context.Background())

	assert.True(t, general.IsEmpty())
	assert.True(t, archive.IsEmpty())
}

func TestPollerStartStopPollsImmediately(t *testing.T) {
	source := &fakeSource{kinds: []vo.JobKind{vo.JobKindRecording}}
	general := queue.NewJobQueue()
	archive := queue.NewJobQueue()
	poller := NewJobPoller(source, general, archive, time.Hour)

	require.NoError(t, poller.Start(context.Background()))
	assert.Error(t, poller.Start(context.Background()))

	// 启动后立刻完成第一次拉取，不等轮询间隔
	deadline := time.Now().Add(2 * time.Second)
	for general.IsEmpty() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, general.Size())

	require.NoError(t, poller.Stop())
	require.NoError(t, poller.Stop())
}
