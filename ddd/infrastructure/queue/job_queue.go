package queue

import (
	"sync"

	"jencoder/ddd/domain/entity"
	"jencoder/pkg/errno"
)

// JobQueue 无界FIFO任务队列，入队不阻塞。
// 入库任务量小且不可丢，队列关闭后拒绝入队但允许出队剩余任务。
type JobQueue struct {
	mu     sync.Mutex
	jobs   []*entity.Job
	closed bool
}

// NewJobQueue 创建任务队列
func NewJobQueue() *JobQueue {
	return &JobQueue{}
}

// Enqueue 入队一个任务，队列已关闭时返回错误
func (q *JobQueue) Enqueue(job *entity.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errno.ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// TryDequeue 非阻塞出队，队列为空时返回nil
func (q *JobQueue) TryDequeue() *entity.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job
}

// Size 返回当前队列长度
func (q *JobQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// IsEmpty 队列是否为空
func (q *JobQueue) IsEmpty() bool {
	return q.Size() == 0
}

// Close 关闭队列，此后入队失败
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// IsClosed 队列是否已关闭
func (q *JobQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
