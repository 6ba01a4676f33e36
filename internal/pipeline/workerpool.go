package pipeline

import "sync"

// WorkerPool 有界工作池，隔离可能阻塞的通道投递
type WorkerPool struct {
	jobs chan func()
	wg   sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool 创建并启动 size 个工作协程的池
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 8
	}

	pool := &WorkerPool{
		jobs: make(chan func(), size*2),
	}

	for i := 0; i < size; i++ {
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			for job := range pool.jobs {
				job()
			}
		}()
	}

	return pool
}

// Submit 尝试提交一个任务
// 队列已满或池已停止时不阻塞，返回 false，由调用方决定如何记录
func (p *WorkerPool) Submit(job func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop 关闭任务队列并等待在途任务完成，可重复调用
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
