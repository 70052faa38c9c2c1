package checker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"ADCTF/models"
	"ADCTF/storage"
)

// Job 一次待执行的探测管线，Mode 零值即全量管线
type Job struct {
	Team  models.Team
	Task  models.Task
	Round int
	Mode  Mode
}

// Pool 有界工作池。任务以 fire-and-forget 方式提交；任何阶段的
// 未捕获错误都在错误边界处折算成终态 CHECK_FAILED 并落库，
// 状态行不会因 worker 崩溃而卡在中间态。
type Pool struct {
	st      *storage.Store
	reg     *Registry
	jobs    chan Job
	workers int
	wg      sync.WaitGroup
}

func NewPool(st *storage.Store, reg *Registry, workers, queueSize int) *Pool {
	return &Pool{
		st:      st,
		reg:     reg,
		jobs:    make(chan Job, queueSize),
		workers: workers,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	log.Printf("checker pool started with %d workers", p.workers)
}

// Submit 提交任务，不等待执行结果。队列已满时同样走错误边界
// 记录终态，保证该 (team, task) 对不会悬而未决。
func (p *Pool) Submit(job Job) {
	select {
	case p.jobs <- job:
	default:
		log.Printf("checker queue full, failing job team=%d task=%d round=%d",
			job.Team.ID, job.Task.ID, job.Round)
		p.fail(job, "checker queue overloaded")
	}
}

func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.runJob(job)
	}
}

func (p *Pool) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(job, fmt.Sprintf("panic in pipeline: %v", r))
		}
	}()

	v, err := RunPipeline(context.Background(), p.st, p.reg, job.Team, job.Task, job.Round, job.Mode)
	if err != nil {
		p.fail(job, err.Error())
		return
	}
	log.Printf("pipeline done team=%d task=%d round=%d status=%s",
		job.Team.ID, job.Task.ID, job.Round, v.Status)
}

// fail 错误边界：合成终态结论并写入状态行
func (p *Pool) fail(job Job, reason string) {
	v := models.NewVerdict(models.ActionCheck, models.StatusCheckFailed,
		"Check failed", reason, "")
	if err := p.st.ApplyVerdict(context.Background(), job.Team.ID, job.Task.ID, job.Round, v); err != nil {
		log.Printf("failed to persist terminal verdict for team=%d task=%d round=%d: %v",
			job.Team.ID, job.Task.ID, job.Round, err)
	}
}
