// Package scheduler 是比赛的时钟：单协程亚秒级轮询所有注册的调度，
// 到期的调度被异步派发执行，LastRun 持久化落库，因此进程重启既不会
// 重放已生效的调度，也不会漏掉一个从未触发的。
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"ADCTF/models"
	"ADCTF/storage"
)

const pollInterval = 100 * time.Millisecond

// Handler 调度到期时执行的动作
type Handler func(ctx context.Context) error

type entry struct {
	sched   models.Schedule
	handler Handler
}

// Scheduler 协作式轮询器。决策循环自身单线程、永不阻塞在某个
// handler 上；handler 一律派发到独立协程，单个调度失败只记日志。
type Scheduler struct {
	st       *storage.Store
	mu       sync.Mutex
	entries  []*entry
	handlers sync.WaitGroup
	stop     chan struct{}
	done     chan struct{}
}

func New(st *storage.Store) *Scheduler {
	return &Scheduler{
		st:   st,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Register 注册一个调度：持久化状态（LastRun）从库里续上，
// 新调度则建档。必须在 Run 之前完成全部注册。
func (s *Scheduler) Register(ctx context.Context, def models.Schedule, h Handler) error {
	sched, err := s.st.LoadSchedule(ctx, def)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = append(s.entries, &entry{sched: sched, handler: h})
	s.mu.Unlock()
	return nil
}

// Run 启动决策循环，直到 Stop 被调用
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	go func() {
		defer ticker.Stop()
		defer close(s.done)
		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.tick(ctx, now)
			}
		}
	}()
	log.Println("scheduler started")
}

// Stop 停下决策循环并等在途的 handler 跑完，之后才能安全关闭
// handler 依赖的下游（如探测工作池）。
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	s.handlers.Wait()
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if !e.sched.ShouldRun(now) {
			continue
		}
		// 先占住本次触发再异步执行，慢 handler 不拖慢下一个 tick
		ranAt := now
		e.sched.LastRun = &ranAt
		s.handlers.Add(1)
		go s.execute(ctx, e, ranAt)
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry, ranAt time.Time) {
	defer s.handlers.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("schedule %s panicked: %v", e.sched.ID, r)
		}
	}()

	if err := e.handler(ctx); err != nil {
		log.Printf("schedule %s failed: %v", e.sched.ID, err)
	}
	if err := s.st.SaveScheduleRun(ctx, e.sched.ID, ranAt); err != nil {
		log.Printf("persist last run of schedule %s: %v", e.sched.ID, err)
	}
}
