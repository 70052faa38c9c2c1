// Package checker 驱动对各队伍服务的探测：check 验活、put 布设
// Flag、get 取回历史 Flag，并把探测结论聚合为该回合的最终状态。
package checker

import (
	"context"
	"fmt"
	"sync"

	"ADCTF/models"
)

// Checker 是探测能力的统一抽象：既可以是外部可执行文件的进程适配
// 器，也可以是进程内注册的检查模块，按 Task.CheckerType 分发。
type Checker interface {
	Check(ctx context.Context, host string) models.Verdict
	// Put 布设一条 Flag；成功时把取回所需的辅助数据写回 flag
	Put(ctx context.Context, host string, flag *models.Flag) models.Verdict
	Get(ctx context.Context, host string, flag models.Flag) models.Verdict
}

// Registry 持有进程内检查模块，并为外部检查器创建进程适配器
type Registry struct {
	mu       sync.RWMutex
	embedded map[string]Checker
}

func NewRegistry() *Registry {
	return &Registry{embedded: make(map[string]Checker)}
}

// RegisterEmbedded 注册进程内检查模块，name 对应 Task.Checker 字段
func (r *Registry) RegisterEmbedded(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedded[name] = c
}

// ForTask 按服务配置选择检查器实现
func (r *Registry) ForTask(task models.Task) (Checker, error) {
	if task.CheckerType == models.CheckerTypeEmbedded {
		r.mu.RLock()
		c, ok := r.embedded[task.Checker]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("embedded checker %q is not registered", task.Checker)
		}
		return c, nil
	}
	return NewProcessChecker(task), nil
}
