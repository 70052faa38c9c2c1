package checker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"ADCTF/models"
)

// 消息截断长度与超时升级的宽限期
const (
	maxMessageBytes = 1024
	killGrace       = 3 * time.Second
)

// ProcessChecker 把外部检查器可执行文件适配成 Checker：
// 调用约定为 `checker action host [args...]`，退出码映射为状态枚举，
// stdout 的前 1024 字节作为参赛方可见消息，stderr 作为运维消息。
type ProcessChecker struct {
	task models.Task
}

func NewProcessChecker(task models.Task) *ProcessChecker {
	return &ProcessChecker{task: task}
}

func (p *ProcessChecker) Check(ctx context.Context, host string) models.Verdict {
	return p.run(ctx, models.ActionCheck, host)
}

func (p *ProcessChecker) Put(ctx context.Context, host string, flag *models.Flag) models.Verdict {
	v := p.run(ctx, models.ActionPut, host,
		flag.PrivateData, flag.Token, strconv.Itoa(int(flag.Place)))
	if !v.OK() {
		return v
	}
	// 能力标签 returns-id：stdout 即取回用的新辅助数据；
	// 否则沿用布设前生成的标识
	if p.task.CheckerReturnsFlagID {
		if out := strings.TrimSpace(v.PublicMessage); out != "" {
			flag.PrivateData = out
		}
	}
	if p.task.CheckerProvidesPublicData {
		flag.PublicData = v.PublicMessage
	}
	return v
}

func (p *ProcessChecker) Get(ctx context.Context, host string, flag models.Flag) models.Verdict {
	return p.run(ctx, models.ActionGet, host,
		flag.PrivateData, flag.Token, strconv.Itoa(int(flag.Place)))
}

// run 以一次性子进程执行探测。软超时先发 SIGTERM，宽限期内仍未退出
// 则强杀并按 DOWN("Timeout") 上报。调用过程中的任何异常都折算成
// CHECK_FAILED 结论，绝不向上抛出。
func (p *ProcessChecker) run(_ context.Context, action models.Action, host string, args ...string) models.Verdict {
	argv := append([]string{string(action), host}, args...)
	command := p.task.Checker + " " + strings.Join(argv, " ")

	cmd := exec.Command(p.task.Checker, argv...)
	cmd.Env = p.environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return models.NewVerdict(action, models.StatusCheckFailed,
			"Check failed", "start checker: "+err.Error(), command)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := p.task.Timeout()
	var waitErr error
	select {
	case waitErr = <-done:
	case <-time.After(timeout):
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(killGrace):
			_ = cmd.Process.Kill()
			<-done
		}
		return models.NewVerdict(action, models.StatusDown,
			"Timeout", fmt.Sprintf("checker timed out after %s", timeout), command)
	}

	public := truncate(stdout.Bytes())
	private := truncate(stderr.Bytes())

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return models.NewVerdict(action, models.StatusCheckFailed,
				"Check failed", "wait checker: "+waitErr.Error(), command)
		}
		exitCode = exitErr.ExitCode()
	}

	status := models.StatusFromExitCode(exitCode)
	if status == models.StatusCheckFailed {
		// 未映射的退出码：面向参赛方只给通用措辞，原始输出留给运维
		return models.NewVerdict(action, status, "Check failed",
			fmt.Sprintf("exit code %d; stdout: %s; stderr: %s", exitCode, public, private),
			command)
	}
	return models.NewVerdict(action, status, public, private, command)
}

// environ 在继承环境的基础上把检查器自带的工具目录插到 PATH 前面
func (p *ProcessChecker) environ() []string {
	env := os.Environ()
	if p.task.CheckerEnvPath == "" {
		return env
	}
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + p.task.CheckerEnvPath + ":" + strings.TrimPrefix(kv, "PATH=")
			return env
		}
	}
	return append(env, "PATH="+p.task.CheckerEnvPath)
}

func truncate(b []byte) string {
	if len(b) > maxMessageBytes {
		b = b[:maxMessageBytes]
	}
	return strings.TrimSpace(string(b))
}
