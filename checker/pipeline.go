package checker

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ADCTF/models"
	"ADCTF/storage"
	"ADCTF/utils"
)

// Mode 决定管线在 check 通过后执行哪些动作。blitz 模式把签发
// （put）和验证（get）拆到不同节奏的调度上，classic 模式一律全量。
type Mode int

const (
	ModeFull Mode = iota
	ModePut
	ModeGet
)

// RunPipeline 执行一个 (team, task, round) 的探测状态机：
//
//	check 不通过 → 直接以 check 结论收尾，put/get 全部跳过；
//	check 通过   → 按 mode 执行：put 并行布设新 Flag，get 串行取回
//	               历史 Flag，get 链一旦失败立即短路。
//
// 聚合按固定动作优先级（check > put > get）取第一个非 UP 结论，
// 全部 UP 时取最高优先级的 UP 结论，并写入状态行。
// 返回值仅供测试与日志；持久化失败时返回错误，由调用方的错误
// 边界兜底。
func RunPipeline(ctx context.Context, st *storage.Store, reg *Registry, team models.Team, task models.Task, round int, mode Mode) (models.Verdict, error) {
	chk, err := reg.ForTask(task)
	if err != nil {
		return models.Verdict{}, err
	}
	cfg, err := st.Config(ctx)
	if err != nil {
		return models.Verdict{}, err
	}

	verdicts := make([]models.Verdict, 0, 1+task.Puts+task.Gets)
	check := chk.Check(ctx, team.Host)
	verdicts = append(verdicts, check)

	if check.OK() {
		if mode == ModeFull || mode == ModePut {
			putVerdicts, err := runPuts(ctx, st, chk, team, task, round)
			if err != nil {
				return models.Verdict{}, err
			}
			verdicts = append(verdicts, putVerdicts...)
		}

		if mode == ModeFull || mode == ModeGet {
			getVerdicts, err := runGets(ctx, st, chk, team, task, round, cfg.FlagLifetime)
			if err != nil {
				return models.Verdict{}, err
			}
			verdicts = append(verdicts, getVerdicts...)
		}
	}

	final := Aggregate(verdicts)
	if err := st.ApplyVerdict(ctx, team.ID, task.ID, round, final); err != nil {
		return models.Verdict{}, err
	}
	return final, nil
}

// runPuts 并行布设 task.Puts 条新 Flag。每条 Flag 绑定当前回合、
// 均匀随机槽位和一个预生成标识；只有探测 UP 的 Flag 才交给
// Flag 存储签发，从而在任何取回探测或回合边界看到它之前就绪。
func runPuts(ctx context.Context, st *storage.Store, chk Checker, team models.Team, task models.Task, round int) ([]models.Verdict, error) {
	verdicts := make([]models.Verdict, task.Puts)
	var eg errgroup.Group
	for i := uint(0); i < task.Puts; i++ {
		i := i
		eg.Go(func() error {
			flag := st.GenerateFlag(task, team.ID, round)
			flag.Place = utils.RandomPlace(task.Places)
			flag.PrivateData = uuid.New().String()

			v := chk.Put(ctx, team.Host, &flag)
			verdicts[i] = v
			if !v.OK() {
				return nil
			}
			return st.IssueFlag(ctx, &flag)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

// runGets 串行执行 task.Gets 次取回探测，每次在最近 flag_lifetime 个
// 合法回合里均匀取一个（去重、下限 1）。该回合没有已签发的 Flag 算
// 良性未命中：以解释性消息按 UP 记录，而不是取回失败。链上一旦出现
// 失败的 get，后续 get 不再执行。
func runGets(ctx context.Context, st *storage.Store, chk Checker, team models.Team, task models.Task, round, lifetime int) ([]models.Verdict, error) {
	candidates := getRoundCandidates(round, lifetime)
	if len(candidates) == 0 {
		return nil, nil
	}

	var verdicts []models.Verdict
	for i := uint(0); i < task.Gets; i++ {
		r := candidates[rand.Intn(len(candidates))]
		flag, err := st.RandomFlag(ctx, team.ID, task.ID, r, round)
		if err != nil {
			return nil, err
		}

		var v models.Verdict
		if flag == nil {
			v = models.NewVerdict(models.ActionGet, models.StatusUp,
				fmt.Sprintf("No flag from round %d", r), "", "")
		} else {
			v = chk.Get(ctx, team.Host, *flag)
		}
		verdicts = append(verdicts, v)
		if !v.OK() {
			break
		}
	}
	return verdicts, nil
}

// getRoundCandidates 最近 lifetime 个可取回的回合号，去重且不小于 1
func getRoundCandidates(round, lifetime int) []int {
	if lifetime < 1 {
		lifetime = 1
	}
	var rounds []int
	for i := 0; i < lifetime; i++ {
		r := round - i
		if r < 1 {
			break
		}
		rounds = append(rounds, r)
	}
	return rounds
}

// Aggregate 按插入顺序（即动作优先级 check、put、get）取第一个非 UP
// 结论；全部 UP 时返回第一个，即 check 的结论。
func Aggregate(verdicts []models.Verdict) models.Verdict {
	if len(verdicts) == 0 {
		return models.NewVerdict(models.ActionCheck, models.StatusCheckFailed,
			"Check failed", "no verdicts produced", "")
	}
	for _, v := range verdicts {
		if !v.OK() {
			return v
		}
	}
	return verdicts[0]
}
