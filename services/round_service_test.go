package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ADCTF/checker"
	"ADCTF/dto"
	"ADCTF/models"
	"ADCTF/storage"
)

func newRoundService(t *testing.T, st *storage.Store) *RoundService {
	t.Helper()
	// 不启动 worker：扇出只要求任务入队
	pool := checker.NewPool(st, checker.NewRegistry(), 0, 64)
	return NewRoundService(st, pool)
}

func TestStartGameInitializesRoundZero(t *testing.T) {
	cfg := runningConfig(0)
	cfg.GameRunning = false
	st := newServiceStore(t, cfg)
	attacker, _, task := seedAttackFixture(t, st)
	ctx := context.Background()

	svc := newRoundService(t, st)
	require.NoError(t, svc.StartGame(ctx))

	loaded, err := st.Config(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.GameRunning)

	score, err := st.TaskScore(ctx, attacker.ID, task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, task.DefaultScore, score)

	// 已开赛后再触发是无操作
	require.NoError(t, svc.StartGame(ctx))
}

func TestAdvanceRoundCarriesScores(t *testing.T) {
	st := newServiceStore(t, runningConfig(0))
	attacker, _, task := seedAttackFixture(t, st)
	ctx := context.Background()
	require.NoError(t, st.InitRound(ctx, 0))

	svc := newRoundService(t, st)
	require.NoError(t, svc.AdvanceRound(ctx))

	round, err := st.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, round)

	score, err := st.TaskScore(ctx, attacker.ID, task.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, task.DefaultScore, score)
}

func TestAdvanceRoundNoopWhenStopped(t *testing.T) {
	cfg := runningConfig(0)
	cfg.GameRunning = false
	st := newServiceStore(t, cfg)
	seedAttackFixture(t, st)
	ctx := context.Background()

	svc := newRoundService(t, st)
	require.NoError(t, svc.AdvanceRound(ctx))

	round, err := st.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, round)
}

func TestPublishScoreboardSnapshot(t *testing.T) {
	st := newServiceStore(t, runningConfig(0))
	attacker, victim, task := seedAttackFixture(t, st)
	ctx := context.Background()
	require.NoError(t, st.InitRound(ctx, 0))

	svc := newRoundService(t, st)
	require.NoError(t, svc.PublishScoreboard(ctx, 0))

	blob, err := st.Scoreboard(ctx)
	require.NoError(t, err)

	var board dto.Scoreboard
	require.NoError(t, json.Unmarshal(blob, &board))
	assert.Equal(t, 0, board.Round)
	require.Len(t, board.Rows, 2)
	for _, row := range board.Rows {
		assert.Contains(t, []uint32{attacker.ID, victim.ID}, row.TeamID)
		assert.Equal(t, task.DefaultScore, row.TotalScore)
		require.Len(t, row.Tasks, 1)
		assert.Equal(t, task.ID, row.Tasks[0].TaskID)
	}
}

// recordingChecker 统计各动作调用次数的进程内检查器，全部返回 UP
type recordingChecker struct {
	mu   sync.Mutex
	puts int
	gets int
}

func (c *recordingChecker) Check(ctx context.Context, host string) models.Verdict {
	return models.NewVerdict(models.ActionCheck, models.StatusUp, "OK", "", "")
}

func (c *recordingChecker) Put(ctx context.Context, host string, flag *models.Flag) models.Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	return models.NewVerdict(models.ActionPut, models.StatusUp, "OK", "", "")
}

func (c *recordingChecker) Get(ctx context.Context, host string, flag models.Flag) models.Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return models.NewVerdict(models.ActionGet, models.StatusUp, "OK", "", "")
}

func (c *recordingChecker) counts() (puts, gets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts, c.gets
}

// blitz 模式下回合推进只签发，取回验证由服务自己的调度触发
func TestBlitzSplitsIssueAndVerify(t *testing.T) {
	cfg := runningConfig(0)
	cfg.GameMode = models.GameModeBlitz
	st := newServiceStore(t, cfg)
	ctx := context.Background()

	team := models.Team{TeamName: "Alpha", Host: "10.0.0.1", Token: "a", Active: true}
	require.NoError(t, st.DB().Create(&team).Error)
	task := models.Task{
		TaskName:     "blitz-web",
		Checker:      "rec",
		CheckerType:  models.CheckerTypeEmbedded,
		Gets:         1,
		Puts:         1,
		Places:       1,
		CheckPeriod:  5,
		DefaultScore: 2500,
		Active:       true,
	}
	require.NoError(t, st.DB().Create(&task).Error)
	require.NoError(t, st.InitRound(ctx, 0))

	rec := &recordingChecker{}
	reg := checker.NewRegistry()
	reg.RegisterEmbedded("rec", rec)
	pool := checker.NewPool(st, reg, 2, 16)
	pool.Start()
	t.Cleanup(pool.Stop)

	svc := NewRoundService(st, pool)
	require.NoError(t, svc.AdvanceRound(ctx))

	// 推进回合只布设新 Flag，不做取回
	require.Eventually(t, func() bool {
		puts, _ := rec.counts()
		return puts == 1
	}, 2*time.Second, 10*time.Millisecond)
	_, gets := rec.counts()
	assert.Zero(t, gets)

	require.NoError(t, svc.FanOutTask(ctx, task.ID))

	// 独立调度只做取回，不再追加签发
	require.Eventually(t, func() bool {
		_, gets := rec.counts()
		return gets == 1
	}, 2*time.Second, 10*time.Millisecond)
	puts, _ := rec.counts()
	assert.Equal(t, 1, puts)

	var count int64
	require.NoError(t, st.DB().Model(&models.Flag{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestFanOutTaskQueuesJobs(t *testing.T) {
	st := newServiceStore(t, runningConfig(2))
	_, _, task := seedAttackFixture(t, st)
	ctx := context.Background()

	pool := checker.NewPool(st, checker.NewRegistry(), 0, 64)
	svc := NewRoundService(st, pool)
	require.NoError(t, svc.FanOutTask(ctx, task.ID))

	// 两支队伍、一个服务：恰好两条管线任务入队，都不落入过载路径
	var rows []models.TeamTaskStatus
	require.NoError(t, st.DB().Find(&rows).Error)
	assert.Empty(t, rows)
}
