package checker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ADCTF/models"
	"ADCTF/storage"
)

func newPipelineStore(t *testing.T) *storage.Store {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Team{},
		&models.Task{},
		&models.Flag{},
		&models.StolenFlag{},
		&models.TeamTaskStatus{},
		&models.GameConfig{},
		&models.Schedule{},
	))

	st := storage.New(db, rdb)
	cfg := models.GameConfig{
		FlagLifetime: 2,
		RoundTime:    60,
		Hardness:     3000,
		GameMode:     models.GameModeClassic,
		StartTime:    time.Now().Add(-time.Hour),
		GameRunning:  true,
	}
	require.NoError(t, st.DB().Create(&cfg).Error)
	return st
}

func seedPipelineFixture(t *testing.T, st *storage.Store, gets, puts uint) (models.Team, models.Task) {
	t.Helper()
	team := models.Team{TeamName: "Alpha", Host: "10.0.0.1", Token: "a", Active: true}
	require.NoError(t, st.DB().Create(&team).Error)
	task := models.Task{
		TaskName:     "web",
		Checker:      "fake",
		CheckerType:  models.CheckerTypeEmbedded,
		Gets:         gets,
		Puts:         puts,
		Places:       1,
		DefaultScore: 2500,
		Active:       true,
	}
	require.NoError(t, st.DB().Create(&task).Error)
	return team, task
}

// fakeChecker 记录调用序列的进程内检查器，结论按队列弹出
type fakeChecker struct {
	mu     sync.Mutex
	checks int
	puts   int
	gets   int

	checkStatus models.Status
	putStatus   models.Status
	getStatuses []models.Status
}

func (f *fakeChecker) Check(ctx context.Context, host string) models.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return models.NewVerdict(models.ActionCheck, f.checkStatus, "check msg", "", "")
}

func (f *fakeChecker) Put(ctx context.Context, host string, flag *models.Flag) models.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	return models.NewVerdict(models.ActionPut, f.putStatus, "put msg", "", "")
}

func (f *fakeChecker) Get(ctx context.Context, host string, flag models.Flag) models.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	status := models.StatusUp
	if len(f.getStatuses) > 0 {
		status = f.getStatuses[0]
		f.getStatuses = f.getStatuses[1:]
	}
	return models.NewVerdict(models.ActionGet, status, "get msg", "", "")
}

func newFakeRegistry(f *fakeChecker) *Registry {
	reg := NewRegistry()
	reg.RegisterEmbedded("fake", f)
	return reg
}

func TestPipelineFailedCheckSkipsRest(t *testing.T) {
	st := newPipelineStore(t)
	team, task := seedPipelineFixture(t, st, 2, 2)
	fake := &fakeChecker{checkStatus: models.StatusMumble}

	v, err := RunPipeline(context.Background(), st, newFakeRegistry(fake), team, task, 1, ModeFull)
	require.NoError(t, err)

	assert.Equal(t, models.StatusMumble, v.Status)
	assert.Equal(t, models.ActionCheck, v.Action)
	assert.Equal(t, 1, fake.checks)
	assert.Zero(t, fake.puts)
	assert.Zero(t, fake.gets)

	var row models.TeamTaskStatus
	require.NoError(t, st.DB().Where("team_id = ? AND task_id = ? AND round = ?", team.ID, task.ID, 1).
		First(&row).Error)
	assert.Equal(t, models.StatusMumble, row.Status)
}

func TestPipelinePutsIssueFlags(t *testing.T) {
	st := newPipelineStore(t)
	team, task := seedPipelineFixture(t, st, 0, 3)
	fake := &fakeChecker{checkStatus: models.StatusUp, putStatus: models.StatusUp}

	v, err := RunPipeline(context.Background(), st, newFakeRegistry(fake), team, task, 1, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUp, v.Status)
	assert.Equal(t, 3, fake.puts)

	var flags []models.Flag
	require.NoError(t, st.DB().Where("team_id = ? AND task_id = ? AND round = ?", team.ID, task.ID, 1).
		Find(&flags).Error)
	require.Len(t, flags, 3)
	for _, f := range flags {
		assert.NotEmpty(t, f.PrivateData)
		assert.Equal(t, uint(1), f.Place)
	}

	got, err := st.RandomFlag(context.Background(), team.ID, task.ID, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, team.ID, got.TeamID)
}

func TestPipelineFailedPutNotIssued(t *testing.T) {
	st := newPipelineStore(t)
	team, task := seedPipelineFixture(t, st, 0, 1)
	fake := &fakeChecker{checkStatus: models.StatusUp, putStatus: models.StatusCorrupt}

	v, err := RunPipeline(context.Background(), st, newFakeRegistry(fake), team, task, 1, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCorrupt, v.Status)
	assert.Equal(t, models.ActionPut, v.Action)

	var count int64
	require.NoError(t, st.DB().Model(&models.Flag{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPipelineGetChainShortCircuits(t *testing.T) {
	st := newPipelineStore(t)
	team, task := seedPipelineFixture(t, st, 3, 0)

	// 先放好一条可取回的 Flag，让每次 get 都有目标
	flag := st.GenerateFlag(task, team.ID, 1)
	flag.PrivateData = "fid"
	require.NoError(t, st.IssueFlag(context.Background(), &flag))

	fake := &fakeChecker{
		checkStatus: models.StatusUp,
		getStatuses: []models.Status{models.StatusUp, models.StatusCorrupt, models.StatusUp},
	}
	v, err := RunPipeline(context.Background(), st, newFakeRegistry(fake), team, task, 1, ModeFull)
	require.NoError(t, err)

	assert.Equal(t, 2, fake.gets)
	assert.Equal(t, models.StatusCorrupt, v.Status)
	assert.Equal(t, models.ActionGet, v.Action)
}

func TestPipelineBenignMiss(t *testing.T) {
	st := newPipelineStore(t)
	team, task := seedPipelineFixture(t, st, 1, 0)
	fake := &fakeChecker{checkStatus: models.StatusUp}

	v, err := RunPipeline(context.Background(), st, newFakeRegistry(fake), team, task, 1, ModeFull)
	require.NoError(t, err)

	// 无 Flag 可取不算服务故障，聚合结论回到 check 的 UP
	assert.Equal(t, models.StatusUp, v.Status)
	assert.Equal(t, models.ActionCheck, v.Action)
	assert.Zero(t, fake.gets)
}

func TestPipelinePutModeSkipsGets(t *testing.T) {
	st := newPipelineStore(t)
	team, task := seedPipelineFixture(t, st, 2, 2)

	// 先放一条可取回的 Flag，证明跳过 get 不是因为无目标
	flag := st.GenerateFlag(task, team.ID, 1)
	flag.PrivateData = "fid"
	require.NoError(t, st.IssueFlag(context.Background(), &flag))

	fake := &fakeChecker{checkStatus: models.StatusUp, putStatus: models.StatusUp}
	v, err := RunPipeline(context.Background(), st, newFakeRegistry(fake), team, task, 1, ModePut)
	require.NoError(t, err)

	assert.Equal(t, models.StatusUp, v.Status)
	assert.Equal(t, 1, fake.checks)
	assert.Equal(t, 2, fake.puts)
	assert.Zero(t, fake.gets)
}

func TestPipelineGetModeSkipsPuts(t *testing.T) {
	st := newPipelineStore(t)
	team, task := seedPipelineFixture(t, st, 2, 2)

	flag := st.GenerateFlag(task, team.ID, 1)
	flag.PrivateData = "fid"
	require.NoError(t, st.IssueFlag(context.Background(), &flag))

	fake := &fakeChecker{checkStatus: models.StatusUp}
	v, err := RunPipeline(context.Background(), st, newFakeRegistry(fake), team, task, 1, ModeGet)
	require.NoError(t, err)

	assert.Equal(t, models.StatusUp, v.Status)
	assert.Zero(t, fake.puts)
	assert.Equal(t, 2, fake.gets)

	// get 模式不得签发新 Flag
	var count int64
	require.NoError(t, st.DB().Model(&models.Flag{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAggregatePriority(t *testing.T) {
	up := models.NewVerdict(models.ActionCheck, models.StatusUp, "OK", "", "")
	putDown := models.NewVerdict(models.ActionPut, models.StatusDown, "put down", "", "")
	getMumble := models.NewVerdict(models.ActionGet, models.StatusMumble, "get mumble", "", "")

	v := Aggregate([]models.Verdict{up, putDown, getMumble})
	assert.Equal(t, models.StatusDown, v.Status)
	assert.Equal(t, models.ActionPut, v.Action)

	v = Aggregate([]models.Verdict{up})
	assert.Equal(t, models.StatusUp, v.Status)

	v = Aggregate(nil)
	assert.Equal(t, models.StatusCheckFailed, v.Status)
}

func TestPoolErrorBoundary(t *testing.T) {
	st := newPipelineStore(t)
	team, task := seedPipelineFixture(t, st, 0, 0)

	// 注册表里没有名为 fake 的进程内检查器，管线必然失败
	pool := NewPool(st, NewRegistry(), 1, 4)
	pool.Start()
	pool.Submit(Job{Team: team, Task: task, Round: 1})
	pool.Stop()

	var row models.TeamTaskStatus
	require.NoError(t, st.DB().Where("team_id = ? AND task_id = ? AND round = ?", team.ID, task.ID, 1).
		First(&row).Error)
	assert.Equal(t, models.StatusCheckFailed, row.Status)
	assert.Equal(t, "Check failed", row.PublicMessage)
}

func TestPoolQueueOverflow(t *testing.T) {
	st := newPipelineStore(t)
	team, task := seedPipelineFixture(t, st, 0, 0)

	// 无 worker、零容量队列：提交必然走过载路径
	pool := NewPool(st, NewRegistry(), 0, 0)
	pool.Start()
	pool.Submit(Job{Team: team, Task: task, Round: 1})
	pool.Stop()

	var row models.TeamTaskStatus
	require.NoError(t, st.DB().Where("team_id = ? AND task_id = ? AND round = ?", team.ID, task.ID, 1).
		First(&row).Error)
	assert.Equal(t, models.StatusCheckFailed, row.Status)
	assert.Contains(t, row.PrivateMessage, "overloaded")
}

func TestGetRoundCandidates(t *testing.T) {
	assert.Equal(t, []int{5, 4, 3}, getRoundCandidates(5, 3))
	assert.Equal(t, []int{2, 1}, getRoundCandidates(2, 5))
	assert.Equal(t, []int{1}, getRoundCandidates(1, 0))
	assert.Nil(t, getRoundCandidates(0, 3))
}
