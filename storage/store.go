package storage

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 面向提交方的四类校验失败，调用侧用 errors.Is 区分
var (
	ErrFlagNotFound  = errors.New("flag not found")
	ErrFlagTooOld    = errors.New("flag is too old")
	ErrOwnFlag       = errors.New("flag is your own")
	ErrAlreadyStolen = errors.New("flag already stolen")

	ErrTeamNotFound = errors.New("team not found")
	ErrTaskNotFound = errors.New("task not found")
)

// Store 持有持久层与缓存层句柄，在进程启动时构造一次，
// 显式传入各组件，生命周期与进程一致。
type Store struct {
	db  *gorm.DB
	rdb *redis.Client
}

func New(db *gorm.DB, rdb *redis.Client) *Store {
	return &Store{db: db, rdb: rdb}
}

// DB 暴露给少数需要裸事务的调用方（如回合初始化）
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Redis 暴露缓存句柄（如发布订阅）
func (s *Store) Redis() *redis.Client {
	return s.rdb
}
