package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ADCTF/models"
)

// Tasks 返回所有在役服务（缓存旁路）
func (s *Store) Tasks(ctx context.Context) ([]models.Task, error) {
	var raw string
	err := s.cacheAside(ctx, keyTasksCached, rosterCacheTTL,
		func(pipe redis.Pipeliner) error {
			var tasks []models.Task
			if err := s.db.Where("active = ?", true).Order("id").Find(&tasks).Error; err != nil {
				return fmt.Errorf("load tasks: %w", err)
			}
			blob, err := json.Marshal(tasks)
			if err != nil {
				return err
			}
			pipe.Set(ctx, keyTasks, blob, rosterCacheTTL)
			return nil
		},
		func(tx *redis.Tx) error {
			v, err := tx.Get(ctx, keyTasks).Result()
			if err != nil {
				return err
			}
			raw = v
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("decode cached tasks: %w", err)
	}
	return tasks, nil
}

// TaskByID 在缓存的服务列表里查找
func (s *Store) TaskByID(ctx context.Context, id uint32) (models.Task, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return models.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, ErrTaskNotFound
}
