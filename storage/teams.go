package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ADCTF/models"
)

const rosterCacheTTL = 10 * time.Minute

// populateTeams 把在役队伍列表和逐令牌查找项回填到缓存管道里
func (s *Store) populateTeams(ctx context.Context, pipe redis.Pipeliner) error {
	var teams []models.Team
	if err := s.db.Where("active = ?", true).Order("id").Find(&teams).Error; err != nil {
		return fmt.Errorf("load teams: %w", err)
	}
	blob, err := json.Marshal(teams)
	if err != nil {
		return err
	}
	pipe.Set(ctx, keyTeams, blob, rosterCacheTTL)
	for _, t := range teams {
		tb, err := json.Marshal(t)
		if err != nil {
			return err
		}
		pipe.Set(ctx, keyTeamByToken(t.Token), tb, rosterCacheTTL)
	}
	return nil
}

// Teams 返回所有在役队伍（缓存旁路）
func (s *Store) Teams(ctx context.Context) ([]models.Team, error) {
	var raw string
	err := s.cacheAside(ctx, keyTeamsCached, rosterCacheTTL,
		func(pipe redis.Pipeliner) error {
			return s.populateTeams(ctx, pipe)
		},
		func(tx *redis.Tx) error {
			v, err := tx.Get(ctx, keyTeams).Result()
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

	var teams []models.Team
	if err := json.Unmarshal([]byte(raw), &teams); err != nil {
		return nil, fmt.Errorf("decode cached teams: %w", err)
	}
	return teams, nil
}

// TeamByToken 按身份令牌解析队伍，未命中返回 ErrTeamNotFound
func (s *Store) TeamByToken(ctx context.Context, token string) (models.Team, error) {
	var raw string
	err := s.cacheAside(ctx, keyTeamsCached, rosterCacheTTL,
		func(pipe redis.Pipeliner) error {
			return s.populateTeams(ctx, pipe)
		},
		func(tx *redis.Tx) error {
			v, err := tx.Get(ctx, keyTeamByToken(token)).Result()
			if err != nil {
				return err
			}
			raw = v
			return nil
		},
	)
	if err == redis.Nil {
		return models.Team{}, ErrTeamNotFound
	}
	if err != nil {
		return models.Team{}, err
	}

	var team models.Team
	if err := json.Unmarshal([]byte(raw), &team); err != nil {
		return models.Team{}, fmt.Errorf("decode cached team: %w", err)
	}
	return team, nil
}
