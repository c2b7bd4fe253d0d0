package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/algoarena/live-session/internal/models"
	baserepo "github.com/algoarena/live-session/internal/repository"
	"github.com/algoarena/live-session/pkg/logger"
)

const gameIndexKey = "arena:games"

type redisGameLiveRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisGameLiveRepository(cli *redis.Client, l logger.Logger) baserepo.GameLiveRepository {
	return &redisGameLiveRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisGameLiveRepository) Save(ctx context.Context, game *models.GameState) error {
	key := r.gameKey(game.ID)

	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}

	pipe := r.cli.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, gameIndexKey, game.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisGameLiveRepository.Save: %v", err)
		return err
	}

	return nil
}

func (r *redisGameLiveRepository) Get(ctx context.Context, gameID string) (*models.GameState, error) {
	data, err := r.cli.Get(ctx, r.gameKey(gameID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, baserepo.ErrNotFound
		}
		r.l.Errorf(ctx, "redisGameLiveRepository.Get: %v", err)
		return nil, err
	}

	var game models.GameState
	if err := json.Unmarshal(data, &game); err != nil {
		r.l.Errorf(ctx, "redisGameLiveRepository.Get: %v", err)
		return nil, err
	}

	return &game, nil
}

func (r *redisGameLiveRepository) Delete(ctx context.Context, gameID string) error {
	pipe := r.cli.Pipeline()
	pipe.Del(ctx, r.gameKey(gameID))
	pipe.SRem(ctx, gameIndexKey, gameID)

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisGameLiveRepository.Delete: %v", err)
		return err
	}

	return nil
}

func (r *redisGameLiveRepository) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := r.cli.SMembers(ctx, gameIndexKey).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisGameLiveRepository.ListIDs: %v", err)
		return nil, err
	}
	return ids, nil
}

func (r *redisGameLiveRepository) gameKey(gameID string) string {
	return fmt.Sprintf("arena:game:%s", gameID)
}
