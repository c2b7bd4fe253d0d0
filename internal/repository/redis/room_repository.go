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

const roomIndexKey = "arena:rooms"

type redisRoomLiveRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisRoomLiveRepository(cli *redis.Client, l logger.Logger) baserepo.RoomLiveRepository {
	return &redisRoomLiveRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisRoomLiveRepository) Save(ctx context.Context, room *models.RoomState) error {
	key := r.roomKey(room.ID)

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room state: %w", err)
	}

	// Pipeline keeps the value and the id index in step.
	pipe := r.cli.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, roomIndexKey, room.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisRoomLiveRepository.Save: %v", err)
		return err
	}

	return nil
}

func (r *redisRoomLiveRepository) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	data, err := r.cli.Get(ctx, r.roomKey(roomID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, baserepo.ErrNotFound
		}
		r.l.Errorf(ctx, "redisRoomLiveRepository.Get: %v", err)
		return nil, err
	}

	var room models.RoomState
	if err := json.Unmarshal(data, &room); err != nil {
		r.l.Errorf(ctx, "redisRoomLiveRepository.Get: %v", err)
		return nil, err
	}

	return &room, nil
}

func (r *redisRoomLiveRepository) Delete(ctx context.Context, roomID string) error {
	pipe := r.cli.Pipeline()
	pipe.Del(ctx, r.roomKey(roomID))
	pipe.SRem(ctx, roomIndexKey, roomID)

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisRoomLiveRepository.Delete: %v", err)
		return err
	}

	return nil
}

func (r *redisRoomLiveRepository) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := r.cli.SMembers(ctx, roomIndexKey).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisRoomLiveRepository.ListIDs: %v", err)
		return nil, err
	}
	return ids, nil
}

func (r *redisRoomLiveRepository) roomKey(roomID string) string {
	return fmt.Sprintf("arena:room:%s", roomID)
}
