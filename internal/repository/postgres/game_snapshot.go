package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/algoarena/live-session/internal/models"
	"github.com/algoarena/live-session/internal/snapshot"
	"github.com/algoarena/live-session/pkg/logger"
)

type gameContributor struct {
	db *gorm.DB
	l  logger.Logger
}

func NewGameContributor(db *gorm.DB, l logger.Logger) snapshot.GameContributor {
	return &gameContributor{db: db, l: l}
}

func (c *gameContributor) PersistGame(ctx context.Context, game *models.GameState) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := GameRecord{
			ID:              game.ID,
			RoomID:          game.RoomID,
			GameType:        game.GameType,
			Stage:           string(game.Stage),
			StageStartedAt:  game.StageStartedAt,
			StageDeadlineAt: game.StageDeadlineAt,
			CreatedAt:       game.CreatedAt,
			EndedAt:         game.EndedAt,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stage", "stage_started_at", "stage_deadline_at", "ended_at",
			}),
		}).Create(&rec).Error
		if err != nil {
			return fmt.Errorf("upsert game: %w", err)
		}

		for _, p := range game.Players {
			prec := GamePlayerRecord{
				GameID: game.ID,
				UserID: p.UserID,
				Score:  p.Score,
				Coins:  p.Coins,
				Items:  p.Items,
				Banned: p.Banned,
				Picked: p.Picked,
			}
			// The settled flag is excluded from the update set so replays of
			// earlier snapshots can never reopen a completed settlement.
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "game_id"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"score", "coins", "items", "banned", "picked",
				}),
			}).Create(&prec).Error
			if err != nil {
				return fmt.Errorf("upsert game player %s: %w", p.UserID, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if game.IsEnded() {
		return c.settle(ctx, game)
	}
	return nil
}

// settle folds each player's final score and coins into the user ledger
// exactly once per game. The settled flag on the game player row is the
// guard: the row is claimed and the ledger updated in one transaction, so a
// retried flush after a partial failure re-runs only the unclaimed players.
func (c *gameContributor) settle(ctx context.Context, game *models.GameState) error {
	for _, p := range game.Players {
		err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&GamePlayerRecord{}).
				Where("game_id = ? AND user_id = ? AND settled = ?", game.ID, p.UserID, false).
				Update("settled", true)
			if res.Error != nil {
				return fmt.Errorf("claim settlement: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return nil
			}

			urec := UserRecord{
				ID:    p.UserID,
				Score: p.Score,
				Coins: p.Coins,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"score": gorm.Expr("users.score + ?", p.Score),
					"coins": gorm.Expr("users.coins + ?", p.Coins),
				}),
			}).Create(&urec).Error
			if err != nil {
				return fmt.Errorf("apply ledger delta: %w", err)
			}

			var total UserRecord
			if err := tx.First(&total, "id = ?", p.UserID).Error; err != nil {
				return fmt.Errorf("read settled user: %w", err)
			}

			tier := models.TierForScore(total.Score)
			err = tx.Model(&UserRecord{}).
				Where("id = ?", p.UserID).
				Update("tier", string(tier)).Error
			if err != nil {
				return fmt.Errorf("update tier: %w", err)
			}

			c.l.Infof(ctx, "settled game %s for user %s: score=%d, total=%d, tier=%s",
				game.ID, p.UserID, p.Score, total.Score, tier)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type banPickContributor struct {
	db *gorm.DB
	l  logger.Logger
}

func NewBanPickContributor(db *gorm.DB, l logger.Logger) snapshot.BanPickContributor {
	return &banPickContributor{db: db, l: l}
}

func (c *banPickContributor) PersistBanPicks(ctx context.Context, game *models.GameState) error {
	if len(game.BanPicks) == 0 {
		return nil
	}

	recs := make([]BanPickRecord, 0, len(game.BanPicks))
	for _, bp := range game.BanPicks {
		recs = append(recs, BanPickRecord{
			GameID:      bp.GameID,
			UserID:      bp.UserID,
			Kind:        string(bp.Kind),
			AlgorithmID: bp.AlgorithmID,
			TakenAt:     bp.TakenAt,
		})
	}

	// Records are immutable once taken, so conflicts are silently skipped.
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&recs).Error
	if err != nil {
		return fmt.Errorf("insert ban/pick records: %w", err)
	}
	return nil
}
