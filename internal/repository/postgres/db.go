// Package postgres holds the durable side of the session engine: gorm record
// types plus the snapshot contributors that upsert live state into them.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/algoarena/live-session/config"
	"github.com/algoarena/live-session/pkg/logger"
)

func Open(cfg config.PostgresConfig, l logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.AutoMigrate {
		err = db.AutoMigrate(
			&RoomRecord{},
			&RoomPlayerRecord{},
			&RoomKickRecord{},
			&RoomHostChangeRecord{},
			&GameRecord{},
			&GamePlayerRecord{},
			&BanPickRecord{},
			&UserRecord{},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		l.Info(context.Background(), "database migrations applied")
	}

	return db, nil
}
