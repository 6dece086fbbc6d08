package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	DeactivateActive(ctx context.Context, db *gorm.DB, owner Owner, at time.Time) error
	Insert(ctx context.Context, db *gorm.DB, owner Owner, id snowflake.ID, tier Tier, at time.Time) error
	ListActive(ctx context.Context, db *gorm.DB, owner Owner) ([]Tier, error)
}
