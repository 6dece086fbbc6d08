package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertProduct(ctx context.Context, db *gorm.DB, product *Product) error
	UpdateProduct(ctx context.Context, db *gorm.DB, product *Product) error
	FindProduct(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)

	InsertVariant(ctx context.Context, db *gorm.DB, variant *Variant) error
	UpdateVariant(ctx context.Context, db *gorm.DB, variant *Variant) error
	FindVariant(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Variant, error)
	ListVariantsByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]Variant, error)

	InsertKeycardDesign(ctx context.Context, db *gorm.DB, design *KeycardDesign) error
	FindKeycardDesign(ctx context.Context, db *gorm.DB, id snowflake.ID) (*KeycardDesign, error)

	InsertLockTechnology(ctx context.Context, db *gorm.DB, tech *LockTechnology) error
	FindLockTechnology(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LockTechnology, error)
}
