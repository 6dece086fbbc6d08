package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Product struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey"`
	Code        string            `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name        string            `json:"name" gorm:"type:text;not null"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	Active      bool              `json:"active" gorm:"not null;default:true"`
	ExternalID  *string           `json:"external_id,omitempty" gorm:"type:text"`
	SyncStatus  string            `json:"sync_status" gorm:"type:text;not null"`
	SyncError   *string           `json:"sync_error,omitempty" gorm:"type:text"`
	SyncedAt    *time.Time        `json:"synced_at,omitempty"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// Variant is a sellable price row of a product. Its base amount is mirrored to the processor.
type Variant struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	ProductID       snowflake.ID `json:"product_id" gorm:"not null;index"`
	SKU             string       `json:"sku" gorm:"column:sku;type:text;not null;uniqueIndex"`
	Name            string       `json:"name" gorm:"type:text;not null"`
	UnitAmount      int64        `json:"unit_amount" gorm:"not null"`
	Currency        string       `json:"currency" gorm:"type:text;not null"`
	Active          bool         `json:"active" gorm:"not null;default:true"`
	ExternalPriceID *string      `json:"external_price_id,omitempty" gorm:"type:text"`
	SyncStatus      string       `json:"sync_status" gorm:"type:text;not null"`
	SyncError       *string      `json:"sync_error,omitempty" gorm:"type:text"`
	SyncedAt        *time.Time   `json:"synced_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null"`
}

func (Variant) TableName() string { return "product_variants" }

type KeycardDesign struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (KeycardDesign) TableName() string { return "keycard_designs" }

type LockTechnology struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (LockTechnology) TableName() string { return "lock_technologies" }
