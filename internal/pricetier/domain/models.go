package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Owner identifies whose tier set is being read or replaced.
type Owner interface {
	isOwner()
	String() string
}

type VariantOwner struct {
	VariantID snowflake.ID
}

func (VariantOwner) isOwner() {}

func (o VariantOwner) String() string { return "variant:" + o.VariantID.String() }

type KeycardOwner struct {
	DesignID         snowflake.ID
	LockTechnologyID snowflake.ID
}

func (KeycardOwner) isOwner() {}

func (o KeycardOwner) String() string {
	return "keycard:" + o.DesignID.String() + ":" + o.LockTechnologyID.String()
}

// Tier is one normalized breakpoint. MaxQuantity is nil for the open-ended last tier.
type Tier struct {
	ID          snowflake.ID `json:"-"`
	MinQuantity int64        `json:"min_quantity"`
	MaxQuantity *int64       `json:"max_quantity,omitempty"`
	UnitAmount  int64        `json:"unit_amount"`
	Currency    string       `json:"currency"`
}

func (t Tier) Contains(quantity int64) bool {
	if quantity < t.MinQuantity {
		return false
	}
	return t.MaxQuantity == nil || quantity <= *t.MaxQuantity
}

type VariantPriceTier struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	VariantID  snowflake.ID `gorm:"not null;index"`
	MinQty     int64        `gorm:"column:min_qty;not null"`
	MaxQty     *int64       `gorm:"column:max_qty"`
	UnitAmount int64        `gorm:"not null"`
	Currency   string       `gorm:"type:text;not null"`
	Active     bool         `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null"`
	UpdatedAt  time.Time    `gorm:"not null"`
}

func (VariantPriceTier) TableName() string { return "variant_price_tiers" }

type KeycardPriceTier struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	DesignID         snowflake.ID `gorm:"not null"`
	LockTechnologyID snowflake.ID `gorm:"not null"`
	MinBoxes         int64        `gorm:"column:min_boxes;not null"`
	MaxBoxes         *int64       `gorm:"column:max_boxes"`
	PricePerBox      int64        `gorm:"column:price_per_box;not null"`
	Currency         string       `gorm:"type:text;not null"`
	Active           bool         `gorm:"not null"`
	CreatedAt        time.Time    `gorm:"not null"`
	UpdatedAt        time.Time    `gorm:"not null"`
}

func (KeycardPriceTier) TableName() string { return "keycard_price_tiers" }
