package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	SetOrderNumber(ctx context.Context, db *gorm.DB, id int64, number string) error
	InsertLineItem(ctx context.Context, db *gorm.DB, item *LineItem) error

	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Order, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id int64) (*Order, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Order, error)
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Order, error)
	FindByPaymentIntentID(ctx context.Context, db *gorm.DB, paymentIntentID string) (*Order, error)
	ListLineItems(ctx context.Context, db *gorm.DB, orderID int64) ([]LineItem, error)

	// AttachSession binds sessionID unless a different session is already bound.
	AttachSession(ctx context.Context, db *gorm.DB, id int64, sessionID string, at time.Time) (bool, error)
	UpdateDetails(ctx context.Context, db *gorm.DB, order *Order) error
	// Patch writes only the given columns.
	Patch(ctx context.Context, db *gorm.DB, id int64, fields map[string]any) error
}
