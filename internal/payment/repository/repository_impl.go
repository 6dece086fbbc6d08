package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider string, externalEventID string) (*domain.ProcessorEvent, error) {
	var item domain.ProcessorEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, external_event_id, event_type, payload, order_id,
			received_at, processed_at
		 FROM processor_events
		 WHERE provider = ? AND external_event_id = ?
		 LIMIT 1`,
		provider,
		externalEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// InsertEvent reports false when the provider event id is already logged.
func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.ProcessorEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO processor_events (
			id, provider, external_event_id, event_type, payload, order_id,
			received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, external_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ExternalEventID,
		event.EventType,
		event.Payload,
		event.OrderID,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, orderID *int64, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE processor_events
		 SET processed_at = ?, order_id = ?
		 WHERE id = ?`,
		processedAt,
		orderID,
		id,
	).Error
}
