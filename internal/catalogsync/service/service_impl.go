package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/catalogsync/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	processordomain "github.com/smallbiznis/storefront/internal/processor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Clock       clock.Clock
	Gateway     processordomain.Gateway
	CatalogRepo catalogdomain.Repository
	Repo        domain.Repository
	Locker      domain.Locker       `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	gateway     processordomain.Gateway
	catalogRepo catalogdomain.Repository
	repo        domain.Repository
	locker      domain.Locker
	lockTTL     time.Duration
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) domain.Syncer {
	ttl := time.Duration(p.Cfg.SyncLockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("catalogsync.service"),
		clock:       p.Clock,
		gateway:     p.Gateway,
		catalogRepo: p.CatalogRepo,
		repo:        p.Repo,
		locker:      p.Locker,
		lockTTL:     ttl,
		obsMetrics:  p.ObsMetrics,
	}
}

// maxSyncPasses bounds how often one trigger re-reads a row that was edited mid-call.
const maxSyncPasses = 2

func (s *Service) SyncProduct(ctx context.Context, id snowflake.ID) error {
	return s.run(ctx, domain.Target{Kind: domain.TargetProduct, ID: id}, s.syncProductOnce)
}

func (s *Service) SyncVariantPrice(ctx context.Context, id snowflake.ID) error {
	return s.run(ctx, domain.Target{Kind: domain.TargetVariant, ID: id}, s.syncVariantOnce)
}

// run holds the target lock across passes. A pass reports stale when the row changed while the
// processor call was in flight; the next pass pushes the newer row.
func (s *Service) run(ctx context.Context, target domain.Target, pass func(context.Context, domain.Target) (bool, error)) error {
	release, ok := s.acquire(ctx, target)
	if !ok {
		return nil
	}
	defer release()

	for attempt := 1; attempt <= maxSyncPasses; attempt++ {
		stale, err := pass(ctx, target)
		if err != nil || !stale {
			return err
		}
		s.log.Info("row changed during sync",
			zap.String("kind", string(target.Kind)),
			zap.String("id", target.ID.String()),
			zap.Int("pass", attempt),
		)
	}
	return nil
}

func (s *Service) syncProductOnce(ctx context.Context, target domain.Target) (bool, error) {
	product, err := s.catalogRepo.FindProduct(ctx, s.db, target.ID)
	if err != nil {
		return false, err
	}
	if product == nil {
		return false, domain.ErrTargetNotFound
	}
	if product.SyncStatus != domain.StatusPending {
		return false, nil
	}

	externalID, gwErr := s.gateway.UpsertProduct(ctx, processordomain.ProductInput{
		ProductID:   product.ID.String(),
		ExternalID:  product.ExternalID,
		Name:        product.Name,
		Description: product.Description,
		Active:      product.Active,
		Version:     product.UpdatedAt.UnixMilli(),
	})
	if gwErr != nil {
		return s.fail(ctx, target, product.UpdatedAt, gwErr)
	}
	return s.succeed(ctx, target, product.UpdatedAt, externalID)
}

func (s *Service) syncVariantOnce(ctx context.Context, target domain.Target) (bool, error) {
	variant, err := s.catalogRepo.FindVariant(ctx, s.db, target.ID)
	if err != nil {
		return false, err
	}
	if variant == nil {
		return false, domain.ErrTargetNotFound
	}
	if variant.SyncStatus != domain.StatusPending {
		return false, nil
	}

	product, err := s.catalogRepo.FindProduct(ctx, s.db, variant.ProductID)
	if err != nil {
		return false, err
	}
	if product == nil || product.ExternalID == nil || *product.ExternalID == "" {
		return s.fail(ctx, target, variant.UpdatedAt, domain.ErrProductNotSynced)
	}

	priceID, gwErr := s.gateway.UpsertPrice(ctx, processordomain.PriceInput{
		VariantID:         variant.ID.String(),
		SKU:               variant.SKU,
		Nickname:          variant.Name,
		ExternalProductID: *product.ExternalID,
		PreviousPriceID:   variant.ExternalPriceID,
		UnitAmount:        variant.UnitAmount,
		Currency:          variant.Currency,
		Active:            variant.Active && product.Active,
		Version:           variant.UpdatedAt.UnixMilli(),
	})
	if gwErr != nil {
		return s.fail(ctx, target, variant.UpdatedAt, gwErr)
	}
	return s.succeed(ctx, target, variant.UpdatedAt, priceID)
}

// Retry moves a target back to pending and runs one sync attempt.
func (s *Service) Retry(ctx context.Context, target domain.Target) error {
	if err := s.repo.MarkPending(ctx, s.db, target, s.clock.Now()); err != nil {
		return err
	}
	switch target.Kind {
	case domain.TargetProduct:
		return s.SyncProduct(ctx, target.ID)
	case domain.TargetVariant:
		return s.SyncVariantPrice(ctx, target.ID)
	default:
		return domain.ErrUnknownTarget
	}
}

func (s *Service) succeed(ctx context.Context, target domain.Target, readAt time.Time, externalID string) (bool, error) {
	updated, err := s.repo.MarkSynced(ctx, s.db, target, externalID, readAt, s.clock.Now())
	if err != nil {
		return false, err
	}
	if !updated {
		return true, nil
	}
	s.obsMetrics.RecordCatalogSync(ctx, string(target.Kind), domain.StatusSynced)
	s.log.Info("catalog synced",
		zap.String("kind", string(target.Kind)),
		zap.String("id", target.ID.String()),
		zap.String("external_id", externalID),
		zap.String("gateway", s.gateway.Name()),
	)
	return false, nil
}

func (s *Service) fail(ctx context.Context, target domain.Target, readAt time.Time, cause error) (bool, error) {
	updated, err := s.repo.MarkFailed(ctx, s.db, target, cause.Error(), readAt, s.clock.Now())
	if err != nil {
		return false, err
	}
	if !updated {
		return true, nil
	}
	s.obsMetrics.RecordCatalogSync(ctx, string(target.Kind), domain.StatusFailed)
	s.log.Warn("catalog sync failed",
		zap.String("kind", string(target.Kind)),
		zap.String("id", target.ID.String()),
		zap.String("gateway", s.gateway.Name()),
		zap.Error(cause),
	)
	return false, nil
}

// acquire takes the per-target lock when a locker is configured. A lock error does not block
// the sync; a held lock means another instance is syncing the same row.
func (s *Service) acquire(ctx context.Context, target domain.Target) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}
	key := target.LockKey()
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		s.log.Warn("sync lock unavailable", zap.String("key", key), zap.Error(err))
		return func() {}, true
	}
	if !ok {
		s.log.Info("sync already in progress", zap.String("key", key))
		return nil, false
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("sync lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, true
}
