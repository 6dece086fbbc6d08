package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	pricetierdomain "github.com/smallbiznis/storefront/internal/pricetier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Cfg         config.Config
	Clock       clock.Clock
	Repo        pricetierdomain.Repository
	CatalogRepo catalogdomain.Repository
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            pricetierdomain.Repository
	catalogRepo     catalogdomain.Repository
	defaultCurrency string
}

func New(p Params) pricetierdomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("pricetier.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		catalogRepo:     p.CatalogRepo,
		defaultCurrency: config.NormalizeCurrency(p.Cfg.DefaultCurrency),
	}
}

// ReplaceAll swaps the owner's active tier set in one transaction. Old rows are kept inactive.
func (s *Service) ReplaceAll(ctx context.Context, owner pricetierdomain.Owner, raw []pricetierdomain.RawTier) ([]pricetierdomain.Tier, error) {
	tiers, err := pricetierdomain.Normalize(raw, s.defaultCurrency)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOwner(ctx, s.db, owner); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivateActive(ctx, tx, owner, now); err != nil {
			return err
		}
		for i := range tiers {
			tiers[i].ID = s.genID.Generate()
			if err := s.repo.Insert(ctx, tx, owner, tiers[i].ID, tiers[i], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tier set replaced",
		zap.String("owner", owner.String()),
		zap.Int("tiers", len(tiers)),
	)
	return tiers, nil
}

func (s *Service) ListActive(ctx context.Context, owner pricetierdomain.Owner) ([]pricetierdomain.Tier, error) {
	if err := s.ensureOwner(ctx, s.db, owner); err != nil {
		return nil, err
	}
	return s.repo.ListActive(ctx, s.db, owner)
}

func (s *Service) ResolveFor(ctx context.Context, owner pricetierdomain.Owner, quantity int64) (pricetierdomain.Tier, error) {
	tiers, err := s.repo.ListActive(ctx, s.db, owner)
	if err != nil {
		return pricetierdomain.Tier{}, err
	}
	return pricetierdomain.Resolve(tiers, quantity)
}

func (s *Service) ensureOwner(ctx context.Context, db *gorm.DB, owner pricetierdomain.Owner) error {
	switch o := owner.(type) {
	case pricetierdomain.VariantOwner:
		if o.VariantID == 0 {
			return pricetierdomain.ErrInvalidOwner
		}
		variant, err := s.catalogRepo.FindVariant(ctx, db, o.VariantID)
		if err != nil {
			return err
		}
		if variant == nil {
			return pricetierdomain.ErrOwnerNotFound
		}
		return nil
	case pricetierdomain.KeycardOwner:
		if o.DesignID == 0 || o.LockTechnologyID == 0 {
			return pricetierdomain.ErrInvalidOwner
		}
		design, err := s.catalogRepo.FindKeycardDesign(ctx, db, o.DesignID)
		if err != nil {
			return err
		}
		if design == nil {
			return pricetierdomain.ErrOwnerNotFound
		}
		tech, err := s.catalogRepo.FindLockTechnology(ctx, db, o.LockTechnologyID)
		if err != nil {
			return err
		}
		if tech == nil {
			return pricetierdomain.ErrOwnerNotFound
		}
		return nil
	default:
		return pricetierdomain.ErrInvalidOwner
	}
}
