package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/storefront/internal/catalog/domain"
	syncdomain "github.com/smallbiznis/storefront/internal/catalogsync/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Cfg    config.Config
	Clock  clock.Clock
	Repo   domain.Repository
	Syncer syncdomain.Syncer
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            domain.Repository
	syncer          syncdomain.Syncer
	defaultCurrency string
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("catalog.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		syncer:          p.Syncer,
		defaultCurrency: config.NormalizeCurrency(p.Cfg.DefaultCurrency),
	}
}

func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.ProductResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	code, err := normalizeCode(req.Code, name)
	if err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	product := &domain.Product{
		ID:          s.genID.Generate(),
		Code:        code,
		Name:        name,
		Description: trimmedPtr(req.Description),
		Active:      active,
		SyncStatus:  syncdomain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Metadata != nil {
		product.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.InsertProduct(ctx, s.db, product); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	s.syncProduct(ctx, product.ID)
	return s.GetProduct(ctx, product.ID.String())
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.UpdateProductRequest) (*domain.ProductResponse, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var mirroredChanged bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.repo.FindProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			if name != product.Name {
				product.Name = name
				mirroredChanged = true
			}
		}
		if req.Description != nil {
			description := trimmedPtr(req.Description)
			if !equalStringPtr(description, product.Description) {
				product.Description = description
				mirroredChanged = true
			}
		}
		if req.Active != nil && *req.Active != product.Active {
			product.Active = *req.Active
			mirroredChanged = true
		}
		if req.Metadata != nil {
			product.Metadata = datatypes.JSONMap(req.Metadata)
		}

		if mirroredChanged {
			product.SyncStatus = syncdomain.StatusPending
			product.SyncError = nil
		}
		product.UpdatedAt = s.clock.Now()
		return s.repo.UpdateProduct(ctx, tx, product)
	})
	if err != nil {
		return nil, err
	}

	if mirroredChanged {
		s.syncProduct(ctx, productID)
	}
	return s.GetProduct(ctx, id)
}

// ArchiveProduct deactivates the product and its variants. Each deactivated row is re-mirrored.
func (s *Service) ArchiveProduct(ctx context.Context, id string) (*domain.ProductResponse, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var archivedVariants []snowflake.ID
	var productChanged bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.repo.FindProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrNotFound
		}

		now := s.clock.Now()
		if product.Active {
			product.Active = false
			product.SyncStatus = syncdomain.StatusPending
			product.SyncError = nil
			product.UpdatedAt = now
			if err := s.repo.UpdateProduct(ctx, tx, product); err != nil {
				return err
			}
			productChanged = true
		}

		variants, err := s.repo.ListVariantsByProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		for i := range variants {
			variant := variants[i]
			if !variant.Active {
				continue
			}
			variant.Active = false
			variant.SyncStatus = syncdomain.StatusPending
			variant.SyncError = nil
			variant.UpdatedAt = now
			if err := s.repo.UpdateVariant(ctx, tx, &variant); err != nil {
				return err
			}
			archivedVariants = append(archivedVariants, variant.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if productChanged {
		s.syncProduct(ctx, productID)
	}
	for _, variantID := range archivedVariants {
		s.syncVariant(ctx, variantID)
	}
	return s.GetProduct(ctx, id)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.ProductResponse, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.FindProduct(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	variants, err := s.repo.ListVariantsByProduct(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}

	resp := toProductResponse(product, variants)
	return &resp, nil
}

// SyncProduct retries the product mirror regardless of its current state.
func (s *Service) SyncProduct(ctx context.Context, id string) (*domain.ProductResponse, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := s.retry(ctx, syncdomain.Target{Kind: syncdomain.TargetProduct, ID: productID}); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Service) CreateVariant(ctx context.Context, productID string, req domain.CreateVariantRequest) (*domain.VariantResponse, error) {
	parentID, err := parseID(productID)
	if err != nil {
		return nil, err
	}

	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku == "" {
		return nil, domain.ErrInvalidSKU
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.UnitAmount == nil || *req.UnitAmount < 0 {
		return nil, domain.ErrInvalidUnitAmount
	}
	currency, err := s.normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	var variant *domain.Variant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.repo.FindProduct(ctx, tx, parentID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrNotFound
		}
		if !product.Active {
			return domain.ErrProductArchived
		}

		now := s.clock.Now()
		variant = &domain.Variant{
			ID:         s.genID.Generate(),
			ProductID:  parentID,
			SKU:        sku,
			Name:       name,
			UnitAmount: *req.UnitAmount,
			Currency:   currency,
			Active:     active,
			SyncStatus: syncdomain.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.InsertVariant(ctx, tx, variant); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCode
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.syncVariant(ctx, variant.ID)
	return s.GetVariant(ctx, variant.ID.String())
}

func (s *Service) UpdateVariant(ctx context.Context, id string, req domain.UpdateVariantRequest) (*domain.VariantResponse, error) {
	variantID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var mirroredChanged bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		variant, err := s.repo.FindVariant(ctx, tx, variantID)
		if err != nil {
			return err
		}
		if variant == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			variant.Name = name
		}
		if req.UnitAmount != nil {
			if *req.UnitAmount < 0 {
				return domain.ErrInvalidUnitAmount
			}
			if *req.UnitAmount != variant.UnitAmount {
				variant.UnitAmount = *req.UnitAmount
				mirroredChanged = true
			}
		}
		if req.Currency != nil {
			currency, err := s.normalizeCurrency(*req.Currency)
			if err != nil {
				return err
			}
			if currency != variant.Currency {
				variant.Currency = currency
				mirroredChanged = true
			}
		}
		if req.Active != nil && *req.Active != variant.Active {
			variant.Active = *req.Active
			mirroredChanged = true
		}

		if mirroredChanged {
			variant.SyncStatus = syncdomain.StatusPending
			variant.SyncError = nil
		}
		variant.UpdatedAt = s.clock.Now()
		return s.repo.UpdateVariant(ctx, tx, variant)
	})
	if err != nil {
		return nil, err
	}

	if mirroredChanged {
		s.syncVariant(ctx, variantID)
	}
	return s.GetVariant(ctx, id)
}

func (s *Service) GetVariant(ctx context.Context, id string) (*domain.VariantResponse, error) {
	variantID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	variant, err := s.repo.FindVariant(ctx, s.db, variantID)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, domain.ErrNotFound
	}
	resp := toVariantResponse(variant)
	return &resp, nil
}

func (s *Service) SyncVariant(ctx context.Context, id string) (*domain.VariantResponse, error) {
	variantID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := s.retry(ctx, syncdomain.Target{Kind: syncdomain.TargetVariant, ID: variantID}); err != nil {
		return nil, err
	}
	return s.GetVariant(ctx, id)
}

func (s *Service) CreateKeycardDesign(ctx context.Context, req domain.CreateOptionRequest) (*domain.OptionResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	code, err := normalizeCode(req.Code, name)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	design := &domain.KeycardDesign{
		ID:        s.genID.Generate(),
		Code:      code,
		Name:      name,
		Active:    req.Active == nil || *req.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertKeycardDesign(ctx, s.db, design); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	return &domain.OptionResponse{
		ID:        design.ID.String(),
		Code:      design.Code,
		Name:      design.Name,
		Active:    design.Active,
		CreatedAt: design.CreatedAt,
	}, nil
}

func (s *Service) CreateLockTechnology(ctx context.Context, req domain.CreateOptionRequest) (*domain.OptionResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	code, err := normalizeCode(req.Code, name)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tech := &domain.LockTechnology{
		ID:        s.genID.Generate(),
		Code:      code,
		Name:      name,
		Active:    req.Active == nil || *req.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertLockTechnology(ctx, s.db, tech); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	return &domain.OptionResponse{
		ID:        tech.ID.String(),
		Code:      tech.Code,
		Name:      tech.Name,
		Active:    tech.Active,
		CreatedAt: tech.CreatedAt,
	}, nil
}

// syncProduct runs after the local write committed. Only store failures are logged here; processor
// failures are already recorded on the row.
func (s *Service) syncProduct(ctx context.Context, id snowflake.ID) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.SyncProduct(ctx, id); err != nil {
		s.log.Error("product sync bookkeeping failed", zap.String("product_id", id.String()), zap.Error(err))
	}
}

func (s *Service) syncVariant(ctx context.Context, id snowflake.ID) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.SyncVariantPrice(ctx, id); err != nil {
		s.log.Error("variant sync bookkeeping failed", zap.String("variant_id", id.String()), zap.Error(err))
	}
}

func (s *Service) retry(ctx context.Context, target syncdomain.Target) error {
	if s.syncer == nil {
		return nil
	}
	err := s.syncer.Retry(ctx, target)
	if errors.Is(err, syncdomain.ErrTargetNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Service) normalizeCurrency(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.defaultCurrency, nil
	}
	if len(value) != 3 {
		return "", domain.ErrInvalidCurrency
	}
	return strings.ToUpper(value), nil
}

func normalizeCode(code, name string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = name
	}
	normalized := slug.Make(code)
	if normalized == "" {
		return "", domain.ErrInvalidCode
	}
	return normalized, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func toProductResponse(product *domain.Product, variants []domain.Variant) domain.ProductResponse {
	resp := domain.ProductResponse{
		ID:          product.ID.String(),
		Code:        product.Code,
		Name:        product.Name,
		Description: product.Description,
		Active:      product.Active,
		ExternalID:  product.ExternalID,
		SyncStatus:  product.SyncStatus,
		SyncError:   product.SyncError,
		SyncedAt:    product.SyncedAt,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
	if product.Metadata != nil {
		resp.Metadata = map[string]any(product.Metadata)
	}
	if len(variants) > 0 {
		resp.Variants = make([]domain.VariantResponse, 0, len(variants))
		for i := range variants {
			resp.Variants = append(resp.Variants, toVariantResponse(&variants[i]))
		}
	}
	return resp
}

func toVariantResponse(variant *domain.Variant) domain.VariantResponse {
	return domain.VariantResponse{
		ID:              variant.ID.String(),
		ProductID:       variant.ProductID.String(),
		SKU:             variant.SKU,
		Name:            variant.Name,
		UnitAmount:      variant.UnitAmount,
		Currency:        variant.Currency,
		Active:          variant.Active,
		ExternalPriceID: variant.ExternalPriceID,
		SyncStatus:      variant.SyncStatus,
		SyncError:       variant.SyncError,
		SyncedAt:        variant.SyncedAt,
		CreatedAt:       variant.CreatedAt,
		UpdatedAt:       variant.UpdatedAt,
	}
}
