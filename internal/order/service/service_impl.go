package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/storefront/internal/cart"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	processordomain "github.com/smallbiznis/storefront/internal/processor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Clock      clock.Clock
	Repo       orderdomain.Repository
	Resolver   *cart.Resolver
	Gateway    processordomain.Gateway
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       orderdomain.Repository
	resolver   *cart.Resolver
	gateway    processordomain.Gateway
	obsMetrics *obsmetrics.Metrics
	validate   *validator.Validate
	prefix     string
}

func New(p Params) orderdomain.Service {
	prefix := strings.ToUpper(strings.TrimSpace(p.Cfg.OrderNumberPrefix))
	if prefix == "" {
		prefix = config.DefaultOrderNumberPrefix
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		resolver:   p.Resolver,
		gateway:    p.Gateway,
		obsMetrics: p.ObsMetrics,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		prefix:     prefix,
	}
}

// FormatOrderNumber renders PREFIX-YYYY-000123.
func FormatOrderNumber(prefix string, year int, id int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, id)
}

func (s *Service) CreateFromCart(ctx context.Context, req orderdomain.CreateRequest) (*orderdomain.CreateResult, error) {
	lines, err := cart.ParseLines(req.Items, req.AllowPriceOverride)
	if err != nil {
		return nil, err
	}
	if req.TaxAmount < 0 || req.ShippingAmount < 0 {
		return nil, orderdomain.ErrInvalidAmount
	}
	buyer := orderdomain.Buyer{Customer: req.Customer, Shipping: req.Shipping, Billing: req.Billing}
	if err := s.validateBuyer(buyer); err != nil {
		return nil, err
	}

	resolution, err := s.resolver.Resolve(ctx, lines)
	if err != nil {
		return nil, err
	}

	total := resolution.Subtotal
	for _, extra := range []int64{req.TaxAmount, req.ShippingAmount} {
		if extra > math.MaxInt64-total {
			return nil, cart.ErrAmountOverflow
		}
		total += extra
	}

	shipping, err := encodeAddress(buyer.Shipping)
	if err != nil {
		return nil, err
	}
	billing, err := encodeAddress(buyer.Billing)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &orderdomain.Order{
		OrderStatus:       orderdomain.OrderStatusPlaced,
		PaymentStatus:     orderdomain.PaymentStatusPending,
		FulfillmentStatus: orderdomain.FulfillmentStatusUnfulfilled,
		ShippingStatus:    orderdomain.ShippingStatusPending,
		Currency:          resolution.Currency,
		Subtotal:          resolution.Subtotal,
		TaxAmount:         req.TaxAmount,
		ShippingAmount:    req.ShippingAmount,
		Total:             total,
		ManuallyPriced:    resolution.ManuallyPriced,
		CustomerEmail:     stringPtr(strings.ToLower(buyer.Customer.Email)),
		CustomerName:      stringPtr(buyer.Customer.Name),
		CustomerPhone:     stringPtr(buyer.Customer.Phone),
		ShippingAddress:   shipping,
		BillingAddress:    billing,
		Notes:             trimmedPtr(req.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.Metadata != nil {
		order.Metadata = datatypes.JSONMap(req.Metadata)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return err
		}
		for _, line := range resolution.Lines {
			item := &orderdomain.LineItem{
				ID:               s.genID.Generate(),
				OrderID:          order.ID,
				ItemKind:         line.Kind,
				ProductID:        line.ProductID,
				VariantID:        line.VariantID,
				DesignID:         line.DesignID,
				LockTechnologyID: line.LockTechnologyID,
				SKU:              stringPtr(line.SKU),
				Description:      line.Description,
				Currency:         line.Currency,
				UnitAmount:       line.UnitAmount,
				Quantity:         line.Quantity,
				LineTotal:        line.LineTotal,
				PriceSource:      line.PriceSource,
				CreatedAt:        now,
			}
			if err := s.repo.InsertLineItem(ctx, tx, item); err != nil {
				return err
			}
		}

		number := FormatOrderNumber(s.prefix, now.Year(), order.ID)
		if err := s.repo.SetOrderNumber(ctx, tx, order.ID, number); err != nil {
			return err
		}
		order.OrderNumber = &number
		return nil
	})
	if err != nil {
		return nil, err
	}

	source := req.Source
	if source == "" {
		source = orderdomain.SourceStorefront
	}
	s.obsMetrics.RecordOrderCreated(ctx, order.Currency, source, order.Total)
	logger.WithOrder(logger.WithContext(ctx, s.log), order.ID, *order.OrderNumber).Info("order created",
		zap.String("currency", order.Currency),
		zap.Int64("total", order.Total),
		zap.Int("lines", len(resolution.Lines)),
		zap.Bool("manually_priced", order.ManuallyPriced),
	)

	return &orderdomain.CreateResult{
		OrderID:     order.ID,
		OrderNumber: *order.OrderNumber,
		Currency:    order.Currency,
		Subtotal:    order.Subtotal,
		Tax:         order.TaxAmount,
		Shipping:    order.ShippingAmount,
		Total:       order.Total,
	}, nil
}

func (s *Service) AttachExternalSession(ctx context.Context, id string, sessionID string) error {
	orderID, err := parseOrderID(id)
	if err != nil {
		return err
	}
	return s.attachSession(ctx, orderID, sessionID)
}

func (s *Service) attachSession(ctx context.Context, orderID int64, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return orderdomain.ErrInvalidSessionID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrNotFound
		}
		attached, err := s.repo.AttachSession(ctx, tx, orderID, sessionID, s.clock.Now())
		if err != nil {
			return err
		}
		if !attached {
			return orderdomain.ErrSessionAlreadyAttached
		}
		return nil
	})
}

// StartCheckout opens a processor checkout session for the order's snapshot and binds it.
// No transaction is open while the processor is called.
func (s *Service) StartCheckout(ctx context.Context, id string, req orderdomain.CheckoutRequest) (*orderdomain.CheckoutResponse, error) {
	orderID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	if !validRedirect(req.SuccessURL) || !validRedirect(req.CancelURL) {
		return nil, orderdomain.ErrInvalidRedirectURL
	}

	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrNotFound
	}
	if order.OrderStatus != orderdomain.OrderStatusPlaced || order.PaymentStatus != orderdomain.PaymentStatusPending {
		return nil, orderdomain.ErrOrderNotPayable
	}
	if order.ExternalSessionID != nil && *order.ExternalSessionID != "" {
		return nil, orderdomain.ErrSessionAlreadyAttached
	}

	items, err := s.repo.ListLineItems(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	input := processordomain.CheckoutInput{
		OrderID:        strconv.FormatInt(order.ID, 10),
		OrderNumber:    derefString(order.OrderNumber),
		Currency:       order.Currency,
		CustomerEmail:  derefString(order.CustomerEmail),
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		IdempotencyKey: fmt.Sprintf("order-%d-checkout", order.ID),
		Lines:          make([]processordomain.CheckoutLine, 0, len(items)),
	}
	for _, item := range items {
		input.Lines = append(input.Lines, processordomain.CheckoutLine{
			Name:       item.Description,
			SKU:        derefString(item.SKU),
			UnitAmount: item.UnitAmount,
			Quantity:   item.Quantity,
		})
	}

	log := logger.WithOrder(logger.WithContext(ctx, s.log), order.ID, input.OrderNumber)
	session, err := s.gateway.CreateCheckoutSession(ctx, input)
	if err != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, s.gateway.Name(), "error")
		log.Warn("checkout session failed", zap.String("processor", s.gateway.Name()), zap.Error(err))
		if errors.Is(err, processordomain.ErrGatewayDisabled) {
			return nil, orderdomain.ErrCheckoutUnavailable
		}
		return nil, fmt.Errorf("%w: %v", orderdomain.ErrCheckoutUnavailable, err)
	}

	if err := s.attachSession(ctx, order.ID, session.ID); err != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, s.gateway.Name(), "conflict")
		return nil, err
	}

	s.obsMetrics.RecordCheckoutSession(ctx, s.gateway.Name(), "created")
	log.Info("checkout session attached", zap.String("session_id", session.ID))
	return &orderdomain.CheckoutResponse{SessionID: session.ID, URL: session.URL}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*orderdomain.OrderResponse, error) {
	orderID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, order)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*orderdomain.OrderResponse, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, orderdomain.ErrNotFound
	}
	order, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, order)
}

// UpdateDetails edits non-financial fields only.
func (s *Service) UpdateDetails(ctx context.Context, id string, req orderdomain.UpdateDetailsRequest) (*orderdomain.OrderResponse, error) {
	orderID, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	if err := s.validateDetails(req); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrNotFound
		}

		if req.Customer != nil {
			order.CustomerEmail = stringPtr(strings.ToLower(req.Customer.Email))
			order.CustomerName = stringPtr(req.Customer.Name)
			order.CustomerPhone = stringPtr(req.Customer.Phone)
		}
		if req.Shipping != nil {
			if order.ShippingAddress, err = encodeAddress(req.Shipping); err != nil {
				return err
			}
		}
		if req.Billing != nil {
			if order.BillingAddress, err = encodeAddress(req.Billing); err != nil {
				return err
			}
		}
		if req.OrderStatus != nil {
			order.OrderStatus = strings.ToLower(strings.TrimSpace(*req.OrderStatus))
		}
		if req.FulfillmentStatus != nil {
			order.FulfillmentStatus = strings.ToLower(strings.TrimSpace(*req.FulfillmentStatus))
		}
		if req.ShippingStatus != nil {
			order.ShippingStatus = strings.ToLower(strings.TrimSpace(*req.ShippingStatus))
		}
		if req.Notes != nil {
			order.Notes = trimmedPtr(req.Notes)
		}
		if req.Metadata != nil {
			order.Metadata = datatypes.JSONMap(req.Metadata)
		}
		order.UpdatedAt = s.clock.Now()
		return s.repo.UpdateDetails(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

func (s *Service) validateDetails(req orderdomain.UpdateDetailsRequest) error {
	if req.OrderStatus != nil && !oneOf(*req.OrderStatus,
		orderdomain.OrderStatusPlaced,
		orderdomain.OrderStatusProcessing,
		orderdomain.OrderStatusCompleted,
		orderdomain.OrderStatusCancelled,
	) {
		return orderdomain.ErrInvalidStatus
	}
	if req.FulfillmentStatus != nil && !oneOf(*req.FulfillmentStatus,
		orderdomain.FulfillmentStatusUnfulfilled,
		orderdomain.FulfillmentStatusPartial,
		orderdomain.FulfillmentStatusFulfilled,
	) {
		return orderdomain.ErrInvalidStatus
	}
	if req.ShippingStatus != nil && !oneOf(*req.ShippingStatus,
		orderdomain.ShippingStatusPending,
		orderdomain.ShippingStatusShipped,
		orderdomain.ShippingStatusDelivered,
		orderdomain.ShippingStatusReturned,
	) {
		return orderdomain.ErrInvalidStatus
	}

	var violations []orderdomain.FieldViolation
	if req.Customer != nil {
		violations = append(violations, s.violations("customer", req.Customer)...)
	}
	if req.Shipping != nil {
		violations = append(violations, s.violations("shipping", req.Shipping)...)
	}
	if req.Billing != nil {
		violations = append(violations, s.violations("billing", req.Billing)...)
	}
	if len(violations) > 0 {
		return &orderdomain.BuyerError{Violations: violations}
	}
	return nil
}

func (s *Service) validateBuyer(buyer orderdomain.Buyer) error {
	violations := s.violations("customer", &buyer.Customer)
	if buyer.Shipping != nil {
		violations = append(violations, s.violations("shipping", buyer.Shipping)...)
	}
	if buyer.Billing != nil {
		violations = append(violations, s.violations("billing", buyer.Billing)...)
	}
	if len(violations) > 0 {
		return &orderdomain.BuyerError{Violations: violations}
	}
	return nil
}

func (s *Service) violations(prefix string, value any) []orderdomain.FieldViolation {
	if addr, ok := value.(*orderdomain.Address); ok {
		addr.Country = strings.ToUpper(strings.TrimSpace(addr.Country))
	}
	err := s.validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []orderdomain.FieldViolation{{Field: prefix, Rule: "invalid"}}
	}
	out := make([]orderdomain.FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, orderdomain.FieldViolation{
			Field: prefix + "." + toSnake(fe.Field()),
			Rule:  fe.Tag(),
		})
	}
	return out
}

func (s *Service) respond(ctx context.Context, order *orderdomain.Order) (*orderdomain.OrderResponse, error) {
	if order == nil {
		return nil, orderdomain.ErrNotFound
	}
	items, err := s.repo.ListLineItems(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}

	resp := &orderdomain.OrderResponse{
		ID:                      order.ID,
		OrderNumber:             derefString(order.OrderNumber),
		OrderStatus:             order.OrderStatus,
		PaymentStatus:           order.PaymentStatus,
		FulfillmentStatus:       order.FulfillmentStatus,
		ShippingStatus:          order.ShippingStatus,
		Currency:                order.Currency,
		Subtotal:                order.Subtotal,
		Tax:                     order.TaxAmount,
		Shipping:                order.ShippingAmount,
		Total:                   order.Total,
		ManuallyPriced:          order.ManuallyPriced,
		ShippingAddress:         decodeAddress(order.ShippingAddress),
		BillingAddress:          decodeAddress(order.BillingAddress),
		ExternalSessionID:       order.ExternalSessionID,
		ExternalPaymentIntentID: order.ExternalPaymentIntentID,
		PaidAt:                  order.PaidAt,
		Notes:                   order.Notes,
		Metadata:                order.Metadata,
		Items:                   make([]orderdomain.LineItemResult, 0, len(items)),
		CreatedAt:               order.CreatedAt,
		UpdatedAt:               order.UpdatedAt,
	}
	if order.CustomerEmail != nil || order.CustomerName != nil {
		resp.Customer = &orderdomain.Customer{
			Email: derefString(order.CustomerEmail),
			Name:  derefString(order.CustomerName),
			Phone: derefString(order.CustomerPhone),
		}
	}
	for _, item := range items {
		resp.Items = append(resp.Items, orderdomain.LineItemResult{
			ID:               item.ID.String(),
			Kind:             item.ItemKind,
			VariantID:        idString(item.VariantID),
			DesignID:         idString(item.DesignID),
			LockTechnologyID: idString(item.LockTechnologyID),
			SKU:              item.SKU,
			Description:      item.Description,
			Currency:         item.Currency,
			UnitAmount:       item.UnitAmount,
			Quantity:         item.Quantity,
			LineTotal:        item.LineTotal,
			PriceSource:      item.PriceSource,
		})
	}
	return resp, nil
}

func parseOrderID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, orderdomain.ErrInvalidID
	}
	return id, nil
}

func validRedirect(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

func encodeAddress(addr *orderdomain.Address) (datatypes.JSON, error) {
	if addr == nil {
		return nil, nil
	}
	normalized := *addr
	normalized.Country = strings.ToUpper(strings.TrimSpace(normalized.Country))
	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeAddress(raw datatypes.JSON) *orderdomain.Address {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var addr orderdomain.Address
	if err := json.Unmarshal(raw, &addr); err != nil {
		return nil
	}
	return &addr
}

func oneOf(value string, allowed ...string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stringPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return stringPtr(*value)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func idString(id *snowflake.ID) *string {
	if id == nil {
		return nil
	}
	value := id.String()
	return &value
}
