package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/cart"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	catalogsyncdomain "github.com/smallbiznis/storefront/internal/catalogsync/domain"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	pricetierdomain "github.com/smallbiznis/storefront/internal/pricetier/domain"
	pkgdb "github.com/smallbiznis/storefront/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog feeds the request logger the same type and code the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var buyerErr *orderdomain.BuyerError
	if errors.As(err, &buyerErr) {
		out := make([]ValidationError, 0, len(buyerErr.Violations))
		for _, v := range buyerErr.Violations {
			out = append(out, ValidationError{Field: v.Field, Code: v.Rule, Message: "invalid value"})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  out,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		field := validationErrorField(code)
		if index, ok := cart.LineIndex(err); ok {
			field = fmt.Sprintf("items[%d]", index)
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   field,
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, orderdomain.ErrCheckoutUnavailable),
		errors.Is(err, paymentdomain.ErrWebhookNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isCartValidationError(err),
		isTierValidationError(err),
		isCatalogValidationError(err),
		isOrderValidationError(err),
		isWebhookValidationError(err):
		return true
	default:
		return false
	}
}

func isCartValidationError(err error) bool {
	return errors.Is(err, cart.ErrEmptyCart) ||
		errors.Is(err, cart.ErrTooManyLines) ||
		errors.Is(err, cart.ErrInvalidKind) ||
		errors.Is(err, cart.ErrInvalidItemID) ||
		errors.Is(err, cart.ErrInvalidQuantity) ||
		errors.Is(err, cart.ErrInvalidUnitAmount) ||
		errors.Is(err, cart.ErrMixedCurrency) ||
		errors.Is(err, cart.ErrAmountOverflow)
}

func isTierValidationError(err error) bool {
	return errors.Is(err, pricetierdomain.ErrInvalidTiers) ||
		errors.Is(err, pricetierdomain.ErrInvalidMinQuantity) ||
		errors.Is(err, pricetierdomain.ErrInvalidUnitAmount) ||
		errors.Is(err, pricetierdomain.ErrInvalidCurrency) ||
		errors.Is(err, pricetierdomain.ErrInvalidOwner)
}

func isCatalogValidationError(err error) bool {
	return errors.Is(err, catalogdomain.ErrInvalidID) ||
		errors.Is(err, catalogdomain.ErrInvalidName) ||
		errors.Is(err, catalogdomain.ErrInvalidCode) ||
		errors.Is(err, catalogdomain.ErrInvalidSKU) ||
		errors.Is(err, catalogdomain.ErrInvalidUnitAmount) ||
		errors.Is(err, catalogdomain.ErrInvalidCurrency)
}

func isOrderValidationError(err error) bool {
	return errors.Is(err, orderdomain.ErrInvalidID) ||
		errors.Is(err, orderdomain.ErrInvalidBuyer) ||
		errors.Is(err, orderdomain.ErrInvalidAmount) ||
		errors.Is(err, orderdomain.ErrInvalidSessionID) ||
		errors.Is(err, orderdomain.ErrInvalidRedirectURL) ||
		errors.Is(err, orderdomain.ErrInvalidStatus)
}

func isWebhookValidationError(err error) bool {
	return errors.Is(err, paymentdomain.ErrInvalidSignature) ||
		errors.Is(err, paymentdomain.ErrInvalidPayload) ||
		errors.Is(err, paymentdomain.ErrInvalidEvent)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, pricetierdomain.ErrOwnerNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, catalogsyncdomain.ErrTargetNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, cart.ErrInactiveItem),
		errors.Is(err, cart.ErrNoPricing),
		errors.Is(err, pricetierdomain.ErrNoPricing),
		errors.Is(err, orderdomain.ErrSessionAlreadyAttached),
		errors.Is(err, orderdomain.ErrOrderNotPayable),
		errors.Is(err, catalogdomain.ErrDuplicateCode),
		errors.Is(err, catalogdomain.ErrProductArchived),
		pkgdb.IsDuplicateKeyErr(err):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, cart.ErrInactiveItem), errors.Is(err, cart.ErrNoPricing), errors.Is(err, pricetierdomain.ErrNoPricing):
		if index, ok := cart.LineIndex(err); ok {
			return fmt.Sprintf("item %d cannot be priced", index)
		}
		return "item cannot be priced"
	case errors.Is(err, orderdomain.ErrSessionAlreadyAttached):
		return "order already has a checkout session"
	case errors.Is(err, orderdomain.ErrOrderNotPayable):
		return "order is not awaiting payment"
	default:
		return "conflict"
	}
}

func validationErrorCode(err error) string {
	for _, sentinel := range []error{
		ErrInvalidRequest,
		cart.ErrMixedCurrency,
		cart.ErrAmountOverflow,
		cart.ErrEmptyCart,
		cart.ErrTooManyLines,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	var lineErr *cart.LineError
	if errors.As(err, &lineErr) && lineErr.Err != nil {
		return lineErr.Err.Error()
	}
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(err) {
		err = inner
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "mixed_currency", "empty_cart", "too_many_line_items", "amount_overflow":
		return "items"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "mixed_currency":
		return "mixed currencies not supported"
	case "too_many_line_items":
		return "too many line items"
	case "empty_cart":
		return "cart is empty"
	case "invalid_signature":
		return "signature verification failed"
	default:
		return "invalid value"
	}
}
