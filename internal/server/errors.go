package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/kelaspay/kelaspay/internal/checkout/domain"
	coursedomain "github.com/kelaspay/kelaspay/internal/course/domain"
	enrollmentdomain "github.com/kelaspay/kelaspay/internal/enrollment/domain"
	paymentdomain "github.com/kelaspay/kelaspay/internal/payment/domain"
	promodomain "github.com/kelaspay/kelaspay/internal/promo/domain"
	txndomain "github.com/kelaspay/kelaspay/internal/transaction/domain"
	userdomain "github.com/kelaspay/kelaspay/internal/user/domain"
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
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrTooManyReqs    = errors.New("too_many_requests")
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

	switch {
	case errors.Is(err, promodomain.ErrInvalidPromoCode):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   "promo_code",
				Code:    "invalid_promo_code",
				Message: "promo code is invalid or inactive",
			}},
		}
	case errors.Is(err, checkoutdomain.ErrChannelRequired):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   "payment_channel",
				Code:    "payment_channel_required",
				Message: "payment channel is required for gateway payments",
			}},
		}
	case errors.Is(err, checkoutdomain.ErrInvalidPaymentMethod):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   "payment_method",
				Code:    "invalid_payment_method",
				Message: "payment method must be cash or gateway",
			}},
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
		}
	case errors.Is(err, checkoutdomain.ErrAlreadyEnrolled):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "user is already enrolled in this course",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "invalid callback signature",
		}
	case errors.Is(err, paymentdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "malformed callback payload",
		}
	case errors.Is(err, paymentdomain.ErrGatewayRejected):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: gatewayMessage(err),
		}
	case errors.Is(err, paymentdomain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "gateway_unavailable",
			Message: "payment gateway is unreachable, please retry",
		}
	case errors.Is(err, ErrTooManyReqs):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func gatewayMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return "payment gateway rejected the transaction"
	}
	return msg
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, coursedomain.ErrNotFound),
		errors.Is(err, txndomain.ErrNotFound),
		errors.Is(err, enrollmentdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrUnknownTransaction):
		return true
	default:
		return false
	}
}

// classifyErrorForLog maps errors to (type, code) labels for request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "internal_error", code
	}
	return payload.Type, code
}
