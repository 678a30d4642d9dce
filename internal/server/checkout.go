package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/kelaspay/kelaspay/internal/checkout/domain"
	txndomain "github.com/kelaspay/kelaspay/internal/transaction/domain"
)

type checkoutRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	CourseID       string `json:"course_id" binding:"required"`
	PaymentMethod  string `json:"payment_method" binding:"required"`
	PaymentChannel string `json:"payment_channel"`
	PromoCode      string `json:"promo_code"`
}

func (s *Server) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid", "user_id must be a valid id"))
		return
	}
	courseID, err := snowflake.ParseString(strings.TrimSpace(req.CourseID))
	if err != nil {
		AbortWithError(c, newValidationError("course_id", "invalid", "course_id must be a valid id"))
		return
	}

	method := txndomain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))

	txn, err := s.checkoutSvc.Initiate(c.Request.Context(), checkoutdomain.InitiateRequest{
		UserID:         userID,
		CourseID:       courseID,
		PaymentMethod:  method,
		PaymentChannel: strings.TrimSpace(req.PaymentChannel),
		PromoCode:      strings.TrimSpace(req.PromoCode),
	})
	if err != nil {
		if s.obsMetrics != nil {
			s.obsMetrics.RecordCheckout(c.Request.Context(), string(method), "error")
		}
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordCheckout(c.Request.Context(), string(method), string(txn.Status))
	}

	c.JSON(http.StatusOK, gin.H{"data": txn})
}
