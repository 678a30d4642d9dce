package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TripayWebhook receives payment-status callbacks from the gateway. The
// response contract matters: a 2xx tells the gateway the delivery is done,
// anything else makes it retry.
func (s *Server) TripayWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	signature := c.GetHeader("X-Callback-Signature")

	if err := s.webhookSvc.HandleCallback(c.Request.Context(), payload, signature); err != nil {
		s.recordCallback(c, payload, "rejected")
		AbortWithError(c, err)
		return
	}

	s.recordCallback(c, payload, "ok")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) recordCallback(c *gin.Context, payload []byte, outcome string) {
	if s.obsMetrics == nil {
		return
	}
	status := "unparsed"
	if event, err := s.gateway.ParseCallback(payload); err == nil {
		status = event.Status
	}
	s.obsMetrics.RecordPaymentCallback(c.Request.Context(), status, outcome)
}
