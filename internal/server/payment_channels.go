package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/kelaspay/kelaspay/internal/payment/domain"
)

func (s *Server) ListPaymentChannels(c *gin.Context) {
	if channels, ok := s.channelsCache.Get(); ok {
		c.JSON(http.StatusOK, gin.H{"data": channels})
		return
	}

	channels, err := s.gateway.GetPaymentChannels(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	active := make([]paymentdomain.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Active {
			active = append(active, ch)
		}
	}

	s.channelsCache.Set(active)

	c.JSON(http.StatusOK, gin.H{"data": active})
}
