package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListNotifications(c *gin.Context) {
	userID, err := snowflake.ParseString(strings.TrimSpace(c.Query("user_id")))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid", "user_id must be a valid id"))
		return
	}

	items, err := s.notificationRepo.ListByUser(c.Request.Context(), s.db, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
