package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	coursedomain "github.com/kelaspay/kelaspay/internal/course/domain"
)

func (s *Server) ListCourses(c *gin.Context) {
	courses, err := s.courseRepo.ListActive(c.Request.Context(), s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": courses})
}

func (s *Server) GetCourse(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		AbortWithError(c, newValidationError("slug", "required", "slug is required"))
		return
	}

	course, err := s.courseRepo.FindBySlug(c.Request.Context(), s.db, slug)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if course == nil || !course.IsActive {
		AbortWithError(c, coursedomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": course})
}
