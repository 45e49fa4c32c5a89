package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-attendance-api/internal/middleware"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
	"github.com/noah-isme/lms-attendance-api/pkg/response"
)

// currentActor returns the caller put in the context by the JWT middleware.
// Services reject a nil actor themselves.
func currentActor(c *gin.Context) *models.JWTClaims {
	value, _ := c.Get(middleware.ContextUserKey)
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// requireActor writes a 401 when the request carries no caller.
func requireActor(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if claims, ok := value.(*models.JWTClaims); exists && ok && claims != nil {
		return claims, true
	}
	response.Error(c, appErrors.ErrUnauthorized)
	return nil, false
}
