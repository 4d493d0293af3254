package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confero-api/internal/middleware"
	"github.com/noah-isme/confero-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}
