package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taajiri/pawnshop_backend/config"
	"github.com/taajiri/pawnshop_backend/models"
	"github.com/taajiri/pawnshop_backend/utils"
)

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
		ctx = context.WithValue(ctx, utils.ContextKeyUsername, username)

		// Role is needed by admin-gated operations; cached alongside the user.
		var user models.User
		if found, err := config.GetRedisObject("User:"+username, &user); err == nil && found {
			ctx = context.WithValue(ctx, utils.ContextKeyUserId, user.ID)
			ctx = context.WithValue(ctx, utils.ContextKeyUserName, user.Name)
			ctx = context.WithValue(ctx, utils.ContextKeyIsAdmin, user.Role == models.UserRoleAdmin)
		} else if db := config.GetDB(); db != nil {
			if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error; err == nil {
				ctx = context.WithValue(ctx, utils.ContextKeyUserId, user.ID)
				ctx = context.WithValue(ctx, utils.ContextKeyUserName, user.Name)
				ctx = context.WithValue(ctx, utils.ContextKeyIsAdmin, user.Role == models.UserRoleAdmin)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
