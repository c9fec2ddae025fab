package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blogium/blogium/config"
	"github.com/blogium/blogium/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, code, msg := claimsFromHeader(ctx)
		if claims == nil {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			ctx.Abort()
			return
		}
		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// AdminRequired allows only usernames listed in the admin configuration.
// Runs after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		uname, _ := ctx.Get(ContextUsernameKey)
		name, _ := uname.(string)
		if name == "" || !isAdminName(name) {
			utils.Error(ctx, http.StatusForbidden, 40310, "administrator access required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func isAdminName(name string) bool {
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), name) {
			return true
		}
	}
	return false
}

// OptionalAuth resolves the viewer identity when a valid bearer token is
// present and continues anonymously otherwise. Public reads use it so the
// profile owner view and the author's post-detail bypass can work without
// requiring login to browse.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims, _, _ := claimsFromHeader(ctx); claims != nil {
			ctx.Set(ContextUserIDKey, claims.UserID)
			ctx.Set(ContextUsernameKey, claims.Username)
		}
		ctx.Next()
	}
}

func claimsFromHeader(ctx *gin.Context) (*utils.Claims, int, string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, 40101, "authorization header missing"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, 40102, "invalid authorization header format"
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, 40103, "empty bearer token"
	}

	if utils.IsTokenBlacklisted(tokenString) {
		return nil, 40104, "token revoked"
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return nil, 40105, "invalid token"
	}
	return claims, 0, ""
}
