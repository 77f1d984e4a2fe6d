package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserClaims  = "userClaims"
	ctxBoardClaims = "boardClaims"
)

// BearerToken 从 Authorization 头提取 bearer token。
func BearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}

func abortWith(c *gin.Context, err error) {
	if errors.Is(err, ErrTokenExpired) {
		c.AbortWithStatusJSON(StatusTokenExpired, gin.H{"message": "Token has expired."})
		return
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid token."})
}

// RequireUserAccess 校验用户级 access token：缺失 401，过期 222，无效 403。
func RequireUserAccess(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, err := ParseUserAccess(token, secret)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.Set(ctxUserClaims, claims)
		c.Next()
	}
}

// RequireUserRefresh 校验用户级 refresh token。
func RequireUserRefresh(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, err := ParseUserRefresh(token, secret)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.Set(ctxUserClaims, &UserClaims{UserID: claims.UserID})
		c.Next()
	}
}

// RequireBoardAccess 校验 board 级 access token。
func RequireBoardAccess(secret string) gin.HandlerFunc {
	return requireBoard(secret)
}

// RequireBoardRefresh 校验 board 级 refresh token。
func RequireBoardRefresh(secret string) gin.HandlerFunc {
	return requireBoard(secret)
}

func requireBoard(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, err := ParseBoardToken(token, secret)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.Set(ctxBoardClaims, claims)
		c.Next()
	}
}

// UserFrom 取出中间件存入的用户 claims。
func UserFrom(c *gin.Context) *UserClaims {
	if v, ok := c.Get(ctxUserClaims); ok {
		if claims, ok2 := v.(*UserClaims); ok2 {
			return claims
		}
	}
	return nil
}

// BoardFrom 取出中间件存入的 board claims。
func BoardFrom(c *gin.Context) *BoardClaims {
	if v, ok := c.Get(ctxBoardClaims); ok {
		if claims, ok2 := v.(*BoardClaims); ok2 {
			return claims
		}
	}
	return nil
}
