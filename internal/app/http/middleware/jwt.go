package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"scholarsphere/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const currentUserKey = "current_user"

// AuthMiddleware validates the bearer token and stores the caller as a
// users.User built from its claims.
func AuthMiddleware(secret string) gin.HandlerFunc {
	jwtKey := []byte(secret)
	return func(c *gin.Context) {
		if len(jwtKey) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "JWT secret not configured"})
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token malformed"})
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return jwtKey, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		u := userFromClaims(claims)
		if u.ID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}

		c.Set("user_id", u.ID)
		c.Set(currentUserKey, u)
		if u.Admin {
			c.Set("role", "admin")
		}
		c.Next()
	}
}

func userFromClaims(claims jwt.MapClaims) users.User {
	var u users.User
	if v, ok := claims["user_id"].(float64); ok {
		u.ID = uint(v)
	}
	if v, ok := claims["actor_id"].(float64); ok {
		u.ActorID = uint(v)
	}
	if v, ok := claims["access_id"].(string); ok {
		u.AccessID = v
	}
	if v, ok := claims["email"].(string); ok {
		u.Email = v
	}
	if v, ok := claims["admin"].(bool); ok {
		u.Admin = v
	}
	if groups, ok := claims["groups"].([]interface{}); ok {
		for _, g := range groups {
			if s, ok := g.(string); ok {
				u.Groups = append(u.Groups, s)
			}
		}
	}
	return u
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (users.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return users.User{}, false
	}
	u, ok := v.(users.User)
	return u, ok
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		if value != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		c.Next()
	}
}
