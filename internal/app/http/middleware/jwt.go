package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"fulfillment-app/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware requires a valid bearer token and sets user_id/email/role
// on the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, claims, err := parseBearer(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		setClaims(c, userID, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware sets identity claims when a valid bearer token is
// present and silently continues when it is not. Buyer endpoints accept
// both authenticated and anonymous (session-owned) requests.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if userID, claims, err := parseBearer(c); err == nil {
				setClaims(c, userID, claims)
			}
		}
		c.Next()
	}
}

func parseBearer(c *gin.Context) (uint, jwt.MapClaims, error) {
	jwtKey := []byte(config.JWT_SECRET)
	if len(jwtKey) == 0 {
		return 0, nil, fmt.Errorf("JWT secret not configured")
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return 0, nil, fmt.Errorf("Authorization header missing")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return 0, nil, fmt.Errorf("Bearer token malformed")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return 0, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtKey, nil
	})
	if err != nil || !token.Valid {
		return 0, nil, fmt.Errorf("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, nil, fmt.Errorf("Invalid token claims")
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, nil, fmt.Errorf("Token missing user_id")
	}
	return uint(userIDFloat), claims, nil
}

func setClaims(c *gin.Context, userID uint, claims jwt.MapClaims) {
	c.Set("user_id", userID)
	if email, ok := claims["email"].(string); ok {
		c.Set("email", email)
	}
	if role, ok := claims["role"].(string); ok {
		c.Set("role", role)
	}
}
