// middleware/jwt_middleware.go
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Context keys set after a token is accepted
const (
	ContextUserID = "userId"
	ContextRole   = "role"
	ContextEmail  = "email"
)

// JwtCustomClaims for JWT token
type JwtCustomClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// Valid checks the time claims; tokens without an expiry are accepted.
func (c JwtCustomClaims) Valid() error {
	now := time.Now().Unix()
	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return errors.New("token is expired")
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return errors.New("token used before valid")
	}
	if c.UserID == "" {
		return errors.New("token has no user id")
	}
	return nil
}

// JWTMiddleware returns the bearer-token middleware for the /api group.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    []byte(secret),
		SigningMethod: middleware.AlgorithmHS256,
		Claims:        &JwtCustomClaims{},
		SuccessHandler: func(c echo.Context) {
			claims := GetUserFromToken(c)
			if claims == nil {
				return
			}
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextRole, claims.Role)
			c.Set(ContextEmail, claims.Email)
		},
		ErrorHandlerWithContext: func(err error, c echo.Context) error {
			logger.Log.WithFields(logrus.Fields{
				"path":  c.Request().URL.Path,
				"error": err.Error(),
			}).Debug("JWT rejected")
			return c.JSON(http.StatusUnauthorized, models.Response{
				Success: false,
				Message: "Please provide valid credentials",
			})
		},
	})
}

// ParseToken validates a raw token outside the middleware, as the websocket
// handshake passes it as a query parameter.
func ParseToken(secret, raw string) (*JwtCustomClaims, error) {
	claims := &JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GenerateJWT signs an access token. A zero ttl issues a token without
// expiry. Issuance belongs to the identity provider; this is used by local
// tooling and tests.
func GenerateJWT(secret, userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JwtCustomClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		StandardClaims: jwt.StandardClaims{
			IssuedAt: now.Unix(),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetUserFromToken extracts user information from JWT token
func GetUserFromToken(c echo.Context) *JwtCustomClaims {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil
	}
	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok {
		return nil
	}
	return claims
}

// ExtractRole safely extracts the caller's role from the context
func ExtractRole(c echo.Context) string {
	if role, ok := c.Get(ContextRole).(string); ok && role != "" {
		return role
	}
	if claims := GetUserFromToken(c); claims != nil {
		return claims.Role
	}
	return ""
}

// UserIDFromContext returns the authenticated caller's id.
func UserIDFromContext(c echo.Context) (primitive.ObjectID, error) {
	raw, _ := c.Get(ContextUserID).(string)
	if raw == "" {
		if claims := GetUserFromToken(c); claims != nil {
			raw = claims.UserID
		}
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, errors.New("invalid user ID in token")
	}
	return id, nil
}
