package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dvr/internal/api"
)

// ErrInvalidToken reports a malformed, forged, or expired bearer token.
var ErrInvalidToken = errors.New("invalid token")

const (
	tokenIssuer   = "dvr"
	contextClient = "api_client"
)

// Claims identify an API client.
type Claims struct {
	Client string `json:"client"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for client. A non-positive ttl issues a
// token that never expires.
func IssueToken(secret, client string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("api secret is not configured")
	}
	now := time.Now()
	claims := Claims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   tokenIssuer,
			Subject:  client,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken checks signature, issuer, and expiry.
func ValidateToken(secret, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// bearerAuth validates "Authorization: Bearer <token>". Browsers cannot set
// headers on a websocket upgrade, so a token query parameter is accepted too.
func bearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(c, "invalid authorization header")
				return
			}
			token = parts[1]
		}
		if token == "" {
			unauthorized(c, "missing authorization header")
			return
		}
		claims, err := ValidateToken(secret, token)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(contextClient, claims.Client)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: message})
}
