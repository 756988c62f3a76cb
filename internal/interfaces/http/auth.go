package http

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

// AuthManager issues and validates the signed session tokens carried in the
// portal's session cookie.
type AuthManager struct {
	secret     []byte
	cookieName string
	ttl        time.Duration

	// debug trusts the X-User-Id header as an identity override. Never
	// enable outside development.
	debug bool
}

// NewAuthManager creates a new AuthManager.
func NewAuthManager(secret, cookieName string, ttl time.Duration, debug bool) *AuthManager {
	return &AuthManager{
		secret:     []byte(secret),
		cookieName: cookieName,
		ttl:        ttl,
		debug:      debug,
	}
}

// IssueToken creates a signed session token for a user id.
func (a *AuthManager) IssueToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// parseToken validates a session token and returns the user id.
func (a *AuthManager) parseToken(raw string) (int64, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, fmt.Errorf("missing subject claim")
	}
	return strconv.ParseInt(claims.Subject, 10, 64)
}

// Middleware resolves the acting user id from the session cookie (or, in
// debug mode, the X-User-Id header) and aborts unauthenticated requests.
func (a *AuthManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.debug {
			if raw := c.GetHeader("X-User-Id"); raw != "" {
				if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
					c.Set(userIDKey, id)
					c.Next()
					return
				}
			}
		}

		cookie, err := c.Cookie(a.cookieName)
		if err != nil || cookie == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		userID, err := a.parseToken(cookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// actingUserID reads the authenticated user id set by the middleware.
func actingUserID(c *gin.Context) int64 {
	id, _ := c.Get(userIDKey)
	v, _ := id.(int64)
	return v
}

// HashPassword derives the stored digest for a password: hex sha256 over
// "salt$password", stored as "salt$digest".
func HashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + "$" + password))
	return salt + "$" + hex.EncodeToString(sum[:])
}

// VerifyPassword checks a password against a stored "salt$digest" value in
// constant time.
func VerifyPassword(stored, password string) bool {
	idx := strings.IndexByte(stored, '$')
	if idx <= 0 {
		return false
	}
	expected := HashPassword(stored[:idx], password)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(stored)) == 1
}
