// Package auth issues and verifies the bearer tokens that identify users.
package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bloomweaver/backend/internal/common"
)

// Claims carries the standard registered claims plus the user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}

// Identity resolves the calling user from a request. An empty user id means
// the request is anonymous; handlers decide per route whether that is
// acceptable.
type Identity struct {
	secretKey []byte
}

func NewIdentity(secretKey []byte) *Identity {
	return &Identity{secretKey: secretKey}
}

// CurrentUserID extracts the user id from the Authorization bearer token.
// Absent, malformed, or invalid tokens all yield the empty id.
func (i *Identity) CurrentUserID(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return ""
	}

	userID, err := GetUserIDFromToken(token, i.secretKey)
	if err != nil {
		return ""
	}
	return userID
}
