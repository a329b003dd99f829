package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken means no bearer credential was presented.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken means a credential was presented but could not be verified.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carries the user identity. Registered claims stay empty unless a TTL
// is configured.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// TokenManager issues and verifies HS256 bearer tokens with a shared secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager constructs a TokenManager. A zero ttl issues tokens that
// never expire.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for userID.
func (m *TokenManager) Issue(userID int) (string, error) {
	claims := Claims{UserID: strconv.Itoa(userID)}
	if m.ttl > 0 {
		now := m.now()
		claims.IssuedAt = jwt.NewNumericDate(now)
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks the signature and returns the embedded user ID.
func (m *TokenManager) Verify(tokenString string) (int, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return 0, ErrMissingToken
	}

	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.UserID))
	if err != nil || userID < 1 {
		return 0, fmt.Errorf("%w: missing user claim", ErrInvalidToken)
	}
	return userID, nil
}
