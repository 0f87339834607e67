package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what a verified token proves about the caller.
type Identity struct {
	AccountID   uint
	AccountName string
	Role        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type tokenClaims struct {
	AccountID   uint   `json:"uid"`
	AccountName string `json:"uname"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies self-contained identity tokens.
type TokenCodec struct {
	secretKey []byte
	ttl       time.Duration
}

// NewTokenCodec builds a codec using the provided secret.
func NewTokenCodec(secretKey string, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenCodec{
		secretKey: []byte(secretKey),
		ttl:       ttl,
	}
}

// TTL reports the lifetime stamped into issued tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for the account, expiring after the configured TTL.
func (c *TokenCodec) Issue(accountID uint, accountName, role string) (string, error) {
	if len(c.secretKey) == 0 {
		return "", errors.New("token secret is empty")
	}

	now := time.Now()
	claims := tokenClaims{
		AccountID:   accountID,
		AccountName: accountName,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secretKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify checks signature and expiry and extracts the identity. It never
// consults external state; session supersession is the registry's concern.
func (c *TokenCodec) Verify(tokenString string) (*Identity, error) {
	if len(c.secretKey) == 0 {
		return nil, errors.New("token secret is empty")
	}

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return c.secretKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}
	// A token at exactly its expiry instant is already dead.
	if !time.Now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	identity := &Identity{
		AccountID:   claims.AccountID,
		AccountName: claims.AccountName,
		Role:        claims.Role,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}
