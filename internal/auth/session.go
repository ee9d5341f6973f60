// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session token.
const CookieName = "auth_token"

var ErrNoSession = errors.New("no session")

var (
	mu         sync.RWMutex
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	tokenTTL   time.Duration
)

// Init generates a fresh ed25519 key pair. Tokens issued before a restart stop validating.
// A ttl of 0 issues tokens without an exp claim.
func Init(ttl time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	setKeys(priv, pub, ttl)
	return nil
}

// InitFromPath reads raw ed25519 private/public keys from disk.
func InitFromPath(privatePath, publicPath string, ttl time.Duration) error {
	privData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	pubData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privData) != ed25519.PrivateKeySize || len(pubData) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid ed25519 key sizes (%d, %d)", len(privData), len(pubData))
	}
	setKeys(ed25519.PrivateKey(privData), ed25519.PublicKey(pubData), ttl)
	return nil
}

func setKeys(priv ed25519.PrivateKey, pub ed25519.PublicKey, ttl time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	privateKey, publicKey, tokenTTL = priv, pub, ttl
}

// TokenTTL is the configured session lifetime (0 => never expires).
func TokenTTL() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return tokenTTL
}

// CreateJWT signs a token with sub = userID.
func CreateJWT(userID uuid.UUID) (string, error) {
	mu.RLock()
	key, ttl := privateKey, tokenTTL
	mu.RUnlock()
	if key == nil {
		return "", errors.New("auth keys not initialised")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  userID.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
}

// AuthenticateJWT verifies tokenString and returns the user id in its subject.
func AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrNoSession
	}

	mu.RLock()
	key := publicKey
	mu.RUnlock()

	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid sub in jwt: %w", err)
	}
	return userID, nil
}
