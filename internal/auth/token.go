package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer is the iss claim of every token minted here
const TokenIssuer = "projectgrid"

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and purpose mismatches
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a well-formed token past its expiry
	ErrTokenExpired = errors.New("token expired")
)

// TokenConfig holds the signing material. PurposeSecrets overrides the key derived
// from Secret for individual purposes.
type TokenConfig struct {
	Secret         string
	PurposeSecrets map[models.TokenPurpose]string
}

// TokenManager issues and verifies purpose-bound HS256 tokens
type TokenManager struct {
	keys map[models.TokenPurpose][]byte
	now  func() time.Time
}

// NewTokenManager creates a TokenManager with one signing key per purpose
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}

	keys := make(map[models.TokenPurpose][]byte, len(models.Purposes))
	for _, p := range models.Purposes {
		if s := cfg.PurposeSecrets[p]; s != "" {
			keys[p] = []byte(s)
			continue
		}
		keys[p] = deriveKey(cfg.Secret, p)
	}

	return &TokenManager{keys: keys, now: time.Now}, nil
}

// SetClock replaces the time source, used by tests
func (tm *TokenManager) SetClock(now func() time.Time) {
	tm.now = now
}

func deriveKey(secret string, purpose models.TokenPurpose) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(TokenIssuer + "/" + purpose.String()))
	return mac.Sum(nil)
}

// Issue mints a token for userID bound to purpose, valid for ttl
func (tm *TokenManager) Issue(userID string, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	key, ok := tm.keys[purpose]
	if !ok {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	now := tm.now()
	claims := &models.TokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    TokenIssuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}

	return tokenString, nil
}

// Verify checks signature, expiry and purpose and returns the claims.
// It never panics; every failure is ErrInvalidToken or ErrTokenExpired.
func (tm *TokenManager) Verify(tokenString string, purpose models.TokenPurpose) (*models.TokenClaims, error) {
	key, ok := tm.keys[purpose]
	if !ok || tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.Purpose != purpose || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// HashToken returns the hex SHA-256 digest stored in place of a raw token
func HashToken(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}
