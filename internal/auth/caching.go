package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/models"
)

// IdentityCache stores validated identities by token digest.
type IdentityCache interface {
	GetIdentity(ctx context.Context, key string) (*models.Identity, error)
	SetIdentity(ctx context.Context, key string, identity *models.Identity, ttl time.Duration) error
}

// ErrCacheMiss is returned by IdentityCache implementations for unknown keys.
var ErrCacheMiss = errors.New("identity not cached")

// CachingValidator memoizes a slower Validator, typically the remote auth
// service. Cache failures fall through to the inner validator.
type CachingValidator struct {
	inner  Validator
	cache  IdentityCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachingValidator(inner Validator, cache IdentityCache, ttl time.Duration, logger *slog.Logger) *CachingValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingValidator{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (v *CachingValidator) Validate(ctx context.Context, token string) (*models.Identity, error) {
	key := tokenKey(token)

	identity, err := v.cache.GetIdentity(ctx, key)
	if err == nil && identity != nil {
		return identity, nil
	}
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		v.logger.Warn("Identity cache lookup failed", "error", err)
	}

	identity, err = v.inner.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	if ttl := v.cacheTTL(identity); ttl > 0 {
		if err := v.cache.SetIdentity(ctx, key, identity, ttl); err != nil {
			v.logger.Warn("Identity cache write failed", "error", err)
		}
	}
	return identity, nil
}

// cacheTTL never lets an entry outlive the token it was validated from.
func (v *CachingValidator) cacheTTL(identity *models.Identity) time.Duration {
	ttl := v.ttl
	if !identity.ExpiresAt.IsZero() {
		if left := time.Until(identity.ExpiresAt); left < ttl {
			ttl = left
		}
	}
	return ttl
}

// StaticValidator maps fixed tokens to identities. Used in tests and local setups.
type StaticValidator map[string]models.Identity

func (v StaticValidator) Validate(_ context.Context, token string) (*models.Identity, error) {
	identity, ok := v[token]
	if !ok {
		return nil, invalidOrMissing(token)
	}
	return &identity, nil
}

func invalidOrMissing(token string) error {
	if token == "" {
		return apperrors.ErrMissingToken
	}
	return apperrors.ErrInvalidToken
}
