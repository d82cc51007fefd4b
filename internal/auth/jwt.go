// Package auth turns bearer tokens into caller identities. Tokens are issued
// by the external auth service; this package only validates them.
package auth

import (
	"context"
	"fmt"
	"time"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Validator establishes the identity behind a bearer token. Invalid tokens
// yield apperrors.ErrInvalidToken.
type Validator interface {
	Validate(ctx context.Context, token string) (*models.Identity, error)
}

// JWTValidator checks HS256 tokens signed with a shared secret.
type JWTValidator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewJWTValidator(secret, issuer string, leeway time.Duration) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), issuer: issuer, leeway: leeway}
}

func (v *JWTValidator) Validate(_ context.Context, tokenString string) (*models.Identity, error) {
	if tokenString == "" {
		return nil, apperrors.ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	identity, err := identityFromClaims(claims)
	if err != nil {
		return nil, err
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity, nil
}

// identityFromClaims accepts user_id, userId or sub as the subject. A token
// without a role claim belongs to a customer.
func identityFromClaims(claims jwt.MapClaims) (*models.Identity, error) {
	id := ""
	for _, key := range []string{"user_id", "userId", "sub"} {
		if s := claimString(claims, key); s != "" {
			id = s
			break
		}
	}
	if id == "" {
		return nil, apperrors.ErrInvalidToken
	}

	role := models.RoleCustomer
	if raw := claimString(claims, "role"); raw != "" {
		parsed, ok := models.ParseRole(raw)
		if !ok {
			return nil, apperrors.ErrInvalidToken
		}
		role = parsed
	}

	return &models.Identity{
		UserID: id,
		Name:   claimString(claims, "name"),
		Email:  claimString(claims, "email"),
		Role:   role,
	}, nil
}

// claimString reads string and numeric claims; JSON numbers decode as float64.
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

// SignToken issues a token the JWTValidator accepts. Used by the seed and
// smoke tools and by tests; production tokens come from the auth service.
func SignToken(secret string, identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": identity.UserID,
		"name":    identity.Name,
		"email":   identity.Email,
		"role":    string(identity.Role),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
