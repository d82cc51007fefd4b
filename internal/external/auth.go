package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// AuthClient asks the identity provider who a bearer token belongs to.
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
}

type AuthConfig struct {
	BaseURL string
	Timeout time.Duration
}

// validateResponse mirrors GET /api/auth/validate.
type validateResponse struct {
	User struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func NewAuthClient(cfg AuthConfig) *AuthClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &AuthClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Validate implements auth.Validator. 401 and 403 answers mean the token is
// bad; anything else unexpected is reported as an unavailable dependency.
func (ac *AuthClient) Validate(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, apperrors.ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ac.baseURL+"/api/auth/validate", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := ac.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: auth service request failed: %v", apperrors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.New(apperrors.ErrUnavailable, fmt.Sprintf("auth service returned %d", resp.StatusCode))
	}

	var body validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.User.ID == "" {
		return nil, apperrors.ErrInvalidToken
	}

	role := models.RoleCustomer
	if body.User.Role != "" {
		parsed, ok := models.ParseRole(body.User.Role)
		if !ok {
			return nil, apperrors.ErrInvalidToken
		}
		role = parsed
	}

	identity := &models.Identity{
		UserID: body.User.ID,
		Name:   body.User.Name,
		Email:  body.User.Email,
		Role:   role,
	}
	if body.ExpiresAt != nil {
		identity.ExpiresAt = *body.ExpiresAt
	} else {
		identity.ExpiresAt = tokenExpiry(token)
	}
	return identity, nil
}

// tokenExpiry reads the exp claim without checking the signature; the auth
// service has already vouched for the token. Opaque tokens yield zero.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
