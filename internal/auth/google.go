package auth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"

	"github.com/digkill/photostudio/internal/service"
)

// GoogleVerifier checks Google Sign-In ID tokens against the OAuth client id.
type GoogleVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("create id token validator: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, validator: validator}, nil
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (service.Identity, error) {
	payload, err := v.validator.Validate(ctx, token, v.clientID)
	if err != nil {
		return service.Identity{}, fmt.Errorf("validate id token: %w", err)
	}
	return identityFromPayload(payload), nil
}

func identityFromPayload(p *idtoken.Payload) service.Identity {
	return service.Identity{
		Subject: p.Subject,
		Email:   claimString(p.Claims, "email"),
		Name:    claimString(p.Claims, "name"),
		Picture: claimString(p.Claims, "picture"),
	}
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
